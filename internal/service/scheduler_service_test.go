package service

import "testing"

func TestDailyCronSpec(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "08:00", want: "0 8 * * *"},
		{input: "23:59", want: "59 23 * * *"},
		{input: "9:30", want: "30 9 * * *"},
		{input: "00:05", want: "5 0 * * *"},
		{input: "0:5", wantErr: true},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "noon", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := dailyCronSpec(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("dailyCronSpec(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("dailyCronSpec(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("dailyCronSpec(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
