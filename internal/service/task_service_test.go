package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"everyday/internal/calendar"
	"everyday/internal/model"
	"everyday/internal/repository"
)

type testEnv struct {
	svc         *TaskService
	agenda      *AgendaService
	resolutions *repository.ResolutionRepository
	users       *repository.UserRepository
	user        *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "everyday.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	users := repository.NewUserRepository(db)
	user, err := users.UpsertFromTelegram(context.Background(), 42, "Ada", "Lovelace", "ada")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}

	svc := NewTaskService(repository.NewTaskRepository(db), repository.NewUnitOfWork(db))
	return &testEnv{
		svc:         svc,
		agenda:      NewAgendaService(svc),
		resolutions: repository.NewResolutionRepository(db),
		users:       users,
		user:        user,
	}
}

func weeklyInput(scheduled string) TaskInput {
	return TaskInput{
		Name:            "water the plants",
		Note:            "the fern needs extra",
		ScheduledDate:   calendar.MustParseDate(scheduled),
		RescheduleEvery: intPtr(1),
		RescheduleUnit:  unitPtr(calendar.UnitWeek),
		RescheduleFrom:  anchorPtr(calendar.AnchorScheduled),
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateTask(ctx, env.user, TaskInput{ScheduledDate: calendar.MustParseDate("2024-01-01")}); err == nil {
		t.Error("empty name accepted")
	}

	input := weeklyInput("2024-01-01")
	input.RescheduleEvery = intPtr(0)
	if _, err := env.svc.CreateTask(ctx, env.user, input); !errors.Is(err, calendar.ErrInvalidRecurrence) {
		t.Errorf("zero cadence: got %v, want ErrInvalidRecurrence", err)
	}

	input = weeklyInput("2024-01-01")
	input.RescheduleEvery = intPtr(-3)
	if _, err := env.svc.CreateTask(ctx, env.user, input); !errors.Is(err, calendar.ErrInvalidRecurrence) {
		t.Errorf("negative cadence: got %v, want ErrInvalidRecurrence", err)
	}

	// Unknown units must fail loudly; the interval math would treat
	// them as days.
	input = weeklyInput("2024-01-01")
	input.RescheduleUnit = unitPtr(calendar.Unit("fortnight"))
	if _, err := env.svc.CreateTask(ctx, env.user, input); err == nil {
		t.Error("unknown reschedule unit accepted")
	}

	input = weeklyInput("2024-01-01")
	input.PreviewLeadTime = intPtr(2)
	input.PreviewUnit = unitPtr(calendar.Unit("sprint"))
	if _, err := env.svc.CreateTask(ctx, env.user, input); err == nil {
		t.Error("unknown preview unit accepted")
	}

	input = weeklyInput("2024-01-01")
	input.RescheduleFrom = anchorPtr(calendar.Anchor("creation"))
	if _, err := env.svc.CreateTask(ctx, env.user, input); err == nil {
		t.Error("unknown anchor accepted")
	}
}

func TestResolveCreatesSuccessorOnCadence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}

	// Three weeks late: the successor must land after the completion
	// date, on the original cadence.
	result, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-22"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.NextTask == nil {
		t.Fatal("expected a successor task")
	}
	if result.NextTask.ScheduledDate.String() != "2024-01-29" {
		t.Fatalf("successor scheduled %v, want 2024-01-29", result.NextTask.ScheduledDate)
	}

	resolved, err := env.svc.GetTask(ctx, env.user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.ResolvedAt == nil {
		t.Fatal("original task not marked resolved")
	}

	records, err := env.resolutions.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("resolution records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.ID != result.ResolutionID {
		t.Errorf("record id %q, result id %q", rec.ID, result.ResolutionID)
	}
	if rec.ScheduledDate.String() != "2024-01-01" {
		t.Errorf("scheduled date snapshot = %v", rec.ScheduledDate)
	}
	if rec.ResolvedDate.String() != "2024-01-22" {
		t.Errorf("resolved date = %v", rec.ResolvedDate)
	}

	successor, err := env.svc.GetTask(ctx, env.user, result.NextTask.ID)
	if err != nil {
		t.Fatal(err)
	}
	if successor.ResolvedAt != nil {
		t.Error("successor must start open")
	}
}

func TestResolveWithoutRuleHasNoSuccessor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, TaskInput{
		Name:          "file taxes",
		ScheduledDate: calendar.MustParseDate("2024-04-15"),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-04-15"))
	if err != nil {
		t.Fatal(err)
	}
	if result.NextTask != nil {
		t.Fatalf("unexpected successor: %+v", result.NextTask)
	}
}

func TestResolvePartialRuleHasNoSuccessor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := weeklyInput("2024-01-01")
	input.RescheduleUnit = nil
	task, err := env.svc.CreateTask(ctx, env.user, input)
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-02"))
	if err != nil {
		t.Fatal(err)
	}
	if result.NextTask != nil {
		t.Fatal("partial rule must not spawn a successor")
	}
}

func TestResolveTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-01")); err != nil {
		t.Fatal(err)
	}
	_, err = env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-01"))
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("got %v, want ErrAlreadyResolved", err)
	}
}

func TestResolveScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}

	stranger, err := env.users.UpsertFromTelegram(ctx, 99, "Eve", "", "eve")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Resolve(ctx, stranger, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-01")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger resolve: got %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Resolve(ctx, env.user, "no-such-task", model.ResolutionCompleted, calendar.MustParseDate("2024-01-01")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing task: got %v, want ErrNotFound", err)
	}
}

func TestResolveRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Resolve(context.Background(), env.user, "whatever", model.ResolutionType("postponed"), calendar.MustParseDate("2024-01-01"))
	if err == nil {
		t.Fatal("unknown resolution type accepted")
	}
}

func TestResolveUndoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	before, err := env.svc.GetTask(ctx, env.user, task.ID)
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionSkipped, calendar.MustParseDate("2024-01-22"))
	if err != nil {
		t.Fatal(err)
	}

	if err := env.svc.UndoResolution(ctx, env.user, task.ID, result.ResolutionID, result.NextTask.ID); err != nil {
		t.Fatalf("UndoResolution: %v", err)
	}

	after, err := env.svc.GetTask(ctx, env.user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.ResolvedAt != nil {
		t.Fatal("task still resolved after undo")
	}
	if after.Name != before.Name || after.Note != before.Note || after.ScheduledDate != before.ScheduledDate {
		t.Fatalf("task content changed: before %+v, after %+v", before, after)
	}
	if _, ok := after.RescheduleRule(); !ok {
		t.Fatal("reschedule rule lost in round trip")
	}

	if _, err := env.svc.GetTask(ctx, env.user, result.NextTask.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("successor lookup after undo: got %v, want ErrNotFound", err)
	}

	records, err := env.resolutions.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("resolution records after undo = %d, want 0", len(records))
	}

	// The reopened task resolves again like nothing happened.
	if _, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-22")); err != nil {
		t.Fatalf("resolve after undo: %v", err)
	}
}

func TestUndoResolutionScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	result, err := env.svc.Resolve(ctx, env.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-02"))
	if err != nil {
		t.Fatal(err)
	}

	stranger, err := env.users.UpsertFromTelegram(ctx, 99, "Eve", "", "eve")
	if err != nil {
		t.Fatal(err)
	}
	err = env.svc.UndoResolution(ctx, stranger, task.ID, result.ResolutionID, result.NextTask.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger undo: got %v, want ErrNotFound", err)
	}

	// Nothing was touched.
	still, err := env.svc.GetTask(ctx, env.user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if still.ResolvedAt == nil {
		t.Fatal("stranger undo reopened the task")
	}
}

func TestUpdateTaskReplacesContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}

	// Full replace: absent optional fields are cleared, not kept.
	updated, err := env.svc.UpdateTask(ctx, env.user, task.ID, TaskInput{
		Name:          "repot the plants",
		ScheduledDate: calendar.MustParseDate("2024-02-15"),
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Name != "repot the plants" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.Note != "" {
		t.Errorf("note kept: %q", updated.Note)
	}
	if updated.ScheduledDate.String() != "2024-02-15" {
		t.Errorf("scheduled = %v", updated.ScheduledDate)
	}
	if updated.RescheduleEvery != nil || updated.RescheduleUnit != nil || updated.RescheduleFrom != nil {
		t.Error("reschedule rule not cleared")
	}
	if _, recurring := updated.RescheduleRule(); recurring {
		t.Error("task still reports a rule")
	}

	// The rule can come back on a later edit.
	input := weeklyInput("2024-02-15")
	input.PreviewLeadTime = intPtr(3)
	input.PreviewUnit = unitPtr(calendar.UnitDay)
	updated, err = env.svc.UpdateTask(ctx, env.user, task.ID, input)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	rule, ok := updated.RescheduleRule()
	if !ok {
		t.Fatal("rule not restored")
	}
	if rule.Every != 1 || rule.Unit != calendar.UnitWeek || rule.Anchor != calendar.AnchorScheduled {
		t.Errorf("rule = %+v", rule)
	}
	if updated.PreviewLeadTime == nil || *updated.PreviewLeadTime != 3 {
		t.Error("preview lead time not restored")
	}
}

func TestUpdateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.UpdateTask(ctx, env.user, task.ID, TaskInput{ScheduledDate: calendar.MustParseDate("2024-01-01")}); err == nil {
		t.Error("empty name accepted")
	}

	input := weeklyInput("2024-01-01")
	input.RescheduleUnit = unitPtr(calendar.Unit("fortnight"))
	if _, err := env.svc.UpdateTask(ctx, env.user, task.ID, input); err == nil {
		t.Error("unknown unit accepted")
	}

	// Nothing written by the rejected updates.
	current, err := env.svc.GetTask(ctx, env.user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Name != "water the plants" {
		t.Errorf("task changed by rejected update: %q", current.Name)
	}
}

func TestUpdateTaskScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.svc.CreateTask(ctx, env.user, weeklyInput("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}

	stranger, err := env.users.UpsertFromTelegram(ctx, 99, "Eve", "", "eve")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.UpdateTask(ctx, stranger, task.ID, weeklyInput("2024-03-01")); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger update: got %v, want ErrNotFound", err)
	}
	if _, err := env.svc.UpdateTask(ctx, env.user, "no-such-task", weeklyInput("2024-03-01")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task: got %v, want ErrNotFound", err)
	}

	current, err := env.svc.GetTask(ctx, env.user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.ScheduledDate.String() != "2024-01-01" {
		t.Errorf("stranger's update landed: %v", current.ScheduledDate)
	}
}

func TestTasksForDateClassification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	target := calendar.MustParseDate("2024-01-10")

	create := func(input TaskInput) *model.Task {
		t.Helper()
		task, err := env.svc.CreateTask(ctx, env.user, input)
		if err != nil {
			t.Fatal(err)
		}
		return task
	}

	overdue := create(TaskInput{Name: "overdue", ScheduledDate: calendar.MustParseDate("2024-01-05")})
	dueToday := create(TaskInput{Name: "due today", ScheduledDate: calendar.MustParseDate("2024-01-10")})
	previewed := create(TaskInput{
		Name:            "previewed",
		ScheduledDate:   calendar.MustParseDate("2024-01-20"),
		PreviewLeadTime: intPtr(2),
		PreviewUnit:     unitPtr(calendar.UnitWeek),
	})
	create(TaskInput{Name: "hidden future", ScheduledDate: calendar.MustParseDate("2024-01-20")})
	create(TaskInput{
		Name:            "window not open yet",
		ScheduledDate:   calendar.MustParseDate("2024-01-12"),
		PreviewLeadTime: intPtr(1),
		PreviewUnit:     unitPtr(calendar.UnitDay),
	})

	resolved := create(TaskInput{Name: "already done", ScheduledDate: calendar.MustParseDate("2024-01-08")})
	if _, err := env.svc.Resolve(ctx, env.user, resolved.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-09")); err != nil {
		t.Fatal(err)
	}

	classified, err := env.svc.TasksForDate(ctx, env.user, target)
	if err != nil {
		t.Fatal(err)
	}

	statuses := make(map[string]TaskStatus, len(classified))
	for _, ct := range classified {
		statuses[ct.Task.ID] = ct.Status
	}

	if len(statuses) != 3 {
		t.Fatalf("visible tasks = %d (%v), want 3", len(statuses), statuses)
	}
	if statuses[overdue.ID] != StatusActive {
		t.Errorf("overdue task status = %q", statuses[overdue.ID])
	}
	if statuses[dueToday.ID] != StatusActive {
		t.Errorf("due-today task status = %q", statuses[dueToday.ID])
	}
	if statuses[previewed.ID] != StatusUpcoming {
		t.Errorf("previewed task status = %q", statuses[previewed.ID])
	}
}

func TestDailyAgendaRendersSections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateTask(ctx, env.user, TaskInput{Name: "pay rent", ScheduledDate: calendar.MustParseDate("2024-01-01")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.CreateTask(ctx, env.user, TaskInput{
		Name:            "dentist",
		ScheduledDate:   calendar.MustParseDate("2024-01-15"),
		PreviewLeadTime: intPtr(1),
		PreviewUnit:     unitPtr(calendar.UnitMonth),
	}); err != nil {
		t.Fatal(err)
	}

	text, err := env.agenda.DailyAgenda(ctx, *env.user, calendar.MustParseDate("2024-01-10"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pay rent", "dentist", "Due", "Coming up", "overdue"} {
		if !strings.Contains(text, want) {
			t.Errorf("agenda missing %q:\n%s", want, text)
		}
	}
}
