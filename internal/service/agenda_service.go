package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"everyday/internal/calendar"
	"everyday/internal/model"
)

// AgendaService renders a day's classified tasks as a Telegram-ready
// HTML summary.
type AgendaService struct {
	taskSvc *TaskService
}

func NewAgendaService(taskSvc *TaskService) *AgendaService {
	return &AgendaService{taskSvc: taskSvc}
}

// DailyAgenda builds the agenda text for the given civil day.
func (s *AgendaService) DailyAgenda(ctx context.Context, user model.User, target calendar.Date) (string, error) {
	classified, err := s.taskSvc.TasksForDate(ctx, &user, target)
	if err != nil {
		return "", err
	}
	return s.Render(target, classified), nil
}

// Render formats already-classified tasks. Split out so the bot can
// reuse one classification pass for both the text and its buttons.
func (s *AgendaService) Render(target calendar.Date, classified []ClassifiedTask) string {
	var active, upcoming []ClassifiedTask
	for _, ct := range classified {
		if ct.Status == StatusActive {
			active = append(active, ct)
		} else {
			upcoming = append(upcoming, ct)
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Agenda</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", target.Time().Format("Mon, Jan 2 2006")))

	builder.WriteString("🔥 <b>Due</b>\n")
	if len(active) == 0 {
		builder.WriteString("— nothing due\n")
	} else {
		for _, ct := range active {
			builder.WriteString(formatAgendaTask(ct, target))
		}
	}

	builder.WriteString("\n👀 <b>Coming up</b>\n")
	if len(upcoming) == 0 {
		builder.WriteString("— nothing on the horizon\n")
	} else {
		for _, ct := range upcoming {
			builder.WriteString(formatAgendaTask(ct, target))
		}
	}

	return strings.TrimSpace(builder.String())
}

func formatAgendaTask(ct ClassifiedTask, target calendar.Date) string {
	var sb strings.Builder

	task := ct.Task
	icon := "🟢"
	if ct.Status == StatusUpcoming {
		icon = "🔜"
	} else if task.ScheduledDate.Before(target) {
		icon = "⚠️"
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Name))))
	if _, recurring := task.RescheduleRule(); recurring {
		sb.WriteString(" ♻️")
	}
	sb.WriteByte('\n')

	switch {
	case task.ScheduledDate.Before(target):
		overdue := calendar.DaysBetween(task.ScheduledDate, target)
		sb.WriteString(fmt.Sprintf("   ⏰ %s — <b>%d day(s) overdue</b>\n", task.ScheduledDate, overdue))
	case task.ScheduledDate.After(target):
		sb.WriteString(fmt.Sprintf("   📆 scheduled %s\n", task.ScheduledDate))
	}

	if task.Note != "" {
		sb.WriteString(fmt.Sprintf("   📝 %s\n", html.EscapeString(strings.TrimSpace(task.Note))))
	}

	return sb.String()
}
