package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"everyday/internal/calendar"
	"everyday/internal/model"
	"everyday/internal/repository"
	"everyday/internal/service"
)

type botEnv struct {
	bot  *Bot
	db   *gorm.DB
	svc  *service.TaskService
	user *model.User
}

// newBotEnv builds a bot without a Telegram API; only the stateful
// pieces under test are wired.
func newBotEnv(t *testing.T) *botEnv {
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

	svc := service.NewTaskService(repository.NewTaskRepository(db), repository.NewUnitOfWork(db))
	b := &Bot{
		userRepo:      users,
		taskSvc:       svc,
		agendaSvc:     service.NewAgendaService(svc),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		undoables:     make(map[int64]undoRef),
	}
	return &botEnv{bot: b, db: db, svc: svc, user: user}
}

func (e *botEnv) resolvedRef(t *testing.T) undoRef {
	t.Helper()
	ctx := context.Background()

	task, err := e.svc.CreateTask(ctx, e.user, service.TaskInput{
		Name:          "water the plants",
		ScheduledDate: calendar.MustParseDate("2024-01-01"),
	})
	if err != nil {
		t.Fatal(err)
	}
	result, err := e.svc.Resolve(ctx, e.user, task.ID, model.ResolutionCompleted, calendar.MustParseDate("2024-01-02"))
	if err != nil {
		t.Fatal(err)
	}
	return undoRef{taskID: task.ID, resolutionID: result.ResolutionID}
}

func TestRunUndoReopensTask(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()
	ref := env.resolvedRef(t)

	if err := env.bot.runUndo(ctx, env.user, env.user.TelegramID, ref); err != nil {
		t.Fatalf("runUndo: %v", err)
	}
	task, err := env.svc.GetTask(ctx, env.user, ref.taskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.ResolvedAt != nil {
		t.Error("task still resolved after undo")
	}
	if _, ok := env.bot.takeUndoable(env.user.TelegramID); ok {
		t.Error("undo ref kept after a successful undo")
	}
}

func TestRunUndoKeepsRefOnTransientFailure(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()
	ref := env.resolvedRef(t)

	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatal(err)
	}

	err = env.bot.runUndo(ctx, env.user, env.user.TelegramID, ref)
	if err == nil {
		t.Fatal("expected an error from the closed database")
	}
	if errors.Is(err, service.ErrNotFound) {
		t.Fatalf("closed database surfaced as not-found: %v", err)
	}
	if _, ok := env.bot.takeUndoable(env.user.TelegramID); !ok {
		t.Error("undo ref discarded after a transient failure")
	}
}

func TestRunUndoDropsRefWhenTaskGone(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	ref := undoRef{taskID: "no-such-task", resolutionID: "no-such-resolution"}
	if err := env.bot.runUndo(ctx, env.user, env.user.TelegramID, ref); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, ok := env.bot.takeUndoable(env.user.TelegramID); ok {
		t.Error("undo ref kept for a vanished task")
	}
}
