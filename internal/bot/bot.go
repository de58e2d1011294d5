package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"everyday/internal/calendar"
	"everyday/internal/model"
	"everyday/internal/repository"
	"everyday/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageNote
	stageDate
	stagePreview
	stageRepeat
)

const (
	cbDonePrefix   = "done:"
	cbSkipPrefix   = "skip:"
	cbEditPrefix   = "edit:"
	cbDeletePrefix = "del:"
	cbUndo         = "undo"
)

const (
	btnSkip         = "⏭️ Skip"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Cancel"
	btnCancelDialog = "⏪ Cancel input"
	btnUndo         = "↩️ Undo"
	menuLabelNew    = "➕ New task"
	menuLabelToday  = "📋 Today"
	menuLabelHelp   = "ℹ️ Help"
)

// conversationState tracks one task-capture dialog. A non-empty
// editTaskID means the dialog edits that task instead of creating one;
// input starts prefilled from the task, so Skip keeps the current
// value at every step.
type conversationState struct {
	stage      conversationStage
	input      service.TaskInput
	editTaskID string
}

type confirmationRequest struct {
	taskID string
}

// undoRef holds everything needed to reverse the chat's most recent
// resolve. One per chat; a newer resolve replaces it, so the undo
// affordance is deliberately short-lived.
type undoRef struct {
	taskID       string
	resolutionID string
	nextTaskID   string
}

// Bot aggregates the Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	taskSvc       *service.TaskService
	agendaSvc     *service.AgendaService
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	undoables     map[int64]undoRef
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, agendaSvc *service.AgendaService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		taskSvc:       taskSvc,
		agendaSvc:     agendaSvc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		undoables:     make(map[int64]undoRef),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled. I'm here when you want to start over.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't catch that. Try /newtask to add a task, or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. Have a look at /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi %s!\n<b>I keep track of your tasks, including the ones that come back.</b>\n\nCommands:\n"+
			"• /newtask — add a task step by step\n"+
			"• /today — show the agenda for a day\n"+
			"• /help — hints\n"+
			"• /cancel — abort the current input",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Hints</b>\n" +
		"• /newtask — add a task; I'll ask for a name, note, date, preview window and repeat rule\n" +
		"• /today — agenda for today; /today 2024-03-01 for another day\n" +
		"• Repeat rules look like <code>every 2 weeks from completion</code>; the anchor defaults to the scheduled date\n" +
		"• The ✏️ button edits a task: Skip keeps a field, <code>none</code> removes an optional one\n" +
		"• Done and Skip both close a task; a repeating one comes back on its cadence\n" +
		"• After closing a task you get one Undo button; it restores the task and removes the follow-up\n" +
		"• /cancel — abort the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Let's add a task.\n<b>Step 1:</b> what's it called?", cancelKeyboard())
}

// startEditConversation runs the capture dialog against an existing
// task. The input is prefilled so every step can be skipped.
func (b *Bot) startEditConversation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "That task is gone already.")
		}
		return err
	}

	log.Printf("[info] start edit conversation user=%d task=%s", from.ID, taskID)
	b.setConversation(from.ID, &conversationState{
		stage:      stageName,
		editTaskID: task.ID,
		input: service.TaskInput{
			Name:            task.Name,
			Note:            task.Note,
			ScheduledDate:   task.ScheduledDate,
			PreviewLeadTime: task.PreviewLeadTime,
			PreviewUnit:     task.PreviewUnit,
			RescheduleEvery: task.RescheduleEvery,
			RescheduleUnit:  task.RescheduleUnit,
			RescheduleFrom:  task.RescheduleFrom,
		},
	})
	text := fmt.Sprintf("✏️ Editing <b>%s</b>. Skip any step to keep it as is.\n<b>Step 1:</b> new name?", escape(task.Name))
	return b.sendWithReplyMarkup(chatID, text, skipKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	editing := state.editTaskID != ""
	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		switch {
		case editing && isSkipInput(text):
		case text == "":
			return b.sendWithReplyMarkup(msg.Chat.ID, "The name can't be empty. What's the task called?", cancelKeyboard())
		default:
			state.input.Name = text
		}
		state.stage = stageNote
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short note (Skip for none, <code>none</code> to remove one).", skipKeyboard())
	case stageNote:
		if isClearInput(text) {
			state.input.Note = ""
		} else if !isSkipInput(text) {
			state.input.Note = text
		}
		state.stage = stageDate
		if editing {
			return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("📆 New date? Currently %s (Skip keeps it).", state.input.ScheduledDate), skipKeyboard())
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "📆 When is it scheduled? Use <code>2024-03-01</code>, <code>today</code> or <code>tomorrow</code>.", cancelKeyboard())
	case stageDate:
		if !(editing && isSkipInput(text)) {
			date, err := parseDateInput(text, calendar.DateOf(time.Now()))
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "I can't read that date. Use <code>2024-03-01</code>, <code>today</code> or <code>tomorrow</code>.", cancelKeyboard())
			}
			state.input.ScheduledDate = date
		}
		state.stage = stagePreview
		return b.sendWithReplyMarkup(msg.Chat.ID, "👀 How long before the date should it show up as coming up? e.g. <code>3 days</code> (Skip, or <code>none</code> to remove).", skipKeyboard())
	case stagePreview:
		if isClearInput(text) {
			state.input.PreviewLeadTime = nil
			state.input.PreviewUnit = nil
		} else if !isSkipInput(text) {
			lead, unit, err := parseIntervalInput(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("%s. Try <code>3 days</code> or Skip.", escape(err.Error())), skipKeyboard())
			}
			state.input.PreviewLeadTime = &lead
			state.input.PreviewUnit = &unit
		}
		state.stage = stageRepeat
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Does it repeat? e.g. <code>every 2 weeks from completion</code> (Skip, or <code>none</code> to remove).", skipKeyboard())
	case stageRepeat:
		if isClearInput(text) {
			state.input.RescheduleEvery = nil
			state.input.RescheduleUnit = nil
			state.input.RescheduleFrom = nil
		} else if !isSkipInput(text) {
			rule, err := parseRepeatInput(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("%s. Try <code>every 2 weeks</code> or Skip.", escape(err.Error())), skipKeyboard())
			}
			state.input.RescheduleEvery = &rule.Every
			state.input.RescheduleUnit = &rule.Unit
			state.input.RescheduleFrom = &rule.Anchor
		}
		err := b.finishTaskDialog(ctx, msg.From, state, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try again with /newtask.")
	}
}

func (b *Bot) finishTaskDialog(ctx context.Context, from *tgbotapi.User, state *conversationState, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	var task *model.Task
	header := "✅ <b>Task saved</b>\n"
	if state.editTaskID != "" {
		task, err = b.taskSvc.UpdateTask(ctx, user, state.editTaskID, state.input)
		header = "✏️ <b>Task updated</b>\n"
	} else {
		task, err = b.taskSvc.CreateTask(ctx, user, state.input)
	}
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "That task is gone already.")
		}
		return b.sendText(chatID, fmt.Sprintf("Couldn't save the task: %s", escape(err.Error())))
	}

	log.Printf("[info] task saved id=%s user=%d scheduled=%s edit=%t", task.ID, user.ID, task.ScheduledDate, state.editTaskID != "")

	var summary strings.Builder
	summary.WriteString(header)
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(task.Name)))
	if task.Note != "" {
		summary.WriteString(fmt.Sprintf("• <b>Note:</b> %s\n", escape(task.Note)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Scheduled:</b> %s\n", task.ScheduledDate))
	if task.PreviewLeadTime != nil && task.PreviewUnit != nil {
		summary.WriteString(fmt.Sprintf("• <b>Shows up:</b> %d %s(s) early\n", *task.PreviewLeadTime, *task.PreviewUnit))
	}
	if rule, ok := task.RescheduleRule(); ok {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> every %d %s(s) from %s\n", rule.Every, rule.Unit, rule.Anchor))
	}

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	reply.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(reply); err != nil {
		return err
	}
	return b.sendAgenda(ctx, chatID, user, calendar.DateOf(time.Now()))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	target := calendar.DateOf(time.Now())
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		target, err = parseDateInput(args, target)
		if err != nil {
			return b.sendText(msg.Chat.ID, "I can't read that date. Use /today or /today 2024-03-01.")
		}
	}

	log.Printf("[info] agenda for user=%d date=%s", user.ID, target)
	return b.sendAgenda(ctx, msg.Chat.ID, user, target)
}

// sendAgenda renders the day's tasks with a Done/Skip/Delete button row
// per task. The target date rides along in the callback data so the
// resolve records the day the user was actually looking at.
func (b *Bot) sendAgenda(ctx context.Context, chatID int64, user *model.User, target calendar.Date) error {
	classified, err := b.taskSvc.TasksForDate(ctx, user, target)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Couldn't load the agenda: %s", escape(err.Error())))
	}

	text := b.agendaSvc.Render(target, classified)
	if len(classified) == 0 {
		return b.sendText(chatID, text)
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, ct := range classified {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %s", shortName(ct.Task.Name, 18)), fmt.Sprintf("%s%s:%s", cbDonePrefix, target, ct.Task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("⏭", fmt.Sprintf("%s%s:%s", cbSkipPrefix, target, ct.Task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✏️", fmt.Sprintf("%s%s", cbEditPrefix, ct.Task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%s", cbDeletePrefix, ct.Task.ID)),
		))
	}

	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		date, taskID, err := parseResolveCallback(data, cbDonePrefix)
		if err != nil {
			return nil
		}
		return b.resolveTask(ctx, chatID, cb.From, taskID, model.ResolutionCompleted, date)
	case strings.HasPrefix(data, cbSkipPrefix):
		date, taskID, err := parseResolveCallback(data, cbSkipPrefix)
		if err != nil {
			return nil
		}
		return b.resolveTask(ctx, chatID, cb.From, taskID, model.ResolutionSkipped, date)
	case strings.HasPrefix(data, cbEditPrefix):
		return b.startEditConversation(ctx, chatID, cb.From, strings.TrimPrefix(data, cbEditPrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDeleteConfirmation(ctx, chatID, cb.From, strings.TrimPrefix(data, cbDeletePrefix))
	case data == cbUndo:
		return b.undoLastResolution(ctx, chatID, cb.From)
	default:
		return nil
	}
}

func (b *Bot) resolveTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string, resolutionType model.ResolutionType, resolvedDate calendar.Date) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "That task is gone already.")
		}
		return err
	}

	result, err := b.taskSvc.Resolve(ctx, user, taskID, resolutionType, resolvedDate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyResolved):
			return b.sendText(chatID, "That task was already closed, maybe from another device.")
		case errors.Is(err, service.ErrNotFound):
			return b.sendText(chatID, "That task is gone already.")
		default:
			return b.sendText(chatID, fmt.Sprintf("Couldn't close the task: %s", escape(err.Error())))
		}
	}

	ref := undoRef{taskID: taskID, resolutionID: result.ResolutionID}
	icon, verb := "✅", "done"
	if resolutionType == model.ResolutionSkipped {
		icon, verb = "⏭️", "skipped"
	}
	info := fmt.Sprintf("%s <b>%s</b> is %s.", icon, escape(task.Name), verb)
	if result.NextTask != nil {
		ref.nextTaskID = result.NextTask.ID
		info += fmt.Sprintf("\n♻️ Comes back on %s.", result.NextTask.ScheduledDate)
	}
	b.setUndoable(from.ID, ref)

	log.Printf("[info] task resolved id=%s user=%d type=%s next=%q", taskID, user.ID, resolutionType, ref.nextTaskID)

	reply := tgbotapi.NewMessage(chatID, info)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnUndo, cbUndo)),
	)
	if _, err := b.api.Send(reply); err != nil {
		return err
	}
	return b.sendAgenda(ctx, chatID, user, resolvedDate)
}

func (b *Bot) undoLastResolution(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	ref, ok := b.takeUndoable(from.ID)
	if !ok {
		return b.sendText(chatID, "Nothing left to undo.")
	}

	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	if err := b.runUndo(ctx, user, from.ID, ref); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "That task is gone; nothing to undo.")
		}
		return b.sendText(chatID, fmt.Sprintf("Couldn't undo: %s", escape(err.Error())))
	}

	log.Printf("[info] resolution undone task=%s user=%d", ref.taskID, user.ID)
	if err := b.sendText(chatID, "↩️ Undone. The task is open again."); err != nil {
		return err
	}
	return b.sendAgenda(ctx, chatID, user, calendar.DateOf(time.Now()))
}

// runUndo executes the undo. A transient failure, e.g. a busy
// database, puts the ref back so tapping the button again can retry;
// a vanished task does not, there is nothing left to point at.
func (b *Bot) runUndo(ctx context.Context, user *model.User, tgUserID int64, ref undoRef) error {
	err := b.taskSvc.UndoResolution(ctx, user, ref.taskID, ref.resolutionID, ref.nextTaskID)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		b.setUndoable(tgUserID, ref)
	}
	return err
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "That task is gone already.")
		}
		return err
	}

	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID})
	text := fmt.Sprintf("Delete \"%s\" for good? A repeating task won't come back.", escape(task.Name))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteTask(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Kept it.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the deletion first.", confirmKeyboard())
	}
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendTextWithRemove(chatID, "That task is gone already.")
		}
		return err
	}

	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Couldn't delete: %s", escape(err.Error())))
	}

	log.Printf("[info] task deleted id=%s user=%d", taskID, user.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 \"%s\" is gone.", escape(task.Name))); err != nil {
		return err
	}
	return b.sendAgenda(ctx, chatID, user, calendar.DateOf(time.Now()))
}

// SendDailyDigests sends the day's agenda to every known user.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	today := calendar.DateOf(time.Now())
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.agendaSvc.DailyAgenda(ctx, user, today)
		if err != nil {
			log.Printf("build digest for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send digest to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNew):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setUndoable(userID int64, ref undoRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.undoables[userID] = ref
}

// takeUndoable pops the pending undo; each resolve can be undone once.
func (b *Bot) takeUndoable(userID int64) (undoRef, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.undoables[userID]
	delete(b.undoables, userID)
	return ref, ok
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func parseResolveCallback(data, prefix string) (calendar.Date, string, error) {
	parts := strings.SplitN(strings.TrimPrefix(data, prefix), ":", 2)
	if len(parts) != 2 {
		return calendar.Date{}, "", fmt.Errorf("malformed callback %q", data)
	}
	date, err := calendar.ParseDate(parts[0])
	if err != nil {
		return calendar.Date{}, "", err
	}
	return date, parts[1], nil
}

func shortName(name string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(name, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNew),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isClearInput(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "none")
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}

func escape(s string) string {
	return html.EscapeString(s)
}
