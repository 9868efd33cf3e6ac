package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mshv/pillbot/internal/config"
	"github.com/mshv/pillbot/internal/scheduler"
	"github.com/mshv/pillbot/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingTime    = "await_time_text"
	pendingTZ      = "await_tz_text"
	pendingRestore = "await_restore_document"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot   *tgbotapi.BotAPI
	log   *zap.Logger
	repo  store.Repo
	cfg   config.Config
	sup   *scheduler.Supervisor
	sched *scheduler.Scheduler
	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router. BindScheduler must be called
// before the first update is handled.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, cfg config.Config) *Router {
	return &Router{
		bot:   bot,
		log:   log,
		repo:  repo,
		cfg:   cfg,
		state: make(map[int64]string),
	}
}

// BindScheduler attaches the supervisor and scheduler. Separate from the
// constructor because the scheduler needs the router as its Sender.
func (r *Router) BindScheduler(sup *scheduler.Supervisor, sched *scheduler.Scheduler) {
	r.sup = sup
	r.sched = sched
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

func (r *Router) isAdmin(userID int64) bool {
	return r.cfg.IsAdmin(userID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		r.handleMessage(ctx, upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
		return
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := displayName(msg.From)

	// Admin voice uploads become memos regardless of any pending flow.
	if msg.Voice != nil {
		if r.isAdmin(userID) {
			r.handleMemoUpload(ctx, chatID, userID, username, msg.Voice.FileID)
		}
		return
	}

	// A document is only meaningful inside the admin restore flow.
	if msg.Document != nil {
		if r.isAdmin(userID) && r.getPending(chatID) == pendingRestore {
			r.handleRestoreDocument(ctx, chatID, msg.Document)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		r.handleStart(ctx, chatID)
	case strings.HasPrefix(text, "/time"):
		r.askTimePresets(chatID)
	case strings.HasPrefix(text, "/info"):
		r.handleInfo(ctx, chatID, userID)
	case strings.HasPrefix(text, "/settings"):
		r.handleSettings(chatID)
	case strings.HasPrefix(text, "/test"):
		r.handleTest(ctx, chatID, userID, username)
	case strings.HasPrefix(text, "/export"):
		r.handleExport(ctx, chatID, userID, username)
	case strings.HasPrefix(text, "/memos"):
		r.handleMemoList(ctx, chatID, userID, text)
	case strings.HasPrefix(text, "/memo_delete"):
		r.handleMemoDelete(ctx, chatID, userID, text)
	case strings.HasPrefix(text, "/db_backup"):
		r.handleDBBackup(chatID, userID)
	case strings.HasPrefix(text, "/db_restore"):
		r.handleDBRestore(chatID, userID)
	case text == btnChangeTime:
		r.askTimePresets(chatID)
	case text == btnSettings:
		r.handleSettings(chatID)
	case text == btnInfo:
		r.handleInfo(ctx, chatID, userID)
	case text == btnMemo:
		r.handleMemoRequest(ctx, chatID, userID, username)
	default:
		r.handleFreeForm(ctx, chatID, userID, username, text)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	data := cb.Data
	chatID := cb.Message.Chat.ID
	userID := cb.From.ID
	username := displayName(cb.From)

	switch {
	case data == "pill_taken":
		r.handlePillTaken(ctx, cb)
	case data == "time:custom":
		_ = r.answerCallback(cb.ID, "")
		r.sendText(chatID, customTimeAskText)
		r.setPending(chatID, pendingTime)
	case strings.HasPrefix(data, "time:"):
		_ = r.answerCallback(cb.ID, "")
		r.applyTimeChange(ctx, chatID, userID, username, strings.TrimPrefix(data, "time:"))
	case data == "tz:custom":
		_ = r.answerCallback(cb.ID, "")
		r.sendText(chatID, customTZAskText)
		r.setPending(chatID, pendingTZ)
	case strings.HasPrefix(data, "tz:"):
		_ = r.answerCallback(cb.ID, "")
		r.applyTZChange(ctx, chatID, userID, username, strings.TrimPrefix(data, "tz:"))
	case data == "change_time":
		_ = r.answerCallback(cb.ID, "")
		r.askTimePresets(chatID)
	case data == "change_tz":
		_ = r.answerCallback(cb.ID, "")
		r.askTZPresets(chatID)
	default:
		// Unknown callback — ignore silently
	}
}

// SendReminder sends the daily reminder with the acknowledgement button.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendReminder(_ context.Context, userID int64) error {
	msg := tgbotapi.NewMessage(userID, reminderText)
	msg.ReplyMarkup = reminderKeyboard()
	_, err := r.bot.Send(msg)
	return err
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
