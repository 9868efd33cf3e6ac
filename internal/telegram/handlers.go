package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mshv/pillbot/internal/domain"
	"github.com/mshv/pillbot/internal/store"
)

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)

	ask := tgbotapi.NewMessage(chatID, timeAskText)
	ask.ReplyMarkup = timePresetsKeyboard()
	_, _ = r.bot.Send(ask)
}

func (r *Router) askTimePresets(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, timeAskText)
	msg.ReplyMarkup = timePresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) askTZPresets(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, tzAskText)
	msg.ReplyMarkup = tzPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSettings(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "What do you want to change?")
	msg.ReplyMarkup = settingsKeyboard()
	_, _ = r.bot.Send(msg)
}

// --- Time / timezone changes ---

func (r *Router) applyTimeChange(ctx context.Context, chatID, userID int64, username, hhmm string) {
	err := r.sup.SetReminderTime(ctx, userID, username, hhmm)
	if errors.Is(err, domain.ErrInvalidTimeFormat) {
		r.sendText(chatID, badTimeText)
		return
	}
	if err != nil {
		r.log.Error("set reminder time failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Could not save the time. Please try again later.")
		return
	}
	r.logInteraction(ctx, userID, username, "reminder_time_changed", hhmm)
	r.sendText(chatID, timeSetText(hhmm))
}

func (r *Router) applyTZChange(ctx context.Context, chatID, userID int64, username, tz string) {
	err := r.sup.SetTimezone(ctx, userID, username, tz)
	if errors.Is(err, domain.ErrInvalidTimezone) {
		r.sendText(chatID, badTZText)
		return
	}
	if err != nil {
		r.log.Error("set timezone failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Could not save the timezone. Please try again later.")
		return
	}
	r.logInteraction(ctx, userID, username, "timezone_changed", tz)
	r.sendText(chatID, tzSetText(tz))
}

// handleFreeForm consumes text messages that belong to a pending flow.
func (r *Router) handleFreeForm(ctx context.Context, chatID, userID int64, username, text string) {
	switch r.getPending(chatID) {
	case pendingTime:
		if _, err := domain.ParseDayTime(text); err != nil {
			// Keep the pending state so the user can retry.
			r.sendText(chatID, badTimeText)
			return
		}
		r.clearPending(chatID)
		r.applyTimeChange(ctx, chatID, userID, username, text)

	case pendingTZ:
		if _, err := domain.ValidateTZ(text); err != nil {
			r.sendText(chatID, badTZText)
			return
		}
		r.clearPending(chatID)
		r.applyTZChange(ctx, chatID, userID, username, text)

	default:
		// No pending flow: ignore free-form message
	}
}

// --- Acknowledgement ---

func (r *Router) handlePillTaken(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	_ = r.answerCallback(cb.ID, "")
	userID := cb.From.ID
	username := displayName(cb.From)

	today := domain.LocalDate(time.Now(), r.userLocation(ctx, userID))
	if err := r.repo.MarkPillTaken(ctx, userID, today); err != nil {
		r.log.Error("mark pill taken failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(cb.Message.Chat.ID, "Something went wrong, please tap again.")
		return
	}
	r.logInteraction(ctx, userID, username, "pill_taken", today)

	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, ackText)
	if _, err := r.bot.Send(edit); err != nil {
		// Editing can fail on old messages; fall back to a fresh one.
		r.sendText(cb.Message.Chat.ID, ackText)
	}
}

// userLocation loads the user's configured zone, falling back to the default.
func (r *Router) userLocation(ctx context.Context, userID int64) *time.Location {
	tz := r.cfg.DefaultTZ
	if rem, err := r.repo.GetReminder(ctx, userID); err == nil {
		tz = rem.TZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// --- Info ---

func (r *Router) handleInfo(ctx context.Context, chatID, userID int64) {
	rem, err := r.repo.GetReminder(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, "No reminder set yet. Tap \""+btnChangeTime+"\" to pick a time.")
		return
	}
	if err != nil {
		r.log.Error("get reminder failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	days, err := r.repo.PillDaysCount(ctx, userID)
	if err != nil {
		r.log.Error("pill days count failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	first, err := r.repo.FirstPillDate(ctx, userID)
	if err != nil {
		r.log.Error("first pill date failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if first == "" {
		first = "—"
	}

	next := "—"
	if at, ok := r.sched.NextFireAt(userID); ok {
		if loc, lerr := time.LoadLocation(rem.TZ); lerr == nil {
			next = at.In(loc).Format("02.01.2006 15:04")
		}
	}

	body := fmt.Sprintf(
		"🧾 Your reminder:\n\n"+
			"• Time: %s\n• Timezone: %s\n• Next: %s\n\n"+
			"💊 Days confirmed: %d\n📅 First confirmation: %s",
		rem.RemindAt, rem.TZ, next, days, first,
	)
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

// --- Voice memos (user side) ---

func (r *Router) handleMemoRequest(ctx context.Context, chatID, userID int64, username string) {
	today := domain.LocalDate(time.Now(), r.userLocation(ctx, userID))

	// One memo per day, admins excepted.
	if !r.isAdmin(userID) {
		got, err := r.repo.VoiceMemoTakenOn(ctx, userID, today)
		if err != nil {
			r.log.Error("memo cap check failed", zap.Int64("user_id", userID), zap.Error(err))
		} else if got {
			r.sendText(chatID, memoCapText)
			return
		}
	}

	memo, err := r.repo.NextVoiceMemoFor(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		r.logInteraction(ctx, userID, username, "voice_memo_empty", "")
		r.sendText(chatID, memoEmptyText)
		return
	}
	if err != nil {
		r.log.Error("next memo lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Could not fetch a memo, please try again later.")
		return
	}

	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileID(memo.FileID))
	if _, err := r.bot.Send(voice); err != nil {
		r.log.Error("send memo failed", zap.Int64("user_id", userID), zap.Int64("memo_id", memo.ID), zap.Error(err))
		r.sendText(chatID, "Could not send the memo, please try again later.")
		return
	}

	if err := r.repo.MarkVoiceMemoDelivered(ctx, userID, memo.ID); err != nil {
		r.log.Error("mark memo delivered failed", zap.Int64("memo_id", memo.ID), zap.Error(err))
	}
	if !r.isAdmin(userID) {
		if err := r.repo.MarkVoiceMemoTaken(ctx, userID, today); err != nil {
			r.log.Error("mark memo daily failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	r.logInteraction(ctx, userID, username, "voice_memo_delivered", fmt.Sprintf("%d", memo.ID))
}

// --- Test reminder ---

func (r *Router) handleTest(ctx context.Context, chatID, userID int64, username string) {
	if err := r.SendReminder(ctx, userID); err != nil {
		r.log.Error("test reminder failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Could not send the test reminder.")
		return
	}
	r.logInteraction(ctx, userID, username, "test_reminder", "")
}

func (r *Router) logInteraction(ctx context.Context, userID int64, username, kind, data string) {
	if err := r.repo.LogInteraction(ctx, userID, username, kind, data); err != nil {
		r.log.Warn("log interaction failed", zap.String("kind", kind), zap.Error(err))
	}
}
