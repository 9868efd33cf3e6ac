package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Reply-keyboard button labels. These arrive back as plain message text.
const (
	btnChangeTime = "⏰ Change time"
	btnSettings   = "⚙️ Settings"
	btnInfo       = "ℹ️ Info"
	btnMemo       = "💌 Voice memo"
)

const (
	startText = "👋 Hi! I am your daily pill reminder.\n\n" +
		"Pick a time and I will ping you every day until you confirm you took it.\n" +
		"You can change the time or timezone anytime in settings."
	reminderText      = "💊 Time to take your pill! Have a great day 💕"
	ackText           = "💖 Well done! No more reminders today. See you tomorrow 😊"
	timeAskText       = "⏰ When should I remind you? Pick a preset or enter your own:"
	customTimeAskText = "💭 Send the time as HH:MM (for example 09:15 or 21:30):"
	badTimeText       = "❌ That doesn't look like a time. Please send HH:MM, e.g. 09:15:"
	tzAskText         = "🌍 Pick your timezone (or enter an IANA name like Europe/Berlin):"
	customTZAskText   = "💭 Send the timezone name, e.g. Europe/Moscow:"
	badTZText         = "❌ Unknown timezone. Please send an IANA name like Europe/Moscow:"
	memoEmptyText     = "📭 No memos left for you.\nWhen new ones are added, the button will work again."
	memoCapText       = "🕐 You already got your memo today. Come back tomorrow!"
)

func timeSetText(hhmm string) string {
	return "✅ Done! I will remind you every day at " + hhmm + " ⏰\nDon't forget your pill! 💊"
}

func tzSetText(tz string) string {
	return "✅ Timezone changed to " + tz + " 🌍\nReminders now follow it."
}

// mainMenuKeyboard is the persistent reply keyboard.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnChangeTime),
			tgbotapi.NewKeyboardButton(btnSettings),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnInfo),
			tgbotapi.NewKeyboardButton(btnMemo),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// timePresetsKeyboard mirrors the preset grid of the original menu: two
// presets per row plus a custom entry.
func timePresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	presets := []struct{ value, label string }{
		{"08:00", "🌅 Morning (8:00)"},
		{"09:00", "🌞 Morning (9:00)"},
		{"10:00", "☀️ Morning (10:00)"},
		{"12:00", "🌤 Noon (12:00)"},
		{"13:00", "🍽 Noon (13:00)"},
		{"14:00", "☕️ Day (14:00)"},
		{"18:00", "🌆 Evening (18:00)"},
		{"19:00", "🌇 Evening (19:00)"},
		{"20:00", "🌃 Evening (20:00)"},
		{"21:00", "🌙 Evening (21:00)"},
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(presets); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(presets[i].label, "time:"+presets[i].value),
		}
		if i+1 < len(presets) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(presets[i+1].label, "time:"+presets[i+1].value))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⏰ Another time", "time:custom"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏛 Saint Petersburg (UTC+3)", "tz:Europe/Moscow"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏔 Ufa (UTC+5)", "tz:Asia/Yekaterinburg"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌐 Other", "tz:custom"),
		),
	)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Reminder time", "change_time"),
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", "change_tz"),
		),
	)
}

// reminderKeyboard is attached to every reminder message.
func reminderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💖 I took my pill", "pill_taken"),
		),
	)
}
