package telegram

import (
	"fmt"
	"strconv"

	"github.com/go-telegram/bot/models"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/feature/subscription"
)

// Reply keyboard labels.
const (
	menuLoggers      = "🔗 Loggers"
	menuProfile      = "👤 Profile"
	menuSubscription = "💎 Subscription"
	menuMyLoggers    = "📊 My loggers"
)

// Callback data values and prefixes.
const (
	cbCreateLogger  = "create_logger"
	cbBackToMain    = "back_to_main"
	cbBackToLoggers = "back_to_loggers"
	cbAdminUsers    = "admin_users"
	cbAdminLoggers  = "admin_loggers"
	cbAdminVisits   = "admin_iplogs"
	cbAdminBack     = "admin_back"

	cbManagePrefix        = "manage_"
	cbStatsPrefix         = "stats_"
	cbDeletePrefix        = "delete_"
	cbConfirmDeletePrefix = "confirm_delete_"
	cbCancelDeletePrefix  = "cancel_delete_"
	cbSubscribePrefix     = "sub_"
	cbCheckPaymentPrefix  = "check_payment_"
)

func callbackButton(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func column(buttons ...models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []models.InlineKeyboardButton{b})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func mainMenu() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: menuLoggers}},
			{{Text: menuProfile}},
			{{Text: menuSubscription}},
			{{Text: menuMyLoggers}},
		},
		ResizeKeyboard:        true,
		InputFieldPlaceholder: "Choose an action",
	}
}

func backToMain() *models.InlineKeyboardMarkup {
	return column(callbackButton("🔙 Main menu", cbBackToMain))
}

func loggersMenu() *models.InlineKeyboardMarkup {
	return column(
		callbackButton("➕ Create logger", cbCreateLogger),
		callbackButton("🔙 Back", cbBackToMain),
	)
}

func loggerList(loggers []domain.Logger) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(loggers)+1)
	for _, l := range loggers {
		buttons = append(buttons, callbackButton("🔗 "+l.Name, cbManagePrefix+strconv.FormatInt(l.ID, 10)))
	}
	buttons = append(buttons, callbackButton("🔙 Back", cbBackToMain))
	return column(buttons...)
}

func loggerActions(id int64) *models.InlineKeyboardMarkup {
	sid := strconv.FormatInt(id, 10)
	return column(
		callbackButton("📊 Statistics", cbStatsPrefix+sid),
		callbackButton("🗑️ Delete", cbDeletePrefix+sid),
		callbackButton("🔙 Back", cbBackToLoggers),
	)
}

func confirmDelete(id int64) *models.InlineKeyboardMarkup {
	sid := strconv.FormatInt(id, 10)
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
		callbackButton("✅ Yes, delete", cbConfirmDeletePrefix+sid),
		callbackButton("❌ Cancel", cbCancelDeletePrefix+sid),
	}}}
}

func subscriptionMenu() *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(subscription.Plans)+1)
	for _, p := range subscription.Plans {
		buttons = append(buttons, callbackButton(fmt.Sprintf("📅 %s - $%g", p.Title, p.Price), cbSubscribePrefix+p.Tier))
	}
	buttons = append(buttons, callbackButton("🔙 Back", cbBackToMain))
	return column(buttons...)
}

func paymentMenu(invoiceID int64) *models.InlineKeyboardMarkup {
	return column(
		callbackButton("✅ Check payment", cbCheckPaymentPrefix+strconv.FormatInt(invoiceID, 10)),
		callbackButton("🔙 Back", cbBackToMain),
	)
}

func openLink(url string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
		{Text: "Open link", URL: url},
	}}}
}

func adminPanel() *models.InlineKeyboardMarkup {
	return column(
		callbackButton("👤 Users", cbAdminUsers),
		callbackButton("🔗 Loggers", cbAdminLoggers),
		callbackButton("🌐 Visits", cbAdminVisits),
		callbackButton("🔙 Main menu", cbBackToMain),
	)
}

func adminBack() *models.InlineKeyboardMarkup {
	return column(callbackButton("🔙 Back", cbAdminBack))
}
