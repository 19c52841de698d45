package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/feature/subscription"
	"github.com/jitterskin/logger/internal/feature/tracker"
	"github.com/jitterskin/logger/internal/logging"
	"github.com/jitterskin/logger/internal/payment"
)

const (
	textAccessDenied = "⛔️ Access denied"
	textFailure      = "❌ Something went wrong. Please try again later."
	textChooseAction = "Choose an action:"
	statsPreviewSize = 5
)

func (c *Client) handleCommand(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}
	logUpdate(c.logger, update)

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	msg := update.Message
	cmd, args := parseCommand(msg.Text)
	from := msg.From

	switch cmd {
	case "/start":
		if len(args) > 0 {
			c.startWithToken(ctx, msg.Chat.ID, args[0])
			return
		}
		c.start(ctx, msg.Chat.ID, from)
	case "/cancel":
		c.pending.clear(from.ID)
		c.send(ctx, msg.Chat.ID, textChooseAction, mainMenu())
	case "/admin":
		c.adminCommand(ctx, msg.Chat.ID, from.ID, c.showAdminPanel)
	case "/addadmin", "/grant_admin":
		c.adminCommand(ctx, msg.Chat.ID, from.ID, func(ctx context.Context, chat int64) {
			c.grantAdmin(ctx, chat, cmd, args)
		})
	case "/removeadmin", "/revoke_admin":
		c.adminCommand(ctx, msg.Chat.ID, from.ID, func(ctx context.Context, chat int64) {
			c.revokeAdmin(ctx, chat, cmd, args)
		})
	case "/grant_sub":
		c.adminCommand(ctx, msg.Chat.ID, from.ID, func(ctx context.Context, chat int64) {
			c.grantSubscription(ctx, chat, args)
		})
	case "/revoke_sub":
		c.adminCommand(ctx, msg.Chat.ID, from.ID, func(ctx context.Context, chat int64) {
			c.revokeSubscription(ctx, chat, args)
		})
	default:
		c.send(ctx, msg.Chat.ID, "Unknown command. Use the menu below.", mainMenu())
	}
}

func (c *Client) handleText(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}
	logUpdate(c.logger, update)

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	text := strings.TrimSpace(msg.Text)
	switch text {
	case menuLoggers:
		c.pending.clear(msg.From.ID)
		c.send(ctx, msg.Chat.ID, c.loggersText(ctx, msg.From.ID), loggersMenu())
		return
	case menuProfile:
		c.pending.clear(msg.From.ID)
		c.showProfile(ctx, msg.Chat.ID, msg.From.ID)
		return
	case menuSubscription:
		c.pending.clear(msg.From.ID)
		c.send(ctx, msg.Chat.ID, subscriptionText(), subscriptionMenu())
		return
	case menuMyLoggers:
		c.pending.clear(msg.From.ID)
		c.showMyLoggers(ctx, msg.Chat.ID, msg.From.ID)
		return
	}

	if c.pending.waiting(msg.From.ID) && text != "" {
		c.createLogger(ctx, msg.Chat.ID, msg.From.ID, text)
		return
	}

	c.send(ctx, msg.Chat.ID, textChooseAction, mainMenu())
}

func (c *Client) handleCallback(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		return
	}
	logUpdate(c.logger, update)

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	cq := update.CallbackQuery
	data := cq.Data
	requester := cq.From.ID

	switch {
	case data == cbCreateLogger:
		c.beginCreate(ctx, cq)
	case data == cbBackToMain:
		c.pending.clear(requester)
		c.answer(ctx, cq, "", false)
		c.remove(ctx, cq)
		c.send(ctx, messageChatID(cq.Message), textChooseAction, mainMenu())
	case data == cbBackToLoggers:
		c.answer(ctx, cq, "", false)
		c.edit(ctx, cq, c.loggersText(ctx, requester), loggersMenu())
	case data == cbAdminUsers, data == cbAdminLoggers, data == cbAdminVisits, data == cbAdminBack:
		c.adminCallback(ctx, cq)
	case strings.HasPrefix(data, cbConfirmDeletePrefix):
		c.withOwnedLogger(ctx, cq, strings.TrimPrefix(data, cbConfirmDeletePrefix), c.confirmDelete)
	case strings.HasPrefix(data, cbCancelDeletePrefix):
		c.withOwnedLogger(ctx, cq, strings.TrimPrefix(data, cbCancelDeletePrefix), c.manageLogger)
	case strings.HasPrefix(data, cbDeletePrefix):
		c.withOwnedLogger(ctx, cq, strings.TrimPrefix(data, cbDeletePrefix), func(ctx context.Context, cq *models.CallbackQuery, l domain.Logger) {
			c.answer(ctx, cq, "", false)
			c.edit(ctx, cq, fmt.Sprintf("⚠️ Delete logger <b>%s</b>?", html.EscapeString(l.Name)), confirmDelete(l.ID))
		})
	case strings.HasPrefix(data, cbManagePrefix):
		c.withOwnedLogger(ctx, cq, strings.TrimPrefix(data, cbManagePrefix), c.manageLogger)
	case strings.HasPrefix(data, cbStatsPrefix):
		c.withOwnedLogger(ctx, cq, strings.TrimPrefix(data, cbStatsPrefix), c.showStats)
	case strings.HasPrefix(data, cbSubscribePrefix):
		c.requestInvoice(ctx, cq, strings.TrimPrefix(data, cbSubscribePrefix))
	case strings.HasPrefix(data, cbCheckPaymentPrefix):
		c.checkPayment(ctx, cq, strings.TrimPrefix(data, cbCheckPaymentPrefix))
	default:
		c.answer(ctx, cq, "Unknown action", false)
	}
}

func (c *Client) start(ctx context.Context, chat int64, from *models.User) {
	created, err := c.deps.Users.EnsureUser(ctx, from.ID, from.Username, from.FirstName)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "start_error",
			"user_id": from.ID,
		}).WithError(err).Error("failed to register user")
		c.send(ctx, chat, textFailure, nil)
		return
	}
	c.pending.clear(from.ID)

	greeting := "👋 Welcome back!"
	if created {
		greeting = "🎉 Welcome!"
	}
	text := greeting + "\n\n" +
		"Create tracking links and see who opens them. Every visit is reported here.\n\n" +
		"🔗 <b>Loggers</b> create a new link\n" +
		"👤 <b>Profile</b> your account\n" +
		"💎 <b>Subscription</b> raise your link limit\n" +
		"📊 <b>My loggers</b> manage existing links"
	c.send(ctx, chat, text, mainMenu())
}

func (c *Client) startWithToken(ctx context.Context, chat int64, token string) {
	c.send(ctx, chat, "Tap the button below to open the page.", openLink(c.LinkFor(token)))
}

func (c *Client) loggersText(ctx context.Context, owner int64) string {
	q, err := c.deps.Loggers.Quota(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Send /start first."
		}
		c.logger.WithFields(logging.Fields{
			"event":   "quota_error",
			"user_id": owner,
		}).WithError(err).Error("failed to load quota")
		return textFailure
	}

	status := "❌ inactive"
	if q.Active {
		status = "✅ active"
	}
	return fmt.Sprintf("🔗 <b>Loggers</b>\n\n"+
		"Active loggers: %d/%d\n"+
		"Subscription: %s (%s)\n\n"+
		"Tap the button below to create a new logger.",
		q.Used, q.Limit, html.EscapeString(q.Tier), status)
}

func (c *Client) showProfile(ctx context.Context, chat, owner int64) {
	user, active, err := c.deps.Subscriptions.Current(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.send(ctx, chat, "Send /start first.", nil)
			return
		}
		c.send(ctx, chat, textFailure, nil)
		return
	}
	q, err := c.deps.Loggers.Quota(ctx, owner)
	if err != nil {
		c.send(ctx, chat, textFailure, nil)
		return
	}

	sub := "❌ No active subscription"
	if active && user.SubscriptionExpires != nil {
		sub = fmt.Sprintf("✅ %s until %s", html.EscapeString(user.SubscriptionType), user.SubscriptionExpires.UTC().Format("02.01.2006 15:04"))
	}
	username := "not set"
	if user.Username != "" {
		username = "@" + user.Username
	}

	text := fmt.Sprintf("👤 <b>Your profile</b>\n\n"+
		"🆔 ID: <code>%d</code>\n"+
		"👤 Name: %s\n"+
		"🔗 Username: %s\n"+
		"💎 Subscription: %s\n"+
		"📊 Active loggers: %d/%d\n"+
		"📅 Registered: %s",
		user.UserID,
		html.EscapeString(user.FirstName),
		html.EscapeString(username),
		sub,
		q.Used, q.Limit,
		user.CreatedAt.UTC().Format("02.01.2006"))
	c.send(ctx, chat, text, backToMain())
}

func subscriptionText() string {
	var b strings.Builder
	b.WriteString("💎 <b>Choose a plan</b>\n\n")
	for _, p := range subscription.Plans {
		fmt.Fprintf(&b, "📅 <b>%s</b> - $%g\n", p.Title, p.Price)
	}
	b.WriteString("\nEvery plan raises the limit of active loggers. A new purchase starts a fresh period.")
	return b.String()
}

func (c *Client) showMyLoggers(ctx context.Context, chat, owner int64) {
	loggers, err := c.deps.Loggers.ListActive(ctx, owner)
	if err != nil {
		c.send(ctx, chat, textFailure, nil)
		return
	}
	if len(loggers) == 0 {
		c.send(ctx, chat, "📭 You have no active loggers yet.", backToMain())
		return
	}

	var b strings.Builder
	b.WriteString("📊 <b>Your loggers</b>\n")
	for _, l := range loggers {
		fmt.Fprintf(&b, "\n🔗 <b>%s</b>\n🆔 <code>%s</code>\n📅 %s\n🌐 <code>%s</code>\n",
			html.EscapeString(l.Name), l.UniqueID, l.CreatedAt.UTC().Format("02.01.2006"), html.EscapeString(c.LinkFor(l.UniqueID)))
	}
	b.WriteString("\nPick a logger to manage:")
	c.send(ctx, chat, b.String(), loggerList(loggers))
}

func (c *Client) beginCreate(ctx context.Context, cq *models.CallbackQuery) {
	q, err := c.deps.Loggers.Quota(ctx, cq.From.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.answer(ctx, cq, "Send /start first.", true)
			return
		}
		c.answer(ctx, cq, textFailure, true)
		return
	}
	if q.Used >= int64(q.Limit) {
		c.answer(ctx, cq, fmt.Sprintf("❌ Logger limit reached (%d)", q.Limit), true)
		return
	}

	c.pending.set(cq.From.ID)
	c.answer(ctx, cq, "", false)
	c.edit(ctx, cq, fmt.Sprintf("Send a name for the new logger (up to %d characters):", domain.MaxLoggerNameLength), backToMain())
}

func (c *Client) createLogger(ctx context.Context, chat, owner int64, name string) {
	l, err := c.deps.Loggers.Create(ctx, owner, name)
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrInvalidName):
		c.send(ctx, chat, fmt.Sprintf("❌ The name must be 1 to %d characters. Try again:", domain.MaxLoggerNameLength), nil)
		return
	case errors.Is(err, domain.ErrQuotaExceeded):
		c.pending.clear(owner)
		c.send(ctx, chat, "❌ Logger limit reached. Delete a logger or upgrade your subscription.", backToMain())
		return
	case errors.Is(err, domain.ErrNotFound):
		c.pending.clear(owner)
		c.send(ctx, chat, "Send /start first.", nil)
		return
	default:
		c.pending.clear(owner)
		c.logger.WithFields(logging.Fields{
			"event":   "logger_create_error",
			"user_id": owner,
		}).WithError(err).Error("failed to create logger")
		c.send(ctx, chat, textFailure, backToMain())
		return
	}

	c.pending.clear(owner)
	text := fmt.Sprintf("✅ <b>Logger created</b>\n\n"+
		"🔗 Name: %s\n"+
		"🆔 ID: <code>%s</code>\n"+
		"🌐 Link: <code>%s</code>\n\n"+
		"Visitors of this link are told that their visit is recorded. You will get a message for every visit.",
		html.EscapeString(l.Name), l.UniqueID, html.EscapeString(c.LinkFor(l.UniqueID)))
	c.send(ctx, chat, text, backToMain())
}

type loggerAction func(ctx context.Context, cq *models.CallbackQuery, l domain.Logger)

// withOwnedLogger resolves the logger named in callback data and runs action
// only for its owner or an admin. Missing and foreign loggers get the same reply.
func (c *Client) withOwnedLogger(ctx context.Context, cq *models.CallbackQuery, rawID string, action loggerAction) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.answer(ctx, cq, textAccessDenied, true)
		return
	}

	l, err := c.deps.Loggers.Owner(ctx, id)
	if err != nil || !c.deps.Loggers.CanManage(ctx, l, cq.From.ID) {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.logger.WithFields(logging.Fields{
				"event":     "logger_lookup_error",
				"logger_id": id,
			}).WithError(err).Error("failed to load logger")
		}
		c.answer(ctx, cq, textAccessDenied, true)
		return
	}

	action(ctx, cq, l)
}

func (c *Client) manageLogger(ctx context.Context, cq *models.CallbackQuery, l domain.Logger) {
	c.answer(ctx, cq, "", false)
	state := "✅ active"
	if !l.IsActive {
		state = "❌ deleted"
	}
	text := fmt.Sprintf("🔗 <b>%s</b> (%s)\n🌐 <code>%s</code>\n\nChoose an action:",
		html.EscapeString(l.Name), state, html.EscapeString(c.LinkFor(l.UniqueID)))
	c.edit(ctx, cq, text, loggerActions(l.ID))
}

func (c *Client) showStats(ctx context.Context, cq *models.CallbackQuery, l domain.Logger) {
	stats, err := c.deps.Loggers.Stats(ctx, l.ID)
	if err != nil {
		c.answer(ctx, cq, textFailure, true)
		return
	}
	c.answer(ctx, cq, "", false)
	c.edit(ctx, cq, formatStats(l, stats), loggerActions(l.ID))
}

func formatStats(l domain.Logger, stats domain.LoggerStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Statistics for %s</b>\n\n📈 Total visits: %d\n\n🔄 <b>Recent visits:</b>\n",
		html.EscapeString(l.Name), stats.TotalCount)

	if len(stats.Recent) == 0 {
		b.WriteString("No visits yet")
		return b.String()
	}

	recent := stats.Recent
	if len(recent) > statsPreviewSize {
		recent = recent[:statsPreviewSize]
	}
	for _, v := range recent {
		username := "not set"
		if v.TelegramUsername != nil && *v.TelegramUsername != "" {
			username = "@" + *v.TelegramUsername
		}
		fmt.Fprintf(&b, "• <code>%s</code> (%s) %s\n",
			html.EscapeString(v.IPAddress), html.EscapeString(username), v.CreatedAt.UTC().Format("02.01 15:04"))
	}
	return b.String()
}

func (c *Client) confirmDelete(ctx context.Context, cq *models.CallbackQuery, l domain.Logger) {
	if !c.deps.Loggers.Deactivate(ctx, l.ID, cq.From.ID) {
		c.answer(ctx, cq, "", false)
		c.edit(ctx, cq, "❌ The logger could not be deleted. It may already be deleted.", backToMain())
		return
	}
	c.answer(ctx, cq, "Deleted", false)
	c.edit(ctx, cq, "✅ Logger deleted.", backToMain())
}

func (c *Client) requestInvoice(ctx context.Context, cq *models.CallbackQuery, tier string) {
	plan, ok := subscription.PlanFor(tier)
	if !ok {
		c.answer(ctx, cq, "❌ Unknown plan", true)
		return
	}
	if !c.deps.Subscriptions.Enabled() {
		c.answer(ctx, cq, "Payments are currently unavailable.", true)
		return
	}

	inv, err := c.deps.Subscriptions.RequestInvoice(ctx, cq.From.ID, tier)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "invoice_error",
			"user_id": cq.From.ID,
			"tier":    tier,
		}).WithError(err).Error("failed to create invoice")
		c.answer(ctx, cq, "", false)
		c.edit(ctx, cq, "❌ Could not create a payment. Please try again later.", backToMain())
		return
	}

	c.answer(ctx, cq, "", false)
	text := fmt.Sprintf("💳 <b>%s subscription</b>\n\n💰 Amount: $%g %s\n🔗 Pay here: %s\n\n"+
		"⚠️ After paying, tap \"Check payment\".",
		plan.Title, plan.Price, subscription.Asset, html.EscapeString(inv.PayURL))
	c.edit(ctx, cq, text, paymentMenu(inv.ID))
}

func (c *Client) checkPayment(ctx context.Context, cq *models.CallbackQuery, rawID string) {
	invoiceID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.answer(ctx, cq, "❌ Payment not found", true)
		return
	}

	status, err := c.deps.Subscriptions.ConfirmPayment(ctx, cq.From.ID, invoiceID)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.answer(ctx, cq, textAccessDenied, true)
		return
	case errors.Is(err, payment.ErrInvoiceNotFound):
		c.answer(ctx, cq, "❌ Payment not found or cancelled.", true)
		return
	case err != nil:
		c.logger.WithFields(logging.Fields{
			"event":      "payment_check_error",
			"user_id":    cq.From.ID,
			"invoice_id": invoiceID,
		}).WithError(err).Error("failed to check payment")
		c.answer(ctx, cq, "❌ Could not check the payment. Try again later.", true)
		return
	}

	switch status {
	case payment.StatusPaid:
		c.answer(ctx, cq, "", false)
		c.edit(ctx, cq, "✅ Payment received. Your subscription is active.", backToMain())
	case payment.StatusPending:
		c.answer(ctx, cq, "⏳ The payment has not arrived yet. Try again later.", false)
	default:
		c.answer(ctx, cq, "❌ Payment not found or cancelled.", true)
	}
}

func (c *Client) send(ctx context.Context, chat int64, text string, markup models.ReplyMarkup) {
	if chat == 0 {
		return
	}
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chat,
		Text:               text,
		ParseMode:          models.ParseModeHTML,
		ReplyMarkup:        markup,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_send_error",
			"chat_id": chat,
		}).WithError(err).Warn("failed to send message")
	}
}

// edit replaces the callback's message, or sends a new one when the original
// is no longer accessible.
func (c *Client) edit(ctx context.Context, cq *models.CallbackQuery, text string, markup models.ReplyMarkup) {
	chat := messageChatID(cq.Message)
	msgID := messageID(cq.Message)
	if cq.Message.Type != models.MaybeInaccessibleMessageTypeMessage || msgID == 0 {
		if chat == 0 {
			chat = cq.From.ID
		}
		c.send(ctx, chat, text, markup)
		return
	}

	_, err := c.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:             chat,
		MessageID:          msgID,
		Text:               text,
		ParseMode:          models.ParseModeHTML,
		ReplyMarkup:        markup,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_edit_error",
			"chat_id": chat,
		}).WithError(err).Warn("failed to edit message")
	}
}

func (c *Client) remove(ctx context.Context, cq *models.CallbackQuery) {
	chat, msgID := messageChatID(cq.Message), messageID(cq.Message)
	if chat == 0 || msgID == 0 {
		return
	}
	if _, err := c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chat, MessageID: msgID}); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_delete_error",
			"chat_id": chat,
		}).WithError(err).Debug("failed to delete message")
	}
}

func (c *Client) answer(ctx context.Context, cq *models.CallbackQuery, text string, alert bool) {
	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_answer_error",
			"user_id": cq.From.ID,
		}).WithError(err).Debug("failed to answer callback")
	}
}

// parseCommand splits "/cmd@bot arg1 arg2" into "/cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd, fields[1:]
}
