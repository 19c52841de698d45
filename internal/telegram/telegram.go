// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/config"
	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/feature/tracker"
	"github.com/jitterskin/logger/internal/logging"
	"github.com/jitterskin/logger/internal/payment"
	"github.com/jitterskin/logger/internal/store"
)

const handlerTimeout = 15 * time.Second

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// UserRegistrar records users on /start.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, userID int64, username, firstName string) (bool, error)
}

// LoggerRegistry manages tracking links.
type LoggerRegistry interface {
	Create(ctx context.Context, owner int64, name string) (domain.Logger, error)
	ListActive(ctx context.Context, owner int64) ([]domain.Logger, error)
	Quota(ctx context.Context, owner int64) (tracker.QuotaSummary, error)
	Owner(ctx context.Context, id int64) (domain.Logger, error)
	CanManage(ctx context.Context, l domain.Logger, requester int64) bool
	Deactivate(ctx context.Context, id, requester int64) bool
	Stats(ctx context.Context, id int64) (domain.LoggerStats, error)
}

// Subscriptions sells and grants paid tiers.
type Subscriptions interface {
	Enabled() bool
	RequestInvoice(ctx context.Context, userID int64, tier string) (payment.Invoice, error)
	ConfirmPayment(ctx context.Context, userID, invoiceID int64) (payment.Status, error)
	Grant(ctx context.Context, userID int64, tier string) (time.Time, error)
	Revoke(ctx context.Context, userID int64) error
	Current(ctx context.Context, userID int64) (domain.User, bool, error)
}

// AdminStore manages admin membership.
type AdminStore interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	Add(ctx context.Context, userID int64) (bool, error)
	Remove(ctx context.Context, userID int64) (bool, error)
}

// Directory backs the admin panel listings.
type Directory interface {
	Totals(ctx context.Context) (store.Totals, error)
	RecentUsers(ctx context.Context, limit int) ([]domain.User, error)
	RecentLoggers(ctx context.Context, limit int) ([]domain.Logger, error)
	RecentVisits(ctx context.Context, limit int) ([]domain.IPLog, error)
}

// Deps bundles the services the handlers call.
type Deps struct {
	Users         UserRegistrar
	Loggers       LoggerRegistry
	Subscriptions Subscriptions
	Admins        AdminStore
	Directory     Directory
}

// Client wraps the Telegram bot instance and logging dependencies.
type Client struct {
	bot     botAPI
	deps    Deps
	ownerID int64
	baseURL string
	pending *pendingNames
	logger  *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling and the
// management handlers.
func NewClient(cfg config.Config, deps Deps, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		deps:    deps,
		ownerID: cfg.BotOwnerID,
		baseURL: strings.TrimRight(cfg.WebAppURL, "/"),
		pending: newPendingNames(),
		logger:  logger,
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(c.handleText),
		bot.WithErrorsHandler(errorHandler(logger)),
		bot.WithMessageTextHandler("/", bot.MatchTypePrefix, c.handleCommand),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, c.handleCallback),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	c.bot = tgBot
	return c, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// LinkFor returns the public tracking URL of token.
func (c *Client) LinkFor(token string) string {
	return c.baseURL + "/logger/" + token
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func logUpdate(logger *logrus.Entry, update *models.Update) updateMeta {
	meta := extractUpdateMeta(update)

	fields := logging.Fields{
		"event":       "telegram_update",
		"update_type": meta.updateType,
	}

	if meta.text != "" {
		fields["text"] = meta.text
	}
	if meta.userID != 0 {
		fields["user_id"] = meta.userID
	}
	if meta.chatID != 0 {
		fields["chat_id"] = meta.chatID
	}

	logger.WithFields(fields).Info("telegram update received")
	return meta
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.EditedMessage != nil:
		return updateMeta{
			userID:     userID(update.EditedMessage.From),
			chatID:     chatID(&update.EditedMessage.Chat),
			text:       strings.TrimSpace(update.EditedMessage.Text),
			updateType: "edited_message",
		}
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     userID(&update.CallbackQuery.From),
			chatID:     messageChatID(update.CallbackQuery.Message),
			text:       strings.TrimSpace(update.CallbackQuery.Data),
			updateType: "callback_query",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}

func messageID(msg models.MaybeInaccessibleMessage) int {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.MessageID
	default:
		return 0
	}
}
