// Package notify delivers visit notifications to logger owners.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/logging"
)

const placeholder = "—"

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Summary describes one recorded visit.
type Summary struct {
	Token           string
	LoggerName      string
	IP              string
	UserAgent       string
	VisitorID       *int64
	VisitorUsername *string
	At              time.Time
}

// Result reports the outcome of a delivery attempt.
type Result struct {
	Delivered bool
	Reason    string
}

// Delivered is the successful Result.
func Delivered() Result {
	return Result{Delivered: true}
}

// Failed returns an unsuccessful Result carrying reason.
func Failed(reason string) Result {
	return Result{Reason: reason}
}

// Notifier sends one message per visit. Delivery is attempted once.
type Notifier struct {
	sender  messageSender
	logger  *logrus.Entry
	timeout time.Duration
}

// New constructs a Notifier around a bot capable of sending messages.
func New(sender messageSender, logger *logrus.Entry) *Notifier {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Notifier{sender: sender, logger: logger, timeout: DefaultTimeout}
}

// Notify messages ownerID about the visit.
func (n *Notifier) Notify(ctx context.Context, ownerID int64, summary Summary) Result {
	if n == nil || n.sender == nil {
		return Failed("notifier is not configured")
	}
	if ownerID == 0 {
		return Failed("owner id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             ownerID,
		Text:               FormatSummary(summary),
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return Failed(reason(err))
	}

	n.logger.WithFields(logging.Fields{
		"event":   "visit_notified",
		"user_id": ownerID,
		"token":   summary.Token,
	}).Debug("visit notification delivered")

	return Delivered()
}

// FormatSummary renders the notification body in Telegram HTML.
func FormatSummary(s Summary) string {
	visitorID := placeholder
	if s.VisitorID != nil {
		visitorID = strconv.FormatInt(*s.VisitorID, 10)
	}
	visitorName := placeholder
	if s.VisitorUsername != nil && strings.TrimSpace(*s.VisitorUsername) != "" {
		visitorName = "@" + strings.TrimPrefix(strings.TrimSpace(*s.VisitorUsername), "@")
	}

	var b strings.Builder
	b.WriteString("<b>New visit</b>")
	if s.LoggerName != "" {
		fmt.Fprintf(&b, " on <b>%s</b>", html.EscapeString(s.LoggerName))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "ID: <code>%s</code>\n", html.EscapeString(s.Token))
	fmt.Fprintf(&b, "IP: <code>%s</code>\n", html.EscapeString(s.IP))
	fmt.Fprintf(&b, "UA: <code>%s</code>\n", html.EscapeString(s.UserAgent))
	fmt.Fprintf(&b, "TG ID: <code>%s</code>\n", html.EscapeString(visitorID))
	fmt.Fprintf(&b, "Username: %s", html.EscapeString(visitorName))
	if !s.At.IsZero() {
		fmt.Fprintf(&b, "\nTime: %s", s.At.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return b.String()
}

func reason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return err.Error()
	}
}
