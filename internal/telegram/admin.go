package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/logging"
)

const adminListLimit = 20

func (c *Client) isAdmin(ctx context.Context, userID int64) bool {
	ok, err := c.deps.Admins.IsAdmin(ctx, userID)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "admin_check_error",
			"user_id": userID,
		}).WithError(err).Error("admin check failed")
		return false
	}
	return ok
}

func (c *Client) adminCommand(ctx context.Context, chat, requester int64, run func(ctx context.Context, chat int64)) {
	if !c.isAdmin(ctx, requester) {
		c.send(ctx, chat, textAccessDenied, nil)
		return
	}
	run(ctx, chat)
}

func (c *Client) adminCallback(ctx context.Context, cq *models.CallbackQuery) {
	if !c.isAdmin(ctx, cq.From.ID) {
		c.answer(ctx, cq, textAccessDenied, true)
		return
	}
	c.answer(ctx, cq, "", false)

	var (
		text string
		err  error
	)
	switch cq.Data {
	case cbAdminUsers:
		text, err = c.adminUsersText(ctx)
	case cbAdminLoggers:
		text, err = c.adminLoggersText(ctx)
	case cbAdminVisits:
		text, err = c.adminVisitsText(ctx)
	default:
		text, err = c.adminPanelText(ctx)
		if err == nil {
			c.edit(ctx, cq, text, adminPanel())
			return
		}
	}
	if err != nil {
		c.logger.WithField("event", "admin_panel_error").WithError(err).Error("failed to load admin data")
		c.edit(ctx, cq, textFailure, adminBack())
		return
	}
	c.edit(ctx, cq, text, adminBack())
}

func (c *Client) showAdminPanel(ctx context.Context, chat int64) {
	text, err := c.adminPanelText(ctx)
	if err != nil {
		c.logger.WithField("event", "admin_panel_error").WithError(err).Error("failed to load admin totals")
		c.send(ctx, chat, textFailure, nil)
		return
	}
	c.send(ctx, chat, text, adminPanel())
}

func (c *Client) adminPanelText(ctx context.Context) (string, error) {
	totals, err := c.deps.Directory.Totals(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<b>Admin panel</b>\n\n👤 Users: %d\n🔗 Loggers: %d\n🌐 Visits: %d\n\nChoose a section:",
		totals.Users, totals.Loggers, totals.Visits), nil
}

func (c *Client) adminUsersText(ctx context.Context) (string, error) {
	totals, err := c.deps.Directory.Totals(ctx)
	if err != nil {
		return "", err
	}
	users, err := c.deps.Directory.RecentUsers(ctx, adminListLimit)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<b>Users</b>\n\n")
	for _, u := range users {
		expires := "-"
		if u.SubscriptionExpires != nil {
			expires = u.SubscriptionExpires.UTC().Format("02.01.2006")
		}
		fmt.Fprintf(&b, "ID: <code>%d</code> | @%s | %s | %s | %s\n",
			u.UserID, html.EscapeString(orDash(u.Username)), html.EscapeString(orDash(u.FirstName)), u.SubscriptionType, expires)
	}
	fmt.Fprintf(&b, "\nShowing %d of %d.", len(users), totals.Users)
	return b.String(), nil
}

func (c *Client) adminLoggersText(ctx context.Context) (string, error) {
	totals, err := c.deps.Directory.Totals(ctx)
	if err != nil {
		return "", err
	}
	loggers, err := c.deps.Directory.RecentLoggers(ctx, adminListLimit)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<b>Loggers</b>\n\n")
	for _, l := range loggers {
		active := "❌"
		if l.IsActive {
			active = "✅"
		}
		fmt.Fprintf(&b, "ID: <code>%d</code> | User: <code>%d</code> | %s | Active: %s\n",
			l.ID, l.UserID, html.EscapeString(l.Name), active)
	}
	fmt.Fprintf(&b, "\nShowing %d of %d.", len(loggers), totals.Loggers)
	return b.String(), nil
}

func (c *Client) adminVisitsText(ctx context.Context) (string, error) {
	totals, err := c.deps.Directory.Totals(ctx)
	if err != nil {
		return "", err
	}
	visits, err := c.deps.Directory.RecentVisits(ctx, adminListLimit)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<b>Visits</b>\n\n")
	for _, v := range visits {
		tg := "-"
		if v.TelegramUserID != nil {
			tg = strconv.FormatInt(*v.TelegramUserID, 10)
		}
		fmt.Fprintf(&b, "ID: <code>%d</code> | Logger: <code>%d</code> | IP: %s | TG: %s | %s\n",
			v.ID, v.LoggerID, html.EscapeString(v.IPAddress), tg, v.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\nShowing %d of %d.", len(visits), totals.Visits)
	return b.String(), nil
}

func (c *Client) grantAdmin(ctx context.Context, chat int64, cmd string, args []string) {
	target, ok := parseUserArg(args, 1)
	if !ok {
		c.send(ctx, chat, "Usage: "+cmd+" &lt;user_id&gt;", nil)
		return
	}

	added, err := c.deps.Admins.Add(ctx, target)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "admin_grant_error",
			"user_id": target,
		}).WithError(err).Error("failed to grant admin")
		c.send(ctx, chat, textFailure, nil)
		return
	}

	c.logger.WithFields(logging.Fields{
		"event":   "admin_granted",
		"user_id": target,
		"changed": added,
	}).Info("admin granted")
	if !added {
		c.send(ctx, chat, fmt.Sprintf("User %d is already an admin.", target), nil)
		return
	}
	c.send(ctx, chat, fmt.Sprintf("✅ User %d is now an admin.", target), nil)
}

func (c *Client) revokeAdmin(ctx context.Context, chat int64, cmd string, args []string) {
	target, ok := parseUserArg(args, 1)
	if !ok {
		c.send(ctx, chat, "Usage: "+cmd+" &lt;user_id&gt;", nil)
		return
	}
	if target == c.ownerID {
		c.send(ctx, chat, "⛔️ The bot owner cannot be removed from admins.", nil)
		return
	}

	removed, err := c.deps.Admins.Remove(ctx, target)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "admin_revoke_error",
			"user_id": target,
		}).WithError(err).Error("failed to revoke admin")
		c.send(ctx, chat, textFailure, nil)
		return
	}

	c.logger.WithFields(logging.Fields{
		"event":   "admin_revoked",
		"user_id": target,
		"changed": removed,
	}).Info("admin revoked")
	if !removed {
		c.send(ctx, chat, fmt.Sprintf("User %d is not an admin.", target), nil)
		return
	}
	c.send(ctx, chat, fmt.Sprintf("❌ User %d is no longer an admin.", target), nil)
}

func (c *Client) grantSubscription(ctx context.Context, chat int64, args []string) {
	target, ok := parseUserArg(args, 2)
	if !ok {
		c.send(ctx, chat, "Usage: /grant_sub &lt;user_id&gt; &lt;week|month|forever&gt;", nil)
		return
	}
	tier := strings.ToLower(args[1])
	if !domain.ValidPaidTier(tier) {
		c.send(ctx, chat, "The plan must be week, month or forever.", nil)
		return
	}

	expires, err := c.deps.Subscriptions.Grant(ctx, target, tier)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.send(ctx, chat, "❌ User not found.", nil)
		return
	case err != nil:
		c.send(ctx, chat, textFailure, nil)
		return
	}
	c.send(ctx, chat, fmt.Sprintf("✅ Granted %s to user %d until %s.", tier, target, expires.Format("02.01.2006")), nil)
}

func (c *Client) revokeSubscription(ctx context.Context, chat int64, args []string) {
	target, ok := parseUserArg(args, 1)
	if !ok {
		c.send(ctx, chat, "Usage: /revoke_sub &lt;user_id&gt;", nil)
		return
	}

	err := c.deps.Subscriptions.Revoke(ctx, target)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.send(ctx, chat, "❌ User not found.", nil)
		return
	case err != nil:
		c.send(ctx, chat, textFailure, nil)
		return
	}
	c.send(ctx, chat, fmt.Sprintf("❌ Subscription removed from user %d.", target), nil)
}

func parseUserArg(args []string, want int) (int64, bool) {
	if len(args) != want {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
