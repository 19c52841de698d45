// Package visit records link visits and notifies logger owners.
package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/logging"
	"github.com/jitterskin/logger/internal/notify"
)

// Visit is one observed access to a tracking link.
type Visit struct {
	Token           string
	IP              string
	UserAgent       string
	VisitorID       *int64
	VisitorUsername *string
}

type loggerLookup interface {
	GetActiveByToken(ctx context.Context, token string) (domain.Logger, error)
}

type visitAppender interface {
	Append(ctx context.Context, loggerID int64, visit domain.IPLog) (bool, error)
}

type notifier interface {
	Notify(ctx context.Context, ownerID int64, summary notify.Summary) notify.Result
}

// Recorder stores visits for active loggers and notifies their owners in the
// background.
type Recorder struct {
	loggers  loggerLookup
	visits   visitAppender
	notifier notifier
	logger   *logrus.Entry
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRecorder constructs a Recorder. A nil notifier disables notifications.
func NewRecorder(loggers loggerLookup, visits visitAppender, n notifier, logger *logrus.Entry) *Recorder {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Recorder{
		loggers:  loggers,
		visits:   visits,
		notifier: n,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record stores v when its token names an active logger. It returns false
// without writing anything for unknown or inactive tokens.
func (r *Recorder) Record(ctx context.Context, v Visit) (bool, error) {
	token := strings.TrimSpace(v.Token)
	if token == "" {
		return false, nil
	}

	l, err := r.loggers.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve logger: %w", err)
	}

	at := r.now()
	written, err := r.visits.Append(ctx, l.ID, domain.IPLog{
		IPAddress:        v.IP,
		UserAgent:        v.UserAgent,
		TelegramUserID:   v.VisitorID,
		TelegramUsername: v.VisitorUsername,
		CreatedAt:        at,
	})
	if err != nil {
		return false, fmt.Errorf("store visit: %w", err)
	}
	if !written {
		// deactivated between lookup and insert
		return false, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":     "visit_recorded",
		"logger_id": l.ID,
		"user_id":   l.UserID,
	}).Info("visit recorded")

	r.notify(l, v, at)
	return true, nil
}

func (r *Recorder) notify(l domain.Logger, v Visit, at time.Time) {
	if r.notifier == nil {
		return
	}

	summary := notify.Summary{
		Token:           l.UniqueID,
		LoggerName:      l.Name,
		IP:              v.IP,
		UserAgent:       v.UserAgent,
		VisitorID:       v.VisitorID,
		VisitorUsername: v.VisitorUsername,
		At:              at,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		res := r.notifier.Notify(context.Background(), l.UserID, summary)
		if res.Delivered {
			return
		}
		r.logger.WithFields(logging.Fields{
			"event":     "visit_notify_failed",
			"logger_id": l.ID,
			"user_id":   l.UserID,
			"reason":    res.Reason,
		}).Warn("visit notification not delivered")
	}()
}

// Wait blocks until pending notifications have finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
