// Package subscription sells and grants paid tiers.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/logging"
	"github.com/jitterskin/logger/internal/payment"
	"github.com/jitterskin/logger/internal/quota"
)

const (
	// Asset is the currency invoices are issued in.
	Asset = "USDT"

	payloadPrefix = "sub"
)

// ErrPaymentsDisabled is returned when no payment gateway is configured.
var ErrPaymentsDisabled = errors.New("payments are disabled")

// Plan is a purchasable tier.
type Plan struct {
	Tier  string
	Title string
	Price float64
}

// Plans lists the purchasable tiers in display order.
var Plans = []Plan{
	{Tier: domain.TierWeek, Title: "Week", Price: 3.0},
	{Tier: domain.TierMonth, Title: "Month", Price: 4.0},
	{Tier: domain.TierForever, Title: "Forever", Price: 6.0},
}

// PlanFor returns the plan of tier.
func PlanFor(tier string) (Plan, bool) {
	for _, p := range Plans {
		if p.Tier == tier {
			return p, true
		}
	}
	return Plan{}, false
}

type gateway interface {
	CreateInvoice(ctx context.Context, req payment.InvoiceRequest) (payment.Invoice, error)
	InvoiceStatus(ctx context.Context, invoiceID int64) (payment.Invoice, error)
}

type subscriptionStore interface {
	Get(ctx context.Context, userID int64) (domain.User, error)
	SetSubscription(ctx context.Context, userID int64, tier string, expires *time.Time) error
}

// Service issues invoices and applies tier grants.
type Service struct {
	gateway gateway
	users   subscriptionStore
	logger  *logrus.Entry
	now     func() time.Time
}

// NewService constructs a Service. A nil gateway disables purchases while
// admin grants keep working.
func NewService(g gateway, users subscriptionStore, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Service{
		gateway: g,
		users:   users,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether invoices can be issued.
func (s *Service) Enabled() bool {
	return s != nil && s.gateway != nil
}

// RequestInvoice creates an invoice for tier whose payload binds the tier to userID.
func (s *Service) RequestInvoice(ctx context.Context, userID int64, tier string) (payment.Invoice, error) {
	if !s.Enabled() {
		return payment.Invoice{}, ErrPaymentsDisabled
	}
	plan, ok := PlanFor(tier)
	if !ok {
		return payment.Invoice{}, fmt.Errorf("unknown subscription tier %q", tier)
	}

	inv, err := s.gateway.CreateInvoice(ctx, payment.InvoiceRequest{
		Amount:      plan.Price,
		Asset:       Asset,
		Description: "Subscription: " + plan.Title,
		Payload:     EncodePayload(tier, userID),
	})
	if err != nil {
		return payment.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":      "subscription_invoice",
		"user_id":    userID,
		"tier":       tier,
		"invoice_id": inv.ID,
	}).Info("subscription invoice issued")

	return inv, nil
}

// ConfirmPayment checks the invoice once. When it is paid, the tier named in
// the invoice payload is granted to userID from now. An invoice issued for a
// different user yields domain.ErrUnauthorized.
func (s *Service) ConfirmPayment(ctx context.Context, userID, invoiceID int64) (payment.Status, error) {
	if !s.Enabled() {
		return payment.StatusOther, ErrPaymentsDisabled
	}

	inv, err := s.gateway.InvoiceStatus(ctx, invoiceID)
	if err != nil {
		return payment.StatusOther, fmt.Errorf("check invoice: %w", err)
	}
	if inv.Status != payment.StatusPaid {
		return inv.Status, nil
	}

	tier, owner, err := DecodePayload(inv.Payload)
	if err != nil {
		return inv.Status, err
	}
	if owner != userID {
		s.logger.WithFields(logging.Fields{
			"event":      "subscription_payload_mismatch",
			"user_id":    userID,
			"invoice_id": invoiceID,
		}).Warn("invoice belongs to another user")
		return inv.Status, domain.ErrUnauthorized
	}

	if _, err := s.Grant(ctx, userID, tier); err != nil {
		return inv.Status, err
	}
	return inv.Status, nil
}

// Grant sets tier for userID, expiring one tier duration from now. Remaining
// time of an earlier subscription is discarded.
func (s *Service) Grant(ctx context.Context, userID int64, tier string) (time.Time, error) {
	expires, err := quota.Expiry(tier, s.now())
	if err != nil {
		return time.Time{}, err
	}
	if err := s.users.SetSubscription(ctx, userID, tier, &expires); err != nil {
		return time.Time{}, fmt.Errorf("grant subscription: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "subscription_granted",
		"user_id": userID,
		"tier":    tier,
		"expires": expires,
	}).Info("subscription granted")

	return expires, nil
}

// Revoke resets userID to the free tier.
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	if err := s.users.SetSubscription(ctx, userID, domain.TierFree, nil); err != nil {
		return fmt.Errorf("revoke subscription: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "subscription_revoked",
		"user_id": userID,
	}).Info("subscription revoked")

	return nil
}

// Current returns the user's tier and whether it is active now.
func (s *Service) Current(ctx context.Context, userID int64) (domain.User, bool, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, false, err
	}
	return user, quota.Active(user, s.now()), nil
}

// EncodePayload binds tier and userID into an invoice payload.
func EncodePayload(tier string, userID int64) string {
	return payloadPrefix + ":" + tier + ":" + strconv.FormatInt(userID, 10)
}

// DecodePayload parses a payload produced by EncodePayload.
func DecodePayload(payload string) (string, int64, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != payloadPrefix || !domain.ValidPaidTier(parts[1]) {
		return "", 0, fmt.Errorf("unexpected invoice payload %q", payload)
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("unexpected invoice payload %q: %w", payload, err)
	}
	return parts[1], userID, nil
}
