package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/payment"
	"github.com/jitterskin/logger/internal/quota"
	"github.com/jitterskin/logger/internal/store"
	"github.com/jitterskin/logger/internal/testutil"
)

type fakeGateway struct {
	created  []payment.InvoiceRequest
	invoices map[int64]payment.Invoice
	err      error
}

func (f *fakeGateway) CreateInvoice(_ context.Context, req payment.InvoiceRequest) (payment.Invoice, error) {
	if f.err != nil {
		return payment.Invoice{}, f.err
	}
	f.created = append(f.created, req)
	id := int64(len(f.created))
	inv := payment.Invoice{ID: id, Status: payment.StatusPending, PayURL: "https://pay.example/inv", Payload: req.Payload}
	if f.invoices == nil {
		f.invoices = map[int64]payment.Invoice{}
	}
	f.invoices[id] = inv
	return inv, nil
}

func (f *fakeGateway) InvoiceStatus(_ context.Context, id int64) (payment.Invoice, error) {
	if f.err != nil {
		return payment.Invoice{}, f.err
	}
	inv, ok := f.invoices[id]
	if !ok {
		return payment.Invoice{}, payment.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeGateway) markPaid(id int64) {
	inv := f.invoices[id]
	inv.Status = payment.StatusPaid
	f.invoices[id] = inv
}

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, g gateway) (*Service, *store.Manager) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewService(g, db.Users(), testutil.QuietLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, db
}

func TestRequestInvoiceBindsTierAndUser(t *testing.T) {
	g := &fakeGateway{}
	svc, _ := newService(t, g)

	inv, err := svc.RequestInvoice(context.Background(), 42, domain.TierMonth)
	require.NoError(t, err)

	require.Len(t, g.created, 1)
	assert.Equal(t, 4.0, g.created[0].Amount)
	assert.Equal(t, Asset, g.created[0].Asset)
	assert.Equal(t, "sub:month:42", g.created[0].Payload)
	assert.Equal(t, "https://pay.example/inv", inv.PayURL)
}

func TestRequestInvoiceRejectsUnknownTier(t *testing.T) {
	svc, _ := newService(t, &fakeGateway{})
	_, err := svc.RequestInvoice(context.Background(), 1, domain.TierFree)
	assert.Error(t, err)
}

func TestPaymentsDisabledWithoutGateway(t *testing.T) {
	svc, _ := newService(t, nil)
	assert.False(t, svc.Enabled())

	_, err := svc.RequestInvoice(context.Background(), 1, domain.TierWeek)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
	_, err = svc.ConfirmPayment(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
}

func TestConfirmPaymentGrantsTierFromNow(t *testing.T) {
	g := &fakeGateway{}
	svc, db := newService(t, g)
	// an earlier, longer subscription is replaced rather than extended
	testutil.TestUser(t, db, 7, testutil.WithSubscription(domain.TierForever, fixedNow.Add(1000*24*time.Hour)))
	ctx := context.Background()

	inv, err := svc.RequestInvoice(ctx, 7, domain.TierWeek)
	require.NoError(t, err)

	status, err := svc.ConfirmPayment(ctx, 7, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, status)

	g.markPaid(inv.ID)
	status, err = svc.ConfirmPayment(ctx, 7, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, status)

	user, err := db.Users().Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.TierWeek, user.SubscriptionType)
	require.NotNil(t, user.SubscriptionExpires)
	assert.True(t, user.SubscriptionExpires.Equal(fixedNow.Add(7*24*time.Hour)), "got %v", user.SubscriptionExpires)
	assert.Equal(t, quota.PremiumLimit, quota.Limit(user, fixedNow))
}

func TestConfirmPaymentRejectsForeignInvoice(t *testing.T) {
	g := &fakeGateway{}
	svc, db := newService(t, g)
	testutil.TestUser(t, db, 1)
	testutil.TestUser(t, db, 2)
	ctx := context.Background()

	inv, err := svc.RequestInvoice(ctx, 1, domain.TierMonth)
	require.NoError(t, err)
	g.markPaid(inv.ID)

	_, err = svc.ConfirmPayment(ctx, 2, inv.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	user, err := db.Users().Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, user.SubscriptionType)
}

func TestConfirmPaymentPropagatesGatewayError(t *testing.T) {
	svc, _ := newService(t, &fakeGateway{err: domain.ErrExternalService})
	_, err := svc.ConfirmPayment(context.Background(), 1, 1)
	assert.True(t, errors.Is(err, domain.ErrExternalService))
}

func TestGrantAndRevoke(t *testing.T) {
	svc, db := newService(t, nil)
	testutil.TestUser(t, db, 3)
	ctx := context.Background()

	expires, err := svc.Grant(ctx, 3, domain.TierMonth)
	require.NoError(t, err)
	assert.True(t, expires.Equal(fixedNow.Add(30*24*time.Hour)))

	user, active, err := svc.Current(ctx, 3)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, domain.TierMonth, user.SubscriptionType)

	require.NoError(t, svc.Revoke(ctx, 3))
	user, active, err = svc.Current(ctx, 3)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, domain.TierFree, user.SubscriptionType)
	assert.Nil(t, user.SubscriptionExpires)
}

func TestGrantUnknownUser(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Grant(context.Background(), 404, domain.TierWeek)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPayloadRoundTrip(t *testing.T) {
	tier, user, err := DecodePayload(EncodePayload(domain.TierForever, 99))
	require.NoError(t, err)
	assert.Equal(t, domain.TierForever, tier)
	assert.EqualValues(t, 99, user)

	for _, bad := range []string{"", "subscription_payment", "sub:free:1", "sub:week:x", "x:week:1"} {
		_, _, err := DecodePayload(bad)
		assert.Error(t, err, bad)
	}
}
