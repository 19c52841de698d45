package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jitterskin/logger/internal/domain"
)

func quietLogger() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestCreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/createInvoice", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(tokenHeader))

		var body createInvoiceBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "USDT", body.Asset)
		assert.Equal(t, "4", body.Amount)
		assert.Equal(t, "sub:month:42", body.Payload)

		_, _ = w.Write([]byte(`{"ok":true,"result":{"invoice_id":91,"status":"active","asset":"USDT","amount":"4","payload":"sub:month:42","bot_invoice_url":"https://t.me/CryptoBot?start=IV91"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", "secret", quietLogger())
	inv, err := c.CreateInvoice(context.Background(), InvoiceRequest{Amount: 4, Payload: "sub:month:42", Description: "Month"})
	require.NoError(t, err)

	assert.EqualValues(t, 91, inv.ID)
	assert.Equal(t, StatusPending, inv.Status)
	assert.Equal(t, "https://t.me/CryptoBot?start=IV91", inv.PayURL)
	assert.Equal(t, "sub:month:42", inv.Payload)
}

func TestCreateInvoiceRejectsNonPositiveAmount(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "secret", quietLogger())
	_, err := c.CreateInvoice(context.Background(), InvoiceRequest{Amount: 0})
	assert.Error(t, err)
}

func TestInvoiceStatusMapsGatewayStates(t *testing.T) {
	cases := map[string]Status{
		"paid":    StatusPaid,
		"active":  StatusPending,
		"expired": StatusOther,
	}

	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/getInvoices", r.URL.Path)
				assert.Equal(t, "7", r.URL.Query().Get("invoice_ids"))
				_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[{"invoice_id":7,"status":"` + raw + `","payload":"sub:week:1"}]}}`))
			}))
			defer srv.Close()

			inv, err := NewClient(srv.URL, "secret", quietLogger()).InvoiceStatus(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, want, inv.Status)
			assert.Equal(t, raw, inv.Raw)
			assert.Equal(t, "sub:week:1", inv.Payload)
		})
	}
}

func TestInvoiceStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", quietLogger()).InvoiceStatus(context.Background(), 7)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestGatewayErrorsAreExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":401,"name":"UNAUTHORIZED"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad", quietLogger()).InvoiceStatus(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExternalService))
	assert.Contains(t, err.Error(), "UNAUTHORIZED")
}

func TestMalformedResponseIsExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", quietLogger()).InvoiceStatus(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestUnconfiguredClient(t *testing.T) {
	_, err := NewClient("https://pay.crypt.bot/api", "", quietLogger()).InvoiceStatus(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrExternalService)
}
