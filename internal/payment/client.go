// Package payment is a minimal Crypto Pay API client for subscription invoices.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/logging"
)

const (
	tokenHeader    = "Crypto-Pay-API-Token"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Status is the normalized invoice state.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOther   Status = "other"
)

// ErrInvoiceNotFound is returned when the gateway does not know the invoice.
var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceRequest describes an invoice to create.
type InvoiceRequest struct {
	Amount      float64
	Asset       string
	Description string
	Payload     string
}

// Invoice is the subset of gateway invoice fields the bot uses.
type Invoice struct {
	ID      int64
	Status  Status
	Raw     string
	PayURL  string
	Amount  string
	Asset   string
	Payload string
}

// Client calls the Crypto Pay REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient constructs a Client. baseURL is the API root, for example
// https://pay.crypt.bot/api.
func NewClient(baseURL, token string, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

type apiResponse[T any] struct {
	OK     bool `json:"ok"`
	Result T    `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error,omitempty"`
}

type apiInvoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	Payload       string `json:"payload"`
	PayURL        string `json:"pay_url"`
	BotInvoiceURL string `json:"bot_invoice_url"`
}

type invoiceList struct {
	Items []apiInvoice `json:"items"`
}

type createInvoiceBody struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Payload     string `json:"payload,omitempty"`
}

// CreateInvoice creates an invoice and returns its id and payment URL.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if req.Amount <= 0 {
		return Invoice{}, errors.New("invoice amount must be positive")
	}
	asset := req.Asset
	if asset == "" {
		asset = "USDT"
	}

	body, err := json.Marshal(createInvoiceBody{
		Asset:       asset,
		Amount:      strconv.FormatFloat(req.Amount, 'f', -1, 64),
		Description: req.Description,
		Payload:     req.Payload,
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("encode invoice: %w", err)
	}

	var created apiInvoice
	if err := c.call(ctx, http.MethodPost, "createInvoice", nil, strings.NewReader(string(body)), &created); err != nil {
		return Invoice{}, err
	}

	c.logger.WithFields(logging.Fields{
		"event":      "invoice_created",
		"invoice_id": created.InvoiceID,
		"amount":     created.Amount,
		"asset":      created.Asset,
	}).Info("crypto pay invoice created")

	return toInvoice(created), nil
}

// InvoiceStatus fetches the current state of one invoice.
func (c *Client) InvoiceStatus(ctx context.Context, invoiceID int64) (Invoice, error) {
	query := url.Values{"invoice_ids": {strconv.FormatInt(invoiceID, 10)}}

	var list invoiceList
	if err := c.call(ctx, http.MethodGet, "getInvoices", query, nil, &list); err != nil {
		return Invoice{}, err
	}
	for _, inv := range list.Items {
		if inv.InvoiceID == invoiceID {
			return toInvoice(inv), nil
		}
	}
	return Invoice{}, fmt.Errorf("invoice %d: %w", invoiceID, ErrInvoiceNotFound)
}

func (c *Client) call(ctx context.Context, method, apiMethod string, query url.Values, body io.Reader, out any) error {
	if c == nil || c.token == "" {
		return fmt.Errorf("crypto pay is not configured: %w", domain.ErrExternalService)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := c.baseURL + "/" + apiMethod
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", apiMethod, err)
	}
	req.Header.Set(tokenHeader, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":  "crypto_pay_error",
			"method": apiMethod,
		}).WithError(err).Warn("crypto pay request failed")
		return fmt.Errorf("%s: %v: %w", apiMethod, err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %v: %w", apiMethod, err, domain.ErrExternalService)
	}

	var decoded apiResponse[json.RawMessage]
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: status %d: decode: %v: %w", apiMethod, resp.StatusCode, err, domain.ErrExternalService)
	}
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		name := "unknown"
		if decoded.Error != nil {
			name = decoded.Error.Name
		}
		c.logger.WithFields(logging.Fields{
			"event":  "crypto_pay_error",
			"method": apiMethod,
			"status": resp.StatusCode,
			"error":  name,
		}).Warn("crypto pay rejected request")
		return fmt.Errorf("%s: status %d: %s: %w", apiMethod, resp.StatusCode, name, domain.ErrExternalService)
	}

	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %v: %w", apiMethod, err, domain.ErrExternalService)
	}
	return nil
}

func toInvoice(inv apiInvoice) Invoice {
	payURL := inv.BotInvoiceURL
	if payURL == "" {
		payURL = inv.PayURL
	}
	return Invoice{
		ID:      inv.InvoiceID,
		Status:  normalizeStatus(inv.Status),
		Raw:     inv.Status,
		PayURL:  payURL,
		Amount:  inv.Amount,
		Asset:   inv.Asset,
		Payload: inv.Payload,
	}
}

func normalizeStatus(raw string) Status {
	switch strings.ToLower(raw) {
	case "paid":
		return StatusPaid
	case "active":
		return StatusPending
	default:
		return StatusOther
	}
}
