// Package gateway talks to the external payment and payout gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultRetryBase   = 200 * time.Millisecond
	responseReadLimit  = 1 << 20
	idempotencyHeader  = "X-Payout-Idempotency"
	defaultPayoutMode  = "IMPS"
	payoutPurpose      = "payout"
	maxErrorBodyLength = 256
)

// Config configures the HTTP gateway client.
type Config struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	PayoutMode string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements ports.PaymentGateway and ports.PayoutGateway over the
// gateway's REST API. Transport errors, 429 and 5xx are retried with the same
// idempotency key and surface as domain.ErrGatewayTimeout once exhausted;
// other 4xx responses are domain.ErrGatewayRejected.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	payoutMode string
	maxRetries uint64
	retryBase  time.Duration
	log        zerolog.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryBase overrides the first backoff step.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

// NewClient builds the gateway client.
func NewClient(cfg Config, log zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("gateway credentials are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mode := cfg.PayoutMode
	if mode == "" {
		mode = defaultPayoutMode
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		payoutMode: mode,
		maxRetries: uint64(retries),
		retryBase:  defaultRetryBase,
		log:        log.With().Str("component", "gateway").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers a charge and returns the gateway order id.
func (c *Client) CreateOrder(ctx context.Context, req ports.GatewayOrderRequest) (string, error) {
	var out orderResponse
	body := createOrderBody{Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}
	if err := c.do(ctx, http.MethodPost, "/v1/orders", "", body, &out); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create order: %w: empty order id", domain.ErrGatewayRejected)
	}
	return out.ID, nil
}

type fundAccount struct {
	AccountType string      `json:"account_type"`
	BankAccount bankAccount `json:"bank_account"`
}

type bankAccount struct {
	Name          string `json:"name"`
	IFSC          string `json:"ifsc"`
	AccountNumber string `json:"account_number"`
}

type createPayoutBody struct {
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Mode        string      `json:"mode"`
	Purpose     string      `json:"purpose"`
	ReferenceID string      `json:"reference_id"`
	Narration   string      `json:"narration,omitempty"`
	FundAccount fundAccount `json:"fund_account"`
}

type payoutResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	ReferenceID   string `json:"reference_id"`
	FailureReason string `json:"failure_reason"`
	StatusDetails struct {
		Description string `json:"description"`
	} `json:"status_details"`
}

// CreatePayout starts a bank transfer. The idempotency key doubles as the
// reference id echoed back on payout webhooks.
func (c *Client) CreatePayout(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("create payout: %w: missing idempotency key", domain.ErrGatewayRejected)
	}
	body := createPayoutBody{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Mode:        c.payoutMode,
		Purpose:     payoutPurpose,
		ReferenceID: req.IdempotencyKey,
		Narration:   req.Narration,
		FundAccount: fundAccount{
			AccountType: "bank_account",
			BankAccount: bankAccount{
				Name:          req.Destination.HolderName,
				IFSC:          req.Destination.IFSC,
				AccountNumber: req.Destination.AccountNumber,
			},
		},
	}

	var out payoutResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", req.IdempotencyKey, body, &out); err != nil {
		return nil, fmt.Errorf("create payout %s: %w", req.IdempotencyKey, err)
	}
	return out.result(), nil
}

// GetPayoutStatus queries a transfer by gateway payout id.
func (c *Client) GetPayoutStatus(ctx context.Context, payoutRef string) (*ports.PayoutResult, error) {
	var out payoutResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payouts/"+url.PathEscape(payoutRef), "", nil, &out); err != nil {
		return nil, fmt.Errorf("get payout %s: %w", payoutRef, err)
	}
	return out.result(), nil
}

func (p payoutResponse) result() *ports.PayoutResult {
	reason := p.FailureReason
	if reason == "" {
		reason = p.StatusDetails.Description
	}
	return &ports.PayoutResult{
		PayoutRef:     p.ID,
		State:         mapPayoutState(p.Status),
		FailureReason: reason,
	}
}

// mapPayoutState folds the gateway's status vocabulary into ours.
func mapPayoutState(status string) ports.PayoutState {
	switch strings.ToLower(status) {
	case "processed":
		return ports.PayoutStateProcessed
	case "reversed":
		return ports.PayoutStateReversed
	case "failed", "rejected", "cancelled":
		return ports.PayoutStateFailed
	default: // queued, pending, processing
		return ports.PayoutStateProcessing
	}
}

// do sends one JSON request with retries and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.send(ctx, method, path, idempotencyKey, payload, out)
		if errors.Is(err, domain.ErrGatewayTimeout) {
			c.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("gateway call failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(err, domain.ErrGatewayTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrGatewayTimeout, err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path, idempotencyKey string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGatewayTimeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrGatewayTimeout, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrGatewayTimeout, resp.StatusCode, truncate(raw))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", domain.ErrGatewayRejected, resp.StatusCode, truncate(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrGatewayRejected, err)
	}
	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBodyLength {
		return s[:maxErrorBodyLength]
	}
	return s
}
