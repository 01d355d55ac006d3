package backend

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

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
)

const apiPrefix = "/api"

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded with status %d", e.Code)
	}
	return fmt.Sprintf("backend responded with status %d: %s", e.Code, e.Message)
}

// Unauthorized reports whether the backend rejected the bearer token.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Unauthorized()
}

func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

type CheckoutSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type CancelResponse struct {
	Message  string `json:"message"`
	CancelAt string `json:"cancel_at"`
}

type SubscriptionDetails struct {
	Status            string  `json:"status"`
	Message           string  `json:"message,omitempty"`
	CurrentPeriodEnd  *string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool    `json:"cancel_at_period_end"`
	Plan              *string `json:"plan,omitempty"`
}

type PromoRedemption struct {
	Message             string `json:"message"`
	SubscriptionStatus  string `json:"subscription_status"`
	SubscriptionEndDate string `json:"subscription_end_date"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

type checkoutStatusResponse struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// Client talks to the Conqueror's Court REST backend. Every call takes the
// bearer token explicitly; the client holds no session state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + apiPrefix,
		httpClient: httpClient,
	}
}

func (c *Client) CheckoutStatus(ctx context.Context, token, sessionID string) (*entity.CheckoutStatus, error) {
	var resp checkoutStatusResponse
	path := "/subscriptions/status/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &entity.CheckoutStatus{
		SessionID:     sessionID,
		Status:        resp.Status,
		PaymentStatus: resp.PaymentStatus,
		AmountTotal:   resp.Amount,
		Currency:      resp.Currency,
	}, nil
}

func (c *Client) Me(ctx context.Context, token string) (*entity.User, error) {
	var user entity.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateCheckout(ctx context.Context, token, packageID, originURL string) (*CheckoutSessionResponse, error) {
	body := map[string]string{"package_id": packageID, "origin_url": originURL}
	var resp CheckoutSessionResponse
	if err := c.do(ctx, http.MethodPost, "/subscriptions/checkout", token, body, &resp); err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, errors.New("backend returned an empty checkout url")
	}
	return &resp, nil
}

func (c *Client) CancelSubscription(ctx context.Context, token string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/subscriptions/cancel", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubscriptionDetails(ctx context.Context, token string) (*SubscriptionDetails, error) {
	var resp SubscriptionDetails
	if err := c.do(ctx, http.MethodGet, "/subscriptions/details", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RedeemPromo(ctx context.Context, token, code string) (*PromoRedemption, error) {
	var resp PromoRedemption
	if err := c.do(ctx, http.MethodPost, "/promo/redeem", token, map[string]string{"code": code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangeOAuthSession trades the session id delivered in the OAuth return
// fragment for an application token. The call is unauthenticated.
func (c *Client) ExchangeOAuthSession(ctx context.Context, sessionID string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/oauth/google", "", map[string]string{"session_id": sessionID}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("backend returned an empty token")
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorDetail(payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// errorDetail extracts the {"detail": "..."} message the backend uses for
// HTTP errors, falling back to the raw body.
func errorDetail(payload []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(payload))
}
