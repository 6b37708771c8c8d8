// ABOUTME: HTTP client for the ordering backend's {action,args} endpoint.
// ABOUTME: One POST per operation with optional bearer auth; no retries or caching.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/menu-gateway/internal/menu"
)

// MaxResponseBodySize caps how much of a backend response is read (4MB).
const MaxResponseBodySize = 4 << 20

// DefaultTimeout is used when Config.HTTPClient is nil.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the backend client.
type Config struct {
	BaseURL         string
	ActionPath      string // defaults to "/api/action"
	BasketItemsPath string // defaults to "/api/basket/items"
	UserAgent       string
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Client talks to the ordering backend.
type Client struct {
	actionURL      string
	basketItemsURL string
	userAgent      string
	http           *http.Client
	logger         *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	actionPath := cfg.ActionPath
	if actionPath == "" {
		actionPath = "/api/action"
	}
	basketPath := cfg.BasketItemsPath
	if basketPath == "" {
		basketPath = "/api/basket/items"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		actionURL:      base + ensureSlash(actionPath),
		basketItemsURL: base + ensureSlash(basketPath),
		userAgent:      cfg.UserAgent,
		http:           httpClient,
		logger:         logger,
	}, nil
}

func ensureSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// sessionTokenKey is the context key for the session-stored bearer token.
type sessionTokenKey struct{}

// WithSessionToken attaches the session's auth token to ctx. Calls made with
// the returned context send it unless the call site passes its own token.
func WithSessionToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionTokenKey{}, token)
}

// SessionTokenFromContext returns the token set by WithSessionToken, if any.
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey{}).(string)
	return token
}

// resolveToken applies call-site precedence over the session token.
func resolveToken(ctx context.Context, override string) string {
	if override != "" {
		return override
	}
	return SessionTokenFromContext(ctx)
}

// do posts one action envelope to url and decodes the response into out.
// A nil out discards the body. An empty body leaves out untouched.
func (c *Client) do(ctx context.Context, url, action, token string, args []any, out any) error {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(envelope{Action: action, Args: args})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if bearer := resolveToken(ctx, token); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "action", action, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrNetwork, action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", ErrNetwork, action, err)
	}

	c.logger.Debug("backend call",
		"action", action,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Action: action, Status: resp.StatusCode, Body: string(body)}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, action, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, action, token string, args []any, out any) error {
	return c.do(ctx, c.actionURL, action, token, args, out)
}

// CreateSession starts a backend session. An empty token creates a guest
// session unless the context carries a session token.
func (c *Client) CreateSession(ctx context.Context, token string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.call(ctx, ActionCreateSession, token, nil, &info); err != nil {
		return nil, err
	}
	if info.SessionID == "" {
		return nil, fmt.Errorf("%w: %s: missing sessionId", ErrBadResponse, ActionCreateSession)
	}
	return &info, nil
}

// SearchMenu searches the menu. The backend answers with either a bare array
// or an object with an items field; both decode to the same slice.
func (c *Client) SearchMenu(ctx context.Context, sessionID, query, token string) ([]menu.MenuItem, error) {
	var raw json.RawMessage
	if err := c.call(ctx, ActionSearchMenu, token, []any{sessionID, query}, &raw); err != nil {
		return nil, err
	}
	return decodeMenuItems(raw)
}

func decodeMenuItems(raw json.RawMessage) ([]menu.MenuItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []menu.MenuItem{}, nil
	}

	if trimmed[0] == '[' {
		var items []menu.MenuItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, ActionSearchMenu, err)
		}
		return items, nil
	}

	var wrapped struct {
		Items []menu.MenuItem `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, ActionSearchMenu, err)
	}
	if wrapped.Items == nil {
		return []menu.MenuItem{}, nil
	}
	return wrapped.Items, nil
}

// GetBasket returns the session's basket.
func (c *Client) GetBasket(ctx context.Context, sessionID, token string) (*menu.Basket, error) {
	basket := menu.EmptyBasket()
	if err := c.call(ctx, ActionGetBasket, token, []any{sessionID}, basket); err != nil {
		return nil, err
	}
	if basket.Items == nil {
		basket.Items = []menu.BasketItem{}
	}
	return basket, nil
}

// UpdateBasket adds or removes items on a guest session.
func (c *Client) UpdateBasket(ctx context.Context, sessionID string, changes []BasketChange, token string) error {
	return c.call(ctx, ActionUpdateBasket, token, []any{sessionID, changes}, nil)
}

// UpdateBasketItems is the authenticated variant of UpdateBasket. It posts to
// the dedicated basket items endpoint.
func (c *Client) UpdateBasketItems(ctx context.Context, sessionID string, changes []BasketChange, token string) error {
	return c.do(ctx, c.basketItemsURL, ActionUpdateBasketItems, token, []any{sessionID, changes}, nil)
}

// ClearBasket removes every item from the session's basket.
func (c *Client) ClearBasket(ctx context.Context, sessionID, token string) error {
	return c.call(ctx, ActionClearBasket, token, []any{sessionID}, nil)
}

// SubmitOrder places the order for the session's basket. A zero
// paymentAccountID is sent as null.
func (c *Client) SubmitOrder(ctx context.Context, sessionID string, paymentAccountID int, token string) (*OrderResult, error) {
	var account any
	if paymentAccountID > 0 {
		account = paymentAccountID
	}
	var res OrderResult
	if err := c.call(ctx, ActionSubmitOrder, token, []any{sessionID, account}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendOTP asks the backend to text a passcode to phone. An empty 2xx body
// counts as success.
func (c *Client) SendOTP(ctx context.Context, phone string) (*OTPResult, error) {
	res := OTPResult{Success: true}
	if err := c.call(ctx, ActionSendOTP, "", []any{phone}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// VerifyOTP exchanges a passcode for an auth token.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (*VerifyResult, error) {
	var res VerifyResult
	if err := c.call(ctx, ActionVerifyOTP, "", []any{phone, code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetRestaurantStatus reports whether the restaurant is taking orders.
func (c *Client) GetRestaurantStatus(ctx context.Context) (*RestaurantStatus, error) {
	var status RestaurantStatus
	if err := c.call(ctx, ActionGetRestaurantStatus, "", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetPaymentAccounts lists the authenticated customer's payment accounts.
func (c *Client) GetPaymentAccounts(ctx context.Context, token string) ([]PaymentAccount, error) {
	var accounts []PaymentAccount
	if err := c.call(ctx, ActionGetPaymentAccounts, token, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
