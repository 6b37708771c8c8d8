// ABOUTME: Tool executor: argument checks, lazy backend sessions, per-tool dispatch.
// ABOUTME: Retries a call exactly once when the backend reports an expired session.

package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/menu-gateway/internal/backend"
	"github.com/2389/menu-gateway/internal/menu"
	"github.com/2389/menu-gateway/internal/session"
	"github.com/2389/menu-gateway/internal/widgets"
)

// Backend is the subset of the ordering backend the executor drives.
// *backend.Client satisfies it.
type Backend interface {
	CreateSession(ctx context.Context, token string) (*backend.SessionInfo, error)
	SearchMenu(ctx context.Context, sessionID, query, token string) ([]menu.MenuItem, error)
	GetBasket(ctx context.Context, sessionID, token string) (*menu.Basket, error)
	UpdateBasket(ctx context.Context, sessionID string, changes []backend.BasketChange, token string) error
	ClearBasket(ctx context.Context, sessionID, token string) error
	SubmitOrder(ctx context.Context, sessionID string, paymentAccountID int, token string) (*backend.OrderResult, error)
	SendOTP(ctx context.Context, phone string) (*backend.OTPResult, error)
	VerifyOTP(ctx context.Context, phone, code string) (*backend.VerifyResult, error)
	GetPaymentAccounts(ctx context.Context, token string) ([]backend.PaymentAccount, error)
}

// Executor runs ordering tools against a backend on behalf of one session store.
type Executor struct {
	backend Backend
	logger  *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(b Backend, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{backend: b, logger: logger}
}

// call is one tool invocation. ctx carries the stored auth token; guest does not.
type call struct {
	ctx   context.Context
	guest context.Context
	store *session.Store
	tool  string
	args  json.RawMessage
}

// Execute runs the named tool. Validation failures come back as
// *ValidationError; backend failures are wrapped and returned as-is.
func (e *Executor) Execute(ctx context.Context, store *session.Store, name string, args json.RawMessage) (*Result, error) {
	if store == nil {
		return nil, errors.New("ordering: nil session store")
	}
	if !IsKnownTool(name) {
		return nil, invalid(name, "unknown tool: %s", name)
	}

	start := time.Now()
	res, err := e.dispatch(ctx, store, name, args)
	if err != nil && backend.IsSessionExpired(err) {
		e.logger.Warn("backend session expired, starting a new one",
			"tool", name,
			"session_id", store.SessionID(),
		)
		store.ClearSessionID()
		res, err = e.dispatch(ctx, store, name, args)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("tool executed",
		"tool", name,
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Executor) dispatch(ctx context.Context, store *session.Store, name string, args json.RawMessage) (*Result, error) {
	c := &call{
		ctx:   backend.WithSessionToken(ctx, store.AuthToken()),
		guest: ctx,
		store: store,
		tool:  name,
		args:  args,
	}

	switch name {
	case ToolSearchMenu:
		return e.searchMenu(c)
	case ToolAddToBasket:
		return e.addToBasket(c)
	case ToolViewBasket:
		return e.viewBasket(c)
	case ToolRemoveFromBasket:
		return e.removeFromBasket(c)
	case ToolClearBasket:
		return e.clearBasket(c)
	case ToolSubmitOrder:
		return e.submitOrder(c)
	case ToolSendOTP:
		return e.sendOTP(c)
	case ToolVerifyOTP:
		return e.verifyOTP(c)
	default:
		return nil, invalid(name, "unknown tool: %s", name)
	}
}

// ensureSession returns the active backend session id, creating a guest
// session and persisting its id when none is held.
func (e *Executor) ensureSession(c *call) (string, error) {
	if id := c.store.SessionID(); id != "" {
		return id, nil
	}
	info, err := e.backend.CreateSession(c.guest, "")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	c.store.SetSessionID(info.SessionID)
	e.logger.Info("backend session created", "session_id", info.SessionID)
	return info.SessionID, nil
}

// decode unmarshals tool arguments, treating empty or null as {}.
func (c *call) decode(v any) error {
	raw := strings.TrimSpace(string(c.args))
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return invalid(c.tool, "invalid arguments for %s: %v", c.tool, err)
	}
	return nil
}

func (e *Executor) searchMenu(c *call) (*Result, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, invalid(c.tool, "query is required")
	}

	sessionID, err := e.ensureSession(c)
	if err != nil {
		return nil, err
	}
	items, err := e.backend.SearchMenu(c.ctx, sessionID, query, "")
	if err != nil {
		return nil, fmt.Errorf("search menu: %w", err)
	}
	c.store.SetLastSearchResults(items)

	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		groups, truncated := menu.Chain(it.OptionSet)
		if truncated {
			e.logger.Warn("option chain truncated", "menu_item_id", it.ID)
		}
		views = append(views, ItemView{
			ID:               it.ID,
			Name:             it.Name,
			Description:      it.Description,
			Price:            it.Price,
			OptionGroups:     groups,
			OptionsTruncated: truncated,
		})
	}

	return &Result{
		Text:           searchText(query, views),
		Structured:     SearchResult{Query: query, Items: views, Count: len(views)},
		OutputTemplate: widgets.SearchResults.URI(),
	}, nil
}

type basketArgs struct {
	MenuItemID     *int  `json:"menuItemId"`
	Quantity       *int  `json:"quantity"`
	OptionSetItems []int `json:"menuItemOptionSetItems"`
}

func (c *call) basketArgs() (id, qty int, options []int, err error) {
	var in basketArgs
	if err := c.decode(&in); err != nil {
		return 0, 0, nil, err
	}
	if in.MenuItemID == nil {
		return 0, 0, nil, invalid(c.tool, "menuItemId is required")
	}
	if *in.MenuItemID <= 0 {
		return 0, 0, nil, invalid(c.tool, "menuItemId must be a positive integer")
	}
	qty = 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if qty < 1 {
		return 0, 0, nil, invalid(c.tool, "quantity must be at least 1")
	}
	return *in.MenuItemID, qty, in.OptionSetItems, nil
}

func (e *Executor) addToBasket(c *call) (*Result, error) {
	id, qty, options, err := c.basketArgs()
	if err != nil {
		return nil, err
	}

	cached := c.store.LastSearchResults()
	if len(cached) > 0 && !menu.Contains(cached, id) {
		return nil, invalid(c.tool,
			"menu item %d is not in the latest search results; valid ids are: %s",
			id, menu.JoinIDs(menu.IDs(cached)))
	}

	sessionID, err := e.ensureSession(c)
	if err != nil {
		return nil, err
	}
	change := backend.BasketChange{MenuItemID: id, Quantity: qty, OptionSetItemIDs: options}
	if err := e.backend.UpdateBasket(c.ctx, sessionID, []backend.BasketChange{change}, ""); err != nil {
		return nil, fmt.Errorf("add to basket: %w", err)
	}
	basket, err := e.backend.GetBasket(c.ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("get basket: %w", err)
	}

	name := "item"
	if line, ok := basket.Find(id); ok && line.Name != "" {
		name = line.Name
	}
	return &Result{
		Text: fmt.Sprintf("Added %d x %s to your basket. Total: %s.", qty, name, formatPrice(basket.TotalPrice)),
		Structured: BasketResult{
			Added:  &BasketLine{MenuItemID: id, Name: name, Quantity: qty},
			Basket: basket,
		},
		OutputTemplate: widgets.Basket.URI(),
	}, nil
}

func (e *Executor) viewBasket(c *call) (*Result, error) {
	sessionID, err := e.ensureSession(c)
	if err != nil {
		return nil, err
	}
	basket, err := e.backend.GetBasket(c.ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("get basket: %w", err)
	}
	return &Result{
		Text:           basketText(basket),
		Structured:     BasketResult{Basket: basket},
		OutputTemplate: widgets.Basket.URI(),
	}, nil
}

func (e *Executor) removeFromBasket(c *call) (*Result, error) {
	id, qty, _, err := c.basketArgs()
	if err != nil {
		return nil, err
	}

	sessionID, err := e.ensureSession(c)
	if err != nil {
		return nil, err
	}
	change := backend.BasketChange{MenuItemID: id, Quantity: -qty}
	if err := e.backend.UpdateBasket(c.ctx, sessionID, []backend.BasketChange{change}, ""); err != nil {
		return nil, fmt.Errorf("remove from basket: %w", err)
	}
	basket, err := e.backend.GetBasket(c.ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("get basket: %w", err)
	}

	return &Result{
		Text: fmt.Sprintf("Removed %d x item %d. %s", qty, id, basketText(basket)),
		Structured: BasketResult{
			Removed: &BasketLine{MenuItemID: id, Quantity: qty},
			Basket:  basket,
		},
		OutputTemplate: widgets.Basket.URI(),
	}, nil
}

func (e *Executor) clearBasket(c *call) (*Result, error) {
	sessionID, err := e.ensureSession(c)
	if err != nil {
		return nil, err
	}
	if err := e.backend.ClearBasket(c.ctx, sessionID, ""); err != nil {
		return nil, fmt.Errorf("clear basket: %w", err)
	}
	return &Result{
		Text:           "Your basket has been cleared.",
		Structured:     BasketResult{Basket: menu.EmptyBasket()},
		OutputTemplate: widgets.Basket.URI(),
	}, nil
}

func (e *Executor) submitOrder(c *call) (*Result, error) {
	if c.store.AuthToken() == "" {
		msg := "Please verify your phone number before placing the order. Use send_otp, then verify_otp with the code."
		return &Result{
			Text:           msg,
			Structured:     AuthRequiredResult{Error: AuthenticationRequired, Message: msg},
			OutputTemplate: widgets.Auth.URI(),
		}, nil
	}

	var in struct {
		PaymentAccountID *int `json:"paymentAccountId"`
	}
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	accountID := 0
	if in.PaymentAccountID != nil {
		if *in.PaymentAccountID <= 0 {
			return nil, invalid(c.tool, "paymentAccountId must be a positive integer")
		}
		accountID = *in.PaymentAccountID
	}

	sessionID, err := e.ensureSession(c)
	if err != nil {
		return nil, err
	}
	if accountID == 0 {
		if accountID, err = e.defaultPaymentAccount(c); err != nil {
			return nil, err
		}
	}

	res, err := e.backend.SubmitOrder(c.ctx, sessionID, accountID, "")
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "no reason given"
		}
		return nil, fmt.Errorf("%w: %s", ErrOrderRejected, reason)
	}

	msg := leadTimeMessage(res.OrderID, res.LeadTimeMinutes)
	e.logger.Info("order submitted",
		"order_id", res.OrderID,
		"session_id", sessionID,
		"phone", maskPhone(c.store.PhoneNumber()),
	)
	return &Result{
		Text: msg,
		Structured: OrderResult{
			OrderID:         res.OrderID,
			LeadTimeMinutes: res.LeadTimeMinutes,
			Message:         msg,
		},
		OutputTemplate: widgets.Basket.URI(),
	}, nil
}

// defaultPaymentAccount picks the account flagged default, or the only one.
// Lookup failures other than session expiry fall back to 0 and let the
// backend choose.
func (e *Executor) defaultPaymentAccount(c *call) (int, error) {
	accounts, err := e.backend.GetPaymentAccounts(c.ctx, "")
	if err != nil {
		if backend.IsSessionExpired(err) {
			return 0, err
		}
		e.logger.Warn("payment account lookup failed", "error", err)
		return 0, nil
	}
	for _, a := range accounts {
		if a.IsDefault {
			return a.ID, nil
		}
	}
	if len(accounts) == 1 {
		return accounts[0].ID, nil
	}
	return 0, nil
}

func (e *Executor) sendOTP(c *call) (*Result, error) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	if phone == "" {
		return nil, invalid(c.tool, "phoneNumber is required")
	}

	if _, err := e.ensureSession(c); err != nil {
		return nil, err
	}
	res, err := e.backend.SendOTP(c.ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("send otp: %w", err)
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "backend declined"
		}
		return nil, fmt.Errorf("%w: %s", ErrOTPNotSent, reason)
	}

	e.logger.Info("verification code sent", "phone", maskPhone(phone))
	return &Result{
		Text:           fmt.Sprintf("A verification code was sent to %s. Ask for the code and call verify_otp.", phone),
		Structured:     OTPResult{PhoneNumber: phone, Sent: true},
		OutputTemplate: widgets.Auth.URI(),
	}, nil
}

func (e *Executor) verifyOTP(c *call) (*Result, error) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
	}
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	code := strings.TrimSpace(in.Code)
	if phone == "" {
		return nil, invalid(c.tool, "phoneNumber is required")
	}
	if code == "" {
		return nil, invalid(c.tool, "code is required")
	}

	if _, err := e.ensureSession(c); err != nil {
		return nil, err
	}
	res, err := e.backend.VerifyOTP(c.ctx, phone, code)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if !res.Success || res.Token == "" {
		reason := res.Message
		if reason == "" {
			reason = "the code was not accepted"
		}
		return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, reason)
	}
	if err := c.store.SetAuth(res.Token, phone); err != nil {
		return nil, err
	}

	e.logger.Info("phone number verified", "phone", maskPhone(phone))
	return &Result{
		Text:           "Phone number verified. You can now place your order.",
		Structured:     OTPResult{PhoneNumber: phone, Authenticated: true},
		OutputTemplate: widgets.Auth.URI(),
	}, nil
}
