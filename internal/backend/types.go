// ABOUTME: Request and response payloads for backend actions.
// ABOUTME: Menu and basket shapes live in the menu package.

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/2389/menu-gateway/internal/menu"
)

// Action names understood by the backend.
const (
	ActionCreateSession       = "CreateSession"
	ActionSearchMenu          = "SearchMenu"
	ActionGetBasket           = "GetBasket"
	ActionUpdateBasket        = "UpdateBasket"
	ActionUpdateBasketItems   = "UpdateBasketItems"
	ActionClearBasket         = "ClearBasket"
	ActionSubmitOrder         = "SubmitOrder"
	ActionSendOTP             = "SendOTP"
	ActionVerifyOTP           = "VerifyOTP"
	ActionGetRestaurantStatus = "GetRestaurantStatus"
	ActionGetPaymentAccounts  = "GetPaymentAccounts"
)

// envelope is the request body for every action.
type envelope struct {
	Action string `json:"action"`
	Args   []any  `json:"args"`
}

// SessionInfo is the result of CreateSession.
type SessionInfo struct {
	SessionID string       `json:"sessionId"`
	Basket    *menu.Basket `json:"basket,omitempty"`
}

// BasketChange adds (positive Quantity) or removes (negative Quantity) a menu item.
type BasketChange struct {
	MenuItemID       int   `json:"menuItemId"`
	Quantity         int   `json:"quantity"`
	OptionSetItemIDs []int `json:"menuItemOptionSetItems,omitempty"`
}

// OrderResult is the result of SubmitOrder.
type OrderResult struct {
	Success         bool   `json:"success"`
	OrderID         string `json:"orderId,omitempty"`
	LeadTimeMinutes int    `json:"leadTimeMinutes,omitempty"`
	Message         string `json:"message,omitempty"`
}

// UnmarshalJSON accepts orderId as either a JSON string or a number.
func (r *OrderResult) UnmarshalJSON(data []byte) error {
	type plain OrderResult
	var raw struct {
		plain
		OrderID json.RawMessage `json:"orderId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodeOrderID(raw.OrderID)
	if err != nil {
		return err
	}
	*r = OrderResult(raw.plain)
	r.OrderID = id
	return nil
}

func decodeOrderID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("orderId: %w", err)
	}
	return n.String(), nil
}

// OTPResult is the result of SendOTP.
type OTPResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VerifyResult is the result of VerifyOTP. Token is empty on failure.
type VerifyResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// RestaurantStatus is the result of GetRestaurantStatus.
type RestaurantStatus struct {
	IsOpen          bool   `json:"isOpen"`
	Message         string `json:"message,omitempty"`
	LeadTimeMinutes int    `json:"leadTimeMinutes,omitempty"`
}

// PaymentAccount is a stored payment method of the authenticated customer.
type PaymentAccount struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	IsDefault   bool   `json:"isDefault"`
}
