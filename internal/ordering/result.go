// ABOUTME: Tool result shapes: narrative text, structured payload and widget directive.
// ABOUTME: Structured payloads are what widgets read as their tool output.

package ordering

import (
	"fmt"
	"strings"

	"github.com/2389/menu-gateway/internal/menu"
)

// AuthenticationRequired is the structured error code returned by
// submit_order when no auth token is held.
const AuthenticationRequired = "authentication_required"

// Result is the outcome of one tool call.
type Result struct {
	Text           string
	Structured     any
	OutputTemplate string
}

// ItemView is a search result as shown to the assistant and widget.
type ItemView struct {
	ID               int                `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	Price            float64            `json:"price"`
	OptionGroups     []menu.OptionGroup `json:"optionGroups,omitempty"`
	OptionsTruncated bool               `json:"optionsTruncated,omitempty"`
}

// SearchResult is the structured payload of search_menu.
type SearchResult struct {
	Query string     `json:"query"`
	Items []ItemView `json:"items"`
	Count int        `json:"count"`
}

// BasketLine identifies the item touched by an add or remove.
type BasketLine struct {
	MenuItemID int    `json:"menuItemId"`
	Name       string `json:"name,omitempty"`
	Quantity   int    `json:"quantity"`
}

// BasketResult is the structured payload of the basket tools.
type BasketResult struct {
	Added   *BasketLine  `json:"added,omitempty"`
	Removed *BasketLine  `json:"removed,omitempty"`
	Basket  *menu.Basket `json:"basket"`
}

// AuthRequiredResult is returned by submit_order without an auth token.
type AuthRequiredResult struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// OrderResult is the structured payload of a placed order.
type OrderResult struct {
	OrderID         string `json:"orderId"`
	LeadTimeMinutes int    `json:"leadTimeMinutes,omitempty"`
	Message         string `json:"message"`
}

// OTPResult is the structured payload of send_otp and verify_otp.
type OTPResult struct {
	PhoneNumber   string `json:"phoneNumber"`
	Sent          bool   `json:"sent,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

func searchText(query string, items []ItemView) string {
	if len(items) == 0 {
		return fmt.Sprintf("No menu items matched %q.", query)
	}
	var b strings.Builder
	noun := "items"
	if len(items) == 1 {
		noun = "item"
	}
	fmt.Fprintf(&b, "Found %d menu %s for %q:", len(items), noun, query)
	for _, it := range items {
		fmt.Fprintf(&b, "\n- #%d %s (%s)", it.ID, it.Name, formatPrice(it.Price))
	}
	return b.String()
}

func basketText(b *menu.Basket) string {
	if b == nil || len(b.Items) == 0 {
		return "Your basket is empty."
	}
	var sb strings.Builder
	sb.WriteString("Your basket:")
	for _, it := range b.Items {
		fmt.Fprintf(&sb, "\n- %d x %s (%s)", it.Quantity, it.Name, formatPrice(it.Price))
	}
	fmt.Fprintf(&sb, "\nTotal: %s", formatPrice(b.TotalPrice))
	return sb.String()
}

func leadTimeMessage(orderID string, minutes int) string {
	if minutes > 0 {
		return fmt.Sprintf("Order %s has been placed. It should be ready in about %d minutes.", orderID, minutes)
	}
	return fmt.Sprintf("Order %s has been placed.", orderID)
}

// maskPhone keeps the first three and last two characters of a phone number.
func maskPhone(phone string) string {
	if len(phone) <= 5 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
