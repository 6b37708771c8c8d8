// ABOUTME: The fixed ordering tool catalog: names, descriptions, schemas and widget bindings.
// ABOUTME: Registered once at startup; the executor switches over the same names.

package ordering

import (
	"github.com/2389/menu-gateway/internal/tools"
	"github.com/2389/menu-gateway/internal/widgets"
)

// Tool names.
const (
	ToolSearchMenu       = "search_menu"
	ToolAddToBasket      = "add_to_basket"
	ToolViewBasket       = "view_basket"
	ToolRemoveFromBasket = "remove_from_basket"
	ToolClearBasket      = "clear_basket"
	ToolSubmitOrder      = "submit_order"
	ToolSendOTP          = "send_otp"
	ToolVerifyOTP        = "verify_otp"
)

// toolSurfaces maps each tool to the widget its results render in.
var toolSurfaces = map[string]widgets.Surface{
	ToolSearchMenu:       widgets.SearchResults,
	ToolAddToBasket:      widgets.Basket,
	ToolViewBasket:       widgets.Basket,
	ToolRemoveFromBasket: widgets.Basket,
	ToolClearBasket:      widgets.Basket,
	ToolSubmitOrder:      widgets.Basket,
	ToolSendOTP:          widgets.Auth,
	ToolVerifyOTP:        widgets.Auth,
}

// IsKnownTool reports whether name is one of the ordering tools.
func IsKnownTool(name string) bool {
	_, ok := toolSurfaces[name]
	return ok
}

// Catalog returns the ordering tool definitions in presentation order.
func Catalog() []*tools.Definition {
	return []*tools.Definition{
		{
			Name:            ToolSearchMenu,
			Description:     "Search the restaurant menu. Returns matching items with their ids, prices and option groups. Search before adding items so ids can be checked.",
			InputSchemaJSON: `{"type":"object","properties":{"query":{"type":"string","description":"What to look for, e.g. \"pizza\" or \"vegan\""}},"required":["query"]}`,
			OutputTemplate:  widgets.SearchResults.URI(),
			Invoking:        "Searching the menu",
			Invoked:         "Menu results ready",
		},
		{
			Name:        ToolAddToBasket,
			Description: "Add a menu item to the basket. Use an id from the latest search_menu results.",
			InputSchemaJSON: `{
				"type": "object",
				"properties": {
					"menuItemId": {"type": "integer", "description": "Menu item id from search results"},
					"quantity": {"type": "integer", "description": "How many to add (default 1)"},
					"menuItemOptionSetItems": {"type": "array", "items": {"type": "integer"}, "description": "Chosen option item ids"}
				},
				"required": ["menuItemId"]
			}`,
			OutputTemplate: widgets.Basket.URI(),
			Invoking:       "Adding to your basket",
			Invoked:        "Basket updated",
		},
		{
			Name:            ToolViewBasket,
			Description:     "Show the current basket and its total.",
			InputSchemaJSON: `{"type":"object","properties":{}}`,
			OutputTemplate:  widgets.Basket.URI(),
			Invoking:        "Loading your basket",
			Invoked:         "Basket loaded",
		},
		{
			Name:            ToolRemoveFromBasket,
			Description:     "Remove a quantity of a menu item from the basket.",
			InputSchemaJSON: `{"type":"object","properties":{"menuItemId":{"type":"integer"},"quantity":{"type":"integer","description":"How many to remove (default 1)"}},"required":["menuItemId"]}`,
			OutputTemplate:  widgets.Basket.URI(),
			Invoking:        "Removing from your basket",
			Invoked:         "Basket updated",
		},
		{
			Name:            ToolClearBasket,
			Description:     "Remove everything from the basket.",
			InputSchemaJSON: `{"type":"object","properties":{}}`,
			OutputTemplate:  widgets.Basket.URI(),
			Invoking:        "Clearing your basket",
			Invoked:         "Basket cleared",
		},
		{
			Name:            ToolSubmitOrder,
			Description:     "Place the order for the current basket. Requires phone verification first (send_otp then verify_otp); if not verified, the verification widget is shown instead.",
			InputSchemaJSON: `{"type":"object","properties":{"paymentAccountId":{"type":"integer","description":"Stored payment account to charge; defaults to the customer's default account"}}}`,
			OutputTemplate:  widgets.Basket.URI(),
			Invoking:        "Placing your order",
			Invoked:         "Order placed",
		},
		{
			Name:            ToolSendOTP,
			Description:     "Send a one-time verification code by SMS to the customer's phone number.",
			InputSchemaJSON: `{"type":"object","properties":{"phoneNumber":{"type":"string","description":"Phone number in international format"}},"required":["phoneNumber"]}`,
			OutputTemplate:  widgets.Auth.URI(),
			Invoking:        "Sending a code",
			Invoked:         "Code sent",
		},
		{
			Name:            ToolVerifyOTP,
			Description:     "Verify the one-time code sent to the phone number. On success the customer can place orders.",
			InputSchemaJSON: `{"type":"object","properties":{"phoneNumber":{"type":"string"},"code":{"type":"string","description":"The code from the SMS"}},"required":["phoneNumber","code"]}`,
			OutputTemplate:  widgets.Auth.URI(),
			Invoking:        "Checking your code",
			Invoked:         "Phone verified",
		},
	}
}
