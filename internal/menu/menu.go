// ABOUTME: Menu, option set and basket types exchanged with the ordering backend.
// ABOUTME: Pure data plus small helpers; no I/O.

package menu

import (
	"strconv"
	"strings"
)

// MenuItem is a single orderable item as returned by a menu search.
type MenuItem struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	OptionSet   *OptionSet `json:"optionSet,omitempty"`
}

// OptionSet is a group of selectable add-ons or variants.
// Next points at the group presented after this one, if any.
type OptionSet struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Rules string          `json:"rules,omitempty"`
	Items []OptionSetItem `json:"items"`
	Next  *OptionSet      `json:"next,omitempty"`
}

// OptionSetItem is one choice within an OptionSet.
type OptionSetItem struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// BasketItem is a line in the backend's basket.
type BasketItem struct {
	MenuItemID int     `json:"menuItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// Basket is the backend's view of the current order. Totals are whatever
// the backend reports; nothing here recomputes them.
type Basket struct {
	Items      []BasketItem `json:"items"`
	TotalPrice float64      `json:"totalPrice"`
}

// EmptyBasket returns a basket with no items and a zero total.
func EmptyBasket() *Basket {
	return &Basket{Items: []BasketItem{}, TotalPrice: 0}
}

// Find returns the first basket line for the given menu item.
func (b *Basket) Find(menuItemID int) (BasketItem, bool) {
	if b == nil {
		return BasketItem{}, false
	}
	for _, item := range b.Items {
		if item.MenuItemID == menuItemID {
			return item, true
		}
	}
	return BasketItem{}, false
}

// ItemCount returns the total quantity across all basket lines.
func (b *Basket) ItemCount() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, item := range b.Items {
		n += item.Quantity
	}
	return n
}

// IDs returns the ids of the given items in result order, without duplicates.
func IDs(items []MenuItem) []int {
	seen := make(map[int]struct{}, len(items))
	ids := make([]int, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}
	return ids
}

// Contains reports whether any item has the given id.
func Contains(items []MenuItem, id int) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// JoinIDs formats ids as "1, 2, 3".
func JoinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
