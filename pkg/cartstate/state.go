// Package cartstate keeps the client-side mirror of a user's cart.
//
// State changes only through Reduce. The Store wraps it with server
// hydration, server-first mutations and persistence.
package cartstate

import (
	"github.com/example/foodhall/pkg/models"
	"github.com/shopspring/decimal"
)

type State struct {
	Entries        []models.CartLine `json:"entries"`
	TotalAmount    float64           `json:"totalAmount"`
	TotalItems     int               `json:"totalItems"`
	Error          string            `json:"error,omitempty"`
	SessionExpired bool              `json:"sessionExpired,omitempty"`
	IsLoading      bool              `json:"-"`
}

type ActionType string

const (
	ActionSetCart        ActionType = "SET_CART"
	ActionAddItem        ActionType = "ADD_ITEM"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionRemoveItem     ActionType = "REMOVE_ITEM"
	ActionClearCart      ActionType = "CLEAR_CART"
	ActionSetError       ActionType = "SET_ERROR"
	ActionClearError     ActionType = "CLEAR_ERROR"
	ActionSetLoading     ActionType = "SET_LOADING"
)

type Action struct {
	Type           ActionType
	Entries        []models.CartLine
	Entry          models.CartLine
	ID             string
	Error          string
	SessionExpired bool
	Loading        bool
}

func SetCart(entries []models.CartLine) Action {
	return Action{Type: ActionSetCart, Entries: entries}
}

func AddItem(entry models.CartLine) Action {
	return Action{Type: ActionAddItem, Entry: entry}
}

func UpdateQuantity(entry models.CartLine) Action {
	return Action{Type: ActionUpdateQuantity, Entry: entry}
}

func RemoveItem(id string) Action {
	return Action{Type: ActionRemoveItem, ID: id}
}

func ClearCart() Action {
	return Action{Type: ActionClearCart}
}

func SetError(msg string) Action {
	return Action{Type: ActionSetError, Error: msg}
}

func SessionExpiredError(msg string) Action {
	return Action{Type: ActionSetError, Error: msg, SessionExpired: true}
}

func ClearError() Action {
	return Action{Type: ActionClearError}
}

func SetLoading(loading bool) Action {
	return Action{Type: ActionSetLoading, Loading: loading}
}

// Reduce returns the state after applying a. The input state is not modified.
// Totals are always recomputed from the entries.
func Reduce(s State, a Action) State {
	next := s
	next.Entries = append([]models.CartLine(nil), s.Entries...)

	switch a.Type {
	case ActionSetCart:
		next.Entries = next.Entries[:0]
		for _, e := range a.Entries {
			if e.ID == "" {
				continue
			}
			next.Entries = append(next.Entries, e)
		}
	case ActionAddItem, ActionUpdateQuantity:
		if a.Entry.ID == "" && itemKey(a.Entry) == "" {
			break
		}
		if i := indexOf(next.Entries, a.Entry); i >= 0 {
			next.Entries[i] = a.Entry
		} else {
			next.Entries = append(next.Entries, a.Entry)
		}
	case ActionRemoveItem:
		kept := next.Entries[:0]
		for _, e := range next.Entries {
			if e.ID != a.ID {
				kept = append(kept, e)
			}
		}
		next.Entries = kept
	case ActionClearCart:
		next.Entries = nil
	case ActionSetError:
		next.Error = a.Error
		next.SessionExpired = a.SessionExpired
	case ActionClearError:
		next.Error = ""
		next.SessionExpired = false
	case ActionSetLoading:
		next.IsLoading = a.Loading
	}

	next.TotalAmount, next.TotalItems = totals(next.Entries)
	return next
}

// indexOf matches on entry id or, failing that, on item id.
func indexOf(entries []models.CartLine, target models.CartLine) int {
	key := itemKey(target)
	for i, e := range entries {
		if target.ID != "" && e.ID == target.ID {
			return i
		}
		if key != "" && itemKey(e) == key {
			return i
		}
	}
	return -1
}

func itemKey(e models.CartLine) string {
	if e.ItemID != "" {
		return e.ItemID
	}
	return e.Item.ID
}

func totals(entries []models.CartLine) (float64, int) {
	amount := decimal.Zero
	count := 0
	for _, e := range entries {
		amount = amount.Add(decimal.NewFromFloat(e.Item.Price).Mul(decimal.NewFromInt(int64(e.Quantity))))
		count += e.Quantity
	}
	f, _ := amount.Round(2).Float64()
	return f, count
}
