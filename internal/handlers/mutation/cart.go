package mutation

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// CartKey is the state key holding the cart line items.
const CartKey = "cart"

// Cart applies one cart operation to the line items stored under CartKey.
func Cart(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	c := act.(action.Cart)

	var previous, next []action.CartItem
	err := Update(rt, CartKey, false, func(raw any) (any, error) {
		var err error
		if previous, err = LoadCart(raw); err != nil {
			return nil, err
		}
		if next, err = apply(previous, c); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return action.Fail(action.NewHandlerError(c.Type(), err))
	}

	rt.Emit(ctx, event.CartUpdated{Operation: string(c.Operation), Previous: previous, Cart: next})
	return action.Succeed(next)
}

// LoadCart normalizes a stored cart value. Stores that round-trip through
// JSON hand back []any of objects; typed slices are returned as copies.
func LoadCart(raw any) ([]action.CartItem, error) {
	switch v := raw.(type) {
	case nil:
		return []action.CartItem{}, nil
	case []action.CartItem:
		return append([]action.CartItem{}, v...), nil
	}

	var items []action.CartItem
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &items,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if items == nil {
		items = []action.CartItem{}
	}
	return items, nil
}

func apply(items []action.CartItem, c action.Cart) ([]action.CartItem, error) {
	next := append([]action.CartItem{}, items...)

	switch c.Operation {
	case action.CartAdd, action.CartUpdate:
		if c.Item == nil {
			return nil, fmt.Errorf("%s requires an item", c.Operation)
		}
	case action.CartUpdateQuantity:
		if c.Quantity == nil {
			return nil, fmt.Errorf("%s requires a quantity", c.Operation)
		}
	}

	switch c.Operation {
	case action.CartAdd:
		item := *c.Item
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if i := indexOf(next, item.ID); i >= 0 {
			next[i].Quantity += item.Quantity
			return next, nil
		}
		return append(next, item), nil

	case action.CartRemove:
		if i := indexOf(next, c.ItemID); i >= 0 {
			next = append(next[:i], next[i+1:]...)
		}
		return next, nil

	case action.CartUpdate:
		i := indexOf(next, c.Item.ID)
		if i < 0 {
			return nil, fmt.Errorf("item %q not in cart", c.Item.ID)
		}
		next[i] = *c.Item
		return next, nil

	case action.CartUpdateQuantity:
		i := indexOf(next, c.ItemID)
		if i < 0 {
			return nil, fmt.Errorf("item %q not in cart", c.ItemID)
		}
		if *c.Quantity <= 0 {
			return append(next[:i], next[i+1:]...), nil
		}
		next[i].Quantity = *c.Quantity
		return next, nil

	case action.CartClear:
		return []action.CartItem{}, nil
	}
	return nil, fmt.Errorf("unsupported cart operation %q", c.Operation)
}

func indexOf(items []action.CartItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
