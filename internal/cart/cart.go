// Package cart keeps the finished pieces of a session. Items are frozen
// copies and only ever replaced whole.
package cart

import (
	"errors"

	"charmstudio/internal/placement"
)

var ErrItemNotFound = errors.New("cart item not found")

type Cart struct {
	items []placement.CartItem
}

func New() *Cart { return &Cart{} }

// Add appends a copy of item.
func (c *Cart) Add(item placement.CartItem) {
	c.items = append(c.items, item.Clone())
}

// Replace swaps the item with the same id, keeping its position in the cart.
func (c *Cart) Replace(item placement.CartItem) error {
	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i] = item.Clone()
			return nil
		}
	}
	return ErrItemNotFound
}

// Upsert replaces the item when its id is present and appends it otherwise.
func (c *Cart) Upsert(item placement.CartItem) {
	if err := c.Replace(item); err != nil {
		c.Add(item)
	}
}

func (c *Cart) Remove(id string) error {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Get(id string) (placement.CartItem, bool) {
	for _, it := range c.items {
		if it.ID == id {
			return it.Clone(), true
		}
	}
	return placement.CartItem{}, false
}

// Items returns deep copies in insertion order.
func (c *Cart) Items() []placement.CartItem {
	out := make([]placement.CartItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.Clone())
	}
	return out
}

func (c *Cart) Len() int { return len(c.items) }

func (c *Cart) Clear() { c.items = nil }
