package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNotFound          = errors.New("catalog: not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// Shortfall is one charm whose stock cannot cover a decrement.
type Shortfall struct {
	CharmID   string `json:"charm_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockError lists every shortfall of a rejected decrement. Nothing was
// decremented when it is returned.
type StockError struct {
	Shortfalls []Shortfall
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: %d charm(s) short", ErrInsufficientStock, len(e.Shortfalls))
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Demand counts units per charm id.
type Demand map[string]int

// IDs returns the charm ids in sorted order, so row locks are taken in a
// stable order across transactions.
func (d Demand) IDs() []string {
	ids := make([]string, 0, len(d))
	for id, n := range d {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ShortfallsOf compares demand with stock without side effects.
func ShortfallsOf(d Demand, stock func(id string) (int, bool)) []Shortfall {
	var out []Shortfall
	for _, id := range d.IDs() {
		have, ok := stock(id)
		if !ok {
			have = 0
		}
		if want := d[id]; want > have {
			out = append(out, Shortfall{CharmID: id, Requested: want, Available: have})
		}
	}
	return out
}

// LowStock reports whether the charm is at or under its alert threshold.
func (c Charm) LowStock() bool {
	return c.LowStockThreshold > 0 && c.Stock <= c.LowStockThreshold
}
