package placement

// StockReader exposes the live stock of a charm. *catalog.Snapshot implements it.
type StockReader interface {
	Stock(charmID string) int
}

// Ledger hands out stock to placements in the order they are claimed.
// Earlier claims win; once a charm's stock is used up every later claim fails.
type Ledger struct {
	stock   StockReader
	claimed map[string]int
}

func NewLedger(stock StockReader) *Ledger {
	return &Ledger{stock: stock, claimed: make(map[string]int)}
}

// Claim reserves one unit of charmID and reports whether stock covered it.
func (l *Ledger) Claim(charmID string) bool {
	l.claimed[charmID]++
	return l.claimed[charmID] <= l.stock.Stock(charmID)
}

// Claimed returns how many units of each charm were requested so far.
func (l *Ledger) Claimed() map[string]int {
	out := make(map[string]int, len(l.claimed))
	for k, v := range l.claimed {
		out[k] = v
	}
	return out
}

// ComputeAvailability maps each placement id to whether live stock covers it.
// Placements of the same charm are served in slice order, so later duplicates
// are flagged unavailable first.
func ComputeAvailability(placed []PlacedCharm, stock StockReader) map[string]bool {
	l := NewLedger(stock)
	out := make(map[string]bool, len(placed))
	for _, pc := range placed {
		out[pc.ID] = l.Claim(pc.Charm.ID)
	}
	return out
}

// Unavailable returns the ids flagged false in an availability map, in placement order.
func Unavailable(placed []PlacedCharm, availability map[string]bool) []string {
	var out []string
	for _, pc := range placed {
		if ok, seen := availability[pc.ID]; seen && !ok {
			out = append(out, pc.ID)
		}
	}
	return out
}
