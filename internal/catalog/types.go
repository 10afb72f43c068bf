package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TypeID is one of the fixed jewelry kinds.
type TypeID string

const (
	TypeNecklace TypeID = "necklace"
	TypeBracelet TypeID = "bracelet"
	TypeEarring  TypeID = "earring"
)

func (t TypeID) Valid() bool {
	switch t {
	case TypeNecklace, TypeBracelet, TypeEarring:
		return true
	}
	return false
}

// TypeSeed carries the display data of a jewelry kind before its models are attached.
type TypeSeed struct {
	ID          TypeID
	Name        string
	Description string
}

// DefaultSeeds is the fixed enumeration, in display order.
func DefaultSeeds() []TypeSeed {
	return []TypeSeed{
		{ID: TypeNecklace, Name: "Colliers", Description: "Chaînes et colliers à personnaliser"},
		{ID: TypeBracelet, Name: "Bracelets", Description: "Bracelets et joncs à personnaliser"},
		{ID: TypeEarring, Name: "Boucles d'oreilles", Description: "Boucles d'oreilles à personnaliser"},
	}
}

// JewelryType groups the purchasable models of one kind.
type JewelryType struct {
	ID          TypeID         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Models      []JewelryModel `json:"models"`
}

// JewelryModel is a purchasable base piece.
type JewelryModel struct {
	ID             string          `json:"id"`
	TypeID         TypeID          `json:"type_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	ImageURL       string          `json:"image_url"`
	EditorImageURL string          `json:"editor_image_url"`
}

// Charm is a placeable decoration. Stock is the only field that changes between reads.
type Charm struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	ImageURL          string          `json:"image_url"`
	Category          string          `json:"category"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold,omitempty"`
}

// Names returns the charm names in the given order.
func Names(charms []Charm) []string {
	out := make([]string, 0, len(charms))
	for _, c := range charms {
		if name := strings.TrimSpace(c.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
