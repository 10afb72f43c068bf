package placement

import (
	"github.com/google/uuid"

	"charmstudio/internal/catalog"
)

// CartItem is a finished piece. It is never mutated in place; a cart replaces
// whole items.
type CartItem struct {
	ID           string               `json:"id"`
	Model        catalog.JewelryModel `json:"model"`
	JewelryType  TypeRef              `json:"jewelry_type"`
	PlacedCharms []PlacedCharm        `json:"placed_charms"`
	PreviewImage string               `json:"preview_image,omitempty"`
	Creator      string               `json:"creator,omitempty"`
	CreationID   string               `json:"creation_id,omitempty"`
}

// Freeze copies the session into a new cart item. Later edits to the session
// do not reach the item.
func (s *Session) Freeze() CartItem {
	return s.FreezeAs(uuid.NewString())
}

// FreezeAs is Freeze with an explicit item id, used when replacing an item.
func (s *Session) FreezeAs(itemID string) CartItem {
	return CartItem{
		ID:           itemID,
		Model:        s.Model,
		JewelryType:  s.JewelryType,
		PlacedCharms: clonePlaced(s.PlacedCharms),
		PreviewImage: s.PreviewImage,
	}
}

// Thaw reopens a cart item in the editor. Placement ids, positions, rotations
// and clasp flags are kept exactly.
func Thaw(item CartItem, opts ...Option) *Session {
	s := NewSession(item.Model, item.JewelryType, opts...)
	s.PlacedCharms = clonePlaced(item.PlacedCharms)
	s.PreviewImage = item.PreviewImage
	return s
}

// Clone returns a deep copy of the item.
func (c CartItem) Clone() CartItem {
	c.PlacedCharms = clonePlaced(c.PlacedCharms)
	return c
}

func clonePlaced(in []PlacedCharm) []PlacedCharm {
	out := make([]PlacedCharm, len(in))
	copy(out, in)
	return out
}
