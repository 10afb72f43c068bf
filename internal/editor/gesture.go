// Package editor applies user gestures to a placement session, one at a time.
package editor

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"charmstudio/internal/apperr"
	"charmstudio/internal/datauri"
)

// Kind names a gesture.
type Kind string

const (
	KindSelectModel Kind = "select_model"
	KindAdd         Kind = "add"
	KindMove        Kind = "move"
	KindRotate      Kind = "rotate"
	KindClasp       Kind = "clasp"
	KindRemove      Kind = "remove"
	KindSelect      Kind = "select"
	KindSnapshot    Kind = "snapshot"
	KindFinish      Kind = "finish"
	KindEdit        Kind = "edit"
	KindAbandon     Kind = "abandon"
)

// Gesture is one inbound editor event. Which fields are required depends on Kind.
type Gesture struct {
	Kind          Kind     `json:"type"`
	ModelID       string   `json:"model_id,omitempty"`
	CharmID       string   `json:"charm_id,omitempty"`
	PlacedCharmID string   `json:"placed_charm_id,omitempty"`
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
	Rotation      *float64 `json:"rotation,omitempty"`
	WithClasp     *bool    `json:"with_clasp,omitempty"`
	Image         string   `json:"image,omitempty"`
	CartItemID    string   `json:"cart_item_id,omitempty"`
}

// Decode parses and checks a gesture frame. Unknown fields are rejected.
func Decode(raw []byte) (Gesture, error) {
	const op = "editor.Decode"
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var g Gesture
	if err := dec.Decode(&g); err != nil {
		return Gesture{}, apperr.Validation(op, "malformed gesture: %v", err)
	}
	g.ModelID = strings.TrimSpace(g.ModelID)
	g.CharmID = strings.TrimSpace(g.CharmID)
	g.PlacedCharmID = strings.TrimSpace(g.PlacedCharmID)
	g.CartItemID = strings.TrimSpace(g.CartItemID)
	if err := g.Validate(); err != nil {
		return Gesture{}, err
	}
	return g, nil
}

// Validate checks that the fields Kind needs are present.
func (g Gesture) Validate() error {
	const op = "editor.Gesture"
	need := func(ok bool, field string) error {
		if !ok {
			return apperr.Validation(op, "%s requires %s", g.Kind, field)
		}
		return nil
	}
	switch g.Kind {
	case KindSelectModel:
		return need(g.ModelID != "", "model_id")
	case KindAdd:
		if err := need(g.CharmID != "", "charm_id"); err != nil {
			return err
		}
		return need(finite(g.X) && finite(g.Y), "x and y")
	case KindMove:
		if err := need(g.PlacedCharmID != "", "placed_charm_id"); err != nil {
			return err
		}
		return need(finite(g.X) && finite(g.Y), "x and y")
	case KindRotate:
		if err := need(g.PlacedCharmID != "", "placed_charm_id"); err != nil {
			return err
		}
		return need(finite(g.Rotation), "rotation")
	case KindClasp:
		if err := need(g.PlacedCharmID != "", "placed_charm_id"); err != nil {
			return err
		}
		return need(g.WithClasp != nil, "with_clasp")
	case KindRemove:
		return need(g.PlacedCharmID != "", "placed_charm_id")
	case KindSelect, KindFinish, KindAbandon:
		// select with an empty id clears the selection.
		return nil
	case KindSnapshot:
		if !datauri.Is(g.Image) {
			return apperr.Validation(op, "snapshot requires an image data URI")
		}
		if _, _, err := datauri.Decode(g.Image, true); err != nil {
			return apperr.Validation(op, "snapshot image: %v", err)
		}
		return nil
	case KindEdit:
		return need(g.CartItemID != "", "cart_item_id")
	case "":
		return apperr.Validation(op, "gesture type is required")
	}
	return apperr.Validation(op, "unknown gesture %q", g.Kind)
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
