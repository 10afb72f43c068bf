// Package placement holds the in-memory model of one jewelry piece being
// customized and the charms placed on it.
package placement

import (
	"math"

	"charmstudio/internal/catalog"
)

const (
	// MinCoord and MaxCoord bound both axes, in percent of the canvas, origin top-left.
	MinCoord = 0.0
	MaxCoord = 100.0
)

// Position is a percentage coordinate on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamp returns p with both axes forced into [MinCoord, MaxCoord]. NaN maps to MinCoord.
func (p Position) Clamp() Position {
	return Position{X: clampCoord(p.X), Y: clampCoord(p.Y)}
}

// InRange reports whether both axes already satisfy the canvas bounds.
func (p Position) InRange() bool {
	return p.X >= MinCoord && p.X <= MaxCoord && p.Y >= MinCoord && p.Y <= MaxCoord
}

func clampCoord(v float64) float64 {
	if math.IsNaN(v) {
		return MinCoord
	}
	return math.Min(MaxCoord, math.Max(MinCoord, v))
}

// NormalizeRotation maps any angle in degrees to [0, 360).
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r == 360 {
		r = 0
	}
	return r
}

// TypeRef is the display data of the jewelry kind a piece belongs to.
type TypeRef struct {
	ID          catalog.TypeID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
}

// RefOf drops the model list from a jewelry type.
func RefOf(t catalog.JewelryType) TypeRef {
	return TypeRef{ID: t.ID, Name: t.Name, Description: t.Description}
}

// PlacedCharm is one charm instance placed on the piece.
type PlacedCharm struct {
	ID        string        `json:"id"`
	Charm     catalog.Charm `json:"charm"`
	Position  Position      `json:"position"`
	Rotation  float64       `json:"rotation"`
	WithClasp bool          `json:"with_clasp"`
}
