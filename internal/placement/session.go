package placement

import (
	"github.com/google/uuid"

	"charmstudio/internal/catalog"
)

// Session is the placement state of one piece. It is mutated only by the
// editor layer, one gesture at a time, and carries no lock.
type Session struct {
	Model        catalog.JewelryModel `json:"model"`
	JewelryType  TypeRef              `json:"jewelry_type"`
	PlacedCharms []PlacedCharm        `json:"placed_charms"`
	PreviewImage string               `json:"preview_image,omitempty"`

	newID func() string
}

// Option customizes a Session.
type Option func(*Session)

// WithIDFunc replaces the placed-charm id generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSession starts an empty placement on the given model.
func NewSession(model catalog.JewelryModel, jt TypeRef, opts ...Option) *Session {
	s := &Session{
		Model:        model,
		JewelryType:  jt,
		PlacedCharms: []PlacedCharm{},
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) index(id string) int {
	for i := range s.PlacedCharms {
		if s.PlacedCharms[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns the placed charm with the given id.
func (s *Session) Get(id string) (PlacedCharm, bool) {
	if i := s.index(id); i >= 0 {
		return s.PlacedCharms[i], true
	}
	return PlacedCharm{}, false
}

// AddCharm appends a new placement with a fresh id, rotation 0 and no clasp.
func (s *Session) AddCharm(charm catalog.Charm, pos Position) PlacedCharm {
	id := s.newID()
	for s.index(id) >= 0 {
		id = s.newID()
	}
	pc := PlacedCharm{
		ID:       id,
		Charm:    charm,
		Position: pos.Clamp(),
	}
	s.PlacedCharms = append(s.PlacedCharms, pc)
	return pc
}

// UpdatePosition moves a placement, clamping into the canvas. Unknown ids are
// ignored since drag events may race with deletion.
func (s *Session) UpdatePosition(id string, pos Position) {
	if i := s.index(id); i >= 0 {
		s.PlacedCharms[i].Position = pos.Clamp()
	}
}

// Rotate sets the rotation, modulo 360. Unknown ids are ignored.
func (s *Session) Rotate(id string, degrees float64) {
	if i := s.index(id); i >= 0 {
		s.PlacedCharms[i].Rotation = NormalizeRotation(degrees)
	}
}

// ToggleClasp sets the clasp flag. Unknown ids are ignored.
func (s *Session) ToggleClasp(id string, withClasp bool) {
	if i := s.index(id); i >= 0 {
		s.PlacedCharms[i].WithClasp = withClasp
	}
}

// Remove deletes a placement and reports whether it existed. Clearing a
// selection that pointed at id is the caller's job.
func (s *Session) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.PlacedCharms = append(s.PlacedCharms[:i:i], s.PlacedCharms[i+1:]...)
	return true
}

// SetPreview stores the flat canvas snapshot as a data URI.
func (s *Session) SetPreview(dataURI string) {
	s.PreviewImage = dataURI
}

// Availability computes the availability map of the current placements.
func (s *Session) Availability(stock StockReader) map[string]bool {
	return ComputeAvailability(s.PlacedCharms, stock)
}
