package editor

import (
	"context"
	"errors"
	"sync"

	"charmstudio/internal/apperr"
	"charmstudio/internal/cart"
	"charmstudio/internal/catalog"
	"charmstudio/internal/gateway/entity"
	"charmstudio/internal/placement"
)

var ErrClosed = errors.New("editor: workspace closed")

// Catalog is the read side the editor needs.
type Catalog interface {
	JewelryTypes(ctx context.Context, seeds []catalog.TypeSeed) ([]catalog.JewelryType, error)
	Charms(ctx context.Context) ([]catalog.Charm, error)
}

// State is the full editor view sent back after every gesture.
type State struct {
	SessionID    string                  `json:"session_id"`
	Model        *catalog.JewelryModel   `json:"model,omitempty"`
	JewelryType  *placement.TypeRef      `json:"jewelry_type,omitempty"`
	PlacedCharms []placement.PlacedCharm `json:"placed_charms"`
	PreviewImage string                  `json:"preview_image,omitempty"`
	Selected     string                  `json:"selected,omitempty"`
	Editing      string                  `json:"editing,omitempty"`
	// Availability maps placed charm ids to whether live stock covers them.
	Availability map[string]bool         `json:"availability"`
	Cart         []placement.CartItem    `json:"cart"`
}

// Workspace is the per-session state: the piece being edited, its selection
// and the cart. Gestures from one socket are applied in order under mu.
type Workspace struct {
	id   string
	user entity.UserID

	mu       sync.Mutex
	session  *placement.Session
	selected string
	editing  string
	cart     *cart.Cart
	closed   bool
	done     chan struct{}
	newID    func() string
}

func newWorkspace(id string, user entity.UserID, newID func() string) *Workspace {
	return &Workspace{id: id, user: user, cart: cart.New(), done: make(chan struct{}), newID: newID}
}

func (w *Workspace) ID() string { return w.id }

func (w *Workspace) User() entity.UserID { return w.user }

// Done is closed when the workspace is torn down.
func (w *Workspace) Done() <-chan struct{} { return w.done }

func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.session = nil
	w.cart.Clear()
	close(w.done)
}

// Apply runs one gesture against the catalog snapshot and returns the new state.
func (w *Workspace) Apply(g Gesture, snap *catalog.Snapshot) (State, error) {
	const op = "editor.Apply"
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return State{}, ErrClosed
	}

	switch g.Kind {
	case KindSelectModel:
		m, ok := snap.Model(g.ModelID)
		if !ok {
			return State{}, apperr.Validation(op, "unknown model %q", g.ModelID)
		}
		jt, _ := snap.Type(m.TypeID)
		w.session = w.startSession(m, placement.RefOf(jt))
		w.selected, w.editing = "", ""

	case KindAdd:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		c, ok := snap.Charm(g.CharmID)
		if !ok {
			return State{}, apperr.Validation(op, "unknown charm %q", g.CharmID)
		}
		pc := s.AddCharm(c, placement.Position{X: *g.X, Y: *g.Y})
		w.selected = pc.ID

	case KindMove:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		s.UpdatePosition(g.PlacedCharmID, placement.Position{X: *g.X, Y: *g.Y})

	case KindRotate:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		s.Rotate(g.PlacedCharmID, *g.Rotation)

	case KindClasp:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		s.ToggleClasp(g.PlacedCharmID, *g.WithClasp)

	case KindRemove:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		if s.Remove(g.PlacedCharmID) && w.selected == g.PlacedCharmID {
			w.selected = ""
		}

	case KindSelect:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		if _, ok := s.Get(g.PlacedCharmID); ok {
			w.selected = g.PlacedCharmID
		} else {
			w.selected = ""
		}

	case KindSnapshot:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		s.SetPreview(g.Image)

	case KindFinish:
		s, err := w.requireSession(op)
		if err != nil {
			return State{}, err
		}
		if w.editing != "" {
			if err := w.cart.Replace(s.FreezeAs(w.editing)); err != nil {
				return State{}, apperr.Validation(op, "cart item %q no longer exists", w.editing)
			}
		} else {
			w.cart.Add(s.FreezeAs(w.newID()))
		}
		w.session, w.selected, w.editing = nil, "", ""

	case KindEdit:
		item, ok := w.cart.Get(g.CartItemID)
		if !ok {
			return State{}, apperr.Validation(op, "unknown cart item %q", g.CartItemID)
		}
		w.session = placement.Thaw(item, placement.WithIDFunc(w.newID))
		w.selected, w.editing = "", item.ID

	case KindAbandon:
		w.session, w.selected, w.editing = nil, "", ""

	default:
		return State{}, apperr.Validation(op, "unknown gesture %q", g.Kind)
	}
	return w.stateLocked(snap), nil
}

// State returns the current view without changing anything.
func (w *Workspace) State(snap *catalog.Snapshot) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return State{}, ErrClosed
	}
	return w.stateLocked(snap), nil
}

// CartItems returns copies of the finished pieces.
func (w *Workspace) CartItems() []placement.CartItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cart.Items()
}

// RemoveCartItem drops a finished piece. Editing it is abandoned too.
func (w *Workspace) RemoveCartItem(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.cart.Remove(id); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "editor.RemoveCartItem", err)
	}
	if w.editing == id {
		w.session, w.selected, w.editing = nil, "", ""
	}
	return nil
}

// ClearCart empties the cart after a successful checkout.
func (w *Workspace) ClearCart() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cart.Clear()
}

func (w *Workspace) startSession(m catalog.JewelryModel, jt placement.TypeRef) *placement.Session {
	return placement.NewSession(m, jt, placement.WithIDFunc(w.newID))
}

func (w *Workspace) requireSession(op string) (*placement.Session, error) {
	if w.session == nil {
		return nil, apperr.Validation(op, "no model selected")
	}
	return w.session, nil
}

func (w *Workspace) stateLocked(snap *catalog.Snapshot) State {
	st := State{
		SessionID:    w.id,
		PlacedCharms: []placement.PlacedCharm{},
		Availability: map[string]bool{},
		Selected:     w.selected,
		Editing:      w.editing,
		Cart:         w.cart.Items(),
	}
	if s := w.session; s != nil {
		m, jt := s.Model, s.JewelryType
		st.Model, st.JewelryType = &m, &jt
		st.PlacedCharms = append(st.PlacedCharms, s.PlacedCharms...)
		st.PreviewImage = s.PreviewImage
		st.Availability = s.Availability(snap)
	}
	return st
}
