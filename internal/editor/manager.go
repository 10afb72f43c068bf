package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/gateway/entity"
)

var ErrUnknownSession = errors.New("editor: unknown session")

const DefaultCapacity = 1024

// Manager is the registry of live workspaces. The least recently used
// workspace is torn down once capacity is reached.
type Manager struct {
	sessions *lru.Cache[string, *Workspace]
	catalog  Catalog
	seeds    []catalog.TypeSeed
	log      *zap.Logger
	newID    func() string
}

func NewManager(capacity int, cat Catalog, logger *zap.Logger) (*Manager, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{catalog: cat, seeds: catalog.DefaultSeeds(), log: logger, newID: uuid.NewString}
	sessions, err := lru.NewWithEvict[string, *Workspace](capacity, func(id string, w *Workspace) {
		w.close()
		m.log.Debug("editor session closed", zap.String("session_id", id), zap.String("user_id", w.User().String()))
	})
	if err != nil {
		return nil, fmt.Errorf("init session registry: %w", err)
	}
	m.sessions = sessions
	return m, nil
}

// Create opens a workspace bound to user.
func (m *Manager) Create(user entity.UserID) (*Workspace, error) {
	if user.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, "editor.Create", "a verified user is required")
	}
	w := newWorkspace(m.newID(), user, m.newID)
	m.sessions.Add(w.ID(), w)
	m.log.Debug("editor session opened", zap.String("session_id", w.ID()), zap.String("user_id", user.String()))
	return w, nil
}

// Get returns the workspace when it belongs to user. Sessions of other users
// look the same as missing ones.
func (m *Manager) Get(id string, user entity.UserID) (*Workspace, error) {
	w, ok := m.sessions.Get(id)
	if !ok || w.User() != user {
		return nil, apperr.Wrap(apperr.KindNotFound, "editor.Get", ErrUnknownSession)
	}
	return w, nil
}

// Close tears a workspace down.
func (m *Manager) Close(id string) {
	m.sessions.Remove(id)
}

func (m *Manager) Len() int { return m.sessions.Len() }

// Snapshot reads the live catalog for availability and lookups.
func (m *Manager) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	types, err := m.catalog.JewelryTypes(ctx, m.seeds)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "editor.Snapshot", err)
	}
	charms, err := m.catalog.Charms(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "editor.Snapshot", err)
	}
	return catalog.NewSnapshot(types, charms), nil
}

// Apply runs one gesture on the workspace against a fresh catalog read.
func (m *Manager) Apply(ctx context.Context, w *Workspace, g Gesture) (State, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return State{}, err
	}
	return w.Apply(g, snap)
}

// State returns the workspace view with availability recomputed.
func (m *Manager) State(ctx context.Context, w *Workspace) (State, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return State{}, err
	}
	return w.State(snap)
}
