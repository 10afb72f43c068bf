package editor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/datauri"
	"charmstudio/internal/gateway/entity"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
)

const user entity.UserID = "u1"

func newTestManager(t *testing.T, capacity int) (*Manager, *catalogrepo.MemoryStore) {
	t.Helper()
	store := catalogrepo.NewSeededMemoryStore()
	m, err := NewManager(capacity, store, nil)
	require.NoError(t, err)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return m, store
}

func apply(t *testing.T, m *Manager, w *Workspace, frame string) State {
	t.Helper()
	g, err := Decode([]byte(frame))
	require.NoError(t, err, frame)
	st, err := m.Apply(context.Background(), w, g)
	require.NoError(t, err, frame)
	return st
}

func TestGestureSequence(t *testing.T) {
	m, _ := newTestManager(t, 4)
	w, err := m.Create(user)
	require.NoError(t, err)

	st := apply(t, m, w, `{"type":"select_model","model_id":"collier-chaine-fine"}`)
	require.NotNil(t, st.Model)
	assert.Equal(t, catalog.TypeNecklace, st.JewelryType.ID)
	assert.Empty(t, st.PlacedCharms)

	st = apply(t, m, w, `{"type":"add","charm_id":"star","x":140,"y":-3}`)
	require.Len(t, st.PlacedCharms, 1)
	pc := st.PlacedCharms[0]
	assert.Equal(t, 100.0, pc.Position.X)
	assert.Equal(t, 0.0, pc.Position.Y)
	assert.Equal(t, pc.ID, st.Selected)
	assert.True(t, st.Availability[pc.ID])

	st = apply(t, m, w, fmt.Sprintf(`{"type":"rotate","placed_charm_id":%q,"rotation":-90}`, pc.ID))
	assert.Equal(t, 270.0, st.PlacedCharms[0].Rotation)

	st = apply(t, m, w, fmt.Sprintf(`{"type":"clasp","placed_charm_id":%q,"with_clasp":true}`, pc.ID))
	assert.True(t, st.PlacedCharms[0].WithClasp)

	st = apply(t, m, w, fmt.Sprintf(`{"type":"move","placed_charm_id":%q,"x":40,"y":70}`, pc.ID))
	assert.Equal(t, 40.0, st.PlacedCharms[0].Position.X)

	// Unknown ids are silent no-ops.
	st = apply(t, m, w, `{"type":"move","placed_charm_id":"ghost","x":1,"y":1}`)
	assert.Equal(t, 40.0, st.PlacedCharms[0].Position.X)

	st = apply(t, m, w, fmt.Sprintf(`{"type":"remove","placed_charm_id":%q}`, pc.ID))
	assert.Empty(t, st.PlacedCharms)
	assert.Empty(t, st.Selected, "removing the selected charm clears the selection")
}

func TestAvailabilityFlagsLaterDuplicates(t *testing.T) {
	m, _ := newTestManager(t, 4)
	w, _ := m.Create(user)
	apply(t, m, w, `{"type":"select_model","model_id":"bracelet-jonc"}`)
	first := apply(t, m, w, `{"type":"add","charm_id":"shell","x":10,"y":10}`).PlacedCharms[0]
	st := apply(t, m, w, `{"type":"add","charm_id":"shell","x":20,"y":10}`)
	second := st.PlacedCharms[1]

	assert.True(t, st.Availability[first.ID])
	assert.False(t, st.Availability[second.ID])
}

func TestAvailabilityFollowsLiveStock(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, 4)
	w, _ := m.Create(user)
	apply(t, m, w, `{"type":"select_model","model_id":"bracelet-jonc"}`)
	pc := apply(t, m, w, `{"type":"add","charm_id":"pearl","x":10,"y":10}`).PlacedCharms[0]

	_, err := store.SetStock(ctx, "pearl", 0)
	require.NoError(t, err)
	st, err := m.State(ctx, w)
	require.NoError(t, err)
	assert.False(t, st.Availability[pc.ID])
	assert.Len(t, st.PlacedCharms, 1, "unavailable charms are not auto-removed")
}

func TestFinishEditReplace(t *testing.T) {
	m, _ := newTestManager(t, 4)
	w, _ := m.Create(user)
	apply(t, m, w, `{"type":"select_model","model_id":"collier-chaine-fine"}`)
	pc := apply(t, m, w, `{"type":"add","charm_id":"heart","x":30,"y":60}`).PlacedCharms[0]
	snapshot := datauri.Encode("image/png", []byte{0x89, 'P', 'N', 'G'})
	apply(t, m, w, fmt.Sprintf(`{"type":"snapshot","image":%q}`, snapshot))

	st := apply(t, m, w, `{"type":"finish"}`)
	assert.Nil(t, st.Model, "finishing clears the editor")
	require.Len(t, st.Cart, 1)
	item := st.Cart[0]
	assert.Equal(t, snapshot, item.PreviewImage)
	assert.Equal(t, pc.ID, item.PlacedCharms[0].ID)

	st = apply(t, m, w, fmt.Sprintf(`{"type":"edit","cart_item_id":%q}`, item.ID))
	assert.Equal(t, item.ID, st.Editing)
	require.Len(t, st.PlacedCharms, 1)
	assert.Equal(t, pc.Position, st.PlacedCharms[0].Position)

	apply(t, m, w, `{"type":"add","charm_id":"moon","x":50,"y":60}`)
	st = apply(t, m, w, `{"type":"finish"}`)
	require.Len(t, st.Cart, 1, "editing replaces the item in place")
	assert.Equal(t, item.ID, st.Cart[0].ID)
	assert.Len(t, st.Cart[0].PlacedCharms, 2)
}

func TestAbandonKeepsCart(t *testing.T) {
	m, _ := newTestManager(t, 4)
	w, _ := m.Create(user)
	apply(t, m, w, `{"type":"select_model","model_id":"boucles-creoles"}`)
	apply(t, m, w, `{"type":"finish"}`)
	apply(t, m, w, `{"type":"select_model","model_id":"boucles-creoles"}`)
	st := apply(t, m, w, `{"type":"abandon"}`)
	assert.Nil(t, st.Model)
	assert.Len(t, st.Cart, 1)
}

func TestInvalidGestures(t *testing.T) {
	m, _ := newTestManager(t, 4)
	w, _ := m.Create(user)

	for _, frame := range []string{
		`{"type":"teleport"}`,
		`{"type":"add","charm_id":"star"}`,
		`{"type":"move","x":1,"y":1}`,
		`{"type":"rotate","placed_charm_id":"a"}`,
		`{"type":"snapshot","image":"https://example.com/a.png"}`,
		`{"type":"add","charm_id":"star","x":1,"y":1,"z":3}`,
		`not json`,
	} {
		_, err := Decode([]byte(frame))
		assert.True(t, apperr.Is(err, apperr.KindValidation), frame)
	}

	g, err := Decode([]byte(`{"type":"add","charm_id":"star","x":1,"y":1}`))
	require.NoError(t, err)
	_, err = m.Apply(context.Background(), w, g)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "add before select_model")

	apply(t, m, w, `{"type":"select_model","model_id":"bracelet-jonc"}`)
	g, _ = Decode([]byte(`{"type":"add","charm_id":"unicorn","x":1,"y":1}`))
	_, err = m.Apply(context.Background(), w, g)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestManagerScopesAndEvicts(t *testing.T) {
	m, _ := newTestManager(t, 1)
	first, err := m.Create(user)
	require.NoError(t, err)

	_, err = m.Get(first.ID(), "someone-else")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = m.Create(user)
	require.NoError(t, err)
	select {
	case <-first.Done():
	default:
		t.Fatal("evicted workspace was not torn down")
	}
	_, err = m.Get(first.ID(), user)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = first.Apply(Gesture{Kind: KindAbandon}, catalog.NewSnapshot(nil, nil))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = m.Create("")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestRemoveCartItemStopsEditing(t *testing.T) {
	m, _ := newTestManager(t, 4)
	w, _ := m.Create(user)
	apply(t, m, w, `{"type":"select_model","model_id":"bracelet-cordon"}`)
	item := apply(t, m, w, `{"type":"finish"}`).Cart[0]
	apply(t, m, w, fmt.Sprintf(`{"type":"edit","cart_item_id":%q}`, item.ID))

	require.NoError(t, w.RemoveCartItem(item.ID))
	st, err := m.State(context.Background(), w)
	require.NoError(t, err)
	assert.Nil(t, st.Model)
	assert.Empty(t, st.Cart)
	assert.True(t, apperr.Is(w.RemoveCartItem(item.ID), apperr.KindNotFound))
}
