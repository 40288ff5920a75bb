package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rxmesh/core"
)

func TestInMemoryStore_Create(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Create("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, 1, store.Len())

	_, err = store.Create("s1")
	assert.Error(t, err)
}

func TestInMemoryStore_CreateGeneratesID(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Create("")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
}

func TestInMemoryStore_GetReturnsSameInstance(t *testing.T) {
	store := NewInMemoryStore()

	created, err := store.Create("s1")
	require.NoError(t, err)
	created.SetState("member_id", "DEMO123456")

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Same(t, created, got)

	// State written through one handle is visible through the other.
	v, ok := got.GetState("member_id")
	assert.True(t, ok)
	assert.Equal(t, "DEMO123456", v)
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Create("s1")
	require.NoError(t, err)

	assert.NoError(t, store.Delete("s1"))
	assert.Equal(t, 0, store.Len())

	_, err = store.Get("s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// Deleting an unknown id is not an error.
	assert.NoError(t, store.Delete("s1"))
}
