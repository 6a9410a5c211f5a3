package state

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lendledger/storage"
)

func TestOverlayBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("b"), []byte("2")))

	o := NewOverlay(db)
	require.NoError(t, o.Put([]byte("a"), []byte("10")))
	require.NoError(t, o.Delete([]byte("b")))
	require.NoError(t, o.Put([]byte("c"), []byte("3")))
	require.Equal(t, 3, o.Dirty())

	got, err := o.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("10"), got)
	_, err = o.Get([]byte("b"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	base, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), base)

	require.NoError(t, o.Commit())
	require.Zero(t, o.Dirty())

	base, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("10"), base)
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, storage.ErrNotFound)
	base, err = db.Get([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), base)
}

func TestOverlayDiscard(t *testing.T) {
	db := storage.NewMemDB()
	o := NewOverlay(db)
	require.NoError(t, o.Put([]byte("k"), []byte("v")))
	o.Discard()

	_, err := o.Get([]byte("k"))
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, o.Commit())
	_, err = db.Get([]byte("k"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManagerOverOverlay(t *testing.T) {
	db := storage.NewMemDB()
	o := NewOverlay(db)
	m := NewManager(o)
	alice := testAddress(9)

	require.NoError(t, m.Credit(usd, alice, decimal.NewFromInt(5)))
	committed := NewManager(db)
	bal, err := committed.Balance(usd, alice)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	require.NoError(t, o.Commit())
	bal, err = committed.Balance(usd, alice)
	require.NoError(t, err)
	require.Equal(t, "5", bal.String())
}
