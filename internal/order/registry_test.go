package order

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignsPerSymbolIDs(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	id, err := r.Create("aapl", 10, SideBuy, false)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = r.Create("AAPL", 5, SideSell, false)
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	id, err = r.Create("MSFT", 1, SideBuy, false)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	rec, err := r.Lookup("aapl", 1)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, StatusPending, rec.Status())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		symbol string
		qty    int
		side   Side
	}{
		{name: "zero quantity", symbol: "AAPL", qty: 0, side: SideBuy},
		{name: "negative quantity", symbol: "AAPL", qty: -3, side: SideBuy},
		{name: "empty symbol", symbol: "  ", qty: 1, side: SideBuy},
		{name: "bad side", symbol: "AAPL", qty: 1, side: Side("hold")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Create(tt.symbol, tt.qty, tt.side, false)
			assert.ErrorIs(t, err, ErrInvalidOrder)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for range 3 {
		_, err := r.Create("TSLA", 1, SideBuy, false)
		require.NoError(t, err)
	}
	require.NoError(t, r.Remove("TSLA", 3))
	require.NoError(t, r.Remove("TSLA", 2))

	id, err := r.Create("TSLA", 1, SideBuy, false)
	require.NoError(t, err)
	assert.Equal(t, 4, id)
}

func TestRemoveAndLookupNotFound(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Create("AAPL", 1, SideBuy, false)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Remove("AAPL", 9), ErrNotFound)
	assert.ErrorIs(t, r.Remove("NOPE", 1), ErrNotFound)

	_, err = r.Lookup("NOPE", 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, r.Remove("AAPL", 1))
	_, err = r.Lookup("AAPL", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllIsOrderedAndRestartable(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, _ = r.Create("MSFT", 2, SideSell, false)
	_, _ = r.Create("AAPL", 1, SideBuy, false)
	_, _ = r.Create("AAPL", 3, SideBuy, false)

	first := slices.Collect(r.All())
	second := slices.Collect(r.All())
	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, Ref{Symbol: "AAPL", ID: 1}, Ref{Symbol: first[0].Symbol, ID: first[0].ID})
	assert.Equal(t, Ref{Symbol: "AAPL", ID: 2}, Ref{Symbol: first[1].Symbol, ID: first[1].ID})
	assert.Equal(t, "MSFT", first[2].Symbol)

	// Early break must not leak or panic.
	for range r.All() {
		break
	}
}

func TestStatusTransitionsAreTerminal(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	id, _ := r.Create("AAPL", 1, SideBuy, false)
	rec, _ := r.Lookup("AAPL", id)

	assert.True(t, rec.MarkFailed("insufficient buying power"))
	assert.False(t, rec.MarkSent(), "failed is terminal")
	assert.False(t, rec.MarkFailed("second fault"), "failed is terminal")

	v := rec.View()
	assert.Equal(t, StatusFailed, v.Status)
	assert.Equal(t, "insufficient buying power", v.FailureReason)
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, _ = r.Create("AAPL", 1, SideBuy, false)
	id, _ := r.Create("AAPL", 2, SideSell, false)
	_, _ = r.Create("AAPL", 3, SideSell, false)
	require.NoError(t, r.Remove("AAPL", 3))
	rec, _ := r.Lookup("AAPL", id)
	rec.MarkSent()

	snap := r.Snapshot()

	restored := NewRegistry()
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, slices.Collect(r.All()), slices.Collect(restored.All()))

	next, err := restored.Create("AAPL", 1, SideBuy, false)
	require.NoError(t, err)
	assert.Equal(t, 4, next)
}

func TestRestoreRejectsMalformed(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Restore(RegistrySnapshot{Orders: []View{{ID: 1, Symbol: "AAPL", Quantity: 0, Side: SideBuy}}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestConcurrentCreateUniqueIDs(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int]bool{}
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Create("SPY", 1, SideBuy, false)
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 50)
}

func TestParseSide(t *testing.T) {
	t.Parallel()

	s, err := ParseSide(" BUY ")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)

	_, err = ParseSide("short")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}
