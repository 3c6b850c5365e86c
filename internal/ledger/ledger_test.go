package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ordergate/internal/order"
)

func failedRecord(t *testing.T, reg *order.Registry, symbol, reason string) *order.Record {
	t.Helper()
	id, err := reg.Create(symbol, 1, order.SideSell, false)
	require.NoError(t, err)
	rec, err := reg.Lookup(symbol, id)
	require.NoError(t, err)
	rec.MarkFailed(reason)
	return rec
}

func TestRecordAccumulatesAcrossRuns(t *testing.T) {
	t.Parallel()

	reg := order.NewRegistry()
	l := New()

	l.Record("eod", failedRecord(t, reg, "AAPL", "market closed"))
	l.Record("eod", failedRecord(t, reg, "MSFT", "rejected"))
	l.Record("open", failedRecord(t, reg, "TSLA", "halted"))

	got := l.List("eod")
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "market closed", got[0].FailureReason)
	assert.Equal(t, order.StatusFailed, got[1].Status)

	// Listing is read-only.
	assert.Len(t, l.List("eod"), 2)
	assert.Equal(t, []string{"eod", "open"}, l.Names())
	assert.Equal(t, 3, l.Count())
}

func TestListUnknownQueueIsEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, New().List("nothing"))
}

func TestClear(t *testing.T) {
	t.Parallel()

	reg := order.NewRegistry()
	l := New()
	l.Record("eod", failedRecord(t, reg, "AAPL", "x"))

	assert.Equal(t, 1, l.Clear("eod"))
	assert.Empty(t, l.List("eod"))
	assert.Equal(t, 0, l.Clear("eod"))
	assert.Empty(t, l.Names())
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	reg := order.NewRegistry()
	l := New()
	l.Record("eod", failedRecord(t, reg, "AAPL", "x"))
	snap := l.Snapshot()

	restored := New()
	require.NoError(t, restored.Restore(snap, order.FromView))
	assert.Equal(t, l.List("eod"), restored.List("eod"))
}
