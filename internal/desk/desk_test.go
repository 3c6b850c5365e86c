package desk

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/ledger"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
	"github.com/mattjoyce/ordergate/internal/state"
	"github.com/mattjoyce/ordergate/internal/storage"
	"github.com/mattjoyce/ordergate/internal/venue"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func newDesk(t *testing.T, client venue.Client, store *state.Store) *Desk {
	t.Helper()
	return New(client, Options{
		LogDir: filepath.Join(t.TempDir(), "logs"),
		Hub:    events.NewHub(64),
		Store:  store,
	})
}

func wait(t *testing.T, d *Desk) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatchOutcomesVisibleThroughRegistry(t *testing.T) {
	t.Parallel()

	d := newDesk(t, venue.NewPaper(0, "GME"), nil)
	a, err := d.CreateOrder("aapl", 5, order.SideBuy, false)
	require.NoError(t, err)
	g, err := d.CreateOrder("GME", 1, order.SideSell, false)
	require.NoError(t, err)

	res, err := d.CreateQueue("open", false)
	require.NoError(t, err)
	assert.Equal(t, queue.Created, res)
	require.NoError(t, d.Enqueue("open", "AAPL", a))
	require.NoError(t, d.Enqueue("open", "gme", g))

	_, err = d.Dispatch("open")
	require.NoError(t, err)
	wait(t, d)

	v, err := d.Order("AAPL", a)
	require.NoError(t, err)
	assert.Equal(t, order.StatusSent, v.Status)

	v, err = d.Order("GME", g)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, v.Status)
	assert.Contains(t, v.FailureReason, "symbol not tradable")

	failed := d.Failures("open")
	require.Len(t, failed, 1)
	assert.Equal(t, "GME", failed[0].Symbol)
	assert.Equal(t, []string{"open"}, d.FailureQueues())
	assert.Empty(t, d.QueueNames())

	assert.Equal(t, 1, d.ClearFailures("open"))
	assert.Empty(t, d.Failures("open"))
}

func TestRemovedOrderStillDispatchesFromQueue(t *testing.T) {
	t.Parallel()

	paper := venue.NewPaper(0)
	d := newDesk(t, paper, nil)
	id, err := d.CreateOrder("MSFT", 2, order.SideBuy, false)
	require.NoError(t, err)
	_, _ = d.CreateQueue("q", false)
	require.NoError(t, d.Enqueue("q", "MSFT", id))

	require.NoError(t, d.RemoveOrder("MSFT", id))
	_, err = d.Order("MSFT", id)
	assert.ErrorIs(t, err, order.ErrNotFound)

	_, err = d.Dispatch("q")
	require.NoError(t, err)
	wait(t, d)

	require.Len(t, paper.Submitted(), 1)
	assert.Equal(t, "MSFT", paper.Submitted()[0].Symbol)
}

func TestEnqueueErrors(t *testing.T) {
	t.Parallel()

	d := newDesk(t, venue.NewPaper(0), nil)
	id, _ := d.CreateOrder("AAPL", 1, order.SideBuy, false)

	assert.ErrorIs(t, d.Enqueue("missing", "AAPL", id), queue.ErrNotFound)
	_, _ = d.CreateQueue("q", false)
	assert.ErrorIs(t, d.Enqueue("q", "AAPL", 99), order.ErrNotFound)

	n, err := d.RemoveQueue("q")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = d.RemoveQueue("q")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestSentOrderCannotBeQueuedAgain(t *testing.T) {
	t.Parallel()

	paper := venue.NewPaper(0)
	d := newDesk(t, paper, nil)
	id, _ := d.CreateOrder("AAPL", 1, order.SideBuy, false)
	_, _ = d.CreateQueue("q", false)
	require.NoError(t, d.Enqueue("q", "AAPL", id))
	assert.ErrorIs(t, d.Enqueue("q", "AAPL", id), order.ErrInvalidOrder)

	_, err := d.Dispatch("q")
	require.NoError(t, err)
	wait(t, d)

	_, _ = d.CreateQueue("again", false)
	assert.ErrorIs(t, d.Enqueue("again", "AAPL", id), order.ErrInvalidOrder)
	contents, err := d.QueueContents("again")
	require.NoError(t, err)
	assert.Empty(t, contents)
	assert.Len(t, paper.Submitted(), 1)
	assert.Empty(t, d.FailureQueues())
}

func TestSnapshotRestoreRelinksRecords(t *testing.T) {
	t.Parallel()

	src := newDesk(t, venue.NewPaper(0), nil)
	id, _ := src.CreateOrder("AAPL", 3, order.SideBuy, false)
	_, _ = src.CreateQueue("q", false)
	require.NoError(t, src.Enqueue("q", "AAPL", id))
	snap := src.Snapshot()

	dst := newDesk(t, venue.NewPaper(0), nil)
	require.NoError(t, dst.Restore(snap))
	assert.Equal(t, slices.Collect(src.Orders()), slices.Collect(dst.Orders()))
	assert.Equal(t, []string{"q"}, dst.QueueNames())

	_, err := dst.Dispatch("q")
	require.NoError(t, err)
	wait(t, dst)

	v, err := dst.Order("AAPL", id)
	require.NoError(t, err)
	assert.Equal(t, order.StatusSent, v.Status, "restored queue must share the registry record")
}

func TestRestoreFailureLeavesDeskUntouched(t *testing.T) {
	t.Parallel()

	d := newDesk(t, venue.NewPaper(0), nil)
	id, _ := d.CreateOrder("AAPL", 2, order.SideBuy, false)
	_, _ = d.CreateQueue("keep", false)
	require.NoError(t, d.Enqueue("keep", "AAPL", id))
	before := slices.Collect(d.Orders())

	tsla := order.View{ID: 1, Symbol: "TSLA", Quantity: 5, Side: order.SideSell, Status: order.StatusPending}
	tests := []struct {
		name    string
		snap    state.Snapshot
		wantErr error
	}{
		{
			name: "blank queue name",
			snap: state.Snapshot{
				Orders: order.RegistrySnapshot{Orders: []order.View{tsla}, LastID: map[string]int{"TSLA": 1}},
				Queues: queue.Snapshot{"": {tsla}},
			},
			wantErr: queue.ErrInvalidName,
		},
		{
			name: "malformed ledger entry",
			snap: state.Snapshot{
				Orders:   order.RegistrySnapshot{Orders: []order.View{tsla}},
				Queues:   queue.Snapshot{"fresh": {tsla}},
				Failures: ledger.Snapshot{"fresh": {{ID: 0, Symbol: "MSFT", Quantity: 1, Side: order.SideBuy}}},
			},
			wantErr: order.ErrInvalidOrder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, d.Restore(tt.snap), tt.wantErr)
			assert.Equal(t, before, slices.Collect(d.Orders()))
			assert.Equal(t, []string{"keep"}, d.QueueNames())
			_, err := d.Order("TSLA", 1)
			assert.ErrorIs(t, err, order.ErrNotFound)
			contents, err := d.QueueContents("keep")
			require.NoError(t, err)
			require.Len(t, contents, 1)
			assert.Equal(t, "AAPL", contents[0].Symbol)
		})
	}

	// The untouched queue still drains against the original record.
	_, err := d.Dispatch("keep")
	require.NoError(t, err)
	wait(t, d)
	v, err := d.Order("AAPL", id)
	require.NoError(t, err)
	assert.Equal(t, order.StatusSent, v.Status)
}

func TestSaveLoadThroughStore(t *testing.T) {
	t.Parallel()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ordergate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := state.NewStore(db, nil)
	ctx := context.Background()

	src := newDesk(t, venue.NewPaper(0, "GME"), store)
	require.NoError(t, src.Load(ctx), "empty store is not an error")
	g, _ := src.CreateOrder("GME", 1, order.SideBuy, false)
	_, _ = src.CreateQueue("q", false)
	require.NoError(t, src.Enqueue("q", "GME", g))
	_, err = src.Dispatch("q")
	require.NoError(t, err)
	wait(t, src)
	require.NoError(t, src.Save(ctx))

	runs, err := src.Runs(ctx, "q", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Failed)

	dst := newDesk(t, venue.NewPaper(0), store)
	require.NoError(t, dst.Load(ctx))
	failed := dst.Failures("q")
	require.Len(t, failed, 1)
	assert.Equal(t, order.StatusFailed, failed[0].Status)

	next, err := dst.CreateOrder("GME", 1, order.SideBuy, false)
	require.NoError(t, err)
	assert.Equal(t, g+1, next)
}

type blockingVenue struct{ release chan struct{} }

func (b blockingVenue) Submit(_ context.Context, o venue.Order) (venue.Confirmation, error) {
	<-b.release
	return venue.Confirmation{ID: o.ClientOrderID}, nil
}

func TestRestoreRefusedWhileDispatching(t *testing.T) {
	t.Parallel()

	bv := blockingVenue{release: make(chan struct{})}
	d := newDesk(t, bv, nil)
	id, _ := d.CreateOrder("AAPL", 1, order.SideBuy, false)
	_, _ = d.CreateQueue("q", false)
	require.NoError(t, d.Enqueue("q", "AAPL", id))
	_, err := d.Dispatch("q")
	require.NoError(t, err)

	assert.True(t, d.Dispatching())
	assert.ErrorIs(t, d.Restore(state.Snapshot{}), ErrDispatchActive)

	st := d.Status()
	assert.True(t, st.Dispatch.Active)
	assert.Equal(t, 1, st.Orders)

	close(bv.release)
	wait(t, d)
	assert.NotNil(t, d.Status().LastSubmit)
}
