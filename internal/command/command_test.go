package command

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ordergate/internal/desk"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
	"github.com/mattjoyce/ordergate/internal/venue"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr error
	}{
		{line: "create-order aapl 10 BUY", want: Command{Kind: KindCreateOrder, Symbol: "aapl", Quantity: 10, Side: order.SideBuy}},
		{line: "create-order TSLA 1 sell --overwrite", want: Command{Kind: KindCreateOrder, Symbol: "TSLA", Quantity: 1, Side: order.SideSell, Overwrite: true}},
		{line: "  remove-order MSFT 3 ", want: Command{Kind: KindRemoveOrder, Symbol: "MSFT", ID: 3}},
		{line: "orders", want: Command{Kind: KindListOrders}},
		{line: "create-queue open -f", want: Command{Kind: KindCreateQueue, Queue: "open", Overwrite: true}},
		{line: "enqueue open AAPL 2", want: Command{Kind: KindEnqueue, Queue: "open", Symbol: "AAPL", ID: 2}},
		{line: "queues", want: Command{Kind: KindListQueues}},
		{line: "queues open", want: Command{Kind: KindListQueues, Queue: "open"}},
		{line: "remove-queue open", want: Command{Kind: KindRemoveQueue, Queue: "open"}},
		{line: "SEND open", want: Command{Kind: KindSend, Queue: "open"}},
		{line: "sending", want: Command{Kind: KindSending}},
		{line: "failures", want: Command{Kind: KindFailures}},
		{line: "clear-failures open", want: Command{Kind: KindClearFailures, Queue: "open"}},
		{line: "send-now GME 5 buy", want: Command{Kind: KindSendNow, Symbol: "GME", Quantity: 5, Side: order.SideBuy}},

		{line: "", wantErr: ErrEmpty},
		{line: "   ", wantErr: ErrEmpty},
		{line: "launch rockets", wantErr: ErrUnknown},
		{line: "create-order AAPL ten buy", wantErr: ErrUsage},
		{line: "create-order AAPL 1 hold", wantErr: ErrUsage},
		{line: "remove-order AAPL", wantErr: ErrUsage},
		{line: "enqueue open AAPL x", wantErr: ErrUsage},
		{line: "send", wantErr: ErrUsage},
		{line: "send a b", wantErr: ErrUsage},
		{line: "orders extra", wantErr: ErrUsage},
		{line: "send open --overwrite", wantErr: ErrUsage},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindsCoverEveryVerb(t *testing.T) {
	ks := Kinds()
	assert.Len(t, ks, len(kinds))
	for _, k := range ks {
		cmd, err := Parse(k.String())
		if err != nil {
			assert.ErrorIs(t, err, ErrUsage, k.String())
			assert.Contains(t, err.Error(), k.Usage())
			continue
		}
		assert.Equal(t, k, cmd.Kind)
	}
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func run(t *testing.T, d *desk.Desk, line string) string {
	t.Helper()
	cmd, err := Parse(line)
	require.NoError(t, err, line)
	out, err := Execute(context.Background(), d, cmd)
	require.NoError(t, err, line)
	return out
}

func waitIdle(t *testing.T, d *desk.Desk) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestExecuteSession(t *testing.T) {
	d := desk.New(venue.NewPaper(0, "GME"), desk.Options{LogDir: t.TempDir()})

	assert.Equal(t, "no orders\n", run(t, d, "orders"))
	assert.Contains(t, run(t, d, "create-order aapl 10 buy"), "created order AAPL#1")
	assert.Contains(t, run(t, d, "create-order GME 2 sell"), "created order GME#1")
	assert.Contains(t, run(t, d, "create-queue open"), string(queue.Created))
	assert.Contains(t, run(t, d, "create-queue open"), string(queue.Cancelled))
	assert.Contains(t, run(t, d, "enqueue open AAPL 1"), "queued AAPL#1")
	run(t, d, "enqueue open gme 1")

	out := run(t, d, "queues")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "2")
	assert.Contains(t, run(t, d, "queues open"), "GME#1")

	assert.Contains(t, run(t, d, "send open"), `dispatching "open"`)
	waitIdle(t, d)

	assert.Contains(t, run(t, d, "sending"), "sent=1 failed=1 completed")
	out = run(t, d, "failures")
	assert.Contains(t, out, "open:")
	assert.Contains(t, out, "symbol not tradable")
	assert.Contains(t, run(t, d, "orders"), "sent")
	assert.Equal(t, "cleared 1 failures for \"open\"\n", run(t, d, "clear-failures open"))
	assert.Equal(t, "no failures\n", run(t, d, "failures"))
}

func TestExecuteErrors(t *testing.T) {
	d := desk.New(venue.NewPaper(0), desk.Options{LogDir: t.TempDir()})
	ctx := context.Background()

	_, err := Execute(ctx, d, Command{Kind: KindSend, Queue: "nope"})
	assert.Error(t, err)
	_, err = Execute(ctx, d, Command{Kind: KindRemoveOrder, Symbol: "AAPL", ID: 1})
	assert.ErrorIs(t, err, order.ErrNotFound)
	_, err = Execute(ctx, d, Command{Kind: KindCreateOrder, Symbol: "AAPL", Quantity: 0, Side: order.SideBuy})
	assert.ErrorIs(t, err, order.ErrInvalidOrder)
	_, err = Execute(ctx, d, Command{Kind: KindListQueues, Queue: "nope"})
	assert.ErrorIs(t, err, queue.ErrNotFound)
	_, err = Execute(ctx, d, Command{})
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestSendNowReplacesInstantQueue(t *testing.T) {
	paper := venue.NewPaper(0)
	d := desk.New(paper, desk.Options{LogDir: t.TempDir()})

	assert.Contains(t, run(t, d, "send-now tsla 1 buy"), InstantQueue)
	waitIdle(t, d)
	assert.Contains(t, run(t, d, "send-now TSLA 2 sell"), InstantQueue)
	waitIdle(t, d)

	submitted := paper.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, 2, submitted[1].Quantity)
	v, err := d.Order("TSLA", 2)
	require.NoError(t, err)
	assert.Equal(t, order.StatusSent, v.Status)
}
