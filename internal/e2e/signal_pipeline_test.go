package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/ordergate/internal/api"
	"github.com/mattjoyce/ordergate/internal/config"
	"github.com/mattjoyce/ordergate/internal/desk"
	"github.com/mattjoyce/ordergate/internal/dispatch"
	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/scheduler"
	"github.com/mattjoyce/ordergate/internal/secure"
	"github.com/mattjoyce/ordergate/internal/state"
	"github.com/mattjoyce/ordergate/internal/storage"
	"github.com/mattjoyce/ordergate/internal/venue"
	"github.com/mattjoyce/ordergate/internal/webhook"
)

const signalSecret = "e2e-signal-secret-0123"

func newSealedStore(t *testing.T, db *sql.DB, key string) *state.Store {
	t.Helper()
	raw, err := secure.ParseKey(key)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	sealer, err := secure.NewSealer(raw)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	return state.NewStore(db, sealer)
}

// TestSignalToScheduledDispatch drives a signed signal into a queue, lets a
// schedule send it, then restores the outcome into a fresh desk.
func TestSignalToScheduledDispatch(t *testing.T) {
	tmpDir := t.TempDir()
	logDir := filepath.Join(tmpDir, "logs")

	log.Setup("ERROR", "json")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := storage.OpenSQLite(ctx, filepath.Join(tmpDir, "ordergate.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	key, err := secure.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	hub := events.NewHub(256)
	dk := desk.New(venue.NewPaper(0, "GME"), desk.Options{
		LogDir: logDir,
		Hub:    hub,
		Store:  newSealedStore(t, db, key),
	})
	finished, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	// 1. Signal arrives and is queued without dispatch.
	hooks := webhook.New(webhook.Config{Endpoints: []webhook.EndpointConfig{{
		Path:   "/signals/momentum",
		Queue:  "signals",
		Secret: signalSecret,
	}}}, dk, hub, log.WithComponent("webhook"))
	hookSrv := httptest.NewServer(hooks.Handler())
	defer hookSrv.Close()

	body := `{"orders":[{"symbol":"aapl","quantity":10,"side":"buy"},{"symbol":"gme","quantity":3,"side":"sell"}]}`
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, hookSrv.URL+"/signals/momentum", strings.NewReader(body))
	req.Header.Set(webhook.DefaultSignatureHeader, webhook.Sign([]byte(body), signalSecret))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post signal: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("signal status = %d, want 202", resp.StatusCode)
	}
	queued, err := dk.QueueContents("signals")
	if err != nil || len(queued) != 2 {
		t.Fatalf("queue contents = %v, %v", queued, err)
	}

	// 2. Schedule picks up the queue on its next tick.
	sched, err := scheduler.New([]config.ScheduleConfig{{Name: "sweep", Queue: "signals", Every: time.Second}}, dk, hub, log.Get())
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	go sched.Start(schedCtx)

	waitForEvent(t, ctx, finished, events.DispatchCompleted)
	stopSched()
	if err := dk.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	assertStatus(t, dk, "AAPL", 1, order.StatusSent)
	assertStatus(t, dk, "GME", 1, order.StatusFailed)
	if got := dk.Failures("signals"); len(got) != 1 || got[0].Symbol != "GME" {
		t.Errorf("failures = %+v", got)
	}

	// 3. Run history is visible over the API.
	apiSrv := httptest.NewServer(api.New(api.Config{APIKey: "admin-key"}, dk, log.WithComponent("api")).Handler())
	defer apiSrv.Close()
	runs := fetchRuns(t, ctx, apiSrv.URL, "admin-key")
	if len(runs) != 1 || runs[0].Queue != "signals" || runs[0].Sent != 1 || runs[0].Failed != 1 {
		t.Fatalf("runs = %+v", runs)
	}

	// 4. The sealed snapshot restores into a new desk.
	if err := dk.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	restored := desk.New(venue.NewPaper(0), desk.Options{LogDir: logDir, Store: newSealedStore(t, db, key)})
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	assertStatus(t, restored, "AAPL", 1, order.StatusSent)
	assertStatus(t, restored, "GME", 1, order.StatusFailed)
	if got := restored.Failures("signals"); len(got) != 1 {
		t.Errorf("restored failures = %+v", got)
	}
}

func waitForEvent(t *testing.T, ctx context.Context, ch <-chan events.Event, eventType string) {
	t.Helper()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event stream closed before %s", eventType)
			}
			if ev.Type == eventType {
				return
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func assertStatus(t *testing.T, d *desk.Desk, symbol string, id int, want order.Status) {
	t.Helper()
	v, err := d.Order(symbol, id)
	if err != nil {
		t.Fatalf("order %s#%d: %v", symbol, id, err)
	}
	if v.Status != want {
		t.Errorf("order %s#%d status = %s, want %s", symbol, id, v.Status, want)
	}
}

func fetchRuns(t *testing.T, ctx context.Context, baseURL, key string) []dispatch.RunResult {
	t.Helper()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/dispatch/runs?queue=signals", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", key))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("runs status = %d", resp.StatusCode)
	}
	var runs []dispatch.RunResult
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	return runs
}
