package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/ordergate/internal/order"
)

func TestSinkWritesMarkersAndEntries(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	day := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	s, err := Open(dir, "morning", day)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if want := filepath.Join(dir, "morning_2026-03-14.log"); s.Path() != want {
		t.Fatalf("Path = %q, want %q", s.Path(), want)
	}

	rec := order.View{ID: 1, Symbol: "AAPL", Quantity: 10, Side: order.SideBuy}
	if err := s.Start("run-1", "morning", day); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Sent(rec, 12*time.Millisecond, map[string]string{"id": "abc"}); err != nil {
		t.Fatalf("Sent: %v", err)
	}
	if err := s.Failed(order.View{ID: 2, Symbol: "MSFT", Quantity: 1, Side: order.SideSell}, errors.New("rejected")); err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if err := s.End(day, 1, 1); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		StartMarker,
		"run run-1 queue morning",
		"SENT order AAPL#1 buy 10 elapsed_ms=12",
		`{"id":"abc"}`,
		"FAILED order MSFT#2 sell 1: rejected",
		"sent=1 failed=1",
		EndMarker,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, Delimiter) != 3 {
		t.Fatalf("expected 3 delimiters, got %d:\n%s", strings.Count(out, Delimiter), out)
	}
	if !strings.HasPrefix(out, StartMarker) || !strings.HasSuffix(strings.TrimSpace(out), EndMarker) {
		t.Fatalf("markers out of place:\n%s", out)
	}
}

func TestOpenIsIdempotentOnExistingDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	day := time.Now()
	for range 2 {
		s, err := Open(dir, "q", day)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := s.Start("r", "q", day); err != nil {
			t.Fatalf("Start: %v", err)
		}
		_ = s.Close()
	}
	b, _ := os.ReadFile(filepath.Join(dir, FileName("q", day)))
	if strings.Count(string(b), StartMarker) != 2 {
		t.Fatalf("expected two runs appended, got:\n%s", b)
	}
}

func TestOpenMissingParentFails(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "missing", "logs")
	if _, err := Open(dir, "q", time.Now()); !errors.Is(err, ErrSinkCreation) {
		t.Fatalf("expected ErrSinkCreation, got %v", err)
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), "q", time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Close()
	if err := s.End(time.Now(), 0, 0); err == nil {
		t.Fatalf("expected error writing to closed sink")
	}
}

func TestFileNameSanitizesQueue(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := FileName("../etc/passwd", day); got != "_etc_passwd_2026-01-02.log" {
		t.Fatalf("FileName = %q", got)
	}
	if got := FileName("...", day); got != "queue_2026-01-02.log" {
		t.Fatalf("FileName = %q", got)
	}
}
