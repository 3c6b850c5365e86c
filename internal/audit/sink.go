package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/ordergate/internal/order"
)

var ErrSinkCreation = errors.New("audit sink creation failed")

const (
	StartMarker = "==================== START OF LOG ===================="
	EndMarker   = "===================== END OF LOG ====================="
	Delimiter   = "------------------------------------------------------"
)

// Sink is an open audit log for a single dispatch run.
type Sink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// FileName returns the log file name for queue on day.
func FileName(queue string, day time.Time) string {
	return fmt.Sprintf("%s_%s.log", sanitize(queue), day.Format(time.DateOnly))
}

// Open creates dir if needed and opens the run log for appending.
func Open(dir, queue string, day time.Time) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: log directory is empty", ErrSinkCreation)
	}
	if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %w", ErrSinkCreation, err)
	}

	path := filepath.Join(dir, FileName(queue, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkCreation, err)
	}
	return &Sink{path: path, f: f}, nil
}

func (s *Sink) Path() string { return s.path }

// Start writes the start marker and the run header.
func (s *Sink) Start(runID, queue string, at time.Time) error {
	return s.write(
		StartMarker,
		fmt.Sprintf("run %s queue %s started %s", runID, queue, at.UTC().Format(time.RFC3339Nano)),
		Delimiter,
	)
}

// Sent records a successful submission with the venue's confirmation payload.
func (s *Sink) Sent(rec order.View, elapsed time.Duration, confirmation any) error {
	payload, err := json.Marshal(confirmation)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", fmt.Sprint(confirmation)))
	}
	return s.write(
		fmt.Sprintf("SENT order %s#%d %s %d elapsed_ms=%d", rec.Symbol, rec.ID, rec.Side, rec.Quantity, elapsed.Milliseconds()),
		string(payload),
		Delimiter,
	)
}

// Failed records a venue fault for rec.
func (s *Sink) Failed(rec order.View, fault error) error {
	return s.write(
		fmt.Sprintf("FAILED order %s#%d %s %d: %v", rec.Symbol, rec.ID, rec.Side, rec.Quantity, fault),
		Delimiter,
	)
}

// End writes the run summary and the end marker.
func (s *Sink) End(at time.Time, sent, failed int) error {
	return s.write(
		fmt.Sprintf("finished %s sent=%d failed=%d", at.UTC().Format(time.RFC3339Nano), sent, failed),
		EndMarker,
	)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *Sink) write(lines ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("write audit log %s: sink closed", s.path)
	}
	if _, err := s.f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("write audit log %s: %w", s.path, err)
	}
	return nil
}

func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	clean = strings.Trim(clean, ".")
	if clean == "" {
		return "queue"
	}
	return clean
}
