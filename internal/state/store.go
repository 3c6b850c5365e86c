package state

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/ordergate/internal/ledger"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
)

const (
	SnapshotVersion = 1
	// DefaultMaxSnapshotBytes caps a single stored snapshot.
	DefaultMaxSnapshotBytes = 16 << 20
)

var (
	ErrNoSnapshot = errors.New("no snapshot stored")
	ErrSealed     = errors.New("snapshot is sealed and no encryption key is configured")
	ErrCorrupt    = errors.New("snapshot digest mismatch")
)

// Snapshot is the full serializable desk state.
type Snapshot struct {
	Version  int                    `json:"version"`
	SavedAt  time.Time              `json:"saved_at"`
	Orders   order.RegistrySnapshot `json:"orders"`
	Queues   queue.Snapshot         `json:"queues"`
	Failures ledger.Snapshot        `json:"failures"`
}

// Sealer encrypts stored snapshot bodies.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type Store struct {
	db       *sql.DB
	sealer   Sealer
	maxBytes int
}

// NewStore returns a store on db. sealer may be nil to store plaintext.
func NewStore(db *sql.DB, sealer Sealer) *Store {
	return &Store{
		db:       db,
		sealer:   sealer,
		maxBytes: DefaultMaxSnapshotBytes,
	}
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if len(body) > s.maxBytes {
		return fmt.Errorf("snapshot exceeds max size (%d bytes)", s.maxBytes)
	}

	sealed := 0
	if s.sealer != nil {
		if body, err = s.sealer.Seal(body); err != nil {
			return fmt.Errorf("seal snapshot: %w", err)
		}
		sealed = 1
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO desk_snapshot(id, sealed, digest, body, saved_at)
VALUES(1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  sealed = excluded.sealed,
  digest = excluded.digest,
  body = excluded.body,
  saved_at = excluded.saved_at;
`, sealed, Digest(body), body, snap.SavedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	var (
		sealed int
		digest string
		body   []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT sealed, digest, body FROM desk_snapshot WHERE id = 1;").Scan(&sealed, &digest, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	if Digest(body) != digest {
		return Snapshot{}, ErrCorrupt
	}

	if sealed == 1 {
		if s.sealer == nil {
			return Snapshot{}, ErrSealed
		}
		if body, err = s.sealer.Open(body); err != nil {
			return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}

// Digest is the hex BLAKE3 digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
