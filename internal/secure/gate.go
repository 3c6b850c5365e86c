package secure

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword = errors.New("weak password")
	ErrBadPassword  = errors.New("incorrect password")
	ErrLockedOut    = errors.New("locked out after repeated failures")
)

// Level is the gate's alert tier. It rises with consecutive failed logins.
type Level string

const (
	Green  Level = "green"
	Yellow Level = "yellow"
	Red    Level = "red"
)

const (
	yellowAfter   = 10
	redAfter      = 20
	yellowLockout = 5 * time.Minute
	redLockout    = 30 * time.Minute
	minPassword   = 10
)

// Gate checks passwords against a bcrypt hash. From yellowAfter consecutive
// failures every further failure locks the gate for yellowLockout; from
// redAfter, for redLockout. A successful login resets the tier.
type Gate struct {
	hash []byte
	now  func() time.Time

	mu          sync.Mutex
	failures    int
	level       Level
	lockedUntil time.Time
}

// NewGate returns a gate for the given bcrypt hash. An empty hash disables
// the password check.
func NewGate(hash string) *Gate {
	return &Gate{hash: []byte(hash), now: time.Now, level: Green}
}

func (g *Gate) Enabled() bool { return len(g.hash) > 0 }

// Login returns nil when password is accepted.
func (g *Gate) Login(password string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Before(g.lockedUntil) {
		return fmt.Errorf("%w: retry in %s", ErrLockedOut, g.lockedUntil.Sub(now).Round(time.Second))
	}
	if !g.Enabled() {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err == nil {
		g.failures = 0
		g.level = Green
		g.lockedUntil = time.Time{}
		return nil
	}

	g.failures++
	switch {
	case g.failures >= redAfter:
		g.level = Red
		g.lockedUntil = now.Add(redLockout)
	case g.failures >= yellowAfter:
		g.level = Yellow
		g.lockedUntil = now.Add(yellowLockout)
	}
	return ErrBadPassword
}

// Level returns the current tier and consecutive failure count.
func (g *Gate) Level() (Level, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level, g.failures
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(pw string) error {
	if len(pw) < minPassword {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPassword)
	}
	if strings.IndexFunc(pw, func(r rune) bool { return !isASCIILetter(r) }) < 0 {
		return fmt.Errorf("%w: only letters", ErrWeakPassword)
	}
	if strings.IndexFunc(pw, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return fmt.Errorf("%w: only digits", ErrWeakPassword)
	}
	return nil
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// HashPassword validates pw and returns its bcrypt hash.
func HashPassword(pw string) (string, error) {
	if err := ValidatePassword(pw); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// GeneratePassword returns a random password of length n. n <= 0 picks a
// length between 15 and 40.
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		extra, err := rand.Int(rand.Reader, big.NewInt(26))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		n = 15 + int(extra.Int64())
	}
	limit := big.NewInt(int64(len(passwordAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(passwordAlphabet[i.Int64()])
	}
	return b.String(), nil
}
