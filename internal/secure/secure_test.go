package secure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testGate(t *testing.T, pw string) (*Gate, *time.Time) {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g := NewGate(string(h))
	g.now = func() time.Time { return now }
	return g, &now
}

func TestGateAcceptsCorrectPassword(t *testing.T) {
	t.Parallel()

	g, _ := testGate(t, "correct-horse-1")
	assert.NoError(t, g.Login("correct-horse-1"))
	assert.ErrorIs(t, g.Login("wrong"), ErrBadPassword)
	level, failures := g.Level()
	assert.Equal(t, Green, level)
	assert.Equal(t, 1, failures)
}

func TestGateEscalatesTiers(t *testing.T) {
	t.Parallel()

	g, now := testGate(t, "correct-horse-1")
	for range yellowAfter - 1 {
		require.ErrorIs(t, g.Login("nope"), ErrBadPassword)
	}
	level, _ := g.Level()
	assert.Equal(t, Green, level)

	require.ErrorIs(t, g.Login("nope"), ErrBadPassword)
	level, _ = g.Level()
	assert.Equal(t, Yellow, level)

	// Locked even with the right password.
	assert.ErrorIs(t, g.Login("correct-horse-1"), ErrLockedOut)

	for g.failures < redAfter {
		*now = now.Add(yellowLockout)
		require.ErrorIs(t, g.Login("nope"), ErrBadPassword)
	}
	level, _ = g.Level()
	assert.Equal(t, Red, level)

	*now = now.Add(yellowLockout)
	assert.ErrorIs(t, g.Login("correct-horse-1"), ErrLockedOut)

	*now = now.Add(redLockout)
	require.NoError(t, g.Login("correct-horse-1"))
	level, failures := g.Level()
	assert.Equal(t, Green, level)
	assert.Zero(t, failures)
}

func TestGateDisabledWithoutHash(t *testing.T) {
	t.Parallel()

	g := NewGate("")
	assert.False(t, g.Enabled())
	assert.NoError(t, g.Login("anything"))
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	for _, pw := range []string{"short1", "onlyletterspassword", "123456789012"} {
		assert.ErrorIs(t, ValidatePassword(pw), ErrWeakPassword, pw)
	}
	assert.NoError(t, ValidatePassword("letters-and-1234"))

	h, err := HashPassword("letters-and-1234")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("letters-and-1234")))
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	pw, err := GeneratePassword(24)
	require.NoError(t, err)
	assert.Len(t, pw, 24)

	for range 20 {
		pw, err := GeneratePassword(0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(pw), 15)
		assert.LessOrEqual(t, len(pw), 40)
	}
}

func TestSealRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := GenerateKey()
	require.NoError(t, err)
	key, err := ParseKey(encoded)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"orders":[]}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "orders")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"orders":[]}`, string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	t.Parallel()

	_, err := ParseKey("c2hvcnQ=")
	assert.Error(t, err)
	_, err = ParseKey("%%%")
	assert.Error(t, err)
}
