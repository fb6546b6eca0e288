package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("")
	_, err := s.Token()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.SetToken("abc"))
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, s.ClearToken())
	_, err = s.Token()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestKeyringStore(t *testing.T) {
	s := NewKeyringStore(keyring.NewArrayKeyring(nil))

	_, err := s.Token()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.SetToken("bearer-123"))
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "bearer-123", tok)

	require.NoError(t, s.ClearToken())
	require.NoError(t, s.ClearToken(), "clearing twice must succeed")
	_, err = s.Token()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestKeyringStoreBlankTokenIsMissing(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: TokenKey, Data: []byte("  ")}})
	_, err := NewKeyringStore(ring).Token()
	assert.ErrorIs(t, err, ErrNoToken)
}
