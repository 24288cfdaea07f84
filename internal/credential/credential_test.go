package credential_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"stockbar/internal/credential"
)

// keyring's mock provider is process-global, so these tests run serially.

func TestAPIKey_Found(t *testing.T) {
	// Arrange
	keyring.MockInit()
	require.NoError(t, keyring.Set("twelvedata_api_key", "alice", "  abc123\n"))

	// Act
	key, err := credential.Keychain{User: "alice"}.APIKey()

	// Assert
	require.NoError(t, err)
	require.Equal(t, "abc123", key)
}

func TestAPIKey_CustomService(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("other", "bob", "k"))

	key, err := credential.Keychain{Service: "other", User: "bob"}.APIKey()

	require.NoError(t, err)
	require.Equal(t, "k", key)
}

func TestAPIKey_Missing(t *testing.T) {
	keyring.MockInit()

	_, err := credential.Keychain{User: "alice"}.APIKey()

	require.ErrorIs(t, err, credential.ErrNotFound)
}

func TestAPIKey_Empty(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("twelvedata_api_key", "alice", "   "))

	_, err := credential.Keychain{User: "alice"}.APIKey()

	require.ErrorIs(t, err, credential.ErrNotFound)
}

func TestAPIKey_BackendFailure(t *testing.T) {
	boom := errors.New("keychain locked")
	keyring.MockInitWithError(boom)

	_, err := credential.Keychain{User: "alice"}.APIKey()

	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, credential.ErrNotFound)
}
