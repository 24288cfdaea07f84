// Package credential reads the primary source's API key from the OS keychain.
package credential

import (
	"errors"
	"fmt"
	"os/user"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound means the keychain has no entry for the service and user.
var ErrNotFound = errors.New("api key not found in keychain")

// Keychain looks up generic passwords. Service defaults to
// "twelvedata_api_key" and User to the current OS user.
type Keychain struct {
	Service string
	User    string
}

func (k Keychain) account() (string, error) {
	if k.User != "" {
		return k.User, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}
	return u.Username, nil
}

// APIKey returns the stored key with surrounding whitespace removed.
func (k Keychain) APIKey() (string, error) {
	service := k.Service
	if service == "" {
		service = "twelvedata_api_key"
	}
	account, err := k.account()
	if err != nil {
		return "", err
	}
	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w (service %q, user %q)", ErrNotFound, service, account)
	}
	if err != nil {
		return "", fmt.Errorf("keychain lookup: %w", err)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("%w (service %q, user %q): empty secret", ErrNotFound, service, account)
	}
	return secret, nil
}
