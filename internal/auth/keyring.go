// Package auth stores and checks the admin token that guards destructive
// endpoints.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	defaultService = "minigames"
	adminAccount   = "admin"
	keyToken       = "token"
)

// ErrNoToken is returned when no admin token has been stored.
var ErrNoToken = errors.New("auth: no admin token configured")

// KeyringStore wraps the OS keychain with an optional file fallback for
// environments without a system keyring.
type KeyringStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewKeyringStore creates a keyring wrapper.
func NewKeyringStore(serviceName, fallbackPath string) *KeyringStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultService
	}
	return &KeyringStore{
		service:      serviceName,
		fallbackPath: fallbackPath,
	}
}

// DefaultFallbackPath is the fallback secrets file under the user config dir.
func DefaultFallbackPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, defaultService, "secrets.json")
}

func (k *KeyringStore) key() string {
	return adminAccount + "/" + keyToken
}

// SetToken stores the admin token.
func (k *KeyringStore) SetToken(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("auth: token must not be empty")
	}
	if err := keyring.Set(k.service, k.key(), value); err == nil {
		return nil
	} else if !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring set: %w", err)
	}
	return k.setFallback(value)
}

// Token returns the stored admin token or ErrNoToken.
func (k *KeyringStore) Token() (string, error) {
	val, err := keyring.Get(k.service, k.key())
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("auth: keyring get: %w", err)
	}

	fallback, ferr := k.getFallback()
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(ferr, ErrNoToken) || errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	return "", ferr
}

// ClearToken removes the token from the keyring and the fallback file.
func (k *KeyringStore) ClearToken() error {
	err := keyring.Delete(k.service, k.key())
	ferr := k.deleteFallback()
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring delete: %w", err)
	}
	return ferr
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "the specified item could not be found in the keychain") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSecrets map[string]string

func (k *KeyringStore) setFallback(value string) error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return fmt.Errorf("auth: keyring unavailable and no fallback path configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[k.key()] = value
	return k.writeFallbackUnlocked(data)
}

func (k *KeyringStore) getFallback() (string, error) {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return "", ErrNoToken
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	val, ok := data[k.key()]
	if !ok {
		return "", ErrNoToken
	}
	return val, nil
}

func (k *KeyringStore) deleteFallback() error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[k.key()]; !ok {
		return nil
	}
	delete(data, k.key())
	return k.writeFallbackUnlocked(data)
}

func (k *KeyringStore) readFallbackUnlocked() (fallbackSecrets, error) {
	out := fallbackSecrets{}
	raw, err := os.ReadFile(k.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("auth: read fallback secrets: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("auth: decode fallback secrets: %w", err)
	}
	return out, nil
}

func (k *KeyringStore) writeFallbackUnlocked(data fallbackSecrets) error {
	if err := os.MkdirAll(filepath.Dir(k.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("auth: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("auth: encode fallback secrets: %w", err)
	}
	if err := os.WriteFile(k.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("auth: write fallback secrets: %w", err)
	}
	return nil
}
