package scrape

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrStorageUnavailable marks a profile directory that cannot be created or
// written. It is fatal for the affected tenant's run and nothing else.
var ErrStorageUnavailable = errors.New("session storage unavailable")

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SessionStore maps tenants to directory-backed browser identities. One
// profile directory per tenant, provisioned unconditionally on first use;
// cookies and local storage inside it survive process restarts. The store
// never validates the login itself; validity is decided by the acquisition
// loop's first navigation.
type SessionStore struct {
	// Root is the parent directory holding one profile dir per tenant.
	Root string
}

// Resolve returns the absolute profile directory for the tenant, creating it
// when absent. Owner ids are sanitized to a safe path component, so hostile
// ids cannot escape Root.
func (s *SessionStore) Resolve(ownerID string) (string, error) {
	name := unsafePathChars.ReplaceAllString(ownerID, "_")
	if name == "" {
		return "", fmt.Errorf("%w: empty owner id", ErrStorageUnavailable)
	}

	dir := filepath.Join(s.Root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return abs, nil
}
