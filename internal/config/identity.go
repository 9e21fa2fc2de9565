package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Identity supplies the (team_id, requester_id) authorization context that
// every store operation runs under. It is an explicit dependency injected
// into the pipelines rather than process-global state, so tests can
// substitute a fixed identity.
type Identity interface {
	// UserID returns the stable local user identifier, generating and
	// persisting one on first use.
	UserID() (string, error)

	// TeamID returns the configured team identifier.
	TeamID() string
}

// FileIdentity persists a generated user id under the config directory.
// The first call to UserID creates the file; subsequent calls (and
// subsequent processes) read it back. Initialization happens exactly once
// per process and is guarded by a file lock against concurrent first runs
// from separate processes.
type FileIdentity struct {
	path   string
	teamID string

	once   sync.Once
	userID string
	err    error
}

var _ Identity = (*FileIdentity)(nil)

// NewFileIdentity creates an identity provider storing the user id at
// <dir>/user_id.
func NewFileIdentity(dir, teamID string) *FileIdentity {
	return &FileIdentity{
		path:   filepath.Join(dir, "user_id"),
		teamID: teamID,
	}
}

// TeamID returns the configured team identifier.
func (f *FileIdentity) TeamID() string {
	return f.teamID
}

// UserID returns the persistent user id, creating it on first use.
func (f *FileIdentity) UserID() (string, error) {
	f.once.Do(func() {
		f.userID, f.err = f.loadOrCreate()
	})
	return f.userID, f.err
}

func (f *FileIdentity) loadOrCreate() (string, error) {
	if id, ok := readIdentityFile(f.path); ok {
		return id, nil
	}

	// Two processes may race on first run; the lock serializes creation
	// and the re-read below picks up the winner's id.
	lock := flock.New(f.path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("locking identity file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if id, ok := readIdentityFile(f.path); ok {
		return id, nil
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return "", fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}
	return id, nil
}

// readIdentityFile returns the stored id if the file exists and holds a
// valid UUID. A corrupt file is treated as absent and regenerated.
func readIdentityFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// StaticIdentity is a fixed identity for tests and single-tenant embeds.
type StaticIdentity struct {
	User string
	Team string
}

var _ Identity = StaticIdentity{}

// UserID returns the fixed user id.
func (s StaticIdentity) UserID() (string, error) { return s.User, nil }

// TeamID returns the fixed team id.
func (s StaticIdentity) TeamID() string { return s.Team }
