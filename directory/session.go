package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

const (
	// subsystem is the tflog subsystem used by the directory core.
	subsystem = "directory"

	// LogLevelEnv selects the log level of the directory subsystem.
	LogLevelEnv = "ADLIB_LOG_DIRECTORY"
)

type credentials struct {
	username string
	password string
}

// Session binds a Store to one active domain and, optionally, an
// administrative account. It replaces any process-wide configuration: a
// host creates one Session per directory it manages and passes it along.
//
// A Session is safe for concurrent use. Configuration changes are
// serialized and readers observe either the previous or the new
// configuration in full.
type Session struct {
	ctx   context.Context // Logging context with directory subsystem
	store Store

	// configMu serializes SetDomain and SetAdminAccount so that credentials
	// authenticated against one domain are never stored for another.
	configMu sync.Mutex

	mu     sync.RWMutex
	domain *Domain
	admin  *credentials
}

// NewSession creates an unconfigured session on store.
func NewSession(ctx context.Context, store Store) *Session {
	ctx = tflog.NewSubsystem(ctx, subsystem, tflog.WithLevelFromEnv(LogLevelEnv))
	ctx = tflog.SubsystemMaskFieldValuesWithFieldKeys(ctx, subsystem, "password")

	return &Session{
		ctx:   ctx,
		store: store,
	}
}

// SetDomain makes root the active domain. The root is split at its last
// path separator into the prefix shared by every path in the domain and
// the distinguished name of the domain itself.
//
// Administrative credentials are cleared since they were authenticated
// against the previous domain. The store is not contacted. On error the
// session is left unchanged.
func (s *Session) SetDomain(root string) error {
	d, err := parseDomain(root)
	if err != nil {
		return err
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	s.mu.Lock()
	s.domain = &d
	s.admin = nil
	s.mu.Unlock()

	tflog.SubsystemDebug(s.ctx, subsystem, "Active domain set", map[string]any{
		"domain": d.Name,
		"root":   d.Root,
	})

	return nil
}

// Domain returns a snapshot of the active domain.
func (s *Session) Domain() (Domain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.domain == nil {
		return Domain{}, false
	}
	return *s.domain, true
}

// IsDomainConfigured reports whether SetDomain has succeeded.
func (s *Session) IsDomainConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domain != nil
}

// IsAdminConfigured reports whether SetAdminAccount has succeeded for the
// active domain.
func (s *Session) IsAdminConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin != nil
}

// Authenticate binds to the domain root with the given credentials and
// reports whether the bind succeeded. Store failures, including rejected
// credentials, are returned unchanged.
func (s *Session) Authenticate(ctx context.Context, username, password string) (bool, error) {
	if err := validateCredentials(username, password); err != nil {
		return false, err
	}

	d, err := s.requireDomain()
	if err != nil {
		return false, err
	}

	return s.authenticate(ctx, d, username, password)
}

// SetAdminAccount authenticates the credentials against the active domain
// and, on success, uses them for every operation that modifies the
// directory. On failure any previously configured account is kept and
// ErrInvalidCredentials is returned.
func (s *Session) SetAdminAccount(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		return err
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	d, err := s.requireDomain()
	if err != nil {
		return err
	}

	if _, err := s.authenticate(ctx, d, username, password); err != nil {
		return fmt.Errorf("%w for %q: %v", ErrInvalidCredentials, username, err)
	}

	s.mu.Lock()
	s.admin = &credentials{username: username, password: password}
	s.mu.Unlock()

	tflog.SubsystemDebug(s.ctx, subsystem, "Administrator account set", map[string]any{
		"domain":   d.Name,
		"username": username,
	})

	return nil
}

func (s *Session) authenticate(ctx context.Context, d Domain, username, password string) (bool, error) {
	entry, err := s.store.Bind(ctx, d.Root, username, password)
	if err != nil {
		tflog.SubsystemDebug(s.ctx, subsystem, "Authentication failed", map[string]any{
			"username": username,
			"error":    err.Error(),
		})
		return false, err
	}
	s.release(entry)

	return true, nil
}

func validateCredentials(username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username must not be empty", ErrInvalidArgument)
	}
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", ErrInvalidArgument)
	}
	return nil
}

func (s *Session) requireDomain() (Domain, error) {
	d, ok := s.Domain()
	if !ok {
		return Domain{}, ErrSessionNotConfigured
	}
	return d, nil
}

// requireAdmin checks the domain before the account so that an
// unconfigured session always reports ErrSessionNotConfigured.
func (s *Session) requireAdmin() (Domain, credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.domain == nil {
		return Domain{}, credentials{}, ErrSessionNotConfigured
	}
	if s.admin == nil {
		return Domain{}, credentials{}, ErrAdminNotConfigured
	}
	return *s.domain, *s.admin, nil
}

// bind opens a binding to path as the given account. A nil account
// binds anonymously.
func (s *Session) bind(ctx context.Context, path string, account *credentials) (Entry, error) {
	if account == nil {
		return s.store.Bind(ctx, path, "", "")
	}
	return s.store.Bind(ctx, path, account.username, account.password)
}

// bindAdmin opens a binding to path with the administrative account.
func (s *Session) bindAdmin(ctx context.Context, path string) (Entry, error) {
	if s == nil {
		return nil, ErrSessionNotConfigured
	}

	_, admin, err := s.requireAdmin()
	if err != nil {
		return nil, err
	}
	return s.bind(ctx, path, &admin)
}

// lookupAccount returns the active domain together with the account used
// for lookups: the administrative account when configured, otherwise nil
// for an anonymous binding.
func (s *Session) lookupAccount() (Domain, *credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.domain == nil {
		return Domain{}, nil, ErrSessionNotConfigured
	}
	return *s.domain, s.admin, nil
}

// release closes a binding. Close failures do not change the outcome of
// the operation that used it.
func (s *Session) release(entry Entry) {
	if err := entry.Close(); err != nil {
		tflog.SubsystemDebug(s.ctx, subsystem, "Failed to release binding", map[string]any{
			"path":  entry.Path(),
			"error": err.Error(),
		})
	}
}
