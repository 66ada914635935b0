package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testRoot   = "LDAP://dc1.example.com/DC=example,DC=com"
	testPrefix = "LDAP://dc1.example.com/"
	testAdmin  = "administrator"
	testSecret = "S3cret!"
)

// MockStore implements the Store interface for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Bind(ctx context.Context, path, username, password string) (Entry, error) {
	args := m.Called(ctx, path, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	entry, ok := args.Get(0).(Entry)
	if !ok {
		return nil, args.Error(1)
	}
	return entry, args.Error(1)
}

// MockEntry implements the Entry interface for testing.
type MockEntry struct {
	mock.Mock
}

func (m *MockEntry) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEntry) Search(ctx context.Context, filter Filter, attributes []string) (*SearchResult, error) {
	args := m.Called(ctx, filter, attributes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	result, ok := args.Get(0).(*SearchResult)
	if !ok {
		return nil, args.Error(1)
	}
	return result, args.Error(1)
}

func (m *MockEntry) AddChild(ctx context.Context, rdn, objectClass string) (Entry, error) {
	args := m.Called(ctx, rdn, objectClass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	entry, ok := args.Get(0).(Entry)
	if !ok {
		return nil, args.Error(1)
	}
	return entry, args.Error(1)
}

func (m *MockEntry) Get(name string) (string, bool) {
	args := m.Called(name)
	return args.String(0), args.Bool(1)
}

func (m *MockEntry) Set(name, value string) {
	m.Called(name, value)
}

func (m *MockEntry) AddValue(name, value string) {
	m.Called(name, value)
}

func (m *MockEntry) RemoveValue(name, value string) {
	m.Called(name, value)
}

func (m *MockEntry) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEntry) SetPassword(ctx context.Context, password string) error {
	args := m.Called(ctx, password)
	return args.Error(0)
}

func (m *MockEntry) SetEnabled(ctx context.Context, enabled bool) error {
	args := m.Called(ctx, enabled)
	return args.Error(0)
}

func (m *MockEntry) Close() error {
	args := m.Called()
	return args.Error(0)
}

// newReleasedEntry returns a MockEntry that expects to be closed once.
func newReleasedEntry(path string) *MockEntry {
	entry := &MockEntry{}
	entry.On("Path").Return(path).Maybe()
	entry.On("Close").Return(nil).Once()
	return entry
}

// newDomainSession returns a session with the test domain set.
func newDomainSession(t *testing.T, store Store) *Session {
	t.Helper()

	s := NewSession(t.Context(), store)
	require.NoError(t, s.SetDomain(testRoot))
	return s
}

// newAdminSession returns a session with the test domain and administrator
// configured. The bind used to authenticate the administrator is consumed.
func newAdminSession(t *testing.T, store *MockStore) *Session {
	t.Helper()

	s := newDomainSession(t, store)

	auth := newReleasedEntry(testRoot)
	store.On("Bind", mock.Anything, testRoot, testAdmin, testSecret).Return(auth, nil).Once()
	require.NoError(t, s.SetAdminAccount(t.Context(), testAdmin, testSecret))
	auth.AssertExpectations(t)

	return s
}
