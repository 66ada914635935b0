package ldap

import (
	"context"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testPath  = "LDAP://dc1.example.com/DC=example,DC=com"
	testAdmin = "administrator@example.com"
)

// MockConnection implements connection for testing store and entry operations
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) Bind(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockConnection) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error {
	args := m.Called(client, servicePrincipal, authzid)
	return args.Error(0)
}

func (m *MockConnection) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *MockConnection) Add(req *ldap.AddRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConnection) Modify(req *ldap.ModifyRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

// testConfig retries quickly so retry paths stay fast.
func testConfig() *ConnectionConfig {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// newTestStore returns a store whose every dial yields conn.
func newTestStore(t *testing.T, conn connection) *Store {
	t.Helper()

	s, err := NewStore(t.Context(), testConfig())
	require.NoError(t, err)

	s.dial = func(_ context.Context, _ *ServerInfo) (connection, error) {
		return conn, nil
	}
	return s
}

// bindTestEntry binds testPath as testAdmin on a fresh mock connection.
func bindTestEntry(t *testing.T) (*entry, *MockConnection) {
	t.Helper()

	conn := &MockConnection{}
	conn.On("Bind", testAdmin, "secret").Return(nil).Once()

	s := newTestStore(t, conn)
	e, err := s.Bind(t.Context(), testPath, testAdmin, "secret")
	require.NoError(t, err)

	return e.(*entry), conn
}

func searchResult(entries ...*ldap.Entry) *ldap.SearchResult {
	return &ldap.SearchResult{Entries: entries}
}
