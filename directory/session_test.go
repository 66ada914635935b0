package directory

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession(t.Context(), &MockStore{})

	assert.False(t, s.IsDomainConfigured())
	assert.False(t, s.IsAdminConfigured())

	_, ok := s.Domain()
	assert.False(t, ok)
}

func TestSetDomain(t *testing.T) {
	s := NewSession(t.Context(), &MockStore{})

	require.NoError(t, s.SetDomain(testRoot))
	assert.True(t, s.IsDomainConfigured())

	d, ok := s.Domain()
	require.True(t, ok)
	assert.Equal(t, "dc1.example.com", d.Name)
	assert.Equal(t, testPrefix, d.Prefix)
	assert.Equal(t, "DC=example,DC=com", d.Suffix)
}

func TestSetDomain_FailureLeavesStateUnchanged(t *testing.T) {
	store := &MockStore{}
	s := newAdminSession(t, store)
	before, _ := s.Domain()

	for _, root := range []string{"", " ", "no-separator", "LDAP://host/"} {
		err := s.SetDomain(root)
		require.ErrorIs(t, err, ErrInvalidArgument, root)

		after, ok := s.Domain()
		assert.True(t, ok)
		assert.Equal(t, before, after)
		assert.True(t, s.IsAdminConfigured(), "admin must survive a rejected domain")
	}

	store.AssertExpectations(t)
}

func TestSetDomain_ReplacesStateAndClearsAdmin(t *testing.T) {
	store := &MockStore{}
	s := newAdminSession(t, store)

	require.NoError(t, s.SetDomain("LDAP://dc2.corp.local/DC=corp,DC=local"))

	d, _ := s.Domain()
	assert.Equal(t, "dc2.corp.local", d.Name)
	assert.Equal(t, "DC=corp,DC=local", d.Suffix)
	assert.False(t, s.IsAdminConfigured())
}

func TestAuthenticate(t *testing.T) {
	t.Run("success releases binding", func(t *testing.T) {
		store := &MockStore{}
		s := newDomainSession(t, store)

		entry := newReleasedEntry(testRoot)
		store.On("Bind", mock.Anything, testRoot, "jdoe", "pw").Return(entry, nil).Once()

		ok, err := s.Authenticate(t.Context(), "jdoe", "pw")
		require.NoError(t, err)
		assert.True(t, ok)

		store.AssertExpectations(t)
		entry.AssertExpectations(t)
	})

	t.Run("store failure propagates unchanged", func(t *testing.T) {
		store := &MockStore{}
		s := newDomainSession(t, store)

		storeErr := errors.New("LDAP bind failed (code 49) - Invalid credentials")
		store.On("Bind", mock.Anything, testRoot, "jdoe", "bad").Return(nil, storeErr).Once()

		ok, err := s.Authenticate(t.Context(), "jdoe", "bad")
		assert.False(t, ok)
		assert.Same(t, storeErr, err)
	})

	t.Run("preconditions", func(t *testing.T) {
		tests := []struct {
			name     string
			domain   bool
			username string
			password string
			wantErr  error
		}{
			{"empty username", true, "", "pw", ErrInvalidArgument},
			{"empty password", true, "jdoe", "", ErrInvalidArgument},
			{"no domain", false, "jdoe", "pw", ErrSessionNotConfigured},
			{"arguments before domain", false, "", "", ErrInvalidArgument},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := &MockStore{}
				s := NewSession(t.Context(), store)
				if tt.domain {
					require.NoError(t, s.SetDomain(testRoot))
				}

				ok, err := s.Authenticate(t.Context(), tt.username, tt.password)
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, ok)
				store.AssertNumberOfCalls(t, "Bind", 0)
			})
		}
	})
}

func TestSetAdminAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store := &MockStore{}
		s := newAdminSession(t, store)

		assert.True(t, s.IsAdminConfigured())
		store.AssertExpectations(t)
	})

	t.Run("rejected credentials then create user", func(t *testing.T) {
		store := &MockStore{}
		s := newDomainSession(t, store)

		storeErr := errors.New("invalid credentials")
		store.On("Bind", mock.Anything, testRoot, "admin", "wrongpass").Return(nil, storeErr).Once()

		err := s.SetAdminAccount(t.Context(), "admin", "wrongpass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.NotErrorIs(t, err, storeErr)
		assert.Contains(t, err.Error(), "invalid credentials")
		assert.False(t, s.IsAdminConfigured())

		_, err = s.CreateUser(t.Context(), "jdoe", "Passw0rd!")
		require.ErrorIs(t, err, ErrAdminNotConfigured)

		store.AssertExpectations(t)
	})

	t.Run("failure keeps previous account", func(t *testing.T) {
		store := &MockStore{}
		s := newAdminSession(t, store)

		store.On("Bind", mock.Anything, testRoot, "other", "bad").Return(nil, errors.New("rejected")).Once()
		require.ErrorIs(t, s.SetAdminAccount(t.Context(), "other", "bad"), ErrInvalidCredentials)

		_, admin, err := s.requireAdmin()
		require.NoError(t, err)
		assert.Equal(t, credentials{username: testAdmin, password: testSecret}, admin)
	})

	t.Run("preconditions", func(t *testing.T) {
		store := &MockStore{}
		s := NewSession(t.Context(), store)

		require.ErrorIs(t, s.SetAdminAccount(t.Context(), "", "pw"), ErrInvalidArgument)
		require.ErrorIs(t, s.SetAdminAccount(t.Context(), "admin", ""), ErrInvalidArgument)
		require.ErrorIs(t, s.SetAdminAccount(t.Context(), "admin", "pw"), ErrSessionNotConfigured)
		store.AssertNumberOfCalls(t, "Bind", 0)
	})
}

func TestSession_ConcurrentReconfiguration(t *testing.T) {
	s := NewSession(t.Context(), &MockStore{})
	roots := []string{testRoot, "LDAP://dc2.corp.local/DC=corp,DC=local"}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			assert.NoError(t, s.SetDomain(roots[i%len(roots)]))
		})
		wg.Go(func() {
			d, ok := s.Domain()
			if !ok {
				return
			}
			// Fragments always belong to the same root.
			assert.Equal(t, d.Root, d.Prefix+d.Suffix)
			assert.Equal(t, d.Prefix+"OU=Users,"+d.Suffix, d.UsersPath)
		})
	}
	wg.Wait()

	assert.True(t, s.IsDomainConfigured())
}
