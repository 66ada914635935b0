package directory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserPath = "LDAP://dc1.example.com/CN=jdoe,OU=Users,DC=example,DC=com"

// recordSets captures every Set call on entry into attrs.
func recordSets(entry *MockEntry, attrs map[string]string) {
	entry.On("Set", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		attrs[args.String(0)] = args.String(1)
	})
}

func TestUserAttributeNames(t *testing.T) {
	names := UserAttributeNames()

	assert.Len(t, names, 28)
	assert.Equal(t, "sAMAccountName", names[0])
	assert.NotContains(t, names, "cn", "cn names the entry and is not writable")

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate attribute %s", n)
		seen[n] = true
	}

	// Read and write projections share the same table.
	search := userSearchAttributes()
	assert.Subset(t, search, names)
	assert.Contains(t, search, "cn")
	assert.Contains(t, search, "objectGUID")
	assert.Contains(t, search, "objectSid")
}

func TestUser_Commit(t *testing.T) {
	store := &MockStore{}
	s := newAdminSession(t, store)

	u := s.User(testUserPath, "jdoe")
	u.FirstName = "John"
	u.LastName = "Doe"
	u.City = "Springfield"
	u.Province = "IL"
	u.Title = "Engineer"

	entry := newReleasedEntry(testUserPath)
	attrs := make(map[string]string)
	recordSets(entry, attrs)
	entry.On("Commit", mock.Anything).Return(nil).Once()
	store.On("Bind", mock.Anything, testUserPath, testAdmin, testSecret).Return(entry, nil).Once()

	require.NoError(t, u.Commit(t.Context()))

	// Every projected attribute is written, unset ones as clears.
	assert.Len(t, attrs, len(UserAttributeNames()))
	assert.Equal(t, "jdoe", attrs["sAMAccountName"])
	assert.Equal(t, "John", attrs["givenName"])
	assert.Equal(t, "Doe", attrs["sn"])
	assert.Equal(t, "Springfield", attrs["l"])
	assert.Equal(t, "IL", attrs["st"])
	assert.Equal(t, "Engineer", attrs["title"])
	assert.Empty(t, attrs["personalTitle"])
	assert.Empty(t, attrs["mail"])

	store.AssertExpectations(t)
	entry.AssertExpectations(t)
}

func TestUser_CommitRoundTrip(t *testing.T) {
	store := &MockStore{}
	s := newAdminSession(t, store)

	loaded := map[string][]string{
		"sAMAccountName": {"jdoe"},
		"givenName":      {"John"},
		"sn":             {"Doe"},
		"mail":           {"jdoe@example.com"},
		"st":             {"IL"},
		"personalTitle":  {"Dr"},
		"title":          {"Engineer"},
		"c":              {"US"},
		"co":             {"United States"},
	}
	u := newUserFromResult(s, &SearchResult{Path: testUserPath, Attributes: loaded})

	entry := newReleasedEntry(testUserPath)
	attrs := make(map[string]string)
	recordSets(entry, attrs)
	entry.On("Commit", mock.Anything).Return(nil).Once()
	store.On("Bind", mock.Anything, testUserPath, testAdmin, testSecret).Return(entry, nil).Once()

	require.NoError(t, u.Commit(t.Context()))

	for _, name := range UserAttributeNames() {
		want := ""
		if v, ok := loaded[name]; ok {
			want = v[0]
		}
		assert.Equal(t, want, attrs[name], name)
	}
}

func TestUser_CommitStoreErrorReleasesBinding(t *testing.T) {
	store := &MockStore{}
	s := newAdminSession(t, store)

	entry := newReleasedEntry(testUserPath)
	recordSets(entry, map[string]string{})
	storeErr := errors.New("constraint violation")
	entry.On("Commit", mock.Anything).Return(storeErr).Once()
	store.On("Bind", mock.Anything, testUserPath, testAdmin, testSecret).Return(entry, nil).Once()

	err := s.User(testUserPath, "jdoe").Commit(t.Context())
	assert.Same(t, storeErr, err)
	entry.AssertExpectations(t)
}

func TestUser_SetPassword(t *testing.T) {
	store := &MockStore{}
	s := newAdminSession(t, store)
	u := s.User(testUserPath, "jdoe")

	require.ErrorIs(t, u.SetPassword(t.Context(), ""), ErrInvalidArgument)

	entry := newReleasedEntry(testUserPath)
	entry.On("SetPassword", mock.Anything, "N3w!pass").Return(nil).Once()
	store.On("Bind", mock.Anything, testUserPath, testAdmin, testSecret).Return(entry, nil).Once()

	require.NoError(t, u.SetPassword(t.Context(), "N3w!pass"))
	entry.AssertExpectations(t)
}

func TestUser_EnableDisable(t *testing.T) {
	tests := []struct {
		name    string
		call    func(*User) error
		enabled bool
	}{
		{"enable", func(u *User) error { return u.Enable(t.Context()) }, true},
		{"disable", func(u *User) error { return u.Disable(t.Context()) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockStore{}
			s := newAdminSession(t, store)

			entry := newReleasedEntry(testUserPath)
			entry.On("SetEnabled", mock.Anything, tt.enabled).Return(nil).Once()
			store.On("Bind", mock.Anything, testUserPath, testAdmin, testSecret).Return(entry, nil).Once()

			require.NoError(t, tt.call(s.User(testUserPath, "jdoe")))
			entry.AssertExpectations(t)
		})
	}
}

func TestUser_Preconditions(t *testing.T) {
	operations := map[string]func(*User) error{
		"commit":       func(u *User) error { return u.Commit(t.Context()) },
		"set password": func(u *User) error { return u.SetPassword(t.Context(), "pw") },
		"enable":       func(u *User) error { return u.Enable(t.Context()) },
		"disable":      func(u *User) error { return u.Disable(t.Context()) },
	}

	for name, op := range operations {
		t.Run(name+"/no domain", func(t *testing.T) {
			store := &MockStore{}
			u := NewSession(t.Context(), store).User(testUserPath, "jdoe")

			require.ErrorIs(t, op(u), ErrSessionNotConfigured)
			store.AssertNumberOfCalls(t, "Bind", 0)
		})

		t.Run(name+"/no admin", func(t *testing.T) {
			store := &MockStore{}
			u := newDomainSession(t, store).User(testUserPath, "jdoe")

			require.ErrorIs(t, op(u), ErrAdminNotConfigured)
			store.AssertNumberOfCalls(t, "Bind", 0)
		})
	}

	t.Run("detached user", func(t *testing.T) {
		require.ErrorIs(t, (&User{}).Commit(t.Context()), ErrSessionNotConfigured)
	})
}

func TestUser_Attributes(t *testing.T) {
	u := &User{Username: "jdoe", ZipCode: "62704", LogonWorkstations: "WS01,WS02"}

	attrs := u.Attributes()
	assert.Len(t, attrs, len(userAttributes))
	assert.Equal(t, "jdoe", attrs["sAMAccountName"])
	assert.Equal(t, "62704", attrs["postalCode"])
	assert.Equal(t, "WS01,WS02", attrs["userWorkstations"])
	assert.Equal(t, "", attrs["displayName"])
}
