package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Object classes of the entries created by the session.
const (
	ClassUser  = "user"
	ClassGroup = "group"
)

// CreateUser creates a user account named name in the default Users
// organizational unit and sets its password.
func (s *Session) CreateUser(ctx context.Context, name, password string) (*User, error) {
	return s.CreateUserIn(ctx, name, password, []string{DefaultUserContainer})
}

// CreateUserIn creates a user account named name in the organizational unit
// described by ous (see BuildPath) and sets its password.
//
// The entry is created and committed before the password is set in a
// second store operation. If that operation fails the account exists
// without a password and the store error is returned.
func (s *Session) CreateUserIn(ctx context.Context, name, password string, ous []string) (*User, error) {
	if err := validateName("user name", name); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password must not be empty", ErrInvalidArgument)
	}
	if err := validateOUs(ous); err != nil {
		return nil, err
	}

	start := time.Now()
	d, path, err := s.createEntry(ctx, name, ClassUser, ous, func(child Entry) error {
		return child.SetPassword(ctx, password)
	})
	if err != nil {
		return nil, err
	}

	tflog.SubsystemDebug(s.ctx, subsystem, "User created", map[string]any{
		"domain":      d.Name,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	u := s.User(path, name)
	u.cn = name
	return u, nil
}

// CreateGroup creates a group named name in the organizational unit
// described by ous (see BuildPath).
func (s *Session) CreateGroup(ctx context.Context, name string, ous []string) (*Group, error) {
	if err := validateName("group name", name); err != nil {
		return nil, err
	}
	if err := validateOUs(ous); err != nil {
		return nil, err
	}

	start := time.Now()
	d, path, err := s.createEntry(ctx, name, ClassGroup, ous, nil)
	if err != nil {
		return nil, err
	}

	tflog.SubsystemDebug(s.ctx, subsystem, "Group created", map[string]any{
		"domain":      d.Name,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return s.Group(name, path), nil
}

// createEntry adds a child named name of the given class below the
// organizational unit, sets its account name and commits it. The optional
// after hook runs on the committed child before the binding is released.
func (s *Session) createEntry(ctx context.Context, name, class string, ous []string, after func(Entry) error) (Domain, string, error) {
	d, admin, err := s.requireAdmin()
	if err != nil {
		return Domain{}, "", err
	}

	parent := d.path(ous...)
	entry, err := s.bind(ctx, parent, &admin)
	if err != nil {
		return Domain{}, "", err
	}
	defer s.release(entry)

	rdn := "CN=" + EscapeDNValue(name)
	child, err := entry.AddChild(ctx, rdn, class)
	if err != nil {
		return Domain{}, "", err
	}

	child.Set(attrAccount, name)
	if err := child.Commit(ctx); err != nil {
		return Domain{}, "", err
	}

	if after != nil {
		if err := after(child); err != nil {
			return Domain{}, "", err
		}
	}

	return d, d.child(rdn, parent), nil
}

// FindCNByUsername returns the common name of the user whose account name
// is username. The boolean is false when no such user exists.
func (s *Session) FindCNByUsername(ctx context.Context, username string) (string, bool, error) {
	if err := validateName("username", username); err != nil {
		return "", false, err
	}

	res, err := s.searchUser(ctx, Equals(attrAccount, username), []string{attrCN})
	if err != nil || res == nil {
		return "", false, err
	}

	cn, ok := res.First(attrCN)
	return cn, ok, nil
}

// FindUserByCN loads the user whose common name is cn with every projected
// attribute. The boolean is false when no such user exists or the entry
// has no account name.
func (s *Session) FindUserByCN(ctx context.Context, cn string) (*User, bool, error) {
	if err := validateName("common name", cn); err != nil {
		return nil, false, err
	}

	res, err := s.searchUser(ctx, Equals(attrCN, cn), userSearchAttributes())
	if err != nil || res == nil {
		return nil, false, err
	}

	if _, ok := res.First(attrAccount); !ok {
		tflog.SubsystemDebug(s.ctx, subsystem, "Matched entry has no account name", map[string]any{
			"cn":   cn,
			"path": res.Path,
		})
		return nil, false, nil
	}

	u := newUserFromResult(s, res)
	if u.cn == "" {
		u.cn = cn
	}
	return u, true, nil
}

// FindUserByUsername loads the user whose account name is username.
func (s *Session) FindUserByUsername(ctx context.Context, username string) (*User, bool, error) {
	cn, ok, err := s.FindCNByUsername(ctx, username)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.FindUserByCN(ctx, cn)
}

// searchUser looks up the first user entry below the domain root matching
// match. The binding is administrative when an account is configured and
// anonymous otherwise.
func (s *Session) searchUser(ctx context.Context, match Equal, attributes []string) (*SearchResult, error) {
	d, account, err := s.lookupAccount()
	if err != nil {
		return nil, err
	}

	entry, err := s.bind(ctx, d.Root, account)
	if err != nil {
		return nil, err
	}
	defer s.release(entry)

	filter := And(ObjectClass(ClassUser), match)
	res, err := entry.Search(ctx, filter, attributes)
	if err != nil {
		return nil, err
	}

	tflog.SubsystemTrace(s.ctx, subsystem, "User search completed", map[string]any{
		"filter": filter.String(),
		"found":  res != nil,
	})

	return res, nil
}

func validateName(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, what)
	}
	return nil
}
