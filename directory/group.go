package directory

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Group is a directory group. Membership is never read or cached; AddUser
// and RemoveUser write straight to the store.
type Group struct {
	Name string

	session *Session
	path    string
}

// Group returns a handle to an existing group entry at path without
// contacting the store.
func (s *Session) Group(name, path string) *Group {
	return &Group{
		Name:    name,
		session: s,
		path:    path,
	}
}

// Path returns the fully-qualified path of the group entry.
func (g *Group) Path() string {
	return g.path
}

// AddUser adds user to the group's members. Adding an existing member is
// handled by the store.
func (g *Group) AddUser(ctx context.Context, user *User) error {
	return g.updateMembers(ctx, user, true)
}

// RemoveUser removes user from the group's members. Removing a non-member
// is handled by the store.
func (g *Group) RemoveUser(ctx context.Context, user *User) error {
	return g.updateMembers(ctx, user, false)
}

func (g *Group) updateMembers(ctx context.Context, user *User, add bool) error {
	if user == nil || user.Path() == "" {
		return fmt.Errorf("%w: user must have a path", ErrInvalidArgument)
	}

	if g.session == nil {
		return ErrSessionNotConfigured
	}

	d, admin, err := g.session.requireAdmin()
	if err != nil {
		return err
	}

	entry, err := g.session.bind(ctx, g.path, &admin)
	if err != nil {
		return err
	}
	defer g.session.release(entry)

	// Membership values are distinguished names, not full paths.
	member := d.DN(user.Path())

	if add {
		entry.AddValue(attrMember, member)
	} else {
		entry.RemoveValue(attrMember, member)
	}

	if err := entry.Commit(ctx); err != nil {
		return err
	}

	tflog.SubsystemDebug(g.session.ctx, subsystem, "Group membership updated", map[string]any{
		"group":  g.path,
		"member": member,
		"added":  add,
	})

	return nil
}
