package directory

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// User is a directory user account projected onto a fixed set of
// attributes. An empty field means the attribute is unset.
//
// Users are obtained from CreateUser, FindUserByCN or Session.User. Field
// changes stay local until Commit.
type User struct {
	Username string // sAMAccountName

	FirstName          string // givenName
	LastName           string // sn
	MiddleName         string // middleName
	Initials           string // initials
	GenerationalSuffix string // generationQualifier
	DisplayName        string // displayName
	PersonalTitle      string // personalTitle
	Title              string // title
	Description        string // description
	Comment            string // comment

	Email                   string // mail
	HomePhone               string // homePhone
	MobileNumber            string // mobile
	InternationalISDNNumber string // internationalISDNNumber

	Company    string // company
	Department string // department
	Division   string // division
	EmployeeID string // employeeID
	Manager    string // manager

	StreetAddress       string // streetAddress
	City                string // l
	Province            string // st
	ZipCode             string // postalCode
	CountryAbbreviation string // c
	Country             string // co

	HomeDirectory     string // homeDirectory
	LogonWorkstations string // userWorkstations

	session *Session
	path    string
	cn      string
	guid    string
	sid     string
}

// userAttributes maps each directory attribute a User understands to its
// field. The same table drives the search projection and the commit, so an
// attribute listed here is always both readable and writable.
var userAttributes = []struct {
	name  string
	field func(*User) *string
}{
	{"sAMAccountName", func(u *User) *string { return &u.Username }},
	{"givenName", func(u *User) *string { return &u.FirstName }},
	{"sn", func(u *User) *string { return &u.LastName }},
	{"middleName", func(u *User) *string { return &u.MiddleName }},
	{"initials", func(u *User) *string { return &u.Initials }},
	{"generationQualifier", func(u *User) *string { return &u.GenerationalSuffix }},
	{"displayName", func(u *User) *string { return &u.DisplayName }},
	{"personalTitle", func(u *User) *string { return &u.PersonalTitle }},
	{"title", func(u *User) *string { return &u.Title }},
	{"description", func(u *User) *string { return &u.Description }},
	{"comment", func(u *User) *string { return &u.Comment }},
	{"mail", func(u *User) *string { return &u.Email }},
	{"homePhone", func(u *User) *string { return &u.HomePhone }},
	{"mobile", func(u *User) *string { return &u.MobileNumber }},
	{"internationalISDNNumber", func(u *User) *string { return &u.InternationalISDNNumber }},
	{"company", func(u *User) *string { return &u.Company }},
	{"department", func(u *User) *string { return &u.Department }},
	{"division", func(u *User) *string { return &u.Division }},
	{"employeeID", func(u *User) *string { return &u.EmployeeID }},
	{"manager", func(u *User) *string { return &u.Manager }},
	{"streetAddress", func(u *User) *string { return &u.StreetAddress }},
	{"l", func(u *User) *string { return &u.City }},
	{"st", func(u *User) *string { return &u.Province }},
	{"postalCode", func(u *User) *string { return &u.ZipCode }},
	{"c", func(u *User) *string { return &u.CountryAbbreviation }},
	{"co", func(u *User) *string { return &u.Country }},
	{"homeDirectory", func(u *User) *string { return &u.HomeDirectory }},
	{"userWorkstations", func(u *User) *string { return &u.LogonWorkstations }},
}

// Attributes that identify an entry without being part of the writable
// projection. cn names the entry and can only change by renaming it.
const (
	attrCN         = "cn"
	attrObjectGUID = "objectGUID"
	attrObjectSID  = "objectSid"
	attrMember     = "member"
	attrAccount    = "sAMAccountName"
)

// UserAttributeNames returns the writable attribute projection of a User
// in commit order.
func UserAttributeNames() []string {
	names := make([]string, 0, len(userAttributes))
	for _, a := range userAttributes {
		names = append(names, a.name)
	}
	return names
}

// userSearchAttributes is the projection requested when hydrating a User.
func userSearchAttributes() []string {
	return append(UserAttributeNames(), attrCN, attrObjectGUID, attrObjectSID)
}

// User returns a handle to an existing user entry at path without
// contacting the store. Only identity is populated.
func (s *Session) User(path, username string) *User {
	return &User{
		Username: username,
		session:  s,
		path:     path,
	}
}

// newUserFromResult hydrates every projected attribute from a search
// result. Attributes missing from the result are left unset.
func newUserFromResult(s *Session, res *SearchResult) *User {
	u := &User{session: s, path: res.Path}
	for _, a := range userAttributes {
		*a.field(u), _ = res.First(a.name)
	}
	u.cn, _ = res.First(attrCN)
	u.guid, _ = res.First(attrObjectGUID)
	u.sid, _ = res.First(attrObjectSID)
	return u
}

// Path returns the fully-qualified path of the user entry.
func (u *User) Path() string {
	return u.path
}

// CN returns the common name the user was found or created with.
func (u *User) CN() string {
	return u.cn
}

// GUID returns the objectGUID of a user loaded from the store, if known.
func (u *User) GUID() string {
	return u.guid
}

// SID returns the objectSid of a user loaded from the store, if known.
func (u *User) SID() string {
	return u.sid
}

// Attributes returns the current value of every projected attribute keyed
// by attribute name. Unset attributes map to "".
func (u *User) Attributes() map[string]string {
	attrs := make(map[string]string, len(userAttributes))
	for _, a := range userAttributes {
		attrs[a.name] = *a.field(u)
	}
	return attrs
}

// Commit writes every projected attribute to the store, unset ones
// included: an attribute that is empty on the User is cleared in the
// directory. Load the user before committing to avoid erasing values.
func (u *User) Commit(ctx context.Context) error {
	entry, err := u.session.bindAdmin(ctx, u.path)
	if err != nil {
		return err
	}
	defer u.session.release(entry)

	for _, a := range userAttributes {
		entry.Set(a.name, *a.field(u))
	}

	if err := entry.Commit(ctx); err != nil {
		return err
	}

	tflog.SubsystemDebug(u.session.ctx, subsystem, "User committed", map[string]any{
		"path":       u.path,
		"attributes": len(userAttributes),
	})

	return nil
}

// SetPassword sets the account password through the store's native
// password operation.
func (u *User) SetPassword(ctx context.Context, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", ErrInvalidArgument)
	}

	entry, err := u.session.bindAdmin(ctx, u.path)
	if err != nil {
		return err
	}
	defer u.session.release(entry)

	return entry.SetPassword(ctx, password)
}

// Enable enables the account.
func (u *User) Enable(ctx context.Context) error {
	return u.setEnabled(ctx, true)
}

// Disable disables the account.
func (u *User) Disable(ctx context.Context) error {
	return u.setEnabled(ctx, false)
}

func (u *User) setEnabled(ctx context.Context, enabled bool) error {
	entry, err := u.session.bindAdmin(ctx, u.path)
	if err != nil {
		return err
	}
	defer u.session.release(entry)

	if err := entry.SetEnabled(ctx, enabled); err != nil {
		return err
	}

	tflog.SubsystemDebug(u.session.ctx, subsystem, "User enablement changed", map[string]any{
		"path":    u.path,
		"enabled": enabled,
	})

	return nil
}
