/*
Package directory manages user and group entries of an Active Directory
style directory through a Session.

A Session is configured in two steps: SetDomain selects the domain root
every path is derived from, and SetAdminAccount authenticates the account
used for all modifications. Lookups only need the domain.

	s := directory.NewSession(ctx, store)
	if err := s.SetDomain("LDAP://dc1.example.com/DC=example,DC=com"); err != nil {
		return err
	}
	if err := s.SetAdminAccount(ctx, "administrator", password); err != nil {
		return err
	}

	u, err := s.CreateUser(ctx, "jdoe", "Passw0rd!")
	if err != nil {
		return err
	}
	u.FirstName, u.LastName = "John", "Doe"
	if err := u.Commit(ctx); err != nil {
		return err
	}

# Paths

Paths have the form <prefix><distinguished name>, where the prefix is the
domain root up to and including its last '/'. BuildPath nests
organizational units innermost first:

	s.BuildPath([]string{"Sales", "Staff"})
	// LDAP://dc1.example.com/OU=Sales,OU=Staff,DC=example,DC=com

# Errors

Precondition failures wrap ErrInvalidArgument, ErrSessionNotConfigured,
ErrAdminNotConfigured or ErrInvalidCredentials and are checked in that
order before the Store is contacted. Errors returned by the Store are
passed through unchanged.

# Stores

The Store interface is the only dependency on the directory service. The
internal/ldap package implements it over LDAP. Binary identity attributes
(objectGUID, objectSid) are expected in their string form.
*/
package directory
