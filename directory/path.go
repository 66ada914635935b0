package directory

import (
	"fmt"
	"strings"
)

// DefaultUserContainer is the organizational unit new users are created in
// when no other is given.
const DefaultUserContainer = "Users"

// Domain holds the active domain root and the fragments derived from it.
//
// For the root "LDAP://example.com/DC=example,DC=com":
//
//	Prefix    "LDAP://example.com/"
//	Name      "example.com"
//	Suffix    "DC=example,DC=com"
//	UsersPath "LDAP://example.com/OU=Users,DC=example,DC=com"
type Domain struct {
	Root      string
	Name      string
	Prefix    string
	Suffix    string
	UsersPath string
}

// parseDomain derives all domain fragments from root. It never returns a
// partially filled Domain.
func parseDomain(root string) (Domain, error) {
	if strings.TrimSpace(root) == "" {
		return Domain{}, fmt.Errorf("%w: domain root must not be empty", ErrInvalidArgument)
	}

	sep := strings.LastIndexByte(root, '/')
	if sep < 0 {
		return Domain{}, fmt.Errorf("%w: domain root %q has no path separator", ErrInvalidArgument, root)
	}

	prefix, suffix := root[:sep+1], root[sep+1:]
	if suffix == "" {
		return Domain{}, fmt.Errorf("%w: domain root %q has no distinguished name after the last separator", ErrInvalidArgument, root)
	}

	name := prefix
	if _, rest, ok := strings.Cut(prefix, "://"); ok {
		name = rest
	}
	name = strings.TrimSuffix(name, "/")

	d := Domain{
		Root:   root,
		Name:   name,
		Prefix: prefix,
		Suffix: suffix,
	}
	d.UsersPath = d.path(DefaultUserContainer)

	return d, nil
}

// path joins the given organizational units, innermost first, below the
// domain root.
func (d Domain) path(ous ...string) string {
	var b strings.Builder
	b.WriteString(d.Prefix)
	for _, ou := range ous {
		b.WriteString("OU=")
		b.WriteString(EscapeDNValue(ou))
		b.WriteByte(',')
	}
	b.WriteString(d.Suffix)
	return b.String()
}

// child returns the path of the entry named rdn directly below parent.
func (d Domain) child(rdn, parent string) string {
	return d.Prefix + rdn + "," + d.DN(parent)
}

// DN strips the domain prefix from path, leaving its distinguished name.
// Paths outside the domain are returned unchanged.
func (d Domain) DN(path string) string {
	return strings.TrimPrefix(path, d.Prefix)
}

func validateOUs(ous []string) error {
	if len(ous) == 0 {
		return fmt.Errorf("%w: organizational unit list must not be empty", ErrInvalidArgument)
	}
	for i, ou := range ous {
		if strings.TrimSpace(ou) == "" {
			return fmt.Errorf("%w: organizational unit %d is empty", ErrInvalidArgument, i)
		}
	}
	return nil
}

// BuildPath returns the path of the organizational unit nested as given:
// ous[0] is the innermost unit and the last element sits directly below the
// domain root. Names are escaped for use in a distinguished name.
func (s *Session) BuildPath(ous []string) (string, error) {
	if err := validateOUs(ous); err != nil {
		return "", err
	}

	d, err := s.requireDomain()
	if err != nil {
		return "", err
	}

	return d.path(ous...), nil
}

// DN returns the distinguished name of a path within the active domain.
func (s *Session) DN(path string) (string, error) {
	d, err := s.requireDomain()
	if err != nil {
		return "", err
	}
	return d.DN(path), nil
}
