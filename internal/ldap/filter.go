package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/adlib/directory"
)

// renderFilter converts a structured filter to LDAP syntax, escaping every
// assertion value. An empty filter matches any entry.
func renderFilter(f directory.Filter) (string, error) {
	if len(f) == 0 {
		return "(objectClass=*)", nil
	}

	var b strings.Builder
	if len(f) > 1 {
		b.WriteString("(&")
	}
	for _, eq := range f {
		if !validAttributeName(eq.Attribute) {
			return "", fmt.Errorf("invalid attribute name %q in filter", eq.Attribute)
		}
		fmt.Fprintf(&b, "(%s=%s)", eq.Attribute, ldap.EscapeFilter(eq.Value))
	}
	if len(f) > 1 {
		b.WriteString(")")
	}

	filter := b.String()
	if _, err := ldap.CompileFilter(filter); err != nil {
		return "", fmt.Errorf("invalid filter %s: %w", filter, err)
	}

	return filter, nil
}

// validAttributeName accepts attribute descriptions made of letters,
// digits and hyphens, and numeric OIDs.
func validAttributeName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '-', r == '.', r == ';':
		default:
			return false
		}
	}
	return true
}
