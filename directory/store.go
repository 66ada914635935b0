package directory

import (
	"context"
	"strings"
)

// Store is the directory service the session operates on. Every operation
// opens its own binding through Bind and closes it before returning.
type Store interface {
	// Bind authenticates against the entry at path and returns a handle to
	// it. An empty username requests an anonymous binding.
	Bind(ctx context.Context, path, username, password string) (Entry, error)
}

// Entry is a bound handle to a single directory entry.
//
// Attribute writes made through Set, AddValue and RemoveValue are buffered
// until Commit. Entries created by AddChild share the binding of their
// parent; closing the parent releases it.
type Entry interface {
	// Path returns the fully-qualified path of the entry.
	Path() string

	// Search looks for the first entry below this one matching filter and
	// returns the requested attributes. A nil result means no match.
	Search(ctx context.Context, filter Filter, attributes []string) (*SearchResult, error)

	// AddChild stages a new entry named rdn of the given object class below
	// this one. The entry is created in the store by its first Commit.
	AddChild(ctx context.Context, rdn, objectClass string) (Entry, error)

	// Get returns the first value of a loaded attribute.
	Get(name string) (string, bool)

	// Set replaces all values of an attribute. An empty value clears it.
	Set(name, value string)

	// AddValue adds a value to a multi-valued attribute.
	AddValue(name, value string)

	// RemoveValue removes a value from a multi-valued attribute.
	RemoveValue(name, value string)

	// Commit writes all buffered changes to the store.
	Commit(ctx context.Context) error

	// SetPassword sets the account password of a principal entry.
	SetPassword(ctx context.Context, password string) error

	// SetEnabled enables or disables a principal entry.
	SetEnabled(ctx context.Context, enabled bool) error

	// Close releases the binding.
	Close() error
}

// Equal is a single attribute equality assertion.
type Equal struct {
	Attribute string
	Value     string
}

// Filter is a conjunction of equality assertions. Stores render it in
// their own syntax and escape the values.
type Filter []Equal

// And builds a Filter from the given assertions.
func And(assertions ...Equal) Filter {
	return Filter(assertions)
}

// Equals builds an attribute equality assertion.
func Equals(attribute, value string) Equal {
	return Equal{Attribute: attribute, Value: value}
}

// ObjectClass builds an objectClass equality assertion.
func ObjectClass(class string) Equal {
	return Equals("objectClass", class)
}

// String renders the filter in LDAP syntax without escaping, for logging.
func (f Filter) String() string {
	var b strings.Builder
	if len(f) > 1 {
		b.WriteString("(&")
	}
	for _, eq := range f {
		b.WriteString("(" + eq.Attribute + "=" + eq.Value + ")")
	}
	if len(f) > 1 {
		b.WriteString(")")
	}
	return b.String()
}

// SearchResult is the first entry matched by a search.
type SearchResult struct {
	Path       string
	Attributes map[string][]string
}

// First returns the first non-empty value of an attribute.
// Attribute names are matched case-insensitively.
func (r *SearchResult) First(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for attr, values := range r.Attributes {
		if !strings.EqualFold(attr, name) {
			continue
		}
		for _, v := range values {
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}
