package ldap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/adlib/directory"
)

// userAccountControl flags.
const (
	UACAccountDisable = 0x0002
	UACNormalAccount  = 0x0200
)

// connection is the subset of *ldap.Conn used by the store.
type connection interface {
	Bind(username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Close() error
}

// entry implements directory.Entry on an LDAP connection.
type entry struct {
	store *Store
	conn  connection
	path  Path

	// objectClass is set on a staged child until its first commit creates it.
	objectClass string

	attrs   map[string][]string // values read or written, keyed by lower-case name
	changes changeSet

	// binding is shared with every child created below this entry.
	binding *binding
}

// binding owns a connection and releases it once.
type binding struct {
	conn connection
	once sync.Once
	err  error
}

func (b *binding) close() error {
	b.once.Do(func() {
		b.err = b.conn.Close()
	})
	return b.err
}

var _ directory.Entry = (*entry)(nil)

func newEntry(s *Store, conn connection, p Path) *entry {
	return &entry{
		store:   s,
		conn:    conn,
		path:    p,
		attrs:   make(map[string][]string),
		binding: &binding{conn: conn},
	}
}

func (e *entry) Path() string {
	return e.path.String()
}

func (e *entry) staged() bool {
	return e.objectClass != ""
}

func (e *entry) requireCreated(operation string) error {
	if e.staged() {
		return WrapError(operation, e.path.DN, fmt.Errorf("invalid state: entry has not been created; commit it first"))
	}
	return nil
}

// Search returns the first entry in the subtree below e matching filter.
// A size limit exceeded result with entries is not an error.
func (e *entry) Search(ctx context.Context, filter directory.Filter, attributes []string) (*directory.SearchResult, error) {
	if err := e.requireCreated("search"); err != nil {
		return nil, err
	}

	rendered, err := renderFilter(filter)
	if err != nil {
		return nil, WrapError("search", e.path.DN, err)
	}

	req := ldap.NewSearchRequest(
		e.path.DN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		e.store.timeLimit(),
		false,
		rendered,
		attributes,
		nil,
	)

	var result *ldap.SearchResult
	err = LogOperation(e.store.ctx, "search", map[string]any{
		"base_dn": e.path.DN,
		"filter":  rendered,
	}, func() error {
		return e.store.withRetry(ctx, func() error {
			res, searchErr := e.conn.Search(req)
			result = res
			if ldap.IsErrorWithCode(searchErr, ldap.LDAPResultSizeLimitExceeded) && res != nil && len(res.Entries) > 0 {
				return nil
			}
			return searchErr
		})
	})
	if err != nil {
		return nil, WrapError("search", e.path.DN, err)
	}

	if result == nil || len(result.Entries) == 0 {
		return nil, nil
	}

	return e.toSearchResult(result.Entries[0]), nil
}

// toSearchResult converts an LDAP entry, decoding binary identity
// attributes to their string form.
func (e *entry) toSearchResult(le *ldap.Entry) *directory.SearchResult {
	res := &directory.SearchResult{
		Path:       e.path.WithDN(le.DN).String(),
		Attributes: make(map[string][]string, len(le.Attributes)),
	}

	for _, attr := range le.Attributes {
		decode, binary := binaryAttributes[strings.ToLower(attr.Name)]
		if !binary {
			res.Attributes[attr.Name] = attr.Values
			continue
		}

		var values []string
		for _, raw := range attr.ByteValues {
			v, err := decode(raw)
			if err != nil {
				LogLDAPError(e.store.ctx, "decode", err, map[string]any{
					"attribute": attr.Name,
					"dn":        le.DN,
				})
				continue
			}
			values = append(values, v)
		}
		res.Attributes[attr.Name] = values
	}

	return res
}

// AddChild stages a child entry sharing this entry's binding.
func (e *entry) AddChild(_ context.Context, rdn, objectClass string) (directory.Entry, error) {
	if err := e.requireCreated("add"); err != nil {
		return nil, err
	}

	parsed, err := ldap.ParseDN(rdn)
	if err != nil || len(parsed.RDNs) != 1 {
		return nil, WrapError("add", rdn, fmt.Errorf("invalid relative distinguished name %q", rdn))
	}

	if objectClass == "" {
		return nil, WrapError("add", rdn, errors.New("invalid object class: must not be empty"))
	}

	return &entry{
		store:       e.store,
		conn:        e.conn,
		path:        e.path.Child(rdn),
		objectClass: objectClass,
		attrs:       make(map[string][]string),
		binding:     e.binding,
	}, nil
}

// Get returns the first value of an attribute written to or read through
// this entry.
func (e *entry) Get(name string) (string, bool) {
	values := e.attrs[strings.ToLower(name)]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (e *entry) Set(name, value string) {
	e.changes.replace(name, value)
	if value == "" {
		delete(e.attrs, strings.ToLower(name))
		return
	}
	e.attrs[strings.ToLower(name)] = []string{value}
}

func (e *entry) AddValue(name, value string) {
	e.changes.add(name, value)
	key := strings.ToLower(name)
	e.attrs[key] = append(e.attrs[key], value)
}

func (e *entry) RemoveValue(name, value string) {
	e.changes.delete(name, value)
	key := strings.ToLower(name)
	values := e.attrs[key][:0]
	for _, v := range e.attrs[key] {
		if v != value {
			values = append(values, v)
		}
	}
	e.attrs[key] = values
}

// Commit creates a staged entry or modifies an existing one with the
// buffered changes. Nothing is sent when there are no changes to an
// existing entry.
func (e *entry) Commit(ctx context.Context) error {
	if e.staged() {
		req := e.changes.addRequest(e.path.DN, e.objectClass)
		err := LogOperation(e.store.ctx, "add", map[string]any{
			"dn":           e.path.DN,
			"object_class": e.objectClass,
			"attributes":   len(req.Attributes),
		}, func() error {
			return e.store.withRetry(ctx, func() error {
				return e.conn.Add(req)
			})
		})
		if err != nil {
			return WrapError("add", e.path.DN, err)
		}
		e.objectClass = ""
		e.changes = nil
		return nil
	}

	if len(e.changes) == 0 {
		return nil
	}

	req := e.changes.modifyRequest(e.path.DN)
	if err := e.modify(ctx, "modify", req); err != nil {
		return err
	}
	e.changes = nil
	return nil
}

func (e *entry) modify(ctx context.Context, operation string, req *ldap.ModifyRequest) error {
	err := LogOperation(e.store.ctx, operation, map[string]any{
		"dn":      req.DN,
		"changes": len(req.Changes),
	}, func() error {
		return e.store.withRetry(ctx, func() error {
			return e.conn.Modify(req)
		})
	})
	return WrapError(operation, req.DN, err)
}

// SetPassword replaces unicodePwd. Active Directory only accepts this over
// an encrypted connection.
func (e *entry) SetPassword(ctx context.Context, password string) error {
	if err := e.requireCreated("set password"); err != nil {
		return err
	}

	encoded, err := EncodePassword(password)
	if err != nil {
		return WrapError("set password", e.path.DN, err)
	}

	req := ldap.NewModifyRequest(e.path.DN, nil)
	req.Replace(attrUnicodePwd, []string{encoded})

	return e.modify(ctx, "set password", req)
}

// SetEnabled clears or sets the ACCOUNTDISABLE flag of userAccountControl,
// keeping every other flag.
func (e *entry) SetEnabled(ctx context.Context, enabled bool) error {
	if err := e.requireCreated("set enabled"); err != nil {
		return err
	}

	uac, err := e.readUAC(ctx)
	if err != nil {
		return err
	}

	updated := uac | UACAccountDisable
	if enabled {
		updated = uac &^ UACAccountDisable
	}
	if updated == uac {
		return nil
	}

	value := strconv.FormatInt(updated, 10)
	req := ldap.NewModifyRequest(e.path.DN, nil)
	req.Replace(attrUAC, []string{value})

	if err := e.modify(ctx, "set enabled", req); err != nil {
		return err
	}
	e.attrs[strings.ToLower(attrUAC)] = []string{value}
	return nil
}

func (e *entry) readUAC(ctx context.Context) (int64, error) {
	req := ldap.NewSearchRequest(
		e.path.DN,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		0,
		e.store.timeLimit(),
		false,
		"(objectClass=*)",
		[]string{attrUAC},
		nil,
	)

	var result *ldap.SearchResult
	err := e.store.withRetry(ctx, func() (err error) {
		result, err = e.conn.Search(req)
		return err
	})
	if err != nil {
		return 0, WrapError("read", e.path.DN, err)
	}

	if len(result.Entries) == 0 {
		return 0, WrapError("read", e.path.DN, ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("entry not found")))
	}

	raw := result.Entries[0].GetAttributeValue(attrUAC)
	if raw == "" {
		return 0, WrapError("read", e.path.DN, fmt.Errorf("invalid principal: %s is not set", attrUAC))
	}

	uac, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, WrapError("read", e.path.DN, fmt.Errorf("invalid %s value %q: %w", attrUAC, raw, err))
	}

	e.attrs[strings.ToLower(attrUAC)] = []string{raw}
	return uac, nil
}

// Close releases the binding shared by this entry and its children.
func (e *entry) Close() error {
	if err := e.binding.close(); err != nil {
		return WrapError("unbind", e.path.DN, err)
	}
	return nil
}
