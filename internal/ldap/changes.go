package ldap

import (
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

type changeOp int

const (
	opReplace changeOp = iota // replace all values; no values clears the attribute
	opAdd
	opDelete
)

// change is a buffered attribute modification.
type change struct {
	op     changeOp
	name   string
	values []string
}

// changeSet accumulates attribute modifications in the order they were made.
type changeSet []change

func (cs *changeSet) replace(name, value string) {
	var values []string
	if value != "" {
		values = []string{value}
	}
	*cs = append(*cs, change{op: opReplace, name: name, values: values})
}

func (cs *changeSet) add(name, value string) {
	*cs = append(*cs, change{op: opAdd, name: name, values: []string{value}})
}

func (cs *changeSet) delete(name, value string) {
	*cs = append(*cs, change{op: opDelete, name: name, values: []string{value}})
}

// addRequest builds the request creating a new entry from the buffered
// changes. Clears are dropped since the entry has no values yet; adds and
// deletes are folded into the resulting value lists.
func (cs changeSet) addRequest(dn, objectClass string) *ldap.AddRequest {
	var order []string
	values := make(map[string][]string)

	for _, c := range cs {
		key := strings.ToLower(c.name)
		if _, seen := values[key]; !seen {
			order = append(order, c.name)
			values[key] = nil
		}

		switch c.op {
		case opReplace:
			values[key] = slices.Clone(c.values)
		case opAdd:
			values[key] = append(values[key], c.values...)
		case opDelete:
			values[key] = slices.DeleteFunc(values[key], func(v string) bool {
				return slices.Contains(c.values, v)
			})
		}
	}

	req := ldap.NewAddRequest(dn, nil)
	req.Attribute("objectClass", []string{"top", objectClass})
	for _, name := range order {
		if vals := values[strings.ToLower(name)]; len(vals) > 0 {
			req.Attribute(name, vals)
		}
	}

	return req
}

// modifyRequest builds the request applying the buffered changes to an
// existing entry, one operation per change.
func (cs changeSet) modifyRequest(dn string) *ldap.ModifyRequest {
	req := ldap.NewModifyRequest(dn, nil)
	for _, c := range cs {
		values := c.values
		if values == nil {
			values = []string{}
		}

		switch c.op {
		case opReplace:
			req.Replace(c.name, values)
		case opAdd:
			req.Add(c.name, values)
		case opDelete:
			req.Delete(c.name, values)
		}
	}
	return req
}
