package ldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// StringList converts a host sequence into an owned []string. v must be a
// non-empty []string or []any whose elements are all strings.
func StringList(op string, v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, invalidArgument(op, "must be a non-empty list")
	case []string:
		if len(list) == 0 {
			return nil, invalidArgument(op, "must be a non-empty list")
		}
		return append([]string(nil), list...), nil
	case []any:
		if len(list) == 0 {
			return nil, invalidArgument(op, "must be a non-empty list")
		}
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, invalidArgument(op, "list element %d must be a string, not %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, invalidArgument(op, "must be a list, not %T", v)
	}
}

// AnyList is the inverse of StringList.
func AnyList(values []string) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// JoinMechanisms builds the space separated, upper-cased mechanism list used
// for SASL negotiation. Empty entries are skipped.
func JoinMechanisms(mechs []string) string {
	parts := make([]string, 0, len(mechs))
	for _, m := range mechs {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		parts = append(parts, strings.ToUpper(m))
	}
	return strings.Join(parts, " ")
}

// Attribute is one attribute of a search result entry.
type Attribute struct {
	Name   string
	Values []string
}

// Entry is a search result entry. Attributes keep the order the server sent.
type Entry struct {
	DN         string
	Attributes []Attribute
}

// Map returns the attribute -> values view of e.
func (e Entry) Map() map[string][]string {
	m := make(map[string][]string, len(e.Attributes))
	for _, a := range e.Attributes {
		m[a.Name] = append(m[a.Name], a.Values...)
	}
	return m
}

// Get returns the values of the first attribute named name, compared
// case-insensitively.
func (e Entry) Get(name string) []string {
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Values
		}
	}
	return nil
}

func entryFromLDAP(src *ldap.Entry) Entry {
	e := Entry{
		DN:         src.DN,
		Attributes: make([]Attribute, 0, len(src.Attributes)),
	}
	for _, a := range src.Attributes {
		e.Attributes = append(e.Attributes, Attribute{
			Name:   a.Name,
			Values: renderValues(a.Name, a.ByteValues, a.Values),
		})
	}
	return e
}

func entriesFromLDAP(src []*ldap.Entry) []Entry {
	out := make([]Entry, 0, len(src))
	for _, e := range src {
		if e == nil {
			continue
		}
		out = append(out, entryFromLDAP(e))
	}
	return out
}
