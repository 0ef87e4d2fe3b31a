package ldap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ModMode is the operation of a modification record.
type ModMode int

const (
	ModAdd     ModMode = 0 // LDAP_MOD_ADD
	ModDelete  ModMode = 1 // LDAP_MOD_DELETE
	ModReplace ModMode = 2 // LDAP_MOD_REPLACE
)

func (m ModMode) String() string {
	switch m {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m ModMode) valid() bool {
	return m == ModAdd || m == ModDelete || m == ModReplace
}

// ParseModMode accepts add, delete or replace in any case.
func ParseModMode(s string) (ModMode, error) {
	switch strings.ToLower(s) {
	case "add":
		return ModAdd, nil
	case "delete":
		return ModDelete, nil
	case "replace":
		return ModReplace, nil
	default:
		return 0, newError("LDAPMod", ErrValue, "unknown modification mode %q", s)
	}
}

// ModModeNames lists the accepted ParseModMode inputs.
func ModModeNames() []string {
	return []string{"add", "delete", "replace"}
}

// Mod is one pending attribute change.
type Mod struct {
	mode   ModMode
	attr   string
	values []string
}

// NewMod validates and copies its arguments. values may be nil; otherwise it
// must be a non-empty []string or []any of strings.
func NewMod(mode ModMode, attr string, values any) (*Mod, error) {
	if !mode.valid() {
		return nil, newError("LDAPMod", ErrValue, "invalid mode %d, expected MOD_ADD, MOD_DELETE or MOD_REPLACE", int(mode))
	}
	if attr == "" {
		return nil, invalidArgument("LDAPMod", "attribute name is required")
	}

	m := &Mod{mode: mode, attr: attr}
	if values == nil {
		return m, nil
	}

	// typed nil slices are "provided but empty"
	list, err := StringList("LDAPMod", values)
	if err != nil {
		return nil, err
	}
	m.values = list
	return m, nil
}

// NewMods builds one Mod per attribute, ordered by attribute name. Values are
// dropped for ModDelete.
func NewMods(mode ModMode, attrs map[string][]string) ([]*Mod, error) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)

	mods := make([]*Mod, 0, len(names))
	for _, name := range names {
		var values any
		if mode != ModDelete && attrs[name] != nil {
			values = attrs[name]
		}
		m, err := NewMod(mode, name, values)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func (m *Mod) Mode() ModMode { return m.mode }

func (m *Mod) Attr() string { return m.attr }

// Values returns a copy of the values, or nil when none were set.
func (m *Mod) Values() []string {
	if m.values == nil {
		return nil
	}
	return append([]string(nil), m.values...)
}

func (m *Mod) String() string {
	return fmt.Sprintf("LDAPMod(%s, %s, %v)", m.mode, m.attr, m.values)
}

func checkMods(op string, mods []*Mod) error {
	if len(mods) == 0 {
		return invalidArgument(op, "mods must be a non-empty list")
	}
	for i, m := range mods {
		if m == nil || !m.mode.valid() || m.attr == "" {
			return invalidArgument(op, "mods element %d is not a valid LDAPMod", i)
		}
	}
	return nil
}

func buildAddRequest(dn string, mods []*Mod, ctrls []ldap.Control) *ldap.AddRequest {
	req := ldap.NewAddRequest(dn, ctrls)
	for _, m := range mods {
		req.Attribute(m.attr, m.Values())
	}
	return req
}

func buildModifyRequest(dn string, mods []*Mod, ctrls []ldap.Control) *ldap.ModifyRequest {
	req := ldap.NewModifyRequest(dn, ctrls)
	for _, m := range mods {
		switch m.mode {
		case ModAdd:
			req.Add(m.attr, m.Values())
		case ModDelete:
			req.Delete(m.attr, m.Values())
		case ModReplace:
			req.Replace(m.attr, m.Values())
		}
	}
	return req
}
