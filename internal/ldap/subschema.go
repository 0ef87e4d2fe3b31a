package ldap

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subschema holds the parsed definitions of a subschema subentry.
type Subschema struct {
	DN               string
	Syntaxes         []*Syntax
	MatchingRules    []*MatchingRule
	MatchingRuleUses []*MatchingRuleUse
	AttributeTypes   []*AttributeType
	ObjectClasses    []*ObjectClass
}

// AttributeType returns the attribute type with the given OID or name.
func (s *Subschema) AttributeType(nameOrOID string) *AttributeType {
	for _, at := range s.AttributeTypes {
		if matchesElement(at.OID, at.Names, nameOrOID) {
			return at
		}
	}
	return nil
}

// ObjectClass returns the object class with the given OID or name.
func (s *Subschema) ObjectClass(nameOrOID string) *ObjectClass {
	for _, oc := range s.ObjectClasses {
		if matchesElement(oc.OID, oc.Names, nameOrOID) {
			return oc
		}
	}
	return nil
}

func matchesElement(oid string, names []string, key string) bool {
	if oid == key {
		return true
	}
	for _, n := range names {
		if strings.EqualFold(n, key) {
			return true
		}
	}
	return false
}

var subschemaAttributes = []string{
	"ldapSyntaxes",
	"matchingRules",
	"matchingRuleUse",
	"attributeTypes",
	"objectClasses",
}

// GetSchema reads the subschema subentry and parses every definition with
// flags. Definitions that fail to parse are skipped; their errors are
// returned together with the partial schema.
func (c *Conn) GetSchema(ctx context.Context, flags SchemaFlags) (*Subschema, error) {
	const op = "get_schema"
	if err := c.check(op); err != nil {
		return nil, err
	}
	if err := checkSchemaFlags(op, flags); err != nil {
		return nil, err
	}

	dn, err := c.subschemaDN(ctx)
	if err != nil {
		return nil, err
	}

	req := ldap.NewSearchRequest(dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=subschema)", subschemaAttributes, nil)

	var entry *ldap.Entry
	err = LogOperation(ctx, SubsystemLDAP, op, map[string]any{"dn": dn}, func() error {
		res, err := c.conn.Search(req)
		if err != nil {
			return protocolError(op, dn, err)
		}
		if len(res.Entries) == 0 {
			return newError(op, ErrProtocol, "subschema entry %s not found", dn)
		}
		entry = res.Entries[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	schema, parseErr := parseSubschema(entry, flags)
	schema.DN = dn

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Parsed subschema", map[string]any{
		"dn":               dn,
		"syntaxes":         len(schema.Syntaxes),
		"matching_rules":   len(schema.MatchingRules),
		"attribute_types":  len(schema.AttributeTypes),
		"object_classes":   len(schema.ObjectClasses),
		"rejected_entries": errorCount(parseErr),
	})
	return schema, parseErr
}

// subschemaDN reads subschemaSubentry from the root DSE, falling back to
// cn=Subschema.
func (c *Conn) subschemaDN(ctx context.Context) (string, error) {
	req := ldap.NewSearchRequest("", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)", []string{"subschemaSubentry"}, nil)
	res, err := c.conn.Search(req)
	if err != nil {
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Root DSE not readable, using default subschema DN", map[string]any{
			"error": err.Error(),
		})
		return SchemaBase, nil
	}
	if len(res.Entries) > 0 {
		if dn := res.Entries[0].GetAttributeValue("subschemaSubentry"); dn != "" {
			return dn, nil
		}
	}
	return SchemaBase, nil
}

func parseSubschema(entry *ldap.Entry, flags SchemaFlags) (*Subschema, error) {
	var result *multierror.Error
	schema := &Subschema{}

	collect := func(attr string, parse func(string) error) {
		for _, def := range entry.GetEqualFoldAttributeValues(attr) {
			if err := parse(def); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", attr, err))
			}
		}
	}

	collect("ldapSyntaxes", func(def string) error {
		syn, err := ParseSyntax(def, flags)
		if err == nil {
			schema.Syntaxes = append(schema.Syntaxes, syn)
		}
		return err
	})
	collect("matchingRules", func(def string) error {
		mr, err := ParseMatchingRule(def, flags)
		if err == nil {
			schema.MatchingRules = append(schema.MatchingRules, mr)
		}
		return err
	})
	collect("matchingRuleUse", func(def string) error {
		mru, err := ParseMatchingRuleUse(def, flags)
		if err == nil {
			schema.MatchingRuleUses = append(schema.MatchingRuleUses, mru)
		}
		return err
	})
	collect("attributeTypes", func(def string) error {
		at, err := ParseAttributeType(def, flags)
		if err == nil {
			schema.AttributeTypes = append(schema.AttributeTypes, at)
		}
		return err
	})
	collect("objectClasses", func(def string) error {
		oc, err := ParseObjectClass(def, flags)
		if err == nil {
			schema.ObjectClasses = append(schema.ObjectClasses, oc)
		}
		return err
	})

	return schema, result.ErrorOrNil()
}

func errorCount(err error) int {
	if merr, ok := err.(*multierror.Error); ok {
		return len(merr.Errors)
	}
	if err != nil {
		return 1
	}
	return 0
}
