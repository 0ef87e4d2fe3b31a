package ldap

import (
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubschema(t *testing.T) {
	entry := ldap.NewEntry("cn=Subschema", map[string][]string{
		"ldapSyntaxes": {
			"( 1.3.6.1.4.1.1466.115.121.1.15 DESC 'Directory String' )",
		},
		"matchingRules": {
			"( 2.5.13.2 NAME 'caseIgnoreMatch' SYNTAX 1.3.6.1.4.1.1466.115.121.1.15 )",
			"( 2.5.13.3 NAME 'caseIgnoreOrderingMatch' )",
		},
		"attributeTypes": {
			cnAttributeType,
			"( 2.5.4.4 NAME ( 'sn' 'surname' ) SUP name )",
			"( 2.5.4.41 NAME 'name' ",
		},
		"objectClasses": {
			personObjectClass,
		},
	})

	schema, err := parseSubschema(entry, SchemaAllowNone)
	require.Error(t, err)
	require.NotNil(t, schema)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Equal(t, 2, errorCount(err))
	assert.Contains(t, err.Error(), "matchingRules: ldap_str2matchingrule()")
	assert.Contains(t, err.Error(), "attributeTypes: ldap_str2attributetype()")

	assert.Len(t, schema.Syntaxes, 1)
	assert.Len(t, schema.MatchingRules, 1)
	assert.Len(t, schema.AttributeTypes, 2)
	assert.Len(t, schema.ObjectClasses, 1)
	assert.Empty(t, schema.MatchingRuleUses)

	assert.Equal(t, "2.5.4.4", schema.AttributeType("SURNAME").OID)
	assert.Equal(t, "2.5.4.3", schema.AttributeType("2.5.4.3").OID)
	assert.Nil(t, schema.AttributeType("name"))
	assert.Equal(t, "2.5.6.6", schema.ObjectClass("Person").OID)
	assert.Nil(t, schema.ObjectClass("organization"))
}

func TestParseSubschemaClean(t *testing.T) {
	entry := ldap.NewEntry("cn=Subschema", map[string][]string{
		"objectClasses": {personObjectClass},
	})

	schema, err := parseSubschema(entry, SchemaAllowAll)
	require.NoError(t, err)
	assert.Len(t, schema.ObjectClasses, 1)
	assert.Equal(t, 0, errorCount(err))
}

func TestMatchesElement(t *testing.T) {
	names := []string{"cn", "commonName"}

	tests := []struct {
		key  string
		want bool
	}{
		{"2.5.4.3", true},
		{"COMMONNAME", true},
		{"Cn", true},
		{"sn", false},
		{"cn1", false},
		{"2.5.4.30", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesElement("2.5.4.3", names, tt.key))
		})
	}
}
