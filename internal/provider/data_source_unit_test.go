package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

func TestMapAuthzID(t *testing.T) {
	tests := []struct {
		authzID string
		id      string
		format  string
		dn      string
		user    string
	}{
		{authzID: "", id: "anonymous", format: "empty"},
		{authzID: "dn:cn=admin,dc=example,dc=org", id: "dn:cn=admin,dc=example,dc=org", format: "dn", dn: "cn=admin,dc=example,dc=org"},
		{authzID: "u:alice", id: "u:alice", format: "u", user: "alice"},
		{authzID: "u:", id: "u:", format: "u", user: ""},
		{authzID: "alice@EXAMPLE.ORG", id: "alice@EXAMPLE.ORG", format: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.authzID, func(t *testing.T) {
			var data WhoAmIDataSourceModel
			mapAuthzID(tt.authzID, &data)

			assert.Equal(t, tt.authzID, data.AuthzID.ValueString())
			assert.Equal(t, tt.id, data.ID.ValueString())
			assert.Equal(t, tt.format, data.Format.ValueString())

			if tt.format == "dn" {
				assert.Equal(t, tt.dn, data.DN.ValueString())
			} else {
				assert.True(t, data.DN.IsNull())
			}
			if tt.format == "u" {
				assert.False(t, data.User.IsNull())
				assert.Equal(t, tt.user, data.User.ValueString())
			} else {
				assert.True(t, data.User.IsNull())
			}
		})
	}
}

func TestParseErrorMessages(t *testing.T) {
	assert.Equal(t, []string{}, parseErrorMessages(nil))

	single := errors.New("boom")
	assert.Equal(t, []string{"boom"}, parseErrorMessages(single))

	var merr *multierror.Error
	merr = multierror.Append(merr, errors.New("first"), errors.New("second"))
	assert.Equal(t, []string{"first", "second"}, parseErrorMessages(fmt.Errorf("schema: %w", merr)))
}

func TestMapSubschema(t *testing.T) {
	desc := "Directory String"
	equality := "caseIgnoreMatch"
	syntax := "1.3.6.1.4.1.1466.115.121.1.15"

	s := &ldapclient.Subschema{
		DN: "cn=Subschema",
		Syntaxes: []*ldapclient.Syntax{
			{OID: syntax, Desc: &desc},
		},
		MatchingRules: []*ldapclient.MatchingRule{
			{OID: "2.5.13.2", Names: []string{equality}, SyntaxOID: syntax},
		},
		AttributeTypes: []*ldapclient.AttributeType{
			{OID: "2.5.4.3", Names: []string{"cn", "commonName"}, EqualityOID: &equality, SyntaxOID: &syntax},
			{OID: "2.5.18.1", Names: []string{"createTimestamp"}, SingleValue: true, NoUserMod: true, Usage: ldapclient.UsageDirectoryOperation},
		},
		ObjectClasses: []*ldapclient.ObjectClass{
			{OID: "2.5.6.0", Names: []string{"top"}, Kind: ldapclient.KindAbstract, Must: []string{"objectClass"}},
		},
	}

	var data SchemaDataSourceModel
	diags := mapSubschema(t.Context(), s, []string{"bad definition"}, &data)
	require.False(t, diags.HasError(), "%v", diags)

	assert.Equal(t, "cn=Subschema", data.ID.ValueString())

	var syntaxes []syntaxModel
	require.False(t, data.Syntaxes.ElementsAs(t.Context(), &syntaxes, false).HasError())
	require.Len(t, syntaxes, 1)
	assert.Equal(t, desc, syntaxes[0].Desc.ValueString())

	var attrTypes []attributeTypeModel
	require.False(t, data.AttributeTypes.ElementsAs(t.Context(), &attrTypes, false).HasError())
	require.Len(t, attrTypes, 2)
	assert.Equal(t, []string{"cn", "commonName"}, attrTypes[0].Names)
	assert.Equal(t, equality, attrTypes[0].Equality.ValueString())
	assert.True(t, attrTypes[0].Sup.IsNull())
	assert.True(t, attrTypes[0].Desc.IsNull())
	assert.Equal(t, "userApplications", attrTypes[0].Usage.ValueString())
	assert.Equal(t, "directoryOperation", attrTypes[1].Usage.ValueString())
	assert.True(t, attrTypes[1].NoUserMod.ValueBool())

	var classes []objectClassModel
	require.False(t, data.ObjectClasses.ElementsAs(t.Context(), &classes, false).HasError())
	require.Len(t, classes, 1)
	assert.Equal(t, "ABSTRACT", classes[0].Kind.ValueString())
	assert.Equal(t, []string{}, classes[0].Sup)
	assert.Equal(t, []string{}, classes[0].May)

	var problems []string
	require.False(t, data.ParseErrors.ElementsAs(t.Context(), &problems, false).HasError())
	assert.Equal(t, []string{"bad definition"}, problems)
}
