package provider

import (
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

type modSummary struct {
	mode   ldapclient.ModMode
	attr   string
	values []string
}

func summarize(mods []*ldapclient.Mod) []modSummary {
	out := make([]modSummary, 0, len(mods))
	for _, m := range mods {
		out = append(out, modSummary{mode: m.Mode(), attr: m.Attr(), values: m.Values()})
	}
	return out
}

func TestAttributeChanges(t *testing.T) {
	tests := []struct {
		name string
		have map[string][]string
		want map[string][]string
		mods []modSummary
	}{
		{
			name: "no change",
			have: map[string][]string{"cn": {"alice"}, "mail": {"a@example.org", "b@example.org"}},
			want: map[string][]string{"cn": {"alice"}, "mail": {"b@example.org", "a@example.org"}},
			mods: []modSummary{},
		},
		{
			name: "replace changed values",
			have: map[string][]string{"cn": {"alice"}, "sn": {"Doe"}},
			want: map[string][]string{"cn": {"alice"}, "sn": {"Smith"}},
			mods: []modSummary{
				{mode: ldapclient.ModReplace, attr: "sn", values: []string{"Smith"}},
			},
		},
		{
			name: "add new attribute",
			have: map[string][]string{"cn": {"alice"}},
			want: map[string][]string{"cn": {"alice"}, "description": {"admin"}},
			mods: []modSummary{
				{mode: ldapclient.ModReplace, attr: "description", values: []string{"admin"}},
			},
		},
		{
			name: "delete dropped attribute",
			have: map[string][]string{"cn": {"alice"}, "telephoneNumber": {"+1 555 0100"}},
			want: map[string][]string{"cn": {"alice"}},
			mods: []modSummary{
				{mode: ldapclient.ModDelete, attr: "telephoneNumber"},
			},
		},
		{
			name: "names compare case-insensitively",
			have: map[string][]string{"objectclass": {"person", "top"}},
			want: map[string][]string{"objectClass": {"top", "person"}},
			mods: []modSummary{},
		},
		{
			name: "replaces sorted before deletes",
			have: map[string][]string{"b": {"1"}, "z": {"1"}},
			want: map[string][]string{"c": {"2"}, "a": {"2"}},
			mods: []modSummary{
				{mode: ldapclient.ModReplace, attr: "a", values: []string{"2"}},
				{mode: ldapclient.ModReplace, attr: "c", values: []string{"2"}},
				{mode: ldapclient.ModDelete, attr: "b"},
				{mode: ldapclient.ModDelete, attr: "z"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods, err := attributeChanges(tt.have, tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.mods, summarize(mods))
		})
	}
}

func TestAttributeChanges_EmptyValues(t *testing.T) {
	_, err := attributeChanges(map[string][]string{}, map[string][]string{"cn": {}})
	assert.ErrorIs(t, err, ldapclient.ErrInvalidArgument)
}

func TestAlignAttributeNames(t *testing.T) {
	read := map[string][]string{
		"objectclass": {"top", "person"},
		"CN":          {"alice"},
		"sn":          {"Doe"},
	}
	managed := map[string][]string{
		"objectClass": nil,
		"cn":          nil,
		"sn":          nil,
		"mail":        nil,
	}

	got := alignAttributeNames(read, managed)

	assert.Equal(t, map[string][]string{
		"objectClass": {"top", "person"},
		"cn":          {"alice"},
		"sn":          {"Doe"},
	}, got)
}

func TestSameValues(t *testing.T) {
	assert.True(t, sameValues(nil, nil))
	assert.True(t, sameValues([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameValues([]string{"a"}, []string{"a", "a"}))
	assert.False(t, sameValues([]string{"a", "b"}, []string{"a", "c"}))

	// inputs are not reordered
	a := []string{"b", "a"}
	sameValues(a, []string{"a", "b"})
	assert.Equal(t, []string{"b", "a"}, a)
}

func TestAttributesFromMap(t *testing.T) {
	m := types.MapValueMust(attributeValuesType, map[string]attr.Value{
		"cn": types.SetValueMust(types.StringType, []attr.Value{types.StringValue("alice")}),
	})

	got, diags := attributesFromMap(t.Context(), m)
	require.False(t, diags.HasError())
	assert.Equal(t, map[string][]string{"cn": {"alice"}}, got)
}
