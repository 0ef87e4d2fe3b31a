package ldap

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr bool
	}{
		{
			name:  "string slice",
			input: []string{"cn", "mail", "uid"},
			want:  []string{"cn", "mail", "uid"},
		},
		{
			name:  "any slice of strings",
			input: []any{"objectClass", "cn"},
			want:  []string{"objectClass", "cn"},
		},
		{
			name:    "nil",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "empty string slice",
			input:   []string{},
			wantErr: true,
		},
		{
			name:    "empty any slice",
			input:   []any{},
			wantErr: true,
		},
		{
			name:    "non string element",
			input:   []any{"cn", 42},
			wantErr: true,
		},
		{
			name:    "not a list",
			input:   "cn",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StringList("test", tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringListRoundTrip(t *testing.T) {
	inputs := [][]string{
		{"a"},
		{"uid=bob", "uid=alice", "uid=bob"},
		{"", "ünïcödé", "with space"},
	}

	for _, in := range inputs {
		out, err := StringList("test", AnyList(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestStringListCopies(t *testing.T) {
	in := []string{"one", "two"}
	out, err := StringList("test", in)
	require.NoError(t, err)

	in[0] = "changed"
	assert.Equal(t, "one", out[0])
}

func TestJoinMechanisms(t *testing.T) {
	assert.Equal(t, "GSSAPI EXTERNAL", JoinMechanisms([]string{"gssapi", " ", "External"}))
	assert.Equal(t, "", JoinMechanisms(nil))
}

func TestEntryFromLDAPKeepsOrder(t *testing.T) {
	src := ldap.NewEntry("uid=bob,dc=example,dc=org", map[string][]string{
		"uid": {"bob"},
	})
	src.Attributes = append(src.Attributes,
		ldap.NewEntryAttribute("mail", []string{"bob@example.org", "b@example.org"}),
		ldap.NewEntryAttribute("cn", []string{"Bob"}),
	)

	e := entryFromLDAP(src)
	require.Len(t, e.Attributes, 3)
	assert.Equal(t, "uid=bob,dc=example,dc=org", e.DN)
	assert.Equal(t, "uid", e.Attributes[0].Name)
	assert.Equal(t, "mail", e.Attributes[1].Name)
	assert.Equal(t, []string{"bob@example.org", "b@example.org"}, e.Get("MAIL"))
	assert.Nil(t, e.Get("description"))
	assert.Equal(t, map[string][]string{
		"uid":  {"bob"},
		"mail": {"bob@example.org", "b@example.org"},
		"cn":   {"Bob"},
	}, e.Map())
}

func TestEntriesFromLDAPSkipsNil(t *testing.T) {
	entries := entriesFromLDAP([]*ldap.Entry{
		ldap.NewEntry("cn=a", nil),
		nil,
		ldap.NewEntry("cn=b", nil),
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "cn=a", entries[0].DN)
	assert.Equal(t, "cn=b", entries[1].DN)
}
