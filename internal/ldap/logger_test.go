package ldap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFields(t *testing.T) {
	fields := map[string]any{
		"bind_dn":       "cn=admin,dc=example,dc=org",
		"Bind_Password": "secret",
		"url":           "ldap://localhost:389",
		"filter":        "(userPassword=secret)",
		"size_limit":    10,
	}

	got := SanitizeFields(fields)

	assert.Equal(t, "cn=admin,dc=example,dc=org", got["bind_dn"])
	assert.Equal(t, "[REDACTED]", got["Bind_Password"])
	assert.Equal(t, "ldap://localhost:389", got["url"])
	assert.Equal(t, "[REDACTED]", got["filter"])
	assert.Equal(t, 10, got["size_limit"])
	assert.Equal(t, "secret", fields["Bind_Password"], "input must not be modified")
}

func TestLogOperation(t *testing.T) {
	ctx := NewLoggingContext(t.Context())

	calls := 0
	err := LogOperation(ctx, SubsystemLDAP, "search", map[string]any{"base": "dc=example,dc=org"}, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	err = LogOperation(ctx, SubsystemLDAP, "search", nil, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLogTerraformOperation(t *testing.T) {
	ctx := NewLoggingContext(t.Context())

	done := LogResourceOperation(ctx, "ldap_entry", "create", map[string]any{"password": "x"})
	done(nil)

	done = LogDataSourceOperation(ctx, "ldap_search", "read", nil)
	done(errors.New("failed"))
}
