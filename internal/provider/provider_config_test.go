package provider

import (
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var providerEnvVars = []string{
	"LDAP_URL", "LDAP_BASE_DN", "LDAP_PROTOCOL_VERSION",
	"LDAP_BIND_DN", "LDAP_BIND_PASSWORD", "LDAP_SASL_MECHANISM",
	"LDAP_KERBEROS_REALM", "LDAP_KERBEROS_KEYTAB", "LDAP_KERBEROS_CONFIG", "LDAP_KERBEROS_CCACHE", "LDAP_KERBEROS_SPN",
	"LDAP_START_TLS", "LDAP_TLS_REQUIRE_CERT", "LDAP_TLS_CA_CERT_FILE",
	"LDAP_TIMEOUT", "LDAP_MAX_CONNECTIONS", "LDAP_MAX_IDLE_TIME",
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range providerEnvVars {
		t.Setenv(name, "")
	}
}

func nullProviderModel() *LDAPProviderModel {
	return &LDAPProviderModel{
		URL:             types.StringNull(),
		BaseDN:          types.StringNull(),
		ProtocolVersion: types.Int64Null(),
		BindDN:          types.StringNull(),
		BindPassword:    types.StringNull(),
		SASLMechanism:   types.StringNull(),
		KerberosRealm:   types.StringNull(),
		KerberosKeytab:  types.StringNull(),
		KerberosConfig:  types.StringNull(),
		KerberosCCache:  types.StringNull(),
		KerberosSPN:     types.StringNull(),
		StartTLS:        types.BoolNull(),
		TLSRequireCert:  types.StringNull(),
		TLSCACertFile:   types.StringNull(),
		Timeout:         types.Int64Null(),
		MaxConnections:  types.Int64Null(),
		MaxIdleTime:     types.Int64Null(),
	}
}

func TestBuildLDAPConfig_Defaults(t *testing.T) {
	clearProviderEnv(t)
	p := &LDAPProvider{version: "test"}

	data := nullProviderModel()
	data.URL = types.StringValue("ldap://ldap.example.org/dc=example,dc=org")

	var diags diag.Diagnostics
	cfg := p.buildLDAPConfig(data, &diags)
	require.False(t, diags.HasError(), "%v", diags)

	assert.Equal(t, "ldap://ldap.example.org/dc=example,dc=org", cfg.URL)
	assert.Equal(t, 3, cfg.ProtocolVersion)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 5*time.Minute, cfg.MaxIdleTime)
	assert.Equal(t, ldapclient.TLSDemand, cfg.TLSRequireCert)
	assert.False(t, cfg.StartTLS)
	assert.Empty(t, cfg.BindDN)
	assert.Empty(t, cfg.SASLMechanism)
}

func TestBuildLDAPConfig_Environment(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LDAP_URL", "ldaps://ldap.example.org")
	t.Setenv("LDAP_BIND_DN", "cn=admin,dc=example,dc=org")
	t.Setenv("LDAP_BIND_PASSWORD", "secret")
	t.Setenv("LDAP_START_TLS", "true")
	t.Setenv("LDAP_TLS_REQUIRE_CERT", "allow")
	t.Setenv("LDAP_TIMEOUT", "5")
	t.Setenv("LDAP_MAX_CONNECTIONS", "4")
	t.Setenv("LDAP_MAX_IDLE_TIME", "60")
	p := &LDAPProvider{version: "test"}

	var diags diag.Diagnostics
	cfg := p.buildLDAPConfig(nullProviderModel(), &diags)
	require.False(t, diags.HasError(), "%v", diags)

	assert.Equal(t, "ldaps://ldap.example.org", cfg.URL)
	assert.Equal(t, "cn=admin,dc=example,dc=org", cfg.BindDN)
	assert.Equal(t, "secret", cfg.BindPassword)
	assert.True(t, cfg.StartTLS)
	assert.Equal(t, ldapclient.TLSAllow, cfg.TLSRequireCert)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.Equal(t, time.Minute, cfg.MaxIdleTime)
}

func TestBuildLDAPConfig_ConfigOverridesEnvironment(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LDAP_URL", "ldap://env.example.org")
	t.Setenv("LDAP_START_TLS", "true")
	p := &LDAPProvider{version: "test"}

	data := nullProviderModel()
	data.URL = types.StringValue("ldap://config.example.org")
	data.StartTLS = types.BoolValue(false)

	var diags diag.Diagnostics
	cfg := p.buildLDAPConfig(data, &diags)
	require.False(t, diags.HasError(), "%v", diags)

	assert.Equal(t, "ldap://config.example.org", cfg.URL)
	assert.False(t, cfg.StartTLS)
}

func TestBuildLDAPConfig_KerberosRealmSelectsGSSAPI(t *testing.T) {
	clearProviderEnv(t)
	p := &LDAPProvider{version: "test"}

	data := nullProviderModel()
	data.URL = types.StringValue("ldap://ldap.example.org")
	data.BindDN = types.StringValue("alice")
	data.KerberosRealm = types.StringValue("EXAMPLE.ORG")

	var diags diag.Diagnostics
	cfg := p.buildLDAPConfig(data, &diags)
	require.False(t, diags.HasError(), "%v", diags)

	assert.Equal(t, ldapclient.MechGSSAPI, cfg.SASLMechanism)
	assert.Equal(t, "EXAMPLE.ORG", cfg.KerberosRealm)
}

func TestBuildLDAPConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LDAPProviderModel)
		summary string
	}{
		{
			name:    "missing url",
			mutate:  func(*LDAPProviderModel) {},
			summary: "Missing LDAP URL",
		},
		{
			name: "invalid url",
			mutate: func(m *LDAPProviderModel) {
				m.URL = types.StringValue("http://ldap.example.org")
			},
			summary: "Invalid LDAP URL",
		},
		{
			name: "bind dn without password",
			mutate: func(m *LDAPProviderModel) {
				m.URL = types.StringValue("ldap://ldap.example.org")
				m.BindDN = types.StringValue("cn=admin,dc=example,dc=org")
			},
			summary: "Missing Bind Password",
		},
		{
			name: "unknown certificate level",
			mutate: func(m *LDAPProviderModel) {
				m.URL = types.StringValue("ldap://ldap.example.org")
				m.TLSRequireCert = types.StringValue("sometimes")
			},
			summary: "Invalid TLS Require Cert Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			p := &LDAPProvider{version: "test"}

			data := nullProviderModel()
			tt.mutate(data)

			var diags diag.Diagnostics
			p.buildLDAPConfig(data, &diags)
			require.True(t, diags.HasError())
			assert.Equal(t, tt.summary, diags.Errors()[0].Summary())
		})
	}
}
