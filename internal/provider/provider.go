package provider

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/ephemeral"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure LDAPProvider satisfies various provider interfaces.
var _ provider.Provider = &LDAPProvider{}
var _ provider.ProviderWithFunctions = &LDAPProvider{}
var _ provider.ProviderWithEphemeralResources = &LDAPProvider{}
var _ provider.ProviderWithConfigValidators = &LDAPProvider{}

// LDAPProvider defines the provider implementation.
type LDAPProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string
}

// LDAPProviderModel describes the provider data model.
type LDAPProviderModel struct {
	URL             types.String `tfsdk:"url"`
	BaseDN          types.String `tfsdk:"base_dn"`
	ProtocolVersion types.Int64  `tfsdk:"protocol_version"`

	// Authentication
	BindDN        types.String `tfsdk:"bind_dn"`
	BindPassword  types.String `tfsdk:"bind_password"`
	SASLMechanism types.String `tfsdk:"sasl_mechanism"`

	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	// TLS
	StartTLS       types.Bool   `tfsdk:"start_tls"`
	TLSRequireCert types.String `tfsdk:"tls_require_cert"`
	TLSCACertFile  types.String `tfsdk:"tls_ca_cert_file"`

	// Handle pool
	Timeout        types.Int64 `tfsdk:"timeout"`
	MaxConnections types.Int64 `tfsdk:"max_connections"`
	MaxIdleTime    types.Int64 `tfsdk:"max_idle_time"`
}

func (p *LDAPProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "ldap"
	resp.Version = p.version
}

func (p *LDAPProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The LDAP provider manages entries of any LDAPv3 directory and reads its schema. " +
			"It supports simple and SASL binds, StartTLS, DNS SRV discovery of the server and connection pooling.",
		Attributes: map[string]schema.Attribute{
			"url": schema.StringAttribute{
				MarkdownDescription: "LDAP URL of the server, e.g. `ldaps://ldap.example.org` or `ldap:///dc=example,dc=org`. " +
					"A URL without host is completed from the DNS SRV records of the base DN domain. " +
					"The URL path, when present, is the base DN. Can be set via the `LDAP_URL` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"base_dn": schema.StringAttribute{
				MarkdownDescription: "Base DN against which relative DNs are completed. Overrides the base DN of `url`. " +
					"Can be set via the `LDAP_BASE_DN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"protocol_version": schema.Int64Attribute{
				MarkdownDescription: "LDAP protocol version, `2` or `3`. Defaults to `3`. " +
					"Can be set via the `LDAP_PROTOCOL_VERSION` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(2, 3),
				},
			},

			"bind_dn": schema.StringAttribute{
				MarkdownDescription: "DN to bind as, or the SASL user name when `sasl_mechanism` is set. " +
					"Relative DNs are completed against the base DN. Omit for an anonymous bind. " +
					"Can be set via the `LDAP_BIND_DN` environment variable.",
				Optional: true,
			},
			"bind_password": schema.StringAttribute{
				MarkdownDescription: "Password for `bind_dn`. " +
					"Can be set via the `LDAP_BIND_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"sasl_mechanism": schema.StringAttribute{
				MarkdownDescription: "SASL mechanism to bind with instead of a simple bind: `SIMPLE`, `EXTERNAL`, " +
					"`DIGEST-MD5` or `GSSAPI`. Can be set via the `LDAP_SASL_MECHANISM` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(
						ldapclient.MechSimple,
						ldapclient.MechExternal,
						ldapclient.MechDigestMD5,
						ldapclient.MechGSSAPI,
					),
				},
			},

			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for `GSSAPI` binds. Setting it selects `GSSAPI` when `sasl_mechanism` is unset. " +
					"Can be set via the `LDAP_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to a Kerberos keytab. " +
					"Can be set via the `LDAP_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to `krb5.conf`. Defaults to `KRB5_CONFIG` or `/etc/krb5.conf`. " +
					"Can be set via the `LDAP_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to a Kerberos credential cache. " +
					"Can be set via the `LDAP_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Service principal of the server. Defaults to `ldap/<host>`. " +
					"Can be set via the `LDAP_KERBEROS_SPN` environment variable.",
				Optional: true,
			},

			"start_tls": schema.BoolAttribute{
				MarkdownDescription: "Negotiate TLS with StartTLS on `ldap://` URLs before binding. Defaults to `false`. " +
					"Can be set via the `LDAP_START_TLS` environment variable.",
				Optional: true,
			},
			"tls_require_cert": schema.StringAttribute{
				MarkdownDescription: "Server certificate checking: `never`, `hard`, `demand`, `allow` or `try`. " +
					"`hard`, `demand` and `try` reject an invalid certificate; `never` and `allow` accept any. " +
					"Defaults to `demand`. Can be set via the `LDAP_TLS_REQUIRE_CERT` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(ldapclient.TLSRequireCertNames()...),
				},
			},
			"tls_ca_cert_file": schema.StringAttribute{
				MarkdownDescription: "Path to a PEM bundle of CA certificates trusted for the server certificate. " +
					"Can be set via the `LDAP_TLS_CA_CERT_FILE` environment variable.",
				Optional: true,
			},

			"timeout": schema.Int64Attribute{
				MarkdownDescription: "Dial and request timeout in seconds. Defaults to `30`. " +
					"Can be set via the `LDAP_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"max_connections": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of pooled connections. Defaults to `10`. " +
					"Can be set via the `LDAP_MAX_CONNECTIONS` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, ldapclient.MaxPoolSize),
				},
			},
			"max_idle_time": schema.Int64Attribute{
				MarkdownDescription: "Seconds after which an idle pooled connection is closed. Defaults to `300`. " +
					"Can be set via the `LDAP_MAX_IDLE_TIME` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *LDAPProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		// keytab and ccache are alternative Kerberos credential sources
		providervalidator.Conflicting(
			path.MatchRoot("kerberos_keytab"),
			path.MatchRoot("kerberos_ccache"),
		),
	}
}

func (p *LDAPProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data LDAPProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring LDAP provider", map[string]any{
		"version": p.version,
	})

	config := p.buildLDAPConfig(&data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	start := time.Now()
	pool, err := ldapclient.NewPool(ctx, config)
	if err != nil {
		tflog.Error(ctx, "Failed to create LDAP connection pool", map[string]any{
			"error": err.Error(),
		})
		resp.Diagnostics.AddError(
			"Unable to Create LDAP Connection Pool",
			"An unexpected error occurred when creating the LDAP connection pool. "+
				"If the error is not clear, please contact the provider developers.\n\n"+
				"LDAP Error: "+err.Error(),
		)
		return
	}

	providerData := ldapclient.NewProviderData(pool)
	if err := providerData.ValidateConnection(ctx); err != nil {
		tflog.Error(ctx, "Connection test failed", map[string]any{
			"error":       err.Error(),
			"category":    string(ldapclient.GetErrorCategory(err)),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		_ = pool.Close()
		resp.Diagnostics.AddError(
			"Unable to Connect to LDAP Server",
			"The provider could not open and bind a connection to "+config.URL+".\n\n"+
				"LDAP Error: "+err.Error(),
		)
		return
	}

	tflog.Info(ctx, "LDAP provider configured successfully", map[string]any{
		"url":         config.URL,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// configureLogging sets the persistent provider fields on ctx.
func (p *LDAPProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "ldap")
	ctx = tflog.SetField(ctx, "provider_version", p.version)
	ctx = tflog.MaskFieldValuesWithFieldKeys(ctx, "bind_password", "password")
	return ldapclient.NewLoggingContext(ctx)
}

// buildLDAPConfig merges provider configuration, LDAP_* environment variables
// and defaults.
func (p *LDAPProvider) buildLDAPConfig(data *LDAPProviderModel, diags *diag.Diagnostics) *ldapclient.ConnectionConfig {
	config := ldapclient.DefaultConfig()

	config.URL = p.getStringValue(data.URL, "LDAP_URL")
	if config.URL == "" {
		diags.AddAttributeError(
			path.Root("url"),
			"Missing LDAP URL",
			"The provider requires the LDAP server URL. Set the 'url' attribute or the LDAP_URL environment variable. "+
				"Use a URL without host, such as ldap:///dc=example,dc=org, to discover the server from DNS SRV records.",
		)
		return config
	}
	if _, err := ldapclient.ParseURL(config.URL); err != nil {
		diags.AddAttributeError(path.Root("url"), "Invalid LDAP URL", err.Error())
		return config
	}

	config.BaseDN = p.getStringValue(data.BaseDN, "LDAP_BASE_DN")
	config.ProtocolVersion = int(p.getInt64Value(data.ProtocolVersion, "LDAP_PROTOCOL_VERSION", int64(config.ProtocolVersion)))

	config.BindDN = p.getStringValue(data.BindDN, "LDAP_BIND_DN")
	config.BindPassword = p.getStringValue(data.BindPassword, "LDAP_BIND_PASSWORD")
	config.SASLMechanism = strings.ToUpper(p.getStringValue(data.SASLMechanism, "LDAP_SASL_MECHANISM"))

	config.KerberosRealm = p.getStringValue(data.KerberosRealm, "LDAP_KERBEROS_REALM")
	config.KerberosKeytab = p.getStringValue(data.KerberosKeytab, "LDAP_KERBEROS_KEYTAB")
	config.KerberosConfig = p.getStringValue(data.KerberosConfig, "LDAP_KERBEROS_CONFIG")
	config.KerberosCCache = p.getStringValue(data.KerberosCCache, "LDAP_KERBEROS_CCACHE")
	config.KerberosSPN = p.getStringValue(data.KerberosSPN, "LDAP_KERBEROS_SPN")
	if config.SASLMechanism == "" && config.KerberosRealm != "" {
		config.SASLMechanism = ldapclient.MechGSSAPI
	}

	if config.BindDN != "" && config.BindPassword == "" && config.SASLMechanism == "" {
		diags.AddError(
			"Missing Bind Password",
			"A bind DN was configured without a password. Provide 'bind_password' or set LDAP_BIND_PASSWORD, "+
				"or remove 'bind_dn' for an anonymous bind.",
		)
		return config
	}

	config.StartTLS = p.getBoolValue(data.StartTLS, "LDAP_START_TLS", false)
	if level := p.getStringValue(data.TLSRequireCert, "LDAP_TLS_REQUIRE_CERT"); level != "" {
		parsed, err := ldapclient.ParseTLSRequireCert(level)
		if err != nil {
			diags.AddAttributeError(path.Root("tls_require_cert"), "Invalid TLS Require Cert Level", err.Error())
			return config
		}
		config.TLSRequireCert = parsed
	}
	config.TLSCACertFile = p.getStringValue(data.TLSCACertFile, "LDAP_TLS_CA_CERT_FILE")

	if timeout := p.getInt64Value(data.Timeout, "LDAP_TIMEOUT", 0); timeout > 0 {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if maxConnections := p.getInt64Value(data.MaxConnections, "LDAP_MAX_CONNECTIONS", 0); maxConnections > 0 {
		config.MaxConnections = int(maxConnections)
	}
	if maxIdleTime := p.getInt64Value(data.MaxIdleTime, "LDAP_MAX_IDLE_TIME", 0); maxIdleTime > 0 {
		config.MaxIdleTime = time.Duration(maxIdleTime) * time.Second
	}

	return config
}

// Helper functions for configuration value resolution

func (p *LDAPProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *LDAPProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewEntryResource,
	}
}

func (p *LDAPProvider) EphemeralResources(ctx context.Context) []func() ephemeral.EphemeralResource {
	return []func() ephemeral.EphemeralResource{}
}

func (p *LDAPProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewConnectionDataSource,
		NewSchemaDataSource,
		NewSearchDataSource,
		NewWhoAmIDataSource,
	}
}

func (p *LDAPProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewBuildModsFunction,
		NewCompleteDNFunction,
		NewEscapeDNValueFunction,
		NewParseSchemaFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &LDAPProvider{
			version: version,
		}
	}
}
