package provider_test

import (
	"context"
	"slices"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"
	tfresource "github.com/hashicorp/terraform-plugin-testing/helper/resource"

	this "github.com/isometry/terraform-provider-ldap/internal/provider"
)

// TestProviderMetadata tests the provider metadata.
func TestProviderMetadata(t *testing.T) {
	p := this.New("test")()

	req := provider.MetadataRequest{}
	resp := &provider.MetadataResponse{}

	p.Metadata(t.Context(), req, resp)

	if resp.TypeName != "ldap" {
		t.Errorf("Expected TypeName 'ldap', got %s", resp.TypeName)
	}

	if resp.Version != "test" {
		t.Errorf("Expected Version 'test', got %s", resp.Version)
	}
}

// TestProviderSchema tests the provider schema.
func TestProviderSchema(t *testing.T) {
	p := this.New("test")()

	req := provider.SchemaRequest{}
	resp := &provider.SchemaResponse{}

	p.Schema(t.Context(), req, resp)

	if resp.Diagnostics.HasError() {
		t.Fatalf("Schema creation failed: %v", resp.Diagnostics)
	}

	expectedAttributes := []string{
		"url", "base_dn", "protocol_version",
		"bind_dn", "bind_password", "sasl_mechanism",
		"kerberos_realm", "kerberos_keytab", "kerberos_config", "kerberos_ccache", "kerberos_spn",
		"start_tls", "tls_require_cert", "tls_ca_cert_file",
		"timeout", "max_connections", "max_idle_time",
	}

	for _, attr := range expectedAttributes {
		if _, exists := resp.Schema.Attributes[attr]; !exists {
			t.Errorf("Expected attribute %s not found in schema", attr)
		}
	}

	if len(resp.Schema.Attributes) != len(expectedAttributes) {
		t.Errorf("Expected %d attributes, got %d", len(expectedAttributes), len(resp.Schema.Attributes))
	}

	if !resp.Schema.Attributes["bind_password"].IsSensitive() {
		t.Error("Expected bind_password to be sensitive")
	}

	for name, attr := range resp.Schema.Attributes {
		if attr.IsRequired() {
			t.Errorf("Attribute %s must be optional so that it can come from the environment", name)
		}
	}
}

// TestProviderResources tests the provider resources.
func TestProviderResources(t *testing.T) {
	p := this.New("test")()

	var names []string
	for _, factory := range p.Resources(t.Context()) {
		r := factory()
		if r == nil {
			t.Fatal("Resource factory returned nil")
		}
		resp := &resource.MetadataResponse{}
		r.Metadata(t.Context(), resource.MetadataRequest{ProviderTypeName: "ldap"}, resp)
		names = append(names, resp.TypeName)
	}

	if !slices.Equal(names, []string{"ldap_entry"}) {
		t.Errorf("Unexpected resources: %v", names)
	}
}

// TestProviderDataSources tests the provider data sources.
func TestProviderDataSources(t *testing.T) {
	p := this.New("test")()

	var names []string
	for _, factory := range p.DataSources(t.Context()) {
		d := factory()
		if d == nil {
			t.Fatal("Data source factory returned nil")
		}
		resp := &datasource.MetadataResponse{}
		d.Metadata(t.Context(), datasource.MetadataRequest{ProviderTypeName: "ldap"}, resp)
		names = append(names, resp.TypeName)
	}

	expected := []string{"ldap_connection", "ldap_schema", "ldap_search", "ldap_whoami"}
	if !slices.Equal(names, expected) {
		t.Errorf("Expected data sources %v, got %v", expected, names)
	}
}

// TestProviderConfigValidators tests the provider config validators.
func TestProviderConfigValidators(t *testing.T) {
	p := this.New("test")().(provider.ProviderWithConfigValidators)

	validators := p.ConfigValidators(t.Context())

	if len(validators) == 0 {
		t.Error("Expected config validators, got none")
	}

	for i, validator := range validators {
		if validator == nil {
			t.Errorf("Config validator %d is nil", i)
		}
	}
}

// TestProviderFunctions tests the provider functions.
func TestProviderFunctions(t *testing.T) {
	p := this.New("test")().(provider.ProviderWithFunctions)

	var names []string
	for _, factory := range p.Functions(t.Context()) {
		fn := factory()
		if fn == nil {
			t.Fatal("Function factory returned nil")
		}
		resp := &function.MetadataResponse{}
		fn.Metadata(context.Background(), function.MetadataRequest{}, resp)
		names = append(names, resp.Name)
	}

	expected := []string{"build_mods", "complete_dn", "escape_dn_value", "parse_schema"}
	if !slices.Equal(names, expected) {
		t.Errorf("Expected functions %v, got %v", expected, names)
	}
}

// TestProviderEphemeralResources tests the provider ephemeral resources.
func TestProviderEphemeralResources(t *testing.T) {
	p := this.New("test")().(provider.ProviderWithEphemeralResources)

	if n := len(p.EphemeralResources(t.Context())); n != 0 {
		t.Errorf("Expected 0 ephemeral resources, got %d", n)
	}
}

// TestNewProvider tests the New provider function.
func TestNewProvider(t *testing.T) {
	testCases := []struct {
		name    string
		version string
	}{
		{
			name:    "test version",
			version: "test",
		},
		{
			name:    "dev version",
			version: "dev",
		},
		{
			name:    "release version",
			version: "1.0.0",
		},
		{
			name:    "empty version",
			version: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			providerFunc := this.New(tc.version)
			if providerFunc == nil {
				t.Fatal("New() returned nil")
			}

			p := providerFunc()
			if _, ok := p.(*this.LDAPProvider); !ok {
				t.Fatalf("Provider is %T, not *LDAPProvider", p)
			}

			resp := &provider.MetadataResponse{}
			p.Metadata(t.Context(), provider.MetadataRequest{}, resp)
			if resp.Version != tc.version {
				t.Errorf("Expected version %s, got %s", tc.version, resp.Version)
			}
		})
	}
}

// TestProviderServer tests provider server creation.
func TestProviderServer(t *testing.T) {
	serverFactory := providerserver.NewProtocol6WithError(this.New("test")())
	if serverFactory == nil {
		t.Fatal("Provider server factory is nil")
	}

	server, err := serverFactory()
	if err != nil {
		t.Fatalf("Failed to create provider server: %v", err)
	}

	if server == nil {
		t.Fatal("Provider server is nil")
	}
}

// TestProviderFunctionsInTerraform calls the provider functions from a
// configuration; like the other acceptance tests it needs TF_ACC.
func TestProviderFunctionsInTerraform(t *testing.T) {
	tfresource.Test(t, tfresource.TestCase{
		ProtoV6ProviderFactories: map[string]func() (tfprotov6.ProviderServer, error){
			"ldap": providerserver.NewProtocol6WithError(this.New("test")()),
		},
		Steps: []tfresource.TestStep{
			{
				Config: `
output "dn" {
  value = provider::ldap::complete_dn("uid=alice,ou=people", "dc=example,dc=org")
}

output "rdn_value" {
  value = provider::ldap::escape_dn_value("Doe, John")
}

output "usage" {
  value = provider::ldap::parse_schema("attribute_type", "( 2.5.18.1 NAME 'createTimestamp' USAGE directoryOperation )").usage
}

output "first_mod" {
  value = provider::ldap::build_mods("replace", { mail = "alice@example.org" })[0].attr
}`,
				Check: tfresource.ComposeAggregateTestCheckFunc(
					tfresource.TestCheckOutput("dn", "uid=alice,ou=people,dc=example,dc=org"),
					tfresource.TestCheckOutput("rdn_value", `Doe\, John`),
					tfresource.TestCheckOutput("usage", "1"),
					tfresource.TestCheckOutput("first_mod", "mail"),
				),
			},
		},
	})
}
