package provider_test

import (
	"os"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"

	"github.com/isometry/terraform-provider-ldap/internal/provider"
)

// testAccProtoV6ProviderFactories is used to instantiate a provider during acceptance testing.
// The factory function is called for each Terraform CLI command to create a provider
// server that the CLI can connect to and interact with.
var testAccProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"ldap": providerserver.NewProtocol6WithError(provider.New("test")()),
}

// testAccPreCheck requires a directory to run against. The provider reads
// the same LDAP_* variables, so the configs under test carry no provider
// block.
func testAccPreCheck(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvTestURL) == "" {
		t.Fatalf("%s must be set for acceptance tests", EnvTestURL)
	}
	if os.Getenv(EnvTestBindDN) != "" && os.Getenv(EnvTestPassword) == "" {
		t.Fatalf("%s must be set when %s is set", EnvTestPassword, EnvTestBindDN)
	}
}
