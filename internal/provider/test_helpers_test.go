package provider_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/jimlambrt/gldap/testdirectory"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// Environment variables read by the acceptance tests.
const (
	EnvTestURL      = "LDAP_URL"
	EnvTestBindDN   = "LDAP_BIND_DN"
	EnvTestPassword = "LDAP_BIND_PASSWORD"
	EnvTestBaseDN   = "LDAP_TEST_BASE_DN"

	DefaultTestBaseDN = "dc=example,dc=org"

	// TestEntryPrefix keeps acceptance test entries apart from real ones.
	TestEntryPrefix = "tf-test-"
)

const (
	testBaseDN   = "dc=example,dc=org"
	testAliceDN  = "cn=alice,ou=people,dc=example,dc=org"
	testPassword = "password"
)

// testAccBaseDN returns the subtree acceptance tests create entries in.
func testAccBaseDN() string {
	if v := os.Getenv(EnvTestBaseDN); v != "" {
		return v
	}
	return DefaultTestBaseDN
}

// generateTestName returns a unique RDN value.
func generateTestName() string {
	return TestEntryPrefix + uuid.NewString()[:8]
}

// startDirectory runs an in-memory directory holding the users alice and
// bob under ou=people and the group admin under ou=groups.
func startDirectory(t *testing.T) *testdirectory.Directory {
	t.Helper()
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "test-directory",
		Level: hclog.Error,
	})
	td := testdirectory.Start(t,
		testdirectory.WithNoTLS(t),
		testdirectory.WithDefaults(t, &testdirectory.Defaults{AllowAnonymousBind: true}),
		testdirectory.WithLogger(t, logger),
	)
	td.SetUsers(testdirectory.NewUsers(t, []string{"alice", "bob"})...)
	td.SetGroups(testdirectory.NewGroup(t, "admin", []string{"alice"}))
	return td
}

// newTestProviderData returns provider data backed by a pool bound as alice.
func newTestProviderData(t *testing.T, td *testdirectory.Directory) *ldapclient.ProviderData {
	t.Helper()
	cfg := ldapclient.DefaultConfig()
	cfg.URL = fmt.Sprintf("ldap://%s:%d/%s", td.Host(), td.Port(), testBaseDN)
	cfg.BindDN = testAliceDN
	cfg.BindPassword = testPassword
	cfg.MaxConnections = 2
	cfg.HealthCheck = 0

	pool, err := ldapclient.NewPool(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	pd := ldapclient.NewProviderData(pool)
	require.NoError(t, pd.ValidateConnection(t.Context()))
	return pd
}

// objectValue builds a value of the schema object type, leaving every
// attribute missing from values null.
func objectValue(ctx context.Context, typ tftypes.Type, values map[string]tftypes.Value) tftypes.Value {
	obj := typ.(tftypes.Object)
	attrs := make(map[string]tftypes.Value, len(obj.AttributeTypes))
	for name, attrType := range obj.AttributeTypes {
		if v, ok := values[name]; ok {
			attrs[name] = v
			continue
		}
		attrs[name] = tftypes.NewValue(attrType, nil)
	}
	return tftypes.NewValue(obj, attrs)
}

// newDataSourceRead returns a read request carrying config and an empty
// response for d.
func newDataSourceRead(t *testing.T, d datasource.DataSource, config map[string]tftypes.Value) (datasource.ReadRequest, *datasource.ReadResponse) {
	t.Helper()
	ctx := t.Context()

	schemaResp := &datasource.SchemaResponse{}
	d.Schema(ctx, datasource.SchemaRequest{}, schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError(), "schema: %v", schemaResp.Diagnostics)

	typ := schemaResp.Schema.Type().TerraformType(ctx)
	req := datasource.ReadRequest{
		Config: tfsdk.Config{
			Schema: schemaResp.Schema,
			Raw:    objectValue(ctx, typ, config),
		},
	}
	resp := &datasource.ReadResponse{
		State: tfsdk.State{
			Schema: schemaResp.Schema,
			Raw:    tftypes.NewValue(typ, nil),
		},
	}
	return req, resp
}

// configureDataSource hands pd to d the way the provider does.
func configureDataSource(t *testing.T, d datasource.DataSourceWithConfigure, pd *ldapclient.ProviderData) {
	t.Helper()
	resp := &datasource.ConfigureResponse{}
	d.Configure(t.Context(), datasource.ConfigureRequest{ProviderData: pd}, resp)
	require.False(t, resp.Diagnostics.HasError(), "configure: %v", resp.Diagnostics)
}
