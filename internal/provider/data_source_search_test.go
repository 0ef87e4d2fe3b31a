package provider_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-ldap/internal/provider"
)

func TestSearchDataSource_Schema(t *testing.T) {
	d := provider.NewSearchDataSource()
	resp := &datasource.SchemaResponse{}

	d.Schema(context.Background(), datasource.SchemaRequest{}, resp)

	require.False(t, resp.Diagnostics.HasError())
	for _, name := range []string{"base", "scope", "filter", "attributes", "size_limit", "sort", "sort_critical", "assertion", "assertion_critical"} {
		require.Contains(t, resp.Schema.Attributes, name)
		assert.True(t, resp.Schema.Attributes[name].IsOptional(), "%s should be optional", name)
	}
	for _, name := range []string{"id", "entries"} {
		require.Contains(t, resp.Schema.Attributes, name)
		assert.True(t, resp.Schema.Attributes[name].IsComputed(), "%s should be computed", name)
	}
}

func TestSearchDataSource_Configure_WrongType(t *testing.T) {
	d := &provider.SearchDataSource{}
	resp := &datasource.ConfigureResponse{}

	d.Configure(context.Background(), datasource.ConfigureRequest{ProviderData: "not provider data"}, resp)

	require.True(t, resp.Diagnostics.HasError())
	assert.Contains(t, resp.Diagnostics.Errors()[0].Summary(), "Unexpected Data Source Configure Type")
}

type searchEntry struct {
	DN         string              `tfsdk:"dn"`
	Attributes map[string][]string `tfsdk:"attributes"`
}

// readSearch runs the data source against pd-backed config and decodes the
// entries attribute.
func readSearch(t *testing.T, d *provider.SearchDataSource, config map[string]tftypes.Value) (provider.SearchDataSourceModel, []searchEntry, *datasource.ReadResponse) {
	t.Helper()
	ctx := t.Context()

	var data provider.SearchDataSourceModel
	req, resp := newDataSourceRead(t, d, config)
	d.Read(ctx, req, resp)
	if resp.Diagnostics.HasError() {
		return data, nil, resp
	}

	require.False(t, resp.State.Get(ctx, &data).HasError())

	var entries []searchEntry
	require.False(t, data.Entries.ElementsAs(ctx, &entries, false).HasError())
	return data, entries, resp
}

func TestSearchDataSource_Read(t *testing.T) {
	td := startDirectory(t)
	pd := newTestProviderData(t, td)

	d := &provider.SearchDataSource{}
	configureDataSource(t, d, pd)

	data, entries, resp := readSearch(t, d, map[string]tftypes.Value{
		"base":   tftypes.NewValue(tftypes.String, "ou=people"),
		"filter": tftypes.NewValue(tftypes.String, "(cn=alice)"),
	})
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

	assert.Equal(t, "ou=people,"+testBaseDN, data.ID.ValueString())
	require.Len(t, entries, 1)
	assert.True(t, strings.EqualFold(testAliceDN, entries[0].DN), entries[0].DN)

	var names []string
	for attr, values := range entries[0].Attributes {
		if strings.EqualFold(attr, "name") {
			names = values
		}
	}
	assert.Equal(t, []string{"alice"}, names)
}

func TestSearchDataSource_Read_NoSuchObject(t *testing.T) {
	td := startDirectory(t)
	pd := newTestProviderData(t, td)

	d := &provider.SearchDataSource{}
	configureDataSource(t, d, pd)

	// the test directory answers searches without matches with noSuchObject
	_, _, resp := readSearch(t, d, map[string]tftypes.Value{
		"base":   tftypes.NewValue(tftypes.String, "ou=people"),
		"filter": tftypes.NewValue(tftypes.String, "(cn=mallory)"),
	})

	require.True(t, resp.Diagnostics.HasError())
	assert.Equal(t, "Error Searching Directory", resp.Diagnostics.Errors()[0].Summary())
	assert.Contains(t, resp.Diagnostics.Errors()[0].Detail(), "ou=people")
}

func TestSearchDataSource_Read_InvalidScope(t *testing.T) {
	td := startDirectory(t)
	pd := newTestProviderData(t, td)

	d := &provider.SearchDataSource{}
	configureDataSource(t, d, pd)

	_, _, resp := readSearch(t, d, map[string]tftypes.Value{
		"scope": tftypes.NewValue(tftypes.String, "everywhere"),
	})

	require.True(t, resp.Diagnostics.HasError())
	assert.Equal(t, "Invalid Search Scope", resp.Diagnostics.Errors()[0].Summary())
}

func TestSearchDataSource_Read_InvalidSortKey(t *testing.T) {
	td := startDirectory(t)
	pd := newTestProviderData(t, td)

	d := &provider.SearchDataSource{}
	configureDataSource(t, d, pd)

	_, _, resp := readSearch(t, d, map[string]tftypes.Value{
		"base": tftypes.NewValue(tftypes.String, "ou=people"),
		"sort": tftypes.NewValue(tftypes.String, "-"),
	})

	require.True(t, resp.Diagnostics.HasError())
	assert.Equal(t, "Error Searching Directory", resp.Diagnostics.Errors()[0].Summary())
}

func TestAccSearchDataSource(t *testing.T) {
	resource.Test(t, resource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: testAccSearchDataSourceConfig(testAccBaseDN()),
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.ldap_search.test", "entries.#", "1"),
					resource.TestCheckResourceAttrSet("data.ldap_search.test", "entries.0.dn"),
					resource.TestCheckResourceAttrSet("data.ldap_search.test", "id"),
				),
			},
		},
	})
}

func testAccSearchDataSourceConfig(base string) string {
	return fmt.Sprintf(`
data "ldap_search" "test" {
  base  = %q
  scope = "base"
}
`, base)
}
