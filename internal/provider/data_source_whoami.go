package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &WhoAmIDataSource{}

func NewWhoAmIDataSource() datasource.DataSource {
	return &WhoAmIDataSource{}
}

// WhoAmIDataSource defines the data source implementation.
type WhoAmIDataSource struct {
	providerData *ldapclient.ProviderData
}

// WhoAmIDataSourceModel describes the data source data model.
type WhoAmIDataSourceModel struct {
	ID      types.String `tfsdk:"id"`
	AuthzID types.String `tfsdk:"authz_id"`
	DN      types.String `tfsdk:"dn"`
	User    types.String `tfsdk:"user"`
	Format  types.String `tfsdk:"format"` // dn, u, empty or unknown
}

func (d *WhoAmIDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_whoami"
}

func (d *WhoAmIDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves the authorization identity of the provider connection using the LDAP \"Who Am I?\" " +
			"extended operation (RFC 4532).",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Same as `authz_id`, or `anonymous` for an anonymous connection.",
				Computed:            true,
			},
			"authz_id": schema.StringAttribute{
				MarkdownDescription: "The raw authorization identity, e.g. `dn:cn=admin,dc=example,dc=org` or `u:admin`.",
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The DN of the identity when `authz_id` has the `dn:` form.",
				Computed:            true,
			},
			"user": schema.StringAttribute{
				MarkdownDescription: "The user name of the identity when `authz_id` has the `u:` form.",
				Computed:            true,
			},
			"format": schema.StringAttribute{
				MarkdownDescription: "The form of `authz_id`: `dn`, `u`, `empty` (anonymous) or `unknown`.",
				Computed:            true,
			},
		},
	}
}

func (d *WhoAmIDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	providerData, ok := req.ProviderData.(*ldapclient.ProviderData)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *ldapclient.ProviderData, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	d.providerData = providerData
}

func (d *WhoAmIDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data WhoAmIDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "ldap_whoami", "read", nil)
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var authzID string
	err := d.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		var err error
		authzID, err = c.WhoAmI(ctx)
		return err
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Performing WhoAmI Operation",
			fmt.Sprintf("Could not perform LDAP Who Am I? operation: %s", err.Error()),
		)
		return
	}

	tflog.Debug(ctx, "Successfully performed WhoAmI operation", map[string]any{
		"authz_id": authzID,
	})

	mapAuthzID(authzID, &data)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// mapAuthzID splits an RFC 4513 authorization identity into the model.
func mapAuthzID(authzID string, data *WhoAmIDataSourceModel) {
	data.AuthzID = types.StringValue(authzID)
	data.ID = types.StringValue(authzID)
	data.DN = types.StringNull()
	data.User = types.StringNull()

	switch {
	case authzID == "":
		data.ID = types.StringValue("anonymous")
		data.Format = types.StringValue("empty")
	case strings.HasPrefix(authzID, "dn:"):
		data.DN = types.StringValue(strings.TrimPrefix(authzID, "dn:"))
		data.Format = types.StringValue("dn")
	case strings.HasPrefix(authzID, "u:"):
		data.User = types.StringValue(strings.TrimPrefix(authzID, "u:"))
		data.Format = types.StringValue("u")
	default:
		data.Format = types.StringValue("unknown")
	}
}
