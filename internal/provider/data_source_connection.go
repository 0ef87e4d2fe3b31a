package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &ConnectionDataSource{}

func NewConnectionDataSource() datasource.DataSource {
	return &ConnectionDataSource{}
}

// ConnectionDataSource reports the options of a pooled connection.
type ConnectionDataSource struct {
	providerData *ldapclient.ProviderData
}

// ConnectionDataSourceModel describes the data source data model.
type ConnectionDataSourceModel struct {
	ID              types.String `tfsdk:"id"`
	Host            types.String `tfsdk:"host"`
	Port            types.Int64  `tfsdk:"port"`
	IP              types.String `tfsdk:"ip"`
	BaseDN          types.String `tfsdk:"base_dn"`
	ProtocolVersion types.Int64  `tfsdk:"protocol_version"`
	TLSRequireCert  types.String `tfsdk:"tls_require_cert"`
	SASLMechanism   types.String `tfsdk:"sasl_mechanism"`
	SASLMechanisms  types.List   `tfsdk:"sasl_mechanisms"`
	PoolActive      types.Int64  `tfsdk:"pool_active"`
	PoolIdle        types.Int64  `tfsdk:"pool_idle"`
}

func (d *ConnectionDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_connection"
}

func (d *ConnectionDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reports the server the provider is connected to and the options in effect on its connections.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The LDAP URI of the connection.",
				Computed:            true,
			},
			"host": schema.StringAttribute{
				MarkdownDescription: "Server host, as configured or discovered from DNS SRV records.",
				Computed:            true,
			},
			"port": schema.Int64Attribute{
				MarkdownDescription: "Server port.",
				Computed:            true,
			},
			"ip": schema.StringAttribute{
				MarkdownDescription: "Address the host resolved to. Empty for `ldapi://` connections.",
				Computed:            true,
			},
			"base_dn": schema.StringAttribute{
				MarkdownDescription: "Base DN against which relative DNs are completed.",
				Computed:            true,
			},
			"protocol_version": schema.Int64Attribute{
				MarkdownDescription: "LDAP protocol version.",
				Computed:            true,
			},
			"tls_require_cert": schema.StringAttribute{
				MarkdownDescription: "Server certificate checking level.",
				Computed:            true,
			},
			"sasl_mechanism": schema.StringAttribute{
				MarkdownDescription: "SASL mechanism of the last SASL bind, empty after a simple bind.",
				Computed:            true,
			},
			"sasl_mechanisms": schema.ListAttribute{
				MarkdownDescription: "SASL mechanisms advertised by the server root DSE.",
				Computed:            true,
				ElementType:         types.StringType,
			},
			"pool_active": schema.Int64Attribute{
				MarkdownDescription: "Connections currently borrowed from the provider pool.",
				Computed:            true,
			},
			"pool_idle": schema.Int64Attribute{
				MarkdownDescription: "Connections currently idle in the provider pool.",
				Computed:            true,
			},
		},
	}
}

func (d *ConnectionDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

func (d *ConnectionDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ConnectionDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "ldap_connection", "read", nil)
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var mechanisms []string
	err := d.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		data.ID = types.StringValue(c.URI())
		data.Host = types.StringValue(c.Host())
		data.Port = types.Int64Value(int64(c.Port()))
		data.IP = types.StringValue(c.IP())
		data.BaseDN = types.StringValue(c.BaseDN())

		version, err := c.GetOption(ctx, ldapclient.OptProtocolVersion)
		if err != nil {
			return err
		}
		data.ProtocolVersion = types.Int64Value(int64(version.(int)))

		level, err := c.GetOption(ctx, ldapclient.OptTLSRequireCert)
		if err != nil {
			return err
		}
		data.TLSRequireCert = types.StringValue(level.(ldapclient.TLSRequireCert).String())

		mech, err := c.GetOption(ctx, ldapclient.OptSASLMech)
		if err != nil {
			return err
		}
		data.SASLMechanism = types.StringValue(mech.(string))

		list, err := c.GetOption(ctx, ldapclient.OptSASLMechList)
		if err != nil {
			// some servers hide the root DSE from unprivileged binds
			tflog.Warn(ctx, "Could not read supported SASL mechanisms", map[string]any{
				"error": err.Error(),
			})
			return nil
		}
		mechanisms = list.([]string)
		return nil
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Connection Options",
			fmt.Sprintf("Could not read LDAP connection options: %s", err.Error()),
		)
		return
	}

	stats := d.providerData.Pool.Stats()
	data.PoolActive = types.Int64Value(stats.Active)
	data.PoolIdle = types.Int64Value(int64(stats.Idle))

	list, diags := types.ListValueFrom(ctx, types.StringType, nonNil(mechanisms))
	resp.Diagnostics.Append(diags...)
	data.SASLMechanisms = list
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
