package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &SearchDataSource{}

func NewSearchDataSource() datasource.DataSource {
	return &SearchDataSource{}
}

// SearchDataSource runs one LDAP search, optionally with the server side
// sort and assertion controls.
type SearchDataSource struct {
	providerData *ldapclient.ProviderData
}

// SearchDataSourceModel describes the data source data model.
type SearchDataSourceModel struct {
	ID                types.String `tfsdk:"id"`
	Base              types.String `tfsdk:"base"`
	Scope             types.String `tfsdk:"scope"`
	Filter            types.String `tfsdk:"filter"`
	Attributes        types.List   `tfsdk:"attributes"`
	SizeLimit         types.Int64  `tfsdk:"size_limit"`
	Sort              types.String `tfsdk:"sort"`
	SortCritical      types.Bool   `tfsdk:"sort_critical"`
	Assertion         types.String `tfsdk:"assertion"`
	AssertionCritical types.Bool   `tfsdk:"assertion_critical"`
	Entries           types.List   `tfsdk:"entries"`
}

// searchEntryModel is one element of entries.
type searchEntryModel struct {
	DN         types.String        `tfsdk:"dn"`
	Attributes map[string][]string `tfsdk:"attributes"`
}

var searchEntryType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"dn":         types.StringType,
		"attributes": types.MapType{ElemType: types.ListType{ElemType: types.StringType}},
	},
}

var searchScopes = []string{"base", "onelevel", "subtree", "children", "one", "sub"}

func (d *SearchDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_search"
}

func (d *SearchDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Searches the directory and returns the matching entries in server order, " +
			"or in the order requested with `sort` (RFC 2891 server side sorting).",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The completed search base.",
				Computed:            true,
			},
			"base": schema.StringAttribute{
				MarkdownDescription: "Search base. Relative DNs are completed against the provider base DN; " +
					"omit to search from the provider base DN.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"scope": schema.StringAttribute{
				MarkdownDescription: "Search scope: `base`, `onelevel`, `subtree` or `children`. Defaults to `subtree`.",
				Optional:            true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(searchScopes...),
				},
			},
			"filter": schema.StringAttribute{
				MarkdownDescription: "RFC 4515 search filter. Defaults to `(objectClass=*)`.",
				Optional:            true,
			},
			"attributes": schema.ListAttribute{
				MarkdownDescription: "Attributes to return. Omit for all user attributes. Use `+` for operational attributes.",
				Optional:            true,
				ElementType:         types.StringType,
				Validators: []validator.List{
					listvalidator.SizeAtLeast(1),
				},
			},
			"size_limit": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of entries the server returns. `0` means no limit.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(0),
				},
			},
			"sort": schema.StringAttribute{
				MarkdownDescription: "Sort key list, e.g. `sn -cn:caseIgnoreOrderingMatch`. A leading `-` reverses a key.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"sort_critical": schema.BoolAttribute{
				MarkdownDescription: "Fail when the server does not support sorting. Defaults to `false`.",
				Optional:            true,
			},
			"assertion": schema.StringAttribute{
				MarkdownDescription: "RFC 4528 assertion filter the search base must match.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"assertion_critical": schema.BoolAttribute{
				MarkdownDescription: "Fail when the server does not support the assertion control. Defaults to `true`.",
				Optional:            true,
			},
			"entries": schema.ListNestedAttribute{
				MarkdownDescription: "The entries found.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"dn": schema.StringAttribute{
							MarkdownDescription: "DN of the entry.",
							Computed:            true,
						},
						"attributes": schema.MapAttribute{
							MarkdownDescription: "Attribute values keyed by attribute name as returned by the server.",
							Computed:            true,
							ElementType:         types.ListType{ElemType: types.StringType},
						},
					},
				},
			},
		},
	}
}

func (d *SearchDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

func (d *SearchDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data SearchDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "ldap_search", "read", map[string]any{
		"base":   data.Base.ValueString(),
		"filter": data.Filter.ValueString(),
	})
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	searchReq, diags := d.searchRequest(ctx, &data)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	var entries []ldapclient.Entry
	var base string
	err := d.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		base = ldapclient.CompleteDN(searchReq.Base, c.BaseDN())

		var ctrls []*ldapclient.Control
		if sort := data.Sort.ValueString(); sort != "" {
			ctrl, err := c.CreateSortControl(sort, data.SortCritical.ValueBool())
			if err != nil {
				return err
			}
			ctrls = append(ctrls, ctrl)
		}
		if assertion := data.Assertion.ValueString(); assertion != "" {
			critical := data.AssertionCritical.IsNull() || data.AssertionCritical.ValueBool()
			ctrl, err := c.CreateAssertionControl(assertion, critical)
			if err != nil {
				return err
			}
			ctrls = append(ctrls, ctrl)
		}
		if len(ctrls) > 0 {
			server, err := ldapclient.NewControls(ctrls...)
			if err != nil {
				return err
			}
			searchReq.Server = &server
		}

		var err error
		entries, err = c.Search(ctx, searchReq)
		return err
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Searching Directory",
			fmt.Sprintf("Could not search %q: %s", data.Base.ValueString(), err.Error()),
		)
		return
	}

	tflog.Debug(ctx, "Search completed", map[string]any{
		"base":    base,
		"entries": len(entries),
	})

	list, diags := entriesToList(ctx, entries)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(base)
	data.Entries = list

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// searchRequest builds the search from the configuration, leaving controls
// to be created on the handle that runs it.
func (d *SearchDataSource) searchRequest(ctx context.Context, data *SearchDataSourceModel) (*ldapclient.SearchRequest, diag.Diagnostics) {
	var diags diag.Diagnostics

	req := ldapclient.NewSearchRequest(data.Base.ValueString(), data.Filter.ValueString())

	scope, err := ldapclient.ParseSearchScope(data.Scope.ValueString())
	if err != nil {
		diags.AddError("Invalid Search Scope", err.Error())
		return nil, diags
	}
	req.Scope = scope

	if !data.Attributes.IsNull() && !data.Attributes.IsUnknown() {
		var attrs []string
		diags.Append(data.Attributes.ElementsAs(ctx, &attrs, false)...)
		if diags.HasError() {
			return nil, diags
		}
		req.Attributes = attrs
	}

	req.SizeLimit = int(data.SizeLimit.ValueInt64())
	return req, diags
}

// entriesToList converts search results into the entries attribute value.
func entriesToList(ctx context.Context, entries []ldapclient.Entry) (types.List, diag.Diagnostics) {
	models := make([]searchEntryModel, 0, len(entries))
	for _, e := range entries {
		models = append(models, searchEntryModel{
			DN:         types.StringValue(e.DN),
			Attributes: e.Map(),
		})
	}
	return types.ListValueFrom(ctx, searchEntryType, models)
}
