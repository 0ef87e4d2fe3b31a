package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &SchemaDataSource{}

func NewSchemaDataSource() datasource.DataSource {
	return &SchemaDataSource{}
}

// SchemaDataSource exposes the parsed subschema subentry of the server.
type SchemaDataSource struct {
	providerData *ldapclient.ProviderData
}

// SchemaDataSourceModel describes the data source data model.
type SchemaDataSourceModel struct {
	ID             types.String `tfsdk:"id"`
	Refresh        types.Bool   `tfsdk:"refresh"`
	Syntaxes       types.List   `tfsdk:"syntaxes"`
	MatchingRules  types.List   `tfsdk:"matching_rules"`
	AttributeTypes types.List   `tfsdk:"attribute_types"`
	ObjectClasses  types.List   `tfsdk:"object_classes"`
	ParseErrors    types.List   `tfsdk:"parse_errors"`
}

type syntaxModel struct {
	OID  types.String `tfsdk:"oid"`
	Desc types.String `tfsdk:"desc"`
}

type matchingRuleModel struct {
	OID       types.String `tfsdk:"oid"`
	Names     []string     `tfsdk:"names"`
	SyntaxOID types.String `tfsdk:"syntax_oid"`
}

type attributeTypeModel struct {
	OID         types.String `tfsdk:"oid"`
	Names       []string     `tfsdk:"names"`
	Desc        types.String `tfsdk:"desc"`
	Sup         types.String `tfsdk:"sup"`
	Equality    types.String `tfsdk:"equality"`
	SyntaxOID   types.String `tfsdk:"syntax_oid"`
	SingleValue types.Bool   `tfsdk:"single_value"`
	NoUserMod   types.Bool   `tfsdk:"no_user_modification"`
	Usage       types.String `tfsdk:"usage"`
}

type objectClassModel struct {
	OID   types.String `tfsdk:"oid"`
	Names []string     `tfsdk:"names"`
	Desc  types.String `tfsdk:"desc"`
	Sup   []string     `tfsdk:"sup"`
	Kind  types.String `tfsdk:"kind"`
	Must  []string     `tfsdk:"must"`
	May   []string     `tfsdk:"may"`
}

var (
	stringListType = types.ListType{ElemType: types.StringType}

	syntaxObjectType = types.ObjectType{AttrTypes: map[string]attr.Type{
		"oid":  types.StringType,
		"desc": types.StringType,
	}}
	matchingRuleObjectType = types.ObjectType{AttrTypes: map[string]attr.Type{
		"oid":        types.StringType,
		"names":      stringListType,
		"syntax_oid": types.StringType,
	}}
	attributeTypeObjectType = types.ObjectType{AttrTypes: map[string]attr.Type{
		"oid":                  types.StringType,
		"names":                stringListType,
		"desc":                 types.StringType,
		"sup":                  types.StringType,
		"equality":             types.StringType,
		"syntax_oid":           types.StringType,
		"single_value":         types.BoolType,
		"no_user_modification": types.BoolType,
		"usage":                types.StringType,
	}}
	objectClassObjectType = types.ObjectType{AttrTypes: map[string]attr.Type{
		"oid":   types.StringType,
		"names": stringListType,
		"desc":  types.StringType,
		"sup":   stringListType,
		"kind":  types.StringType,
		"must":  stringListType,
		"may":   stringListType,
	}}
)

func (d *SchemaDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_schema"
}

func (d *SchemaDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	computedList := func(desc string, attrs map[string]schema.Attribute) schema.ListNestedAttribute {
		return schema.ListNestedAttribute{
			MarkdownDescription: desc,
			Computed:            true,
			NestedObject:        schema.NestedAttributeObject{Attributes: attrs},
		}
	}
	str := func(desc string) schema.StringAttribute {
		return schema.StringAttribute{MarkdownDescription: desc, Computed: true}
	}
	list := func(desc string) schema.ListAttribute {
		return schema.ListAttribute{MarkdownDescription: desc, Computed: true, ElementType: types.StringType}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads the subschema subentry of the server and returns its parsed syntaxes, " +
			"matching rules, attribute types and object classes. Definitions that do not parse are listed in `parse_errors`.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "DN of the subschema subentry.",
				Computed:            true,
			},
			"refresh": schema.BoolAttribute{
				MarkdownDescription: "Re-read the schema instead of using the copy cached by the provider.",
				Optional:            true,
			},
			"syntaxes": computedList("LDAP syntaxes.", map[string]schema.Attribute{
				"oid":  str("Numeric OID."),
				"desc": str("Description."),
			}),
			"matching_rules": computedList("Matching rules.", map[string]schema.Attribute{
				"oid":        str("Numeric OID."),
				"names":      list("Names."),
				"syntax_oid": str("Assertion syntax OID."),
			}),
			"attribute_types": computedList("Attribute types.", map[string]schema.Attribute{
				"oid":          str("Numeric OID."),
				"names":        list("Names."),
				"desc":         str("Description."),
				"sup":          str("Supertype."),
				"equality":     str("Equality matching rule."),
				"syntax_oid":   str("Syntax OID."),
				"single_value": schema.BoolAttribute{MarkdownDescription: "Whether the attribute holds one value.", Computed: true},
				"no_user_modification": schema.BoolAttribute{
					MarkdownDescription: "Whether clients may not modify the attribute.",
					Computed:            true,
				},
				"usage": str("`userApplications`, `directoryOperation`, `distributedOperation` or `dSAOperation`."),
			}),
			"object_classes": computedList("Object classes.", map[string]schema.Attribute{
				"oid":   str("Numeric OID."),
				"names": list("Names."),
				"desc":  str("Description."),
				"sup":   list("Superclasses."),
				"kind":  str("`ABSTRACT`, `STRUCTURAL` or `AUXILIARY`."),
				"must":  list("Required attribute types."),
				"may":   list("Allowed attribute types."),
			}),
			"parse_errors": schema.ListAttribute{
				MarkdownDescription: "Definitions rejected by the parser.",
				Computed:            true,
				ElementType:         types.StringType,
			},
		},
	}
}

func (d *SchemaDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

func (d *SchemaDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data SchemaDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "ldap_schema", "read", nil)
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if data.Refresh.ValueBool() {
		d.providerData.Schema.Invalidate()
	}

	var subschema *ldapclient.Subschema
	var parseErr error
	err := d.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		subschema, parseErr = d.providerData.Schema.Get(ctx, c)
		if subschema == nil {
			return parseErr
		}
		return nil
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Schema",
			fmt.Sprintf("Could not read the subschema subentry: %s", err.Error()),
		)
		return
	}

	problems := parseErrorMessages(parseErr)
	if len(problems) > 0 {
		tflog.Warn(ctx, "Some schema definitions could not be parsed", map[string]any{
			"count": len(problems),
		})
	}

	resp.Diagnostics.Append(mapSubschema(ctx, subschema, problems, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// parseErrorMessages flattens the aggregated definition errors of GetSchema.
func parseErrorMessages(err error) []string {
	if err == nil {
		return []string{}
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		out = append(out, e.Error())
	}
	return out
}

func mapSubschema(ctx context.Context, s *ldapclient.Subschema, problems []string, data *SchemaDataSourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	syntaxes := make([]syntaxModel, 0, len(s.Syntaxes))
	for _, syn := range s.Syntaxes {
		syntaxes = append(syntaxes, syntaxModel{
			OID:  types.StringValue(syn.OID),
			Desc: types.StringPointerValue(syn.Desc),
		})
	}

	rules := make([]matchingRuleModel, 0, len(s.MatchingRules))
	for _, mr := range s.MatchingRules {
		rules = append(rules, matchingRuleModel{
			OID:       types.StringValue(mr.OID),
			Names:     nonNil(mr.Names),
			SyntaxOID: types.StringValue(mr.SyntaxOID),
		})
	}

	attrTypes := make([]attributeTypeModel, 0, len(s.AttributeTypes))
	for _, at := range s.AttributeTypes {
		attrTypes = append(attrTypes, attributeTypeModel{
			OID:         types.StringValue(at.OID),
			Names:       nonNil(at.Names),
			Desc:        types.StringPointerValue(at.Desc),
			Sup:         types.StringPointerValue(at.SupOID),
			Equality:    types.StringPointerValue(at.EqualityOID),
			SyntaxOID:   types.StringPointerValue(at.SyntaxOID),
			SingleValue: types.BoolValue(at.SingleValue),
			NoUserMod:   types.BoolValue(at.NoUserMod),
			Usage:       types.StringValue(at.Usage.String()),
		})
	}

	classes := make([]objectClassModel, 0, len(s.ObjectClasses))
	for _, oc := range s.ObjectClasses {
		classes = append(classes, objectClassModel{
			OID:   types.StringValue(oc.OID),
			Names: nonNil(oc.Names),
			Desc:  types.StringPointerValue(oc.Desc),
			Sup:   nonNil(oc.SupOIDs),
			Kind:  types.StringValue(oc.Kind.String()),
			Must:  nonNil(oc.Must),
			May:   nonNil(oc.May),
		})
	}

	var d diag.Diagnostics
	data.ID = types.StringValue(s.DN)
	data.Syntaxes, d = types.ListValueFrom(ctx, syntaxObjectType, syntaxes)
	diags.Append(d...)
	data.MatchingRules, d = types.ListValueFrom(ctx, matchingRuleObjectType, rules)
	diags.Append(d...)
	data.AttributeTypes, d = types.ListValueFrom(ctx, attributeTypeObjectType, attrTypes)
	diags.Append(d...)
	data.ObjectClasses, d = types.ListValueFrom(ctx, objectClassObjectType, classes)
	diags.Append(d...)
	data.ParseErrors, d = types.ListValueFrom(ctx, types.StringType, problems)
	diags.Append(d...)
	return diags
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
