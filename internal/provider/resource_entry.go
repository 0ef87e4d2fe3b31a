package provider

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-framework-validators/mapvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/setvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/booldefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/planmodifiers"
	customtypes "github.com/isometry/terraform-provider-ldap/internal/provider/types"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &EntryResource{}
var _ resource.ResourceWithImportState = &EntryResource{}

func NewEntryResource() resource.Resource {
	return &EntryResource{}
}

// EntryResource manages one directory entry and the attributes listed in
// its configuration. Attributes not listed are left alone.
type EntryResource struct {
	providerData *ldapclient.ProviderData
}

// EntryResourceModel describes the resource data model.
type EntryResourceModel struct {
	ID           types.String              `tfsdk:"id"`             // random UUID (computed)
	DN           customtypes.DNStringValue `tfsdk:"dn"`             // Required
	Attributes   types.Map                 `tfsdk:"attributes"`     // map(set(string))
	DeleteOldRDN types.Bool                `tfsdk:"delete_old_rdn"` // Optional+Computed+Default: true
}

var attributeValuesType = types.SetType{ElemType: types.StringType}

func (r *EntryResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_entry"
}

func (r *EntryResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages an LDAP directory entry. Only the attributes present in `attributes` are managed; " +
			"other attributes of the entry, including operational attributes, are ignored.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Random identifier assigned when the entry is created or imported.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "Distinguished name of the entry. Relative DNs are completed against the provider base DN. " +
					"Changing the RDN renames the entry in place; changing the parent replaces it.",
				Required:   true,
				CustomType: customtypes.DNStringType{},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceOnMove(),
				},
			},
			"attributes": schema.MapAttribute{
				MarkdownDescription: "Attribute values keyed by attribute name, e.g. `{ objectClass = [\"person\"], cn = [\"alice\"], sn = [\"Doe\"] }`.",
				Required:            true,
				ElementType:         attributeValuesType,
				Validators: []validator.Map{
					mapvalidator.SizeAtLeast(1),
					mapvalidator.ValueSetsAre(setvalidator.SizeAtLeast(1)),
				},
			},
			"delete_old_rdn": schema.BoolAttribute{
				MarkdownDescription: "Remove the old RDN value from the entry when it is renamed. Defaults to `true`.",
				Optional:            true,
				Computed:            true,
				Default:             booldefault.StaticBool(true),
			},
		},
	}
}

func (r *EntryResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	providerData, ok := req.ProviderData.(*ldapclient.ProviderData)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Resource Configure Type",
			fmt.Sprintf("Expected *ldapclient.ProviderData, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	r.providerData = providerData
}

func (r *EntryResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data EntryResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn := data.DN.ValueString()
	logCompletion := ldapclient.LogResourceOperation(ctx, "ldap_entry", "create", map[string]any{"dn": dn})
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	attrs, diags := attributesFromMap(ctx, data.Attributes)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	mods, err := ldapclient.NewMods(ldapclient.ModAdd, attrs)
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root("attributes"), "Invalid Attributes", err.Error())
		return
	}

	err = r.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		return c.Add(ctx, dn, mods)
	})
	if err != nil {
		if ldapclient.IsConflictError(err) {
			resp.Diagnostics.AddError(
				"Entry Already Exists",
				fmt.Sprintf("Could not create %s because an entry with this DN already exists. "+
					"Import it with `terraform import` to manage it.\n\n%s", dn, err.Error()),
			)
			return
		}
		resp.Diagnostics.AddError(
			"Error Creating Entry",
			"Could not create LDAP entry, unexpected error: "+err.Error(),
		)
		return
	}

	data.ID = types.StringValue(uuid.NewString())

	tflog.Debug(ctx, "Created LDAP entry", map[string]any{
		"id":         data.ID.ValueString(),
		"dn":         dn,
		"attributes": len(attrs),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *EntryResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data EntryResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn := data.DN.ValueString()
	logCompletion := ldapclient.LogResourceOperation(ctx, "ldap_entry", "read", map[string]any{"dn": dn})
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	var managed map[string][]string
	if !data.Attributes.IsNull() && !data.Attributes.IsUnknown() {
		var diags diag.Diagnostics
		managed, diags = attributesFromMap(ctx, data.Attributes)
		resp.Diagnostics.Append(diags...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	entry, err := r.readEntry(ctx, dn, slices.Sorted(maps.Keys(managed)))
	if (err == nil && entry == nil) || ldapclient.IsNotFoundError(err) {
		tflog.Info(ctx, "LDAP entry no longer exists, removing from state", map[string]any{"dn": dn})
		resp.State.RemoveResource(ctx)
		return
	}
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Entry",
			fmt.Sprintf("Could not read LDAP entry %s: %s", dn, err.Error()),
		)
		return
	}

	attrs := entry.Map()
	if managed != nil {
		attrs = alignAttributeNames(attrs, managed)
	}

	value, diags := types.MapValueFrom(ctx, attributeValuesType, attrs)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}
	data.Attributes = value

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *EntryResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data, state EntryResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	oldDN, newDN := state.DN.ValueString(), data.DN.ValueString()
	logCompletion := ldapclient.LogResourceOperation(ctx, "ldap_entry", "update", map[string]any{
		"dn":     oldDN,
		"new_dn": newDN,
	})
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	oldAttrs, diags := attributesFromMap(ctx, state.Attributes)
	resp.Diagnostics.Append(diags...)
	newAttrs, diags := attributesFromMap(ctx, data.Attributes)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	mods, err := attributeChanges(oldAttrs, newAttrs)
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root("attributes"), "Invalid Attributes", err.Error())
		return
	}

	rename := !ldapclient.EqualDN(oldDN, newDN)
	var newRDN string
	if rename {
		newRDN, _, err = ldapclient.SplitRDN(newDN)
		if err != nil {
			resp.Diagnostics.AddAttributeError(path.Root("dn"), "Invalid Distinguished Name", err.Error())
			return
		}
	}

	err = r.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		if rename {
			if err := c.ModRDN2(ctx, oldDN, newRDN, data.DeleteOldRDN.ValueBool()); err != nil {
				return err
			}
			tflog.Debug(ctx, "Renamed LDAP entry", map[string]any{"dn": oldDN, "new_rdn": newRDN})
		}
		if len(mods) == 0 {
			return nil
		}
		return c.Modify(ctx, newDN, mods)
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Updating Entry",
			"Could not update LDAP entry, unexpected error: "+err.Error(),
		)
		return
	}

	tflog.Debug(ctx, "Updated LDAP entry", map[string]any{
		"dn":      newDN,
		"renamed": rename,
		"changes": len(mods),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *EntryResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data EntryResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn := data.DN.ValueString()
	logCompletion := ldapclient.LogResourceOperation(ctx, "ldap_entry", "delete", map[string]any{"dn": dn})
	defer func() { completeLog(logCompletion, resp.Diagnostics) }()

	err := r.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		return c.Delete(ctx, dn)
	})
	if err != nil && !ldapclient.IsNotFoundError(err) {
		if ldapclient.ResultCode(err) == ldapResultNotAllowedOnNonLeaf {
			resp.Diagnostics.AddError(
				"Error Deleting Non-Leaf Entry",
				fmt.Sprintf("Cannot delete %s because it has subordinate entries. Delete them first.", dn),
			)
			return
		}
		resp.Diagnostics.AddError(
			"Error Deleting Entry",
			"Could not delete LDAP entry, unexpected error: "+err.Error(),
		)
		return
	}

	tflog.Debug(ctx, "Deleted LDAP entry", map[string]any{"dn": dn})
}

func (r *EntryResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	dn := strings.TrimSpace(req.ID)

	tflog.Debug(ctx, "Importing LDAP entry", map[string]any{"dn": dn})

	if dn == "" || !ldapclient.IsValidDN(dn, ldapclient.DNFormatLDAPv3) {
		resp.Diagnostics.AddError(
			"Invalid Import ID",
			fmt.Sprintf("The import ID must be the DN of the entry, got %q.", req.ID),
		)
		return
	}

	// attributes stay null so that Read fetches every user attribute
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), uuid.NewString())...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("dn"), customtypes.DNString(dn))...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("delete_old_rdn"), true)...)
}

// readEntry reads dn with a base search; a nil entry means dn does not
// exist. attrs nil means all user attributes.
func (r *EntryResource) readEntry(ctx context.Context, dn string, attrs []string) (*ldapclient.Entry, error) {
	req := ldapclient.NewSearchRequest(dn, "(objectClass=*)")
	req.Scope = ldapclient.ScopeBase
	if len(attrs) > 0 {
		req.Attributes = attrs
	}

	var entries []ldapclient.Entry
	err := r.providerData.Pool.With(ctx, func(c *ldapclient.Conn) error {
		var err error
		entries, err = c.Search(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// LDAP result 66, notAllowedOnNonLeaf.
const ldapResultNotAllowedOnNonLeaf = 66

func attributesFromMap(ctx context.Context, m types.Map) (map[string][]string, diag.Diagnostics) {
	attrs := make(map[string][]string, len(m.Elements()))
	diags := m.ElementsAs(ctx, &attrs, false)
	return attrs, diags
}

// alignAttributeNames renames the attributes read from the server to the
// spelling used in managed. Attributes absent from the server are dropped.
func alignAttributeNames(read, managed map[string][]string) map[string][]string {
	out := make(map[string][]string, len(managed))
	for name, values := range read {
		key := name
		for want := range managed {
			if strings.EqualFold(want, name) {
				key = want
				break
			}
		}
		out[key] = values
	}
	return out
}

// attributeChanges returns the mods turning have into want: a replace for
// every attribute whose value set differs and a delete for every attribute
// no longer listed. Names compare case-insensitively.
func attributeChanges(have, want map[string][]string) ([]*ldapclient.Mod, error) {
	haveByName := make(map[string][]string, len(have))
	for name, values := range have {
		haveByName[strings.ToLower(name)] = values
	}
	wanted := make(map[string]bool, len(want))

	var mods []*ldapclient.Mod
	for _, name := range slices.Sorted(maps.Keys(want)) {
		key := strings.ToLower(name)
		wanted[key] = true

		values, ok := haveByName[key]
		if ok && sameValues(values, want[name]) {
			continue
		}
		m, err := ldapclient.NewMod(ldapclient.ModReplace, name, want[name])
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}

	for _, name := range slices.Sorted(maps.Keys(have)) {
		if wanted[strings.ToLower(name)] {
			continue
		}
		m, err := ldapclient.NewMod(ldapclient.ModDelete, name, nil)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
