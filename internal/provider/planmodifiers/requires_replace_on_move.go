package planmodifiers

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// requiresReplaceOnMove implements the plan modifier.
type requiresReplaceOnMove struct{}

// RequiresReplaceOnMove returns a plan modifier for DN attributes that forces
// replacement when the parent DN changes. A change of the RDN alone is applied
// in place with a modify RDN operation, which cannot move an entry.
func RequiresReplaceOnMove() planmodifier.String {
	return requiresReplaceOnMove{}
}

// Description returns a human-readable description of the plan modifier.
func (m requiresReplaceOnMove) Description(_ context.Context) string {
	return "requires replacement when the parent of the DN changes"
}

// MarkdownDescription returns a markdown description of the plan modifier.
func (m requiresReplaceOnMove) MarkdownDescription(_ context.Context) string {
	return "requires replacement when the parent of the `dn` changes"
}

// PlanModifyString implements the plan modification logic.
func (m requiresReplaceOnMove) PlanModifyString(ctx context.Context, req planmodifier.StringRequest, resp *planmodifier.StringResponse) {
	// Nothing to compare on create, destroy or unknown values
	if req.StateValue.IsNull() || req.PlanValue.IsNull() || req.PlanValue.IsUnknown() {
		return
	}

	oldDN, newDN := req.StateValue.ValueString(), req.PlanValue.ValueString()
	if ldapclient.EqualDN(oldDN, newDN) {
		return
	}

	resp.RequiresReplace = Moved(oldDN, newDN)
}

// Moved reports whether newDN has a different parent than oldDN. DNs that do
// not parse count as moved.
func Moved(oldDN, newDN string) bool {
	_, oldParent, err := ldapclient.SplitRDN(oldDN)
	if err != nil {
		return true
	}
	_, newParent, err := ldapclient.SplitRDN(newDN)
	if err != nil {
		return true
	}
	return !ldapclient.EqualDN(oldParent, newParent)
}
