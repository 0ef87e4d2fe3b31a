package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var _ validator.String = dnValidator{}

// dnValidator checks that a string is an RFC 4514 distinguished name.
// Relative DNs are accepted; they are completed against the base DN later.
type dnValidator struct{}

func (v dnValidator) Description(_ context.Context) string {
	return "value must be a valid Distinguished Name (DN)"
}

func (v dnValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v dnValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()

	var problem string
	switch {
	case value == "":
		problem = "DN cannot be empty"
	case value != strings.TrimSpace(value):
		problem = "DN has leading or trailing whitespace"
	case !ldapclient.IsValidDN(value, ldapclient.DNFormatLDAPv3):
		_, err := ldapclient.NormalizeDN(value)
		problem = fmt.Sprint(err)
	default:
		return
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Distinguished Name",
		fmt.Sprintf("The value %q is not a valid Distinguished Name format: %s", value, problem),
	)
}

// IsValidDN returns a validator which ensures that any configured
// attribute value is a valid Distinguished Name (DN).
//
// Unknown values and null values are skipped from validation.
func IsValidDN() validator.String {
	return dnValidator{}
}
