package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var _ function.Function = &CompleteDNFunction{}

// CompleteDNFunction implements the complete_dn function.
type CompleteDNFunction struct{}

func (f CompleteDNFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "complete_dn"
}

func (f CompleteDNFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary: "Complete a relative DN against a base DN",
		MarkdownDescription: "Appends `base` to `dn` unless `dn` already ends with `base` or is `cn=Subschema`. " +
			"An empty `dn` yields `base`. The suffix comparison is literal and case sensitive.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "dn",
				MarkdownDescription: "The DN to complete. May be empty.",
			},
			function.StringParameter{
				Name:                "base",
				MarkdownDescription: "The base DN. May be empty.",
			},
		},
		Return: function.StringReturn{},
	}
}

func (f CompleteDNFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var dn, base string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &dn, &base))
	if resp.Error != nil {
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, ldapclient.CompleteDN(dn, base)))
}

func NewCompleteDNFunction() function.Function {
	return &CompleteDNFunction{}
}
