package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var _ function.Function = &EscapeDNValueFunction{}

// EscapeDNValueFunction implements the escape_dn_value function.
type EscapeDNValueFunction struct{}

func (f EscapeDNValueFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "escape_dn_value"
}

func (f EscapeDNValueFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:             "Escape an attribute value for use in an RDN",
		MarkdownDescription: "Escapes the RFC 4514 special characters of `value`, e.g. `Doe, John` becomes `Doe\\, John`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "value",
				MarkdownDescription: "The attribute value.",
			},
		},
		Return: function.StringReturn{},
	}
}

func (f EscapeDNValueFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var value string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &value))
	if resp.Error != nil {
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, ldapclient.EscapeDNValue(value)))
}

func NewEscapeDNValueFunction() function.Function {
	return &EscapeDNValueFunction{}
}
