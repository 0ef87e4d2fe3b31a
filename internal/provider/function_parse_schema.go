package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/helpers"
)

var _ function.Function = &ParseSchemaFunction{}

// ParseSchemaFunction implements the parse_schema function.
type ParseSchemaFunction struct{}

// schemaKinds maps the kind argument onto the parser for that element.
var schemaKinds = map[string]func(string, ldapclient.SchemaFlags) (map[string]any, error){
	"syntax": func(def string, flags ldapclient.SchemaFlags) (map[string]any, error) {
		e, err := ldapclient.ParseSyntax(def, flags)
		if err != nil {
			return nil, err
		}
		return e.Map(), nil
	},
	"matching_rule": func(def string, flags ldapclient.SchemaFlags) (map[string]any, error) {
		e, err := ldapclient.ParseMatchingRule(def, flags)
		if err != nil {
			return nil, err
		}
		return e.Map(), nil
	},
	"matching_rule_use": func(def string, flags ldapclient.SchemaFlags) (map[string]any, error) {
		e, err := ldapclient.ParseMatchingRuleUse(def, flags)
		if err != nil {
			return nil, err
		}
		return e.Map(), nil
	},
	"attribute_type": func(def string, flags ldapclient.SchemaFlags) (map[string]any, error) {
		e, err := ldapclient.ParseAttributeType(def, flags)
		if err != nil {
			return nil, err
		}
		return e.Map(), nil
	},
	"object_class": func(def string, flags ldapclient.SchemaFlags) (map[string]any, error) {
		e, err := ldapclient.ParseObjectClass(def, flags)
		if err != nil {
			return nil, err
		}
		return e.Map(), nil
	},
}

var schemaFlagNames = map[string]ldapclient.SchemaFlags{
	"no_oid":       ldapclient.SchemaAllowNoOID,
	"quoted":       ldapclient.SchemaAllowQuoted,
	"descr":        ldapclient.SchemaAllowDescr,
	"descr_prefix": ldapclient.SchemaAllowDescrPrefix,
	"oid_macro":    ldapclient.SchemaAllowOIDMacro,
	"out_of_order": ldapclient.SchemaAllowOutOfOrder,
	"all":          ldapclient.SchemaAllowAll,
}

func (f ParseSchemaFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "parse_schema"
}

func (f ParseSchemaFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary: "Parse an RFC 4512 schema definition",
		MarkdownDescription: "Parses one schema definition as found in the subschema subentry and returns it as an object.\n\n" +
			"- `kind` is one of `syntax`, `matching_rule`, `matching_rule_use`, `attribute_type` or `object_class`\n" +
			"- optional `flags` relax the grammar: `no_oid`, `quoted`, `descr`, `descr_prefix`, `oid_macro`, `out_of_order` or `all`\n" +
			"- absent fields are null; `extensions` lists `X-` extensions as `{ name, values }` objects",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "kind",
				MarkdownDescription: "The kind of schema element.",
			},
			function.StringParameter{
				Name:                "definition",
				MarkdownDescription: "The definition, e.g. `( 2.5.4.3 NAME 'cn' SUP name )`.",
			},
		},
		VariadicParameter: function.StringParameter{
			Name:                "flags",
			MarkdownDescription: "Grammar relaxations.",
		},
		Return: function.DynamicReturn{},
	}
}

func (f ParseSchemaFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var kind, definition string
	var flagNames []string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &kind, &definition, &flagNames))
	if resp.Error != nil {
		return
	}

	parse, ok := schemaKinds[strings.ToLower(kind)]
	if !ok {
		resp.Error = function.NewArgumentFuncError(0, fmt.Sprintf("unknown schema element kind %q, expected one of: %s",
			kind, strings.Join(slices.Sorted(maps.Keys(schemaKinds)), ", ")))
		return
	}

	flags, err := parseSchemaFlags(flagNames)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(2, err.Error())
		return
	}

	element, err := parse(definition, flags)
	if err != nil {
		var schemaErr *ldapclient.SchemaError
		if errors.As(err, &schemaErr) {
			resp.Error = function.NewArgumentFuncError(1, fmt.Sprintf("%s at offset %d: %s",
				schemaErr.Code, schemaErr.Offset, schemaErr.Rest))
			return
		}
		resp.Error = function.NewFuncError(err.Error())
		return
	}

	value, err := helpers.GoValueToTerraform(ctx, schemaElementValue(element))
	if err != nil {
		resp.Error = function.NewFuncError(fmt.Sprintf("Failed to convert result to Terraform types: %s", err.Error()))
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, types.DynamicValue(value)))
}

func parseSchemaFlags(names []string) (ldapclient.SchemaFlags, error) {
	var flags ldapclient.SchemaFlags
	for _, name := range names {
		flag, ok := schemaFlagNames[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("unknown schema flag %q, expected one of: %s",
				name, strings.Join(slices.Sorted(maps.Keys(schemaFlagNames)), ", "))
		}
		flags |= flag
	}
	return flags, nil
}

// schemaElementValue rewrites extension lists into plain maps.
func schemaElementValue(element map[string]any) map[string]any {
	out := make(map[string]any, len(element))
	for key, value := range element {
		exts, ok := value.([]ldapclient.Extension)
		if !ok {
			out[key] = value
			continue
		}
		list := make([]any, 0, len(exts))
		for _, ext := range exts {
			list = append(list, map[string]any{
				"name":   ext.Name,
				"values": ext.Values,
			})
		}
		out[key] = list
	}
	return out
}

func NewParseSchemaFunction() function.Function {
	return &ParseSchemaFunction{}
}
