package provider

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/mitchellh/mapstructure"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/helpers"
)

var _ function.Function = &BuildModsFunction{}

// BuildModsFunction implements the build_mods function.
type BuildModsFunction struct{}

func (f BuildModsFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "build_mods"
}

func (f BuildModsFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary: "Build LDAP modification records from an attribute map",
		MarkdownDescription: "Builds one modification record per attribute, ordered by attribute name, as a list of " +
			"`{ mode, attr, values }` objects.\n\n" +
			"- `mode` is `add`, `delete` or `replace`\n" +
			"- `attributes` maps attribute names to a value or list of values; numbers and booleans are converted to strings\n" +
			"- `delete` records carry null `values`, removing the whole attribute",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "mode",
				MarkdownDescription: "Modification mode.",
			},
			function.DynamicParameter{
				Name:                "attributes",
				MarkdownDescription: "Object or map of attribute names to values.",
			},
		},
		Return: function.DynamicReturn{},
	}
}

func (f BuildModsFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var modeArg string
	var attributesArg types.Dynamic

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &modeArg, &attributesArg))
	if resp.Error != nil {
		return
	}

	mode, err := ldapclient.ParseModMode(modeArg)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, fmt.Sprintf("mode must be one of %s", strings.Join(ldapclient.ModModeNames(), ", ")))
		return
	}

	raw, err := helpers.DynamicValueToMap(ctx, attributesArg)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(1, fmt.Sprintf("Failed to process attributes: %s", err.Error()))
		return
	}

	attrs, err := decodeAttributeValues(raw)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(1, err.Error())
		return
	}

	mods, err := ldapclient.NewMods(mode, attrs)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(1, err.Error())
		return
	}

	records := make([]any, 0, len(mods))
	for _, m := range mods {
		var values any
		if v := m.Values(); v != nil {
			values = v
		}
		records = append(records, map[string]any{
			"mode":   m.Mode().String(),
			"attr":   m.Attr(),
			"values": values,
		})
	}

	value, err := helpers.GoValueToTerraform(ctx, records)
	if err != nil {
		resp.Error = function.NewFuncError(fmt.Sprintf("Failed to convert result to Terraform types: %s", err.Error()))
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, types.DynamicValue(value)))
}

// decodeAttributeValues normalises scalars and lists into string lists. A
// null attribute decodes to a nil list.
func decodeAttributeValues(raw map[string]any) (map[string][]string, error) {
	var attrs map[string][]string
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       ldapBooleanHook,
		WeaklyTypedInput: true,
		Result:           &attrs,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("attribute values must be strings or lists of strings: %w", err)
	}
	for name, value := range raw {
		if value == nil {
			attrs[name] = nil
		}
	}
	return attrs, nil
}

// ldapBooleanHook renders booleans with the RFC 4517 Boolean syntax.
func ldapBooleanHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Bool || to.Kind() != reflect.String {
		return data, nil
	}
	if data.(bool) {
		return "TRUE", nil
	}
	return "FALSE", nil
}

func NewBuildModsFunction() function.Function {
	return &BuildModsFunction{}
}
