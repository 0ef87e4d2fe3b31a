// Package helpers converts between Terraform framework values and plain Go
// values for the provider functions and data sources.
package helpers

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// TerraformValueToGo converts v into nil, string, int64, float64, bool,
// []any or map[string]any. Unknown values are an error.
func TerraformValueToGo(ctx context.Context, v attr.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if v.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := v.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.Number:
		bf := v.ValueBigFloat()
		if bf == nil {
			return nil, fmt.Errorf("number value is nil")
		}
		// integral numbers stay integers so that they decode into int fields
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case types.List:
		return elementsToGo(ctx, v.Elements())
	case types.Set:
		return elementsToGo(ctx, v.Elements())
	case types.Tuple:
		return elementsToGo(ctx, v.Elements())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Dynamic:
		return TerraformValueToGo(ctx, v.UnderlyingValue())
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func elementsToGo(ctx context.Context, elems []attr.Value) ([]any, error) {
	out := make([]any, len(elems))
	for i, elem := range elems {
		v, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func attributesToGo(ctx context.Context, attrs map[string]attr.Value) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for name, val := range attrs {
		v, err := TerraformValueToGo(ctx, val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// DynamicValueToMap converts a dynamic value holding an object or map.
func DynamicValueToMap(ctx context.Context, value types.Dynamic) (map[string]any, error) {
	if value.IsNull() || value.IsUnknown() || value.IsUnderlyingValueNull() || value.IsUnderlyingValueUnknown() {
		return nil, fmt.Errorf("value cannot be null or unknown")
	}

	switch v := value.UnderlyingValue().(type) {
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	default:
		return nil, fmt.Errorf("expected object or map value, got %T", v)
	}
}

// GoValueToTerraform converts the output of TerraformValueToGo, and string
// slices, back into framework values. Maps become objects and slices become
// tuples so that heterogeneous elements survive; nil becomes a null string.
func GoValueToTerraform(ctx context.Context, value any) (attr.Value, error) {
	switch v := value.(type) {
	case nil:
		return types.StringNull(), nil
	case string:
		return types.StringValue(v), nil
	case int:
		return types.Int64Value(int64(v)), nil
	case int64:
		return types.Int64Value(v), nil
	case float64:
		return types.Float64Value(v), nil
	case bool:
		return types.BoolValue(v), nil
	case []string:
		elems := make([]attr.Value, len(v))
		for i, s := range v {
			elems[i] = types.StringValue(s)
		}
		return types.ListValueMust(types.StringType, elems), nil
	case []any:
		elems := make([]attr.Value, len(v))
		elemTypes := make([]attr.Type, len(v))
		for i, item := range v {
			tv, err := GoValueToTerraform(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = tv
			elemTypes[i] = tv.Type(ctx)
		}
		return types.TupleValueMust(elemTypes, elems), nil
	case map[string]any:
		attrTypes := make(map[string]attr.Type, len(v))
		attrValues := make(map[string]attr.Value, len(v))
		for _, key := range slices.Sorted(maps.Keys(v)) {
			tv, err := GoValueToTerraform(ctx, v[key])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			attrValues[key] = tv
			attrTypes[key] = tv.Type(ctx)
		}
		return types.ObjectValueMust(attrTypes, attrValues), nil
	default:
		return nil, fmt.Errorf("unsupported Go type for conversion: %T", value)
	}
}
