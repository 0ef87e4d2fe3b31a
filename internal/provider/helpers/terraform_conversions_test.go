package helpers

import (
	"math/big"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerraformValueToGo(t *testing.T) {
	ctx := t.Context()

	tests := []struct {
		name  string
		value attr.Value
		want  any
	}{
		{name: "null", value: types.StringNull(), want: nil},
		{name: "string", value: types.StringValue("cn"), want: "cn"},
		{name: "bool", value: types.BoolValue(true), want: true},
		{name: "integral number", value: types.NumberValue(big.NewFloat(1001)), want: int64(1001)},
		{name: "fractional number", value: types.NumberValue(big.NewFloat(1.5)), want: 1.5},
		{
			name:  "tuple",
			value: types.TupleValueMust([]attr.Type{types.StringType, types.BoolType}, []attr.Value{types.StringValue("a"), types.BoolValue(false)}),
			want:  []any{"a", false},
		},
		{
			name:  "object",
			value: types.ObjectValueMust(map[string]attr.Type{"cn": types.StringType}, map[string]attr.Value{"cn": types.StringValue("alice")}),
			want:  map[string]any{"cn": "alice"},
		},
		{name: "dynamic", value: types.DynamicValue(types.StringValue("x")), want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TerraformValueToGo(ctx, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := TerraformValueToGo(ctx, types.StringUnknown())
	assert.ErrorContains(t, err, "unknown")
}

func TestDynamicValueToMap(t *testing.T) {
	ctx := t.Context()

	obj := types.ObjectValueMust(
		map[string]attr.Type{"mail": types.ListType{ElemType: types.StringType}},
		map[string]attr.Value{"mail": types.ListValueMust(types.StringType, []attr.Value{types.StringValue("alice@example.org")})},
	)
	got, err := DynamicValueToMap(ctx, types.DynamicValue(obj))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"mail": []any{"alice@example.org"}}, got)

	_, err = DynamicValueToMap(ctx, types.DynamicNull())
	assert.ErrorContains(t, err, "cannot be null")

	_, err = DynamicValueToMap(ctx, types.DynamicValue(types.StringValue("x")))
	assert.ErrorContains(t, err, "expected object or map")
}

func TestGoValueToTerraform(t *testing.T) {
	ctx := t.Context()

	got, err := GoValueToTerraform(ctx, map[string]any{
		"names": []string{"cn", "commonName"},
		"len":   int64(64),
		"desc":  nil,
	})
	require.NoError(t, err)

	obj, ok := got.(types.Object)
	require.True(t, ok)
	attrs := obj.Attributes()
	assert.Equal(t, types.ListValueMust(types.StringType, []attr.Value{types.StringValue("cn"), types.StringValue("commonName")}), attrs["names"])
	assert.Equal(t, types.Int64Value(64), attrs["len"])
	assert.True(t, attrs["desc"].IsNull())

	_, err = GoValueToTerraform(ctx, struct{}{})
	assert.ErrorContains(t, err, "unsupported Go type")
}
