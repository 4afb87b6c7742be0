package canon

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	v, err := Decode([]byte(`{"a":1,"b":1.5,"c":[true,null,"x"],"d":{}}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Int(1), obj["a"])
	assert.Equal(t, Float(1.5), obj["b"])
	assert.Equal(t, Array{Bool(true), Null{}, String("x")}, obj["c"])
	assert.Equal(t, Object{}, obj["d"])
}

func TestDecodeNumbers(t *testing.T) {
	tests := []struct {
		input    string
		expected Value
	}{
		{"0", Int(0)},
		{"-17", Int(-17)},
		{"1.0", Float(1)},
		{"1e3", Float(1000)},
		{"123456789012345678901234", BigInt("123456789012345678901234")},
		{"-0", Int(0)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"a":`))
	require.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"s":    "x",
		"i":    7,
		"u":    uint8(3),
		"f":    2.5,
		"b":    false,
		"nil":  nil,
		"list": []any{1, "two"},
		"yaml": map[any]any{"k": "v"},
		"env":  map[string]string{"os": "linux"},
	})
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, String("x"), obj["s"])
	assert.Equal(t, Int(7), obj["i"])
	assert.Equal(t, Int(3), obj["u"])
	assert.Equal(t, Float(2.5), obj["f"])
	assert.Equal(t, Bool(false), obj["b"])
	assert.Equal(t, Null{}, obj["nil"])
	assert.Equal(t, Array{Int(1), String("two")}, obj["list"])
	assert.Equal(t, Object{"k": String("v")}, obj["yaml"])
	assert.Equal(t, Object{"os": String("linux")}, obj["env"])
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
	assert.True(t, IsCanonicalizationError(err))

	_, err = FromAny(map[any]any{1: "x"})
	require.Error(t, err)
}

func TestToAnyRoundTrip(t *testing.T) {
	original := Object{
		"a": Array{Int(1), Float(1.5), Null{}},
		"b": Object{"c": Bool(true), "d": String("x")},
	}

	back, err := FromAny(ToAny(original))
	require.NoError(t, err)
	assert.True(t, Equal(original, back))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"same ints", Int(1), Int(1), true},
		{"int vs float same value", Int(2), Float(2), true},
		{"int vs float different", Int(2), Float(2.5), false},
		{"nil vs null", nil, Null{}, true},
		{"string vs int", String("1"), Int(1), false},
		{"arrays", Array{Int(1)}, Array{Int(1)}, true},
		{"array order matters", Array{Int(1), Int(2)}, Array{Int(2), Int(1)}, false},
		{"objects", Object{"a": Int(1)}, Object{"a": Int(1)}, true},
		{"object missing key", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
		{"object vs array", Object{}, Array{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Equal(tt.a, tt.b))
			assert.Equal(t, tt.equal, Equal(tt.b, tt.a))
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := Object{"list": Array{Object{"k": Int(1)}}}
	clone := CloneObject(original)

	clone["list"].(Array)[0].(Object)["k"] = Int(2)
	assert.Equal(t, Int(1), original["list"].(Array)[0].(Object)["k"])
	assert.Nil(t, CloneObject(nil))
}

func TestObjectJSONRoundTrip(t *testing.T) {
	obj := Object{"z": Int(1), "a": Array{String("x"), Float(0.5)}}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",0.5],"z":1}`, string(data))

	var back Object
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))
}

func TestObjectUnmarshalRejectsNonObject(t *testing.T) {
	var obj Object
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &obj))

	require.NoError(t, json.Unmarshal([]byte(`null`), &obj))
	assert.Nil(t, obj)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindNumber, KindOf(Float(1)))
	assert.Equal(t, KindNumber, KindOf(Int(1)))
	assert.Equal(t, "object", KindOf(Object{}).String())
}

func TestEscapePointer(t *testing.T) {
	assert.Equal(t, "a~1b", EscapePointer("a/b"))
	assert.Equal(t, "m~0n", EscapePointer("m~n"))
	assert.Equal(t, "plain", EscapePointer("plain"))
}

func TestDecodeBigIntegers(t *testing.T) {
	v, err := Decode([]byte(`[9223372036854775807, 9223372036854775808, -9223372036854775809, 1e30]`))
	require.NoError(t, err)

	arr := v.(Array)
	assert.Equal(t, Int(math.MaxInt64), arr[0])
	assert.Equal(t, BigInt("9223372036854775808"), arr[1])
	assert.Equal(t, BigInt("-9223372036854775809"), arr[2])
	assert.Equal(t, Float(1e30), arr[3])
	assert.Equal(t, KindNumber, KindOf(arr[1]))
}

func TestFromAnyBigIntegers(t *testing.T) {
	v, err := FromAny(uint64(math.MaxUint64))
	require.NoError(t, err)
	assert.Equal(t, BigInt("18446744073709551615"), v)

	v, err = FromAny(big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, Int(5), v)

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	v, err = FromAny(huge)
	require.NoError(t, err)
	assert.Equal(t, BigInt("123456789012345678901234567890"), v)
	assert.Equal(t, 0, huge.Cmp(ToAny(v).(*big.Int)))

	b, err := json.Marshal(map[string]Value{"n": v})
	require.NoError(t, err)
	assert.Equal(t, `{"n":123456789012345678901234567890}`, string(b))
}

func TestEqualBigIntegers(t *testing.T) {
	assert.True(t, Equal(BigInt("18446744073709551616"), BigInt("18446744073709551616")))
	assert.False(t, Equal(BigInt("18446744073709551616"), BigInt("18446744073709551617")))
	assert.True(t, Equal(BigInt("18446744073709551616"), Float(18446744073709551616)))
	assert.False(t, Equal(BigInt("18446744073709551617"), Float(18446744073709551616)))
	assert.False(t, Equal(BigInt("18446744073709551616"), String("18446744073709551616")))
}
