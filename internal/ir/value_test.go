package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int64", int64(-7), Int(-7)},
		{"uint8", uint8(200), Int(200)},
		{"integral float", float64(3), Int(3)},
		{"json number", json.Number("12"), Int(12)},
		{"value passthrough", String("kept"), String("kept")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"fractional float", 1.5},
		{"nan", math.NaN()},
		{"uint overflow", uint64(math.MaxUint64)},
		{"fractional json number", json.Number("1.25")},
		{"struct", struct{}{}},
		{"nested float", map[string]any{"a": []any{1, 2.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAny(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestFromAny_Nested(t *testing.T) {
	got, err := FromAny(map[string]any{
		"tags":  []string{"a", "b"},
		"owner": map[string]any{"id": 1, "admin": false},
	})
	require.NoError(t, err)

	assert.Equal(t, Map{
		"tags":  List{String("a"), String("b")},
		"owner": Map{"id": Int(1), "admin": Bool(false)},
	}, got)
}

func TestToAny_RoundTripsFromAny(t *testing.T) {
	in := map[string]any{
		"s": "x",
		"n": int64(3),
		"b": true,
		"z": nil,
		"l": []any{int64(1), "two"},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToAny(v))
}

func TestMapSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00, which sort before U+FB01 in
	// UTF-16 even though the UTF-8 bytes sort after.
	m := Map{"\uFB01": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uFB01"}, m.SortedKeys())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "null", TypeName(Null{}))
	assert.Equal(t, "null", TypeName(nil))
	assert.Equal(t, "string", TypeName(String("")))
	assert.Equal(t, "int", TypeName(Int(0)))
	assert.Equal(t, "bool", TypeName(Bool(false)))
	assert.Equal(t, "list", TypeName(List{}))
	assert.Equal(t, "map", TypeName(Map{}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Map{"a": Int(1), "b": Int(2)}, Map{"b": Int(2), "a": Int(1)}))
	assert.True(t, Equal(String("caf\u00e9"), String("cafe\u0301")))
	assert.False(t, Equal(Int(1), String("1")))
}
