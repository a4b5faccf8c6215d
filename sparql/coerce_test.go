package sparql

import (
	"errors"
	"math/big"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Native(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		want    any
		wantErr bool
	}{
		{"boolean true", Value{Type: TermLiteral, Value: "true", Datatype: XSDBoolean}, true, false},
		{"boolean false", Value{Type: TermLiteral, Value: "false", Datatype: XSDBoolean}, false, false},
		{"boolean one is not true", Value{Type: TermLiteral, Value: "1", Datatype: XSDBoolean}, false, false},
		{"boolean uppercase is not true", Value{Type: TermLiteral, Value: "TRUE", Datatype: XSDBoolean}, false, false},
		{"integer", Value{Type: TermLiteral, Value: "42", Datatype: XSDInteger}, int64(42), false},
		{"negative integer", Value{Type: TermLiteral, Value: "-7", Datatype: XSDInteger}, int64(-7), false},
		{"decimal", Value{Type: TermLiteral, Value: "3.25", Datatype: XSDDecimal}, 3.25, false},
		{"bad integer", Value{Type: TermLiteral, Value: "12abc", Datatype: XSDInteger}, "12abc", true},
		{"bad decimal", Value{Type: TermLiteral, Value: "n/a", Datatype: XSDDecimal}, "n/a", true},
		{"signed decimal", Value{Type: TermLiteral, Value: "+1.50", Datatype: XSDDecimal}, 1.5, false},
		{"decimal without fraction", Value{Type: TermLiteral, Value: "-12", Datatype: XSDDecimal}, -12.0, false},
		{"decimal leading point", Value{Type: TermLiteral, Value: ".5", Datatype: XSDDecimal}, 0.5, false},
		{"decimal trailing point", Value{Type: TermLiteral, Value: "5.", Datatype: XSDDecimal}, 5.0, false},
		{"decimal NaN", Value{Type: TermLiteral, Value: "NaN", Datatype: XSDDecimal}, "NaN", true},
		{"decimal infinity", Value{Type: TermLiteral, Value: "Inf", Datatype: XSDDecimal}, "Inf", true},
		{"decimal INF", Value{Type: TermLiteral, Value: "-INF", Datatype: XSDDecimal}, "-INF", true},
		{"decimal hex float", Value{Type: TermLiteral, Value: "0x1p4", Datatype: XSDDecimal}, "0x1p4", true},
		{"decimal exponent", Value{Type: TermLiteral, Value: "1e3", Datatype: XSDDecimal}, "1e3", true},
		{"decimal underscore", Value{Type: TermLiteral, Value: "1_000.5", Datatype: XSDDecimal}, "1_000.5", true},
		{"decimal lone point", Value{Type: TermLiteral, Value: ".", Datatype: XSDDecimal}, ".", true},
		{"decimal two points", Value{Type: TermLiteral, Value: "1.2.3", Datatype: XSDDecimal}, "1.2.3", true},
		{"empty decimal", Value{Type: TermLiteral, Value: "", Datatype: XSDDecimal}, "", true},
		{"integer beyond int64", Value{Type: TermLiteral, Value: "18446744073709551616", Datatype: XSDInteger}, bigInt("18446744073709551616"), false},
		{"negative integer beyond int64", Value{Type: TermLiteral, Value: "-9223372036854775809", Datatype: XSDInteger}, bigInt("-9223372036854775809"), false},
		{"integer max int64", Value{Type: TermLiteral, Value: "9223372036854775807", Datatype: XSDInteger}, int64(9223372036854775807), false},
		{"signed integer", Value{Type: TermLiteral, Value: "+8", Datatype: XSDInteger}, int64(8), false},
		{"integer with fraction", Value{Type: TermLiteral, Value: "1.0", Datatype: XSDInteger}, "1.0", true},
		{"iri", Value{Type: TermIRI, Value: "http://example.org/a"}, "http://example.org/a", false},
		{"blank node", Value{Type: TermBlankNode, Value: "b0"}, "b0", false},
		{"lang string", Value{Type: TermLiteral, Value: "chat", Lang: "fr"}, "chat", false},
		{"other datatype", Value{Type: TermLiteral, Value: "2024-01-01", Datatype: "http://www.w3.org/2001/XMLSchema#date"}, "2024-01-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.Native()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func bigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big.Int literal " + s)
	}
	return n
}

func TestToObject_LargeIntegerAndRejectedDecimal(t *testing.T) {
	obj, err := ToObject(Binding{
		"count": {Type: TermLiteral, Value: "18446744073709551616", Datatype: XSDInteger},
		"ratio": {Type: TermLiteral, Value: "NaN", Datatype: XSDDecimal},
	})
	require.Error(t, err)

	var ce *CoercionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ratio", ce.Variable, "only the decimal fails")
	assert.Equal(t, XSDDecimal, ce.Datatype)
	assert.ErrorIs(t, err, strconv.ErrSyntax)

	assert.Equal(t, bigInt("18446744073709551616"), obj["count"])
	assert.Equal(t, "NaN", obj["ratio"])
}

func TestToObject(t *testing.T) {
	obj, err := ToObject(Binding{
		"name":  {Type: TermLiteral, Value: "Alice"},
		"age":   {Type: TermLiteral, Value: "30", Datatype: XSDInteger},
		"adult": {Type: TermLiteral, Value: "true", Datatype: XSDBoolean},
		"score": {Type: TermLiteral, Value: "9.5", Datatype: XSDDecimal},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":  "Alice",
		"age":   int64(30),
		"adult": true,
		"score": 9.5,
	}, obj)
}

func TestToObject_ReportsUnparseable(t *testing.T) {
	obj, err := ToObject(Binding{
		"age":  {Type: TermLiteral, Value: "thirty", Datatype: XSDInteger},
		"name": {Type: TermLiteral, Value: "Alice"},
	})
	require.Error(t, err)

	var ce *CoercionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "age", ce.Variable)
	assert.Equal(t, XSDInteger, ce.Datatype)
	assert.Equal(t, "thirty", ce.Lexical)
	assert.ErrorIs(t, err, strconv.ErrSyntax)

	// The object is still complete.
	assert.Equal(t, "thirty", obj["age"])
	assert.Equal(t, "Alice", obj["name"])
}

func TestToObjects_PreservesOrder(t *testing.T) {
	rows := []Binding{
		{"n": {Type: TermLiteral, Value: "3", Datatype: XSDInteger}},
		{"n": {Type: TermLiteral, Value: "1", Datatype: XSDInteger}},
		{"n": {Type: TermLiteral, Value: "2", Datatype: XSDInteger}},
	}

	objs, err := ToObjects(rows)
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, int64(3), objs[0]["n"])
	assert.Equal(t, int64(1), objs[1]["n"])
	assert.Equal(t, int64(2), objs[2]["n"])
}

func TestToObjects_Empty(t *testing.T) {
	objs, err := ToObjects(nil)
	assert.NoError(t, err)
	assert.Empty(t, objs)
}
