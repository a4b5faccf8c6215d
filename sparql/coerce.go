package sparql

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/c360studio/sparqlgate/iri"
)

// Datatypes with native coercions.
const (
	XSDBoolean = iri.XSD + "boolean"
	XSDInteger = iri.XSD + "integer"
	XSDDecimal = iri.XSD + "decimal"
)

// CoercionError reports a typed literal whose lexical form does not parse
// under its datatype.
type CoercionError struct {
	Variable string
	Datatype string
	Lexical  string
	Err      error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("variable %q: cannot coerce %q as %s: %v", e.Variable, e.Lexical, e.Datatype, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Native converts a value to a Go scalar by datatype: xsd:boolean to bool
// (true only for "true"), xsd:integer to int64, or *big.Int when it does not
// fit, and xsd:decimal to float64. Every other value yields its lexical
// string. Numbers outside their lexical space, including "NaN", "INF",
// exponents and hex forms for xsd:decimal, return the lexical string together
// with an error wrapping strconv.ErrSyntax.
func (v Value) Native() (any, error) {
	switch v.Datatype {
	case XSDBoolean:
		return v.Value == "true", nil
	case XSDInteger:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			if wide, ok := new(big.Int).SetString(v.Value, 10); ok {
				return wide, nil
			}
		}
		if err != nil {
			return v.Value, err
		}
		return n, nil
	case XSDDecimal:
		if !isDecimalLexical(v.Value) {
			return v.Value, &strconv.NumError{Func: "ParseDecimal", Num: v.Value, Err: strconv.ErrSyntax}
		}
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return v.Value, err
		}
		return f, nil
	default:
		return v.Value, nil
	}
}

// isDecimalLexical reports whether s matches the xsd:decimal lexical space:
// an optional sign, then digits with at most one decimal point and at least
// one digit.
func isDecimalLexical(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	digits, point := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !point:
			point = true
		default:
			return false
		}
	}
	return digits > 0
}

// ToObject converts one binding row into native values keyed by variable.
// The object is always complete; variables that failed to coerce keep their
// lexical string and are reported through the joined *CoercionError values.
func ToObject(b Binding) (map[string]any, error) {
	obj := make(map[string]any, len(b))
	var errs []error
	for name, v := range b {
		native, err := v.Native()
		if err != nil {
			errs = append(errs, &CoercionError{
				Variable: name,
				Datatype: v.Datatype,
				Lexical:  v.Value,
				Err:      err,
			})
		}
		obj[name] = native
	}
	return obj, errors.Join(errs...)
}

// ToObjects applies ToObject to every row, preserving row order.
func ToObjects(bindings []Binding) ([]map[string]any, error) {
	out := make([]map[string]any, len(bindings))
	var errs []error
	for i, b := range bindings {
		obj, err := ToObject(b)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
		}
		out[i] = obj
	}
	return out, errors.Join(errs...)
}
