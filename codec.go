package dynproxy

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeValue converts a dynamic value into its structured-data form.
// Supported: bool, string kinds, integer kinds, float kinds, []string, []int,
// []float64 and nil. Anything else is a type error, as are unsigned values
// that do not fit an int64 since they could not be decoded again.
func EncodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, typeError("integer %d overflows int64", x)
		}
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, typeError("integer %d overflows int64", x)
		}
		return x, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint8, uint16, uint32,
		float32, float64,
		[]string, []int, []float64:
		return x, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return nil, typeError("unsupported type for serialization: %s", TypeNameOf(v))
}

// NormalizeValue maps a generically decoded value (from encoding/json with
// UseNumber, or from msgpack) onto the canonical dynamic value kinds:
// integers become int, floats float64, arrays []string/[]int/[]float64 chosen
// by their first element. Objects and other kinds are type errors.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int, float64, []string, []int, []float64:
		return x, nil
	case json.Number:
		return normalizeNumber(x)
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, typeError("integer %d overflows int", x)
		}
		return int(x), nil
	case float32:
		return float64(x), nil
	case []any:
		return normalizeArray(x)
	}
	return nil, typeError("unsupported structured value: %s", TypeNameOf(v))
}

func normalizeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &Error{Kind: KindType, Detail: "invalid integer " + s, Cause: err}
		}
		return int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &Error{Kind: KindType, Detail: "invalid number " + s, Cause: err}
	}
	return f, nil
}

// normalizeArray infers the element type from the first element only. Later
// elements must convert to that type: numbers convert between int and
// float64, anything else is a type error.
func normalizeArray(items []any) (any, error) {
	if len(items) == 0 {
		return []string{}, nil
	}

	first, err := NormalizeValue(items[0])
	if err != nil {
		return nil, err
	}

	switch first.(type) {
	case string:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, typeError("array element %d: expected string, got %s", i, TypeNameOf(item))
			}
			out[i] = s
		}
		return out, nil

	case int:
		out := make([]int, len(items))
		for i, item := range items {
			n, err := NormalizeValue(item)
			if err != nil {
				return nil, err
			}
			switch x := n.(type) {
			case int:
				out[i] = x
			case float64:
				out[i] = int(x)
			default:
				return nil, typeError("array element %d: expected number, got %s", i, TypeNameOf(item))
			}
		}
		return out, nil

	case float64:
		out := make([]float64, len(items))
		for i, item := range items {
			n, err := NormalizeValue(item)
			if err != nil {
				return nil, err
			}
			switch x := n.(type) {
			case int:
				out[i] = float64(x)
			case float64:
				out[i] = x
			default:
				return nil, typeError("array element %d: expected number, got %s", i, TypeNameOf(item))
			}
		}
		return out, nil
	}

	return nil, typeError("unsupported array element type: %s", TypeNameOf(items[0]))
}

// DecodeJSONValue decodes a single JSON document into a dynamic value.
func DecodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &Error{Kind: KindType, Detail: "JSON parsing error", Cause: err}
	}
	return NormalizeValue(raw)
}

// argWire is the structured form of an Arg
type argWire struct {
	Name         string `json:"name" msgpack:"name"`
	DefaultValue any    `json:"default_value" msgpack:"default_value"`
	Type         string `json:"type,omitempty" msgpack:"type,omitempty"`
}

func (a Arg) wire() (argWire, error) {
	w := argWire{Name: a.name}
	if !a.hasValue || a.value == nil {
		return w, nil
	}
	encoded, err := EncodeValue(a.value)
	if err != nil {
		return w, wrap("encode argument "+strconv.Quote(a.name), err)
	}
	w.DefaultValue = encoded
	w.Type = TypeNameOf(a.value)
	return w, nil
}

func argFromWire(name string, raw any) (Arg, error) {
	if raw == nil {
		return NewArg(name), nil
	}
	v, err := NormalizeValue(raw)
	if err != nil {
		return Arg{}, wrap("decode argument "+strconv.Quote(name), err)
	}
	if v == nil {
		return NewArg(name), nil
	}
	return NewValueArg(name, v), nil
}

// MarshalJSON encodes the Arg as {name, default_value, type}
func (a Arg) MarshalJSON() ([]byte, error) {
	w, err := a.wire()
	if err != nil {
		return nil, err
	}
	w.DefaultValue = jsonFloats(w.DefaultValue)
	return json.Marshal(w)
}

// jsonFloat keeps a decimal point on whole numbers so they decode as floats.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, typeError("unsupported float value: %v", v)
	}
	b := strconv.AppendFloat(nil, v, 'g', -1, 64)
	if !bytes.ContainsAny(b, ".eE") {
		b = append(b, '.', '0')
	}
	return b, nil
}

func jsonFloats(v any) any {
	switch x := v.(type) {
	case float64:
		return jsonFloat(x)
	case float32:
		return jsonFloat(x)
	case []float64:
		out := make([]jsonFloat, len(x))
		for i, f := range x {
			out[i] = jsonFloat(f)
		}
		return out
	}
	return v
}

// UnmarshalJSON decodes the Arg from {name, default_value}
func (a *Arg) UnmarshalJSON(data []byte) error {
	var w struct {
		Name         *string         `json:"name"`
		DefaultValue json.RawMessage `json:"default_value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return &Error{Kind: KindType, Detail: "JSON parsing error", Cause: err}
	}
	if w.Name == nil {
		return typeError("argument is missing \"name\"")
	}

	var raw any
	if len(w.DefaultValue) > 0 {
		dec := json.NewDecoder(bytes.NewReader(w.DefaultValue))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return &Error{Kind: KindType, Detail: "JSON parsing error", Cause: err}
		}
	}

	arg, err := argFromWire(*w.Name, raw)
	if err != nil {
		return err
	}
	*a = arg
	return nil
}

// MarshalJSON encodes the list as an ordered array of arguments
func (p FunctionParams) MarshalJSON() ([]byte, error) {
	wires, err := p.wires()
	if err != nil {
		return nil, err
	}
	for i := range wires {
		wires[i].DefaultValue = jsonFloats(wires[i].DefaultValue)
	}
	return json.Marshal(wires)
}

// UnmarshalJSON decodes the list from an array of arguments
func (p *FunctionParams) UnmarshalJSON(data []byte) error {
	var args []Arg
	if err := json.Unmarshal(data, &args); err != nil {
		if KindOf(err) != "" {
			return err
		}
		return &Error{Kind: KindType, Detail: "expected an array of arguments", Cause: err}
	}
	p.params = args
	return nil
}

// ToJSON encodes the list as JSON
func (p *FunctionParams) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// ParamsFromJSON decodes a list previously produced by ToJSON
func ParamsFromJSON(data []byte) (*FunctionParams, error) {
	p := &FunctionParams{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p FunctionParams) wires() ([]argWire, error) {
	wires := make([]argWire, len(p.params))
	for i, arg := range p.params {
		w, err := arg.wire()
		if err != nil {
			return nil, err
		}
		wires[i] = w
	}
	return wires, nil
}

// MarshalMsgpack encodes the list with the same shape as MarshalJSON
func (p FunctionParams) MarshalMsgpack() ([]byte, error) {
	wires, err := p.wires()
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(wires)
}

// UnmarshalMsgpack decodes a list encoded by MarshalMsgpack
func (p *FunctionParams) UnmarshalMsgpack(data []byte) error {
	var wires []argWire
	if err := msgpack.Unmarshal(data, &wires); err != nil {
		return &Error{Kind: KindType, Detail: "msgpack decode failed", Cause: err}
	}

	args := make([]Arg, len(wires))
	for i, w := range wires {
		arg, err := argFromWire(w.Name, w.DefaultValue)
		if err != nil {
			return err
		}
		args[i] = arg
	}
	p.params = args
	return nil
}
