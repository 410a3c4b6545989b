package dynproxy

import (
	"reflect"
	"slices"
)

// FunctionParams is an ordered argument list. Position is call order.
type FunctionParams struct {
	params []Arg
}

// NewFunctionParams creates a list holding args in order
func NewFunctionParams(args ...Arg) *FunctionParams {
	return &FunctionParams{params: slices.Clone(args)}
}

// At returns the argument at index i
func (p *FunctionParams) At(i int) (*Arg, error) {
	if i < 0 || i >= len(p.params) {
		return nil, outOfRange("index out of range: %d >= %d", i, len(p.params))
	}
	return &p.params[i], nil
}

// Front returns the first argument
func (p *FunctionParams) Front() (*Arg, error) {
	if len(p.params) == 0 {
		return nil, outOfRange("cannot access front of empty FunctionParams")
	}
	return &p.params[0], nil
}

// Back returns the last argument
func (p *FunctionParams) Back() (*Arg, error) {
	if len(p.params) == 0 {
		return nil, outOfRange("cannot access back of empty FunctionParams")
	}
	return &p.params[len(p.params)-1], nil
}

// Len returns the number of arguments
func (p *FunctionParams) Len() int {
	return len(p.params)
}

// Empty reports whether the list has no arguments
func (p *FunctionParams) Empty() bool {
	return len(p.params) == 0
}

// Reserve grows capacity to hold at least n arguments
func (p *FunctionParams) Reserve(n int) {
	if n > len(p.params) {
		p.params = slices.Grow(p.params, n-len(p.params))
	}
}

// PushBack appends arg
func (p *FunctionParams) PushBack(arg Arg) {
	p.params = append(p.params, arg)
}

// Emplace appends a new argument holding value
func (p *FunctionParams) Emplace(name string, value any) {
	p.params = append(p.params, NewValueArg(name, value))
}

// Clear removes all arguments
func (p *FunctionParams) Clear() {
	p.params = p.params[:0]
}

// Resize truncates the list or pads it with unnamed, valueless arguments.
func (p *FunctionParams) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(p.params) {
		p.params = p.params[:n]
		return
	}
	p.params = append(p.params, make([]Arg, n-len(p.params))...)
}

// Set replaces the argument at index i
func (p *FunctionParams) Set(i int, arg Arg) error {
	if i < 0 || i >= len(p.params) {
		return outOfRange("index out of range: %d >= %d", i, len(p.params))
	}
	p.params[i] = arg
	return nil
}

// Args returns the underlying arguments. The slice aliases the list.
func (p *FunctionParams) Args() []Arg {
	return p.params
}

// Values returns one dynamic value per argument, in order. Arguments without
// a value map to nil.
func (p *FunctionParams) Values() []any {
	values := make([]any, len(p.params))
	for i, arg := range p.params {
		if arg.hasValue {
			values[i] = arg.value
		}
	}
	return values
}

// ByName returns a copy of the first argument named name
func (p *FunctionParams) ByName(name string) (Arg, bool) {
	if ref := p.ByNameRef(name); ref != nil {
		return *ref, true
	}
	return Arg{}, false
}

// ByNameRef returns the first argument named name, or nil
func (p *FunctionParams) ByNameRef(name string) *Arg {
	for i := range p.params {
		if p.params[i].name == name {
			return &p.params[i]
		}
	}
	return nil
}

// Slice returns a new list with the arguments in [start, end)
func (p *FunctionParams) Slice(start, end int) (*FunctionParams, error) {
	if start < 0 || start > end || end > len(p.params) {
		return nil, outOfRange("invalid slice range: [%d, %d) for size %d", start, end, len(p.params))
	}
	return NewFunctionParams(p.params[start:end]...), nil
}

// Filter returns a new list with the arguments for which pred is true
func (p *FunctionParams) Filter(pred func(Arg) bool) *FunctionParams {
	filtered := make([]Arg, 0, len(p.params))
	for _, arg := range p.params {
		if pred(arg) {
			filtered = append(filtered, arg)
		}
	}
	return &FunctionParams{params: filtered}
}

// StringView returns the text held at index i. Only string kinds and []byte
// qualify.
func (p *FunctionParams) StringView(i int) (string, bool) {
	if i < 0 || i >= len(p.params) {
		return "", false
	}
	arg := p.params[i]
	if !arg.hasValue || arg.value == nil {
		return "", false
	}

	switch v := arg.value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	rv := reflect.ValueOf(arg.value)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// ValueAs returns the value at index i as a T. It never fails loudly: a
// missing index, missing value or type mismatch all report false.
func ValueAs[T any](p *FunctionParams, i int) (T, bool) {
	if i < 0 || i >= len(p.params) {
		var zero T
		return zero, false
	}
	return ArgAs[T](p.params[i])
}

// ValueOr returns the value at index i as a T, or def
func ValueOr[T any](p *FunctionParams, i int, def T) T {
	if v, ok := ValueAs[T](p, i); ok {
		return v
	}
	return def
}
