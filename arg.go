package dynproxy

import (
	"reflect"
)

// Arg is a named function argument with an optional value.
type Arg struct {
	name     string
	value    any
	hasValue bool
}

// NewArg creates an Arg without a value
func NewArg(name string) Arg {
	return Arg{name: name}
}

// NewValueArg creates an Arg holding value
func NewValueArg(name string, value any) Arg {
	return Arg{name: name, value: value, hasValue: true}
}

// Name returns the argument name
func (a Arg) Name() string {
	return a.name
}

// Type returns the dynamic type of the held value, or nil if no value is set.
func (a Arg) Type() reflect.Type {
	if !a.hasValue {
		return nil
	}
	return reflect.TypeOf(a.value)
}

// Value returns the held value and whether one is set
func (a Arg) Value() (any, bool) {
	return a.value, a.hasValue
}

// HasValue reports whether a value is set
func (a Arg) HasValue() bool {
	return a.hasValue
}

// SetValue replaces the held value
func (a *Arg) SetValue(value any) {
	a.value = value
	a.hasValue = true
}

// ArgIs reports whether a holds a value of exactly type T.
func ArgIs[T any](a Arg) bool {
	if !a.hasValue || a.value == nil {
		return false
	}
	return reflect.TypeOf(a.value) == typeFor[T]()
}

// ArgAs returns a's value as a T. It never converts.
func ArgAs[T any](a Arg) (T, bool) {
	var zero T
	if !a.hasValue {
		return zero, false
	}
	t, ok := a.value.(T)
	return t, ok
}
