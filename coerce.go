package dynproxy

import (
	"reflect"
)

// Coerce rewrites *v in place so that it holds a value of type target, when
// a lossy-but-ordinary conversion exists:
//
//   - integer targets accept integer and floating point sources (truncating)
//   - floating point targets accept floating point and integer sources
//   - string targets accept []byte, []rune and other string kinds
//   - bool targets accept integer and floating point sources (non-zero is true)
//
// It reports whether a conversion was applied. On failure *v is untouched.
func Coerce(v *any, target reflect.Type) bool {
	if v == nil || *v == nil || target == nil {
		return false
	}

	src := reflect.ValueOf(*v)
	if src.Type() == target {
		return false
	}

	out, ok := convertValue(src, target)
	if !ok {
		return false
	}
	*v = out.Interface()
	return true
}

// CoerceTo is Coerce with the target given as a type parameter.
func CoerceTo[T any](v *any) bool {
	return Coerce(v, typeFor[T]())
}

// convertValue applies the numeric and string conversion rules to src.
func convertValue(src reflect.Value, target reflect.Type) (reflect.Value, bool) {
	srcKind := src.Kind()
	dstKind := target.Kind()

	switch {
	case isIntegerKind(dstKind):
		switch {
		case isSignedKind(srcKind):
			return reflect.ValueOf(src.Int()).Convert(target), true
		case isUnsignedKind(srcKind):
			return reflect.ValueOf(src.Uint()).Convert(target), true
		case isFloatKind(srcKind):
			return reflect.ValueOf(src.Float()).Convert(target), true
		}

	case isFloatKind(dstKind):
		switch {
		case isFloatKind(srcKind):
			return reflect.ValueOf(src.Float()).Convert(target), true
		case isSignedKind(srcKind):
			return reflect.ValueOf(float64(src.Int())).Convert(target), true
		case isUnsignedKind(srcKind):
			return reflect.ValueOf(float64(src.Uint())).Convert(target), true
		}

	case dstKind == reflect.Bool:
		switch {
		case isSignedKind(srcKind):
			return reflect.ValueOf(src.Int() != 0).Convert(target), true
		case isUnsignedKind(srcKind):
			return reflect.ValueOf(src.Uint() != 0).Convert(target), true
		case isFloatKind(srcKind):
			return reflect.ValueOf(src.Float() != 0).Convert(target), true
		}

	case dstKind == reflect.String:
		if srcKind == reflect.String {
			return src.Convert(target), true
		}
		if srcKind == reflect.Slice {
			switch src.Type().Elem().Kind() {
			case reflect.Uint8, reflect.Int32:
				if src.CanConvert(target) {
					return src.Convert(target), true
				}
			}
		}
	}

	return reflect.Value{}, false
}

// Cast extracts a T from v without attempting any conversion. v is treated
// as read-only, so a mismatch is reported immediately.
func Cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		if isNillable(typeFor[T]()) {
			return zero, nil
		}
		return zero, typeError("cannot cast %s to %s", VoidTypeName, TypeName(typeFor[T]()))
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	return zero, typeError("cannot cast %s to %s", TypeNameOf(v), TypeName(typeFor[T]()))
}

// CastOrCoerce extracts a T from *v. When the exact type does not match it
// coerces *v in place and retries; if that still fails a type error is
// returned.
func CastOrCoerce[T any](v *any) (T, error) {
	if t, err := Cast[T](*v); err == nil {
		return t, nil
	}
	if CoerceTo[T](v) {
		return Cast[T](*v)
	}
	var zero T
	return zero, typeError("cannot convert %s to %s", TypeNameOf(*v), TypeName(typeFor[T]()))
}

// castOrCoerceValue is the reflective form of CastOrCoerce used by the
// invocation engine. The result is ready to be passed to reflect.Value.Call.
func castOrCoerceValue(v *any, target reflect.Type) (reflect.Value, error) {
	if holds(*v, target) {
		return argValue(*v, target), nil
	}
	if Coerce(v, target) && holds(*v, target) {
		return argValue(*v, target), nil
	}
	return reflect.Value{}, typeError("cannot convert %s to %s", TypeNameOf(*v), TypeName(target))
}

// holds reports whether v can be passed where target is expected without conversion.
func holds(v any, target reflect.Type) bool {
	if v == nil {
		return isNillable(target)
	}
	return reflect.TypeOf(v).AssignableTo(target)
}

func argValue(v any, target reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(target)
	}
	return reflect.ValueOf(v)
}

func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// isIntegerKind checks if a kind is an integer type
func isIntegerKind(k reflect.Kind) bool {
	return isSignedKind(k) || isUnsignedKind(k)
}

func isSignedKind(k reflect.Kind) bool {
	return k == reflect.Int || k == reflect.Int8 || k == reflect.Int16 ||
		k == reflect.Int32 || k == reflect.Int64
}

func isUnsignedKind(k reflect.Kind) bool {
	return k == reflect.Uint || k == reflect.Uint8 || k == reflect.Uint16 ||
		k == reflect.Uint32 || k == reflect.Uint64 || k == reflect.Uintptr
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
