package dynproxy

import (
	"reflect"

	"github.com/google/uuid"
)

// VoidTypeName is reported for an absent type (an unset Arg, a nil value,
// or a function without a value result).
const VoidTypeName = "void"

// hashNamespace scopes ContentHash digests so they never collide with
// name-based UUIDs generated for other purposes.
var hashNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("dynproxy.FunctionInfo"))

// TypeName returns a stable human-readable name for t.
func TypeName(t reflect.Type) string {
	if t == nil {
		return VoidTypeName
	}
	return t.String()
}

// TypeNameOf returns the human-readable name of v's dynamic type.
func TypeNameOf(v any) string {
	return TypeName(reflect.TypeOf(v))
}

// ContentHash returns a stable textual digest of s.
func ContentHash(s string) string {
	return uuid.NewSHA1(hashNamespace, []byte(s)).String()
}

// typeNames maps a list of values to their type names.
func typeNames(values []any) []string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = TypeNameOf(v)
	}
	return names
}
