// Package dynproxy wraps ordinary Go functions so they can be called with
// dynamically typed arguments, checked and converted at run time.
//
// # Wrapping
//
// A ProxyFunction reflects the wrapped function once, records its signature
// in a FunctionInfo, and on every call checks the argument count, validates
// each argument against the declared parameter type, coerces numeric and
// string values where an ordinary conversion exists, invokes the function
// and boxes the result:
//
//	add := dynproxy.MustProxy(func(a, b int) int { return a + b }, dynproxy.WithName("add"))
//	sum, err := add.Call(1, 2.9) // 3: 2.9 is truncated to int
//
// Method expressions are wrapped with NewMethodProxy and take the receiver as
// their first argument:
//
//	inc, _ := dynproxy.NewMethodProxy((*Counter).Add)
//	_, err := inc.Call(counter, 5)
//
// # Asynchronous calls
//
// AsyncProxyFunction runs every call on its own goroutine and returns a
// Future. Validation errors are delivered through the Future as well.
//
//	async, _ := dynproxy.NewAsyncProxy(slowSquare)
//	f := async.Call(12)
//	v, err := f.Get()
//
// # Composition and binding
//
// Compose chains two wrappers so the result of the first is the only argument
// of the second. Bind fixes leading arguments and returns a smaller wrapper.
//
// # Argument lists
//
// FunctionParams is an ordered list of named arguments with bounds-checked
// access and JSON and msgpack encodings, for callers that build calls from
// structured data.
//
// # Errors
//
// Every error is an *Error whose Kind is one of KindType, KindArgumentCount,
// KindOutOfRange or KindInvocation; use errors.Is with ErrTypeMismatch,
// ErrArgumentCount, ErrOutOfRange or ErrInvocation.
//
// The remote subpackage serves a Registry of wrappers over ZeroMQ.
package dynproxy

// Version is the current library version
const Version = "1.0.0"
