package dynproxy

import (
	"reflect"
)

// ProxyFunction wraps a Go function so it can be called with dynamically
// typed arguments. Calls run on the caller's goroutine.
type ProxyFunction struct {
	*engine
}

// NewProxy wraps fn, which must be a function with at most two results where
// a second result is an error.
func NewProxy(fn any, opts ...Option) (*ProxyFunction, error) {
	e, err := newEngine(fn, false, CallerLocation(1), opts)
	if err != nil {
		return nil, err
	}
	return &ProxyFunction{engine: e}, nil
}

// NewMethodProxy wraps a method expression such as (*Counter).Add. Calls
// pass the receiver as the first argument.
func NewMethodProxy(method any, opts ...Option) (*ProxyFunction, error) {
	e, err := newEngine(method, true, CallerLocation(1), opts)
	if err != nil {
		return nil, err
	}
	return &ProxyFunction{engine: e}, nil
}

// MustProxy is like NewProxy but panics if fn cannot be wrapped.
func MustProxy(fn any, opts ...Option) *ProxyFunction {
	e, err := newEngine(fn, false, CallerLocation(1), opts)
	if err != nil {
		panic(err)
	}
	return &ProxyFunction{engine: e}
}

// Call invokes the wrapped function with args
func (p *ProxyFunction) Call(args ...any) (any, error) {
	return p.invoke("call", args)
}

// CallArgs invokes the wrapped function with a prepared argument slice.
// The slice is not modified.
func (p *ProxyFunction) CallArgs(args []any) (any, error) {
	return p.invoke("call", args)
}

// CallParams invokes the wrapped function with the values of params
func (p *ProxyFunction) CallParams(params *FunctionParams) (any, error) {
	var values []any
	if params != nil {
		values = params.Values()
	}
	return p.invoke("call with params", values)
}

// Clone returns an independent wrapper around the same function. The
// descriptor is copied; later setters on either wrapper do not affect the
// other.
func (p *ProxyFunction) Clone() *ProxyFunction {
	return &ProxyFunction{engine: p.engine.clone()}
}

// Bind fixes the leading arguments and returns a wrapper over the remaining
// parameters, named "bound_<name>". For a method wrapper the first bound
// argument is the receiver, so binding it yields a plain function.
func (p *ProxyFunction) Bind(args ...any) (*ProxyFunction, error) {
	info := p.Info()
	op := "bind " + info.Name

	in := make([]reflect.Type, p.fnType.NumIn())
	for i := range in {
		in[i] = p.fnType.In(i)
	}
	if len(args) > len(in) {
		return nil, wrap(op, argumentCountError("cannot bind %d arguments to %d parameters", len(args), len(in)))
	}

	bound := make([]reflect.Value, len(args))
	for i, a := range args {
		v := a
		if p.method && i == 0 {
			recv, err := p.receiver(v)
			if err != nil {
				return nil, wrap(op, err)
			}
			bound[i] = recv
			continue
		}
		rv, err := castOrCoerceValue(&v, in[i])
		if err != nil {
			return nil, wrap(op, err)
		}
		bound[i] = rv
	}

	out := make([]reflect.Type, p.fnType.NumOut())
	for i := range out {
		out[i] = p.fnType.Out(i)
	}
	remaining := in[len(args):]
	variadic := p.variadic && len(remaining) > 0

	target := p.fn
	callSlice := p.variadic
	ft := reflect.FuncOf(remaining, out, variadic)
	fn := reflect.MakeFunc(ft, func(rest []reflect.Value) []reflect.Value {
		full := make([]reflect.Value, 0, len(bound)+len(rest))
		full = append(full, bound...)
		full = append(full, rest...)
		if callSlice {
			return target.CallSlice(full)
		}
		return target.Call(full)
	})

	skip := len(args)
	if p.method && skip > 0 {
		skip--
	}
	var names []string
	if skip < len(info.ParameterNames) {
		names = info.ParameterNames[skip:]
	}

	e, err := newEngine(fn.Interface(), p.method && len(args) == 0, CallerLocation(1), []Option{
		WithName("bound_" + info.Name),
		WithParameterNames(names...),
		WithLogger(p.logger),
		WithMetrics(p.metrics),
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return &ProxyFunction{engine: e}, nil
}
