package dynproxy

import (
	"slices"

	"go.uber.org/zap"
)

// AsyncProxyFunction wraps a Go function like ProxyFunction, but every call
// runs on its own goroutine and returns a *Future. Argument count and type
// errors are reported through the Future, not at call time.
type AsyncProxyFunction struct {
	*engine
}

// NewAsyncProxy wraps fn for asynchronous calls
func NewAsyncProxy(fn any, opts ...Option) (*AsyncProxyFunction, error) {
	e, err := newEngine(fn, false, CallerLocation(1), opts)
	if err != nil {
		return nil, err
	}
	return &AsyncProxyFunction{engine: e}, nil
}

// NewAsyncMethodProxy wraps a method expression for asynchronous calls
func NewAsyncMethodProxy(method any, opts ...Option) (*AsyncProxyFunction, error) {
	e, err := newEngine(method, true, CallerLocation(1), opts)
	if err != nil {
		return nil, err
	}
	return &AsyncProxyFunction{engine: e}, nil
}

// Call starts the wrapped function with args
func (p *AsyncProxyFunction) Call(args ...any) *Future {
	return p.dispatch("async call", slices.Clone(args))
}

// CallArgs starts the wrapped function with a copy of args
func (p *AsyncProxyFunction) CallArgs(args []any) *Future {
	return p.dispatch("async call", slices.Clone(args))
}

// CallParams starts the wrapped function with the values of params, read at
// call time
func (p *AsyncProxyFunction) CallParams(params *FunctionParams) *Future {
	var values []any
	if params != nil {
		values = params.Values()
	}
	return p.dispatch("async call with params", values)
}

// Sync returns a synchronous wrapper sharing the function and a copy of the
// descriptor
func (p *AsyncProxyFunction) Sync() *ProxyFunction {
	return &ProxyFunction{engine: p.engine.clone()}
}

func (p *AsyncProxyFunction) dispatch(op string, args []any) *Future {
	f := Go(func() (any, error) {
		return p.invoke(op, args)
	})
	p.log().Debug("dispatched async proxy call", zap.String("name", p.Name()), zap.String("call_id", f.ID()))
	return f
}
