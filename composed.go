package dynproxy

import (
	"sync"
)

// ComposedProxy chains two wrappers: the result of first becomes the only
// argument of second.
type ComposedProxy struct {
	first  *ProxyFunction
	second *ProxyFunction

	mu   sync.RWMutex
	info FunctionInfo
}

// Compose builds a ComposedProxy over first and second. second must accept
// exactly one argument; this is checked by second itself at call time.
func Compose(first, second *ProxyFunction) *ComposedProxy {
	c := &ComposedProxy{first: first, second: second}
	c.info = composedInfo(first.Info(), second.Info(), CallerLocation(1))
	return c
}

// ComposeFuncs wraps f1 and f2 and composes them
func ComposeFuncs(f1, f2 any) (*ComposedProxy, error) {
	first, err := NewProxy(f1)
	if err != nil {
		return nil, err
	}
	second, err := NewProxy(f2)
	if err != nil {
		return nil, err
	}
	c := &ComposedProxy{first: first, second: second}
	c.info = composedInfo(first.Info(), second.Info(), CallerLocation(1))
	return c, nil
}

func composedInfo(info1, info2 FunctionInfo, loc SourceLocation) FunctionInfo {
	return FunctionInfo{
		Name:          "composed_" + info1.Name + "_" + info2.Name,
		ReturnType:    info2.ReturnType,
		ArgumentTypes: append([]string(nil), info1.ArgumentTypes...),
		Hash:          info1.Hash + "_" + info2.Hash,
		Noexcept:      info1.Noexcept && info2.Noexcept,
		Location:      loc,
	}
}

// Info returns a copy of the composed descriptor
func (c *ComposedProxy) Info() FunctionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Clone()
}

// SetName renames the composition. The hash is derived from the parts and is
// left unchanged.
func (c *ComposedProxy) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Name = name
}

// First returns the inner wrapper called first
func (c *ComposedProxy) First() *ProxyFunction {
	return c.first
}

// Second returns the outer wrapper
func (c *ComposedProxy) Second() *ProxyFunction {
	return c.second
}

// Call invokes first with args and second with first's result
func (c *ComposedProxy) Call(args ...any) (any, error) {
	return c.CallArgs(args)
}

// CallArgs invokes first with args and second with first's result
func (c *ComposedProxy) CallArgs(args []any) (any, error) {
	op := "composed call " + c.Info().Name

	intermediate, err := c.first.CallArgs(args)
	if err != nil {
		return nil, wrap(op, err)
	}
	result, err := c.second.CallArgs([]any{intermediate})
	if err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// CallParams invokes first with params and second with a single argument
// named "result"
func (c *ComposedProxy) CallParams(params *FunctionParams) (any, error) {
	op := "composed call " + c.Info().Name

	intermediate, err := c.first.CallParams(params)
	if err != nil {
		return nil, wrap(op, err)
	}
	result, err := c.second.CallParams(NewFunctionParams(NewValueArg("result", intermediate)))
	if err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// Clone copies both wrappers and the descriptor
func (c *ComposedProxy) Clone() *ComposedProxy {
	return &ComposedProxy{
		first:  c.first.Clone(),
		second: c.second.Clone(),
		info:   c.Info(),
	}
}
