package dynproxy

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var errorType = typeFor[error]()

type options struct {
	name       string
	paramNames []string
	logger     *zap.Logger
	metrics    *Metrics
	location   *SourceLocation
}

// Option configures a wrapper at construction time
type Option func(*options)

// WithName names the wrapped callable. The default is AnonymousName.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithParameterNames names the parameters in order
func WithParameterNames(names ...string) Option {
	return func(o *options) { o.paramNames = names }
}

// WithLogger sets the logger used for call tracing. The default is the
// package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records every call into m
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLocation overrides the wrap-site location recorded in the descriptor
func WithLocation(loc SourceLocation) Option {
	return func(o *options) { o.location = &loc }
}

// engine holds a wrapped callable and the machinery shared by the
// synchronous and asynchronous wrappers.
type engine struct {
	fn       reflect.Value
	fnType   reflect.Type
	method   bool
	variadic bool

	recvType reflect.Type
	params   []reflect.Type
	arity    int

	valueOut bool
	errOut   bool

	logger  *zap.Logger
	metrics *Metrics

	mu   sync.RWMutex
	info FunctionInfo
}

func newEngine(fn any, method bool, loc SourceLocation, opts []Option) (*engine, error) {
	if fn == nil {
		return nil, typeError("cannot wrap nil")
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, typeError("cannot wrap %s: not a function", TypeNameOf(fn))
	}
	if v.IsNil() {
		return nil, typeError("cannot wrap nil %s", TypeNameOf(fn))
	}

	t := v.Type()
	e := &engine{
		fn:       v,
		fnType:   t,
		method:   method,
		variadic: t.IsVariadic(),
	}

	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
	}
	if method {
		if len(in) == 0 {
			return nil, typeError("cannot wrap %s as a method: no receiver parameter", TypeName(t))
		}
		e.recvType = in[0]
		e.params = in[1:]
	} else {
		e.params = in
	}
	e.arity = len(e.params)

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			e.errOut = true
		} else {
			e.valueOut = true
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, typeError("cannot wrap %s: second result must be error", TypeName(t))
		}
		e.valueOut = true
		e.errOut = true
	default:
		return nil, typeError("cannot wrap %s: too many results", TypeName(t))
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	e.logger = o.logger
	e.metrics = o.metrics
	if o.location != nil {
		loc = *o.location
	}

	e.collectFunctionInfo(o.name, loc)
	for i, name := range o.paramNames {
		e.info.SetParameterName(i, name)
	}

	return e, nil
}

// collectFunctionInfo fills the descriptor from the reflected signature.
func (e *engine) collectFunctionInfo(name string, loc SourceLocation) {
	if name == "" {
		name = AnonymousName
	}
	e.info = FunctionInfo{
		Name:          name,
		ReturnType:    VoidTypeName,
		ArgumentTypes: e.paramTypeNames(),
		Noexcept:      !e.errOut,
		Location:      loc,
	}
	if e.valueOut {
		e.info.ReturnType = TypeName(e.fnType.Out(0))
	}
	e.info.computeHash()
}

func (e *engine) paramTypeNames() []string {
	names := make([]string, len(e.params))
	for i, p := range e.params {
		names[i] = TypeName(p)
	}
	if e.variadic && len(names) > 0 {
		last := len(names) - 1
		names[last] = "..." + TypeName(e.params[last].Elem())
	}
	return names
}

func (e *engine) log() *zap.Logger {
	if e.logger != nil {
		return e.logger
	}
	return Logger()
}

// Info returns a copy of the descriptor
func (e *engine) Info() FunctionInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Clone()
}

// Name returns the descriptor name
func (e *engine) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Name
}

// SetName renames the callable and recomputes the descriptor hash
func (e *engine) SetName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.Name = name
	e.info.computeHash()
}

// SetParameterName names parameter i (receiver excluded for methods)
func (e *engine) SetParameterName(i int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.SetParameterName(i, name)
}

// SetLocation replaces the recorded wrap-site location
func (e *engine) SetLocation(loc SourceLocation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.Location = loc
}

// Arity returns the number of declared parameters, receiver excluded
func (e *engine) Arity() int {
	return e.arity
}

// IsMethod reports whether args[0] is expected to be a receiver
func (e *engine) IsMethod() bool {
	return e.method
}

// Metrics returns the attached metrics collector, or nil
func (e *engine) Metrics() *Metrics {
	return e.metrics
}

func (e *engine) clone() *engine {
	e.mu.RLock()
	info := e.info.Clone()
	e.mu.RUnlock()

	return &engine{
		fn:       e.fn,
		fnType:   e.fnType,
		method:   e.method,
		variadic: e.variadic,
		recvType: e.recvType,
		params:   e.params,
		arity:    e.arity,
		valueOut: e.valueOut,
		errOut:   e.errOut,
		logger:   e.logger,
		metrics:  e.metrics,
		info:     info,
	}
}

// invoke runs the full call contract: count check, validation on a copy of
// args, then the free or method call path. Errors carry op and the name.
func (e *engine) invoke(op string, args []any) (result any, err error) {
	e.mu.RLock()
	name := e.info.Name
	if ce := e.log().Check(zap.DebugLevel, "invoking proxy function"); ce != nil {
		ce.Write(
			zap.String("name", name),
			zap.Int("arity", e.arity),
			zap.Bool("method", e.method),
			zap.Strings("argument_types", e.info.ArgumentTypes),
			zap.Strings("supplied_types", typeNames(args)),
		)
	}
	e.mu.RUnlock()

	if e.metrics != nil {
		start := e.metrics.StartCall()
		defer func() { e.metrics.EndCall(start, err) }()
	}

	defer func() {
		if err != nil {
			err = wrap(op+" "+name, err)
			e.log().Debug("proxy function call failed", zap.String("name", name), zap.Error(err))
		}
	}()

	if err := e.checkArgumentCount(len(args)); err != nil {
		return nil, err
	}

	work := slices.Clone(args)
	if err := e.validateArguments(work); err != nil {
		return nil, err
	}

	if e.method {
		return e.callMemberFunction(work)
	}
	return e.callFunction(work)
}

func (e *engine) checkArgumentCount(n int) error {
	if e.method {
		if n != e.arity+1 {
			return argumentCountError("incorrect number of arguments for method: expected %d, got %d", e.arity+1, n)
		}
		return nil
	}
	if n != e.arity {
		return argumentCountError("incorrect number of arguments: expected %d, got %d", e.arity, n)
	}
	return nil
}

// validateArguments checks every parameter position and coerces in place
// where possible. A single failing position fails the call.
func (e *engine) validateArguments(args []any) error {
	offset := 0
	if e.method {
		offset = 1
	}

	ok := true
	for i, pt := range e.params {
		slot := &args[offset+i]
		if holds(*slot, pt) {
			continue
		}
		if Coerce(slot, pt) && holds(*slot, pt) {
			continue
		}
		ok = false
	}
	if ok {
		return nil
	}

	return typeError("argument type mismatch: expected (%s) but got (%s)",
		strings.Join(e.paramTypeNames(), ", "),
		strings.Join(typeNames(args[offset:]), ", "))
}

// callFunction unpacks args into the parameter list and invokes.
func (e *engine) callFunction(args []any) (any, error) {
	in, err := e.unpack(args)
	if err != nil {
		return nil, err
	}
	return e.call(in)
}

// callMemberFunction treats args[0] as the receiver and args[1:] as the
// method's parameters.
func (e *engine) callMemberFunction(args []any) (any, error) {
	recv, err := e.receiver(args[0])
	if err != nil {
		return nil, err
	}
	in, err := e.unpack(args[1:])
	if err != nil {
		return nil, err
	}
	return e.call(append([]reflect.Value{recv}, in...))
}

func (e *engine) unpack(args []any) ([]reflect.Value, error) {
	in := make([]reflect.Value, len(e.params))
	for i, pt := range e.params {
		v, err := castOrCoerceValue(&args[i], pt)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	return in, nil
}

// receiver accepts a value assignable to the receiver type, or a non-nil
// pointer to it when the method has a value receiver. A value is never
// accepted for a pointer receiver since mutations would be lost.
func (e *engine) receiver(v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Value{}, typeError("receiver type mismatch: expected %s, got %s", TypeName(e.recvType), VoidTypeName)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(e.recvType) {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer && rv.Type().Elem().AssignableTo(e.recvType) {
		if rv.IsNil() {
			return reflect.Value{}, typeError("receiver is a nil %s", TypeName(rv.Type()))
		}
		return rv.Elem(), nil
	}
	return reflect.Value{}, typeError("receiver type mismatch: expected %s, got %s", TypeName(e.recvType), TypeName(rv.Type()))
}

// call invokes the callable and boxes its result. A returned error or a
// panic becomes an invocation failure.
func (e *engine) call(in []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = panicError(r)
		}
	}()

	var out []reflect.Value
	if e.variadic {
		out = e.fn.CallSlice(in)
	} else {
		out = e.fn.Call(in)
	}
	return e.results(out)
}

func (e *engine) results(out []reflect.Value) (any, error) {
	if e.errOut {
		if last := out[len(out)-1]; !last.IsNil() {
			return nil, invocationError("", last.Interface().(error))
		}
	}
	if e.valueOut {
		return out[0].Interface(), nil
	}
	return nil, nil
}
