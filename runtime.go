package njs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cryguy/njs/internal/core"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// ErrScriptsUnsupported is returned by RunScript on a backend that cannot
// compile JavaScript.
var ErrScriptsUnsupported = errors.New("njs: backend cannot run scripts")

// Runtime owns one VM context together with the Env modules are loaded
// into and the work queue their tasks run on. A Runtime must be used from
// one goroutine; only task OnWork calls run elsewhere.
type Runtime struct {
	config  Config
	backend core.Backend
	ctx     core.Context
	env     *Env
	queue   *WorkQueue
	out     io.Writer

	exports map[string]*Persistent
	closed  bool
}

// New creates a Runtime on the backend selected by cfg.Backend.
func New(cfg Config) (*Runtime, error) {
	b, err := BackendFor(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(cfg, b)
}

// NewWithBackend creates a Runtime on an explicit backend.
func NewWithBackend(cfg Config, b core.Backend) (*Runtime, error) {
	ctx, err := b.NewContext()
	if err != nil {
		return nil, fmt.Errorf("njs: creating %s context: %w", b.Name(), err)
	}
	q := NewWorkQueue(cfg.Workers)
	rt := &Runtime{
		config:  cfg,
		backend: b,
		ctx:     ctx,
		env:     NewEnv(ctx, NewReporter(nil, cfg.MaxMessageSize), q),
		queue:   q,
		out:     os.Stdout,
		exports: make(map[string]*Persistent),
	}
	if err := rt.SetGlobalFunction("print", rt.print); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.installConsole(); err != nil {
		rt.Close()
		return nil, err
	}
	log.WithField("backend", b.Name()).Debug("njs: runtime created")
	return rt, nil
}

func (rt *Runtime) Config() Config        { return rt.config }
func (rt *Runtime) Backend() string       { return rt.backend.Name() }
func (rt *Runtime) Context() core.Context { return rt.ctx }
func (rt *Runtime) Env() *Env             { return rt.env }
func (rt *Runtime) Queue() *WorkQueue     { return rt.queue }

// SetOutput redirects print.
func (rt *Runtime) SetOutput(w io.Writer) { rt.out = w }

// Require loads the module called name, once per Runtime, and returns its
// exports.
func (rt *Runtime) Require(name string) (Object, error) {
	if p, ok := rt.exports[name]; ok {
		return p.MakeLocal().AsObject(), nil
	}
	m, ok := Lookup(name)
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	exports, err := m.Load(rt.env)
	if err != nil {
		return Object{}, err
	}
	p := &Persistent{}
	p.MakePersistent(rt.ctx, exports.Value())
	rt.exports[name] = p
	return exports, nil
}

// RequireAll loads every named module, or every registered module when
// names is empty, and exposes each as a global of the same name. All
// failures are returned together.
func (rt *Runtime) RequireAll(names ...string) error {
	if len(names) == 0 {
		names = Modules()
	}
	var result error
	for _, name := range names {
		exports, err := rt.Require(name)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := rt.Expose(name, exports); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Expose installs exports as a global property.
func (rt *Runtime) Expose(name string, exports Object) error {
	if err := rt.ctx.Global().Set(name, exports.o); err != nil {
		return fmt.Errorf("njs: exposing %s: %w", name, err)
	}
	return nil
}

// SetGlobalFunction installs fn as a global function.
func (rt *Runtime) SetGlobalFunction(name string, fn StaticFunc) error {
	tmpl := rt.ctx.NewFunctionTemplate(Static(name, fn).call(rt.env.Reporter), nil, nil)
	tmpl.SetClassName(name)
	f, err := tmpl.GetFunction()
	if err != nil {
		return fmt.Errorf("njs: global %s: %w", name, err)
	}
	if err := rt.ctx.Global().Set(name, f); err != nil {
		return fmt.Errorf("njs: global %s: %w", name, err)
	}
	return nil
}

func (rt *Runtime) print(ctx *FunctionCallContext) Result {
	fmt.Fprintln(rt.out, joinArguments(ctx))
	return ResultOk
}

// RunScript evaluates src. Backends without a compiler return
// ErrScriptsUnsupported.
func (rt *Runtime) RunScript(src, origin string) (Value, error) {
	runner, ok := rt.ctx.(core.ScriptRunner)
	if !ok {
		return Value{}, fmt.Errorf("%w (%s)", ErrScriptsUnsupported, rt.backend.Name())
	}
	v, err := runner.RunScript(src, origin)
	if err != nil {
		return Value{}, err
	}
	return Value{h: v}, nil
}

// Call invokes fn with this set to recv.
func (rt *Runtime) Call(fn, recv Value, args ...Value) (Value, error) {
	hs := make([]core.Value, len(args))
	for i, a := range args {
		hs[i] = a.h
	}
	out, err := rt.ctx.Call(fn.h, recv.h, hs...)
	if err != nil {
		return Value{}, err
	}
	return Value{h: out}, nil
}

// Construct invokes fn as a constructor.
func (rt *Runtime) Construct(fn Value, args ...Value) (Object, error) {
	hs := make([]core.Value, len(args))
	for i, a := range args {
		hs[i] = a.h
	}
	out, err := rt.ctx.Construct(fn.h, hs...)
	if err != nil {
		return Object{}, err
	}
	return Object{o: out.Object()}, nil
}

// Post schedules a task on the runtime's work queue.
func (rt *Runtime) Post(t Task, data *TaskData) (string, error) {
	return rt.queue.Post(t, data)
}

// Drain delivers task completions until none are pending or timeout
// passes. A zero timeout uses the configured DrainTimeout.
func (rt *Runtime) Drain(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = rt.config.DrainTimeout
	}
	return rt.queue.Drain(rt.ctx, time.Now().Add(timeout))
}

// Collect forces a collection on backends that support it and returns the
// number of objects freed.
func (rt *Runtime) Collect() int {
	if c, ok := rt.ctx.(core.Collector); ok {
		return c.Collect()
	}
	return 0
}

// Close shuts down the work queue and releases the VM. Remaining weak
// wrappers are destroyed.
func (rt *Runtime) Close() error {
	if rt.closed {
		return nil
	}
	rt.closed = true

	var result error
	if err := rt.queue.Close(rt.ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("njs: closing work queue: %w", err))
	}
	for name, p := range rt.exports {
		p.Reset()
		delete(rt.exports, name)
	}
	if c, ok := rt.ctx.(core.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("njs: closing %s context: %w", rt.backend.Name(), err))
		}
	}
	if err := rt.env.runCleanups(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}
