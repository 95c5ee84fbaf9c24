package njs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cryguy/njs/internal/core"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownModule is returned when loading a name nothing registered.
var ErrUnknownModule = errors.New("njs: unknown module")

// Env is what module and class initialization run against: one VM
// context, the reporter its trampolines use and the work queue for async
// tasks.
type Env struct {
	Context  core.Context
	Reporter *Reporter
	Queue    *WorkQueue

	classes  map[*Class]core.FunctionTemplate
	order    []*Class
	cleanups []func() error
}

// NewEnv returns an Env for ctx. A nil reporter selects the default type
// names and message size.
func NewEnv(ctx core.Context, r *Reporter, q *WorkQueue) *Env {
	if r == nil {
		r = NewReporter(nil, 0)
	}
	return &Env{Context: ctx, Reporter: r, Queue: q, classes: make(map[*Class]core.FunctionTemplate)}
}

// Template returns the function template c was initialized with.
func (e *Env) Template(c *Class) (core.FunctionTemplate, bool) {
	t, ok := e.classes[c]
	return t, ok
}

func (e *Env) addClass(c *Class, t core.FunctionTemplate) {
	e.classes[c] = t
	e.order = append(e.order, c)
}

// forgetClassesSince drops the classes initialized since len(e.order) was
// mark.
func (e *Env) forgetClassesSince(mark int) {
	for _, c := range e.order[mark:] {
		delete(e.classes, c)
	}
	e.order = e.order[:mark]
}

// AddCleanup registers fn to run when the owning Runtime closes, after the
// VM has been released. Cleanups run in reverse order of registration.
func (e *Env) AddCleanup(fn func() error) {
	e.cleanups = append(e.cleanups, fn)
}

func (e *Env) runCleanups() error {
	var result error
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		if err := e.cleanups[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	e.cleanups = nil
	return result
}

// InitFunc is a module entry point. It runs once per context and usually
// calls InitClass for each wrapped type. It may replace module.exports.
type InitFunc func(env *Env, module, exports Object) error

// Module is a named native module.
type Module struct {
	Name string
	Init InitFunc
}

var registry = struct {
	sync.RWMutex
	modules map[string]*Module
}{modules: make(map[string]*Module)}

// Register makes a module available by name. It is meant to be called from
// init and panics on a duplicate or incomplete registration.
func Register(m Module) {
	if m.Name == "" || m.Init == nil {
		panic("njs: Register needs a name and an init function")
	}
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.modules[m.Name]; dup {
		panic("njs: Register called twice for module " + m.Name)
	}
	registry.modules[m.Name] = &m
}

// Lookup returns the registered module called name.
func Lookup(name string) (*Module, bool) {
	registry.RLock()
	defer registry.RUnlock()
	m, ok := registry.modules[name]
	return m, ok
}

// Modules returns the registered module names, sorted.
func Modules() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.modules))
	for name := range registry.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load runs the module's entry point with fresh module and exports objects
// and returns the final module.exports. Classes initialized by a failed
// load are forgotten so that it can be retried on the same env.
func (m *Module) Load(env *Env) (_ Object, err error) {
	mark := len(env.order)
	defer func() {
		if err != nil {
			env.forgetClassesSince(mark)
		}
	}()
	ctx := env.Context
	module := Object{o: ctx.NewObject()}
	exports := Object{o: ctx.NewObject()}
	if err := module.Set("exports", exports.Value()); err != nil {
		return Object{}, fmt.Errorf("njs: module %s: %w", m.Name, err)
	}

	if err := m.Init(env, module, exports); err != nil {
		return Object{}, fmt.Errorf("njs: module %s: %w", m.Name, err)
	}

	v, err := module.Get("exports")
	if err != nil {
		return Object{}, fmt.Errorf("njs: module %s: %w", m.Name, err)
	}
	if !v.IsObject() {
		return Object{}, fmt.Errorf("njs: module %s: exports is not an object", m.Name)
	}
	log.WithField("module", m.Name).Debug("njs: module loaded")
	return v.AsObject(), nil
}
