package core

// Kind is the coarse dynamic type of a VM value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindSymbol
	KindObject
	KindFunction
)

var kindNames = [...]string{"undefined", "null", "boolean", "number", "string", "symbol", "object", "function"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a local handle to a VM value. A nil Value is the empty handle.
// Locals are only usable while the scope that created them is open.
type Value interface {
	Kind() Kind

	// IsInt32 and IsUint32 report whether the value is a number exactly
	// representable in the respective integer type.
	IsInt32() bool
	IsUint32() bool

	Bool() bool
	Float() float64
	String() string

	// Object returns the value as an object, or nil when it is not one.
	// Functions are objects.
	Object() Object

	StrictEquals(other Value) bool
}

// Object is a local handle to a VM object.
type Object interface {
	Value

	// Get reads a property, running getters. A thrown exception is
	// returned as *Exception.
	Get(key string) (Value, error)

	// Set writes a property with strict-mode semantics: assigning to an
	// accessor without setter or to a read-only property is a TypeError.
	Set(key string, v Value) error

	// InternalFieldCount is the number of internal slots reserved for the
	// object by its instance template.
	InternalFieldCount() int
	InternalField(i int) any
	SetInternalField(i int, v any)
}

// Persistent is a handle that outlives handle scopes until Reset.
// A weak persistent does not keep its target alive; the weak callback runs
// when the VM is about to collect the target and must not touch the target.
type Persistent interface {
	IsEmpty() bool
	Reset()

	// Local returns a local handle to the target in the current scope, or
	// nil if the persistent is empty.
	Local() Value

	SetWeak(cb func())
	ClearWeak()
	IsWeak() bool
}

// Scope bounds the lifetime of local handles created while it is the
// innermost open scope.
type Scope interface {
	Close()
}

// Context is the execution context of a VM. All methods must be called on
// the goroutine that owns the VM.
type Context interface {
	Undefined() Value
	Null() Value
	NewBoolean(b bool) Value
	NewNumber(f float64) Value
	NewString(s string) Value
	NewObject() Object
	Global() Object

	NewPersistent(v Value) Persistent
	OpenScope() Scope

	// NewError creates an error object of the given kind.
	NewError(kind ErrorKind, msg string) Value

	// Throw schedules v as the pending exception. It takes effect when the
	// running native callback returns.
	Throw(v Value)

	// Call and Construct invoke a function from Go. A thrown exception is
	// returned as *Exception.
	Call(fn Value, recv Value, args ...Value) (Value, error)
	Construct(fn Value, args ...Value) (Value, error)

	NewFunctionTemplate(cb FunctionCallback, data Value, sig Signature) FunctionTemplate
	NewSignature(receiver FunctionTemplate) Signature
	NewAccessorSignature(receiver FunctionTemplate) Signature
}

// ScriptRunner is an optional Context capability for backends that can
// compile and run JavaScript source.
type ScriptRunner interface {
	RunScript(src, origin string) (Value, error)
}

// MicrotaskRunner is an optional Context capability that pumps the
// microtask queue.
type MicrotaskRunner interface {
	RunMicrotasks()
}

// Collector is an optional Context capability that forces a full
// collection. It returns the number of objects freed, or of weak callbacks
// run where the engine does not count frees.
type Collector interface {
	Collect() int
}

// Closer is an optional Context capability that releases the VM. Weak
// callbacks of remaining weak persistents run before it returns.
type Closer interface {
	Close() error
}

// Backend creates contexts for one concrete VM.
type Backend interface {
	Name() string
	NewContext() (Context, error)
}
