package core

import "strings"

// ErrorKind selects the constructor of a thrown error.
type ErrorKind uint8

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindError
	ErrorKindTypeError
	ErrorKindRangeError
	ErrorKindSyntaxError
	ErrorKindReferenceError
)

var errorKindNames = [...]string{"", "Error", "TypeError", "RangeError", "SyntaxError", "ReferenceError"}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return ""
}

// ErrorKindFromName maps an error constructor name back to its kind.
// Unknown names map to ErrorKindNone.
func ErrorKindFromName(name string) ErrorKind {
	for i, n := range errorKindNames {
		if i > 0 && n == name {
			return ErrorKind(i)
		}
	}
	return ErrorKindNone
}

// Exception is a JS exception surfaced to Go.
type Exception struct {
	Kind    ErrorKind
	Message string
	Value   Value
}

func (e *Exception) Error() string {
	if e.Kind == ErrorKindNone {
		return "Uncaught " + e.Message
	}
	return e.Kind.String() + ": " + e.Message
}

// ParseException splits a "Name: message" string as produced by
// Error.prototype.toString.
func ParseException(s string) *Exception {
	s = strings.TrimPrefix(s, "Uncaught ")
	if name, msg, ok := strings.Cut(s, ": "); ok {
		if k := ErrorKindFromName(name); k != ErrorKindNone {
			return &Exception{Kind: k, Message: msg}
		}
	}
	return &Exception{Message: s}
}

// PropertyAttribute flags for template-installed properties.
type PropertyAttribute uint8

const (
	AttrNone       PropertyAttribute = 0
	AttrReadOnly   PropertyAttribute = 1 << 0
	AttrDontEnum   PropertyAttribute = 1 << 1
	AttrDontDelete PropertyAttribute = 1 << 2
)

// CallbackInfo is what a native function callback sees.
type CallbackInfo interface {
	Context() Context
	Args() []Value

	// This is the receiver, or nil when it is not an object.
	This() Object
	IsConstructCall() bool
	Data() Value
}

// AccessorInfo is what a native getter or setter sees.
type AccessorInfo interface {
	Context() Context
	This() Object
	Data() Value
}

// FunctionCallback implements a native function. A nil return is undefined.
type FunctionCallback func(info CallbackInfo) Value

type GetterCallback func(info AccessorInfo) Value

type SetterCallback func(info AccessorInfo, v Value)

// Signature restricts the receivers a function or accessor accepts to
// instances of one function template and its descendants.
type Signature interface {
	Receiver() FunctionTemplate
}

// FunctionTemplate describes a native function and, when used as a class,
// its instances and prototype.
type FunctionTemplate interface {
	SetClassName(name string)
	Inherit(parent FunctionTemplate)
	InstanceTemplate() ObjectTemplate
	PrototypeTemplate() ObjectTemplate

	// Set installs a static property on the function object.
	Set(name string, fn FunctionTemplate, attrs PropertyAttribute)

	// GetFunction instantiates the template. Repeated calls in the same
	// context return the same function.
	GetFunction() (Object, error)
}

// ObjectTemplate describes the shape of instances or of a prototype.
type ObjectTemplate interface {
	SetInternalFieldCount(n int)
	InternalFieldCount() int
	Set(name string, fn FunctionTemplate, attrs PropertyAttribute)
	SetAccessor(name string, get GetterCallback, set SetterCallback, data Value, attrs PropertyAttribute, sig Signature)
}
