package njs

import "fmt"

// Result is returned by every fallible binding operation in place of
// throwing. Anything other than ResultOk is turned into a VM exception by
// the trampoline that invoked the binding.
type Result uint32

const (
	ResultOk Result = 0

	// Explicit throws requested by binding code. The value doubles as the
	// ExceptionType to raise.
	ResultThrowError          Result = 1
	ResultThrowTypeError      Result = 2
	ResultThrowRangeError     Result = 3
	ResultThrowSyntaxError    Result = 4
	ResultThrowReferenceError Result = 5
)

const (
	ResultInvalidState Result = iota + 10
	ResultInvalidHandle
	ResultOutOfMemory

	ResultInvalidValue
	ResultInvalidValueTypeID
	ResultInvalidValueTypeName
	ResultInvalidValueCustom
	ResultInvalidValueRange
	ResultUnsafeInt64Conversion
	ResultUnsafeUint64Conversion

	ResultInvalidArgumentsLength
	ResultInvalidConstructCall
	ResultAbstractConstructCall

	// ResultBypass means an exception is already pending in the VM and
	// must be passed through untouched.
	ResultBypass
)

const (
	resultThrowFirst = ResultThrowError
	resultThrowLast  = ResultThrowReferenceError
	resultValueFirst = ResultInvalidValue
	resultValueLast  = ResultUnsafeUint64Conversion
)

var resultNames = map[Result]string{
	ResultOk:                     "Ok",
	ResultThrowError:             "ThrowError",
	ResultThrowTypeError:         "ThrowTypeError",
	ResultThrowRangeError:        "ThrowRangeError",
	ResultThrowSyntaxError:       "ThrowSyntaxError",
	ResultThrowReferenceError:    "ThrowReferenceError",
	ResultInvalidState:           "InvalidState",
	ResultInvalidHandle:          "InvalidHandle",
	ResultOutOfMemory:            "OutOfMemory",
	ResultInvalidValue:           "InvalidValue",
	ResultInvalidValueTypeID:     "InvalidValueTypeID",
	ResultInvalidValueTypeName:   "InvalidValueTypeName",
	ResultInvalidValueCustom:     "InvalidValueCustom",
	ResultInvalidValueRange:      "InvalidValueRange",
	ResultUnsafeInt64Conversion:  "UnsafeInt64Conversion",
	ResultUnsafeUint64Conversion: "UnsafeUint64Conversion",
	ResultInvalidArgumentsLength: "InvalidArgumentsLength",
	ResultInvalidConstructCall:   "InvalidConstructCall",
	ResultAbstractConstructCall:  "AbstractConstructCall",
	ResultBypass:                 "Bypass",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Result(%d)", uint32(r))
}

// IsThrow reports whether r is an explicit throw request.
func (r Result) IsThrow() bool { return r >= resultThrowFirst && r <= resultThrowLast }

// IsInvalidValue reports whether r belongs to the invalid-value family.
func (r Result) IsInvalidValue() bool { return r >= resultValueFirst && r <= resultValueLast }

// ExceptionType selects the error constructor used when reporting.
type ExceptionType uint8

const (
	ExceptionNone ExceptionType = iota
	ExceptionError
	ExceptionTypeError
	ExceptionRangeError
	ExceptionSyntaxError
	ExceptionReferenceError
)

func (t ExceptionType) String() string { return errorKind(t).String() }

// payloadUnset marks a Payload nothing has been written to.
const payloadUnset = -1

// Payload carries the diagnostic detail for a non-ok Result. Only the
// fields belonging to the reported code are meaningful:
//
//	throw:          first = 0, text = message
//	invalid value:  first = argument index, second = type id, text = type name or message
//	argument count: first = min, second = max
//	construct call: first = 0, text = class name
//
// An argument index of -1 means "the value" and -2 "an argument".
type Payload struct {
	first  int
	second int
	text   string
}

// NewPayload returns a reset payload.
func NewPayload() *Payload {
	p := &Payload{}
	p.Reset()
	return p
}

// Reset returns the payload to the uninitialized state.
func (p *Payload) Reset() {
	p.first = payloadUnset
	p.second = payloadUnset
	p.text = ""
}

func (p *Payload) IsInitialized() bool { return p.first != payloadUnset }

func (p *Payload) ArgIndex() int     { return p.first }
func (p *Payload) TypeID() ValueType { return ValueType(p.second) }
func (p *Payload) Text() string      { return p.text }
func (p *Payload) MinArgs() int      { return p.first }
func (p *Payload) MaxArgs() int      { return p.second }
func (p *Payload) ClassName() string { return p.text }

func (p *Payload) setMessage(s string) { p.first, p.text = 0, s }

// ThrowError and friends record msg and return the matching throw code.
func (p *Payload) ThrowError(msg string) Result {
	return p.throw(ResultThrowError, msg)
}
func (p *Payload) ThrowTypeError(msg string) Result {
	return p.throw(ResultThrowTypeError, msg)
}
func (p *Payload) ThrowRangeError(msg string) Result {
	return p.throw(ResultThrowRangeError, msg)
}
func (p *Payload) ThrowSyntaxError(msg string) Result {
	return p.throw(ResultThrowSyntaxError, msg)
}
func (p *Payload) ThrowReferenceError(msg string) Result {
	return p.throw(ResultThrowReferenceError, msg)
}

func (p *Payload) throw(r Result, msg string) Result {
	p.setMessage(msg)
	return r
}

// InvalidValue reports that the value itself (not a numbered argument) is
// unacceptable.
func (p *Payload) InvalidValue() Result {
	p.first = -1
	return ResultInvalidValue
}

func (p *Payload) InvalidValueTypeID(t ValueType) Result {
	p.first, p.second = -1, int(t)
	return ResultInvalidValueTypeID
}

func (p *Payload) InvalidValueTypeName(name string) Result {
	p.first, p.text = -1, name
	return ResultInvalidValueTypeName
}

func (p *Payload) InvalidValueCustom(msg string) Result {
	p.first, p.text = -1, msg
	return ResultInvalidValueCustom
}

// InvalidArgument reports an argument without naming its position.
func (p *Payload) InvalidArgument() Result {
	p.first = -2
	return ResultInvalidValue
}

// InvalidArgumentAt reports argument i.
func (p *Payload) InvalidArgumentAt(i int) Result {
	p.first = i
	return ResultInvalidValue
}

func (p *Payload) InvalidArgumentTypeID(i int, t ValueType) Result {
	p.first, p.second = i, int(t)
	return ResultInvalidValueTypeID
}

func (p *Payload) InvalidArgumentTypeName(i int, name string) Result {
	p.first, p.text = i, name
	return ResultInvalidValueTypeName
}

func (p *Payload) InvalidArgumentCustom(i int, msg string) Result {
	p.first, p.text = i, msg
	return ResultInvalidValueCustom
}

func (p *Payload) InvalidArgumentsLength(n int) Result {
	p.first, p.second = n, n
	return ResultInvalidArgumentsLength
}

func (p *Payload) InvalidArgumentsRange(minArgs, maxArgs int) Result {
	p.first, p.second = minArgs, maxArgs
	return ResultInvalidArgumentsLength
}

func (p *Payload) InvalidConstructCall(className string) Result {
	p.setMessage(className)
	return ResultInvalidConstructCall
}

func (p *Payload) AbstractConstructCall(className string) Result {
	p.setMessage(className)
	return ResultAbstractConstructCall
}
