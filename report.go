package njs

import (
	"fmt"
	"unicode/utf8"

	"github.com/cryguy/njs/internal/core"
)

// ValueType identifies an expected JS type in InvalidValueTypeID reports.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeBoolean
	TypeInt32
	TypeUint32
	TypeNumber
	TypeString
	TypeSymbol
	TypeArray
	TypeObject
	TypeFunction
	TypeDate
	TypeError
	TypeRegExp
	TypeGeneratorFunction
	TypeGeneratorObject
	TypePromise
	TypeMap
	TypeMapIterator
	TypeSet
	TypeSetIterator
	TypeWeakMap
	TypeWeakSet
	TypeArrayBuffer
	TypeArrayBufferView
	TypeDataView
	TypeInt8Array
	TypeUint8Array
	TypeUint8ClampedArray
	TypeInt16Array
	TypeUint16Array
	TypeInt32Array
	TypeUint32Array
	TypeFloat32Array
	TypeFloat64Array
	TypeEnum
	TypeBuffer
)

// TypeNames maps a ValueType to the name shown in diagnostics.
type TypeNames []string

// DefaultTypeNames covers every ValueType constant.
var DefaultTypeNames = TypeNames{
	"?",
	"Boolean",
	"Int32",
	"Uint32",
	"Number",
	"String",
	"Symbol",
	"Array",
	"Object",
	"Function",
	"Date",
	"Error",
	"RegExp",
	"GeneratorFunction",
	"GeneratorObject",
	"Promise",
	"Map",
	"MapIterator",
	"Set",
	"SetIterator",
	"WeakMap",
	"WeakSet",
	"ArrayBuffer",
	"ArrayBufferView",
	"DataView",
	"Int8Array",
	"Uint8Array",
	"Uint8ClampedArray",
	"Int16Array",
	"Uint16Array",
	"Int32Array",
	"Uint32Array",
	"Float32Array",
	"Float64Array",
	"njs::Enum",
	"node::Buffer",
}

// Name returns the name of t, or the first entry when t is out of range.
func (n TypeNames) Name(t ValueType) string {
	if int(t) >= 0 && int(t) < len(n) {
		return n[t]
	}
	if len(n) > 0 {
		return n[0]
	}
	return "?"
}

// DefaultMaxMessageSize is the size of the formatting buffer, terminator
// included, so formatted messages hold at most 255 bytes.
const DefaultMaxMessageSize = 256

// Reporter turns a Result and its Payload into a VM exception.
type Reporter struct {
	names   TypeNames
	maxSize int
}

// NewReporter returns a Reporter using names for type ids. A maxSize of 0
// selects DefaultMaxMessageSize.
func NewReporter(names TypeNames, maxSize int) *Reporter {
	if names == nil {
		names = DefaultTypeNames
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Reporter{names: names, maxSize: maxSize}
}

// Format computes the exception type and message for (res, p). It is a
// pure function of its inputs and the reporter's tables.
func (r *Reporter) Format(res Result, p *Payload) (ExceptionType, string) {
	switch {
	case res.IsThrow():
		if !p.IsInitialized() {
			return ExceptionType(res), ""
		}
		return ExceptionType(res), p.text

	case res.IsInvalidValue():
		var base string
		switch idx := p.ArgIndex(); {
		case idx == -1:
			base = "Invalid value"
		case idx == -2:
			base = "Invalid argument"
		default:
			base = fmt.Sprintf("Invalid argument [%d]", uint32(idx))
		}
		switch res {
		case ResultInvalidValueTypeID:
			return ExceptionTypeError, r.truncate(fmt.Sprintf("%s: Expected Type '%s'", base, r.names.Name(p.TypeID())))
		case ResultInvalidValueTypeName:
			return ExceptionTypeError, r.truncate(fmt.Sprintf("%s: Expected Type '%s'", base, p.text))
		case ResultInvalidValueCustom:
			return ExceptionTypeError, r.truncate(fmt.Sprintf("%s: %s", base, p.text))
		}
		return ExceptionTypeError, base

	case res == ResultInvalidArgumentsLength:
		minArgs, maxArgs := p.MinArgs(), p.MaxArgs()
		switch {
		case minArgs == -1 || maxArgs == -1:
			return ExceptionTypeError, "Invalid number of arguments: (unspecified)"
		case minArgs == maxArgs:
			return ExceptionTypeError, r.truncate(fmt.Sprintf("Invalid number of arguments: Required exactly %d", minArgs))
		}
		return ExceptionTypeError, r.truncate(fmt.Sprintf("Invalid number of arguments: Required between %d..%d", minArgs, maxArgs))

	case res == ResultInvalidConstructCall || res == ResultAbstractConstructCall:
		className := "(anonymous)"
		if p.IsInitialized() && p.text != "" {
			className = p.text
		}
		reason := "Use new operator"
		if res == ResultAbstractConstructCall {
			reason = "Class is abstract"
		}
		return ExceptionTypeError, r.truncate(fmt.Sprintf("Cannot instantiate '%s': %s", className, reason))
	}
	return ExceptionError, "Unknown error"
}

// truncate cuts s to fit the scratch size without splitting a rune.
func (r *Reporter) truncate(s string) string {
	n := r.maxSize - 1
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Report raises the exception described by (res, p) in ctx. ResultOk and
// ResultBypass raise nothing: the latter means an exception is already
// pending.
func (r *Reporter) Report(ctx core.Context, res Result, p *Payload) {
	if res == ResultOk || res == ResultBypass {
		return
	}
	typ, msg := r.Format(res, p)
	ctx.Throw(ctx.NewError(errorKind(typ), msg))
}

func errorKind(t ExceptionType) core.ErrorKind { return core.ErrorKind(t) }
