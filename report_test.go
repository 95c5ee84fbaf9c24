package njs

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cryguy/njs/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_Format(t *testing.T) {
	r := NewReporter(nil, 0)
	tests := []struct {
		name    string
		fill    func(p *Payload) Result
		wantTyp ExceptionType
		wantMsg string
	}{
		{"throw error", func(p *Payload) Result { return p.ThrowError("boom") }, ExceptionError, "boom"},
		{"throw type error", func(p *Payload) Result { return p.ThrowTypeError("bad type") }, ExceptionTypeError, "bad type"},
		{"throw range error", func(p *Payload) Result { return p.ThrowRangeError("too big") }, ExceptionRangeError, "too big"},
		{"throw syntax error", func(p *Payload) Result { return p.ThrowSyntaxError("parse") }, ExceptionSyntaxError, "parse"},
		{"throw reference error", func(p *Payload) Result { return p.ThrowReferenceError("nope") }, ExceptionReferenceError, "nope"},
		{"throw without message", func(p *Payload) Result { return ResultThrowTypeError }, ExceptionTypeError, ""},

		{"invalid value", func(p *Payload) Result { return p.InvalidValue() }, ExceptionTypeError, "Invalid value"},
		{"invalid argument", func(p *Payload) Result { return p.InvalidArgument() }, ExceptionTypeError, "Invalid argument"},
		{"invalid argument at", func(p *Payload) Result { return p.InvalidArgumentAt(3) }, ExceptionTypeError, "Invalid argument [3]"},
		{"type id", func(p *Payload) Result { return p.InvalidArgumentTypeID(1, TypeString) }, ExceptionTypeError,
			"Invalid argument [1]: Expected Type 'String'"},
		{"value type id", func(p *Payload) Result { return p.InvalidValueTypeID(TypeEnum) }, ExceptionTypeError,
			"Invalid value: Expected Type 'njs::Enum'"},
		{"type name", func(p *Payload) Result { return p.InvalidValueTypeName("Point") }, ExceptionTypeError,
			"Invalid value: Expected Type 'Point'"},
		{"argument type name", func(p *Payload) Result { return p.InvalidArgumentTypeName(0, "Shape") }, ExceptionTypeError,
			"Invalid argument [0]: Expected Type 'Shape'"},
		{"custom", func(p *Payload) Result { return p.InvalidArgumentCustom(2, "must be even") }, ExceptionTypeError,
			"Invalid argument [2]: must be even"},
		{"value custom", func(p *Payload) Result { return p.InvalidValueCustom("out of range") }, ExceptionTypeError,
			"Invalid value: out of range"},
		{"unsafe int64", func(p *Payload) Result { p.first = -1; return ResultUnsafeInt64Conversion }, ExceptionTypeError,
			"Invalid value"},

		{"exact length", func(p *Payload) Result { return p.InvalidArgumentsLength(2) }, ExceptionTypeError,
			"Invalid number of arguments: Required exactly 2"},
		{"length range", func(p *Payload) Result { return p.InvalidArgumentsRange(1, 3) }, ExceptionTypeError,
			"Invalid number of arguments: Required between 1..3"},
		{"length unspecified", func(p *Payload) Result { return ResultInvalidArgumentsLength }, ExceptionTypeError,
			"Invalid number of arguments: (unspecified)"},

		{"construct call", func(p *Payload) Result { return p.InvalidConstructCall("Point") }, ExceptionTypeError,
			"Cannot instantiate 'Point': Use new operator"},
		{"abstract", func(p *Payload) Result { return p.AbstractConstructCall("Shape") }, ExceptionTypeError,
			"Cannot instantiate 'Shape': Class is abstract"},
		{"anonymous class", func(p *Payload) Result { return ResultInvalidConstructCall }, ExceptionTypeError,
			"Cannot instantiate '(anonymous)': Use new operator"},

		{"unknown", func(p *Payload) Result { return ResultInvalidState }, ExceptionError, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPayload()
			res := tt.fill(p)
			typ, msg := r.Format(res, p)
			assert.Equal(t, tt.wantTyp, typ)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestReporter_FormatIsDeterministic(t *testing.T) {
	r := NewReporter(nil, 0)
	p := NewPayload()
	res := p.InvalidArgumentTypeID(4, TypeFunction)
	typ1, msg1 := r.Format(res, p)
	typ2, msg2 := r.Format(res, p)
	assert.Equal(t, typ1, typ2)
	assert.Equal(t, msg1, msg2)
}

func TestReporter_Truncates(t *testing.T) {
	p := NewPayload()
	res := p.InvalidValueCustom(strings.Repeat("x", 600))

	_, msg := NewReporter(nil, 0).Format(res, p)
	assert.Len(t, msg, DefaultMaxMessageSize-1)
	assert.True(t, strings.HasPrefix(msg, "Invalid value: xxx"))

	_, msg = NewReporter(nil, 16).Format(res, p)
	assert.Equal(t, "Invalid value: ", msg)
}

func TestReporter_TruncatesOnRuneBoundary(t *testing.T) {
	p := NewPayload()
	res := p.InvalidValueCustom(strings.Repeat("é", 10))

	_, msg := NewReporter(nil, 17).Format(res, p)
	assert.Equal(t, "Invalid value: ", msg)
	_, msg = NewReporter(nil, 18).Format(res, p)
	assert.Equal(t, "Invalid value: é", msg)
	assert.True(t, utf8.ValidString(msg))
}

func TestReporter_CustomTypeNames(t *testing.T) {
	names := TypeNames{"?", "bool"}
	r := NewReporter(names, 0)
	p := NewPayload()

	_, msg := r.Format(p.InvalidArgumentTypeID(0, TypeBoolean), p)
	assert.Equal(t, "Invalid argument [0]: Expected Type 'bool'", msg)

	p.Reset()
	_, msg = r.Format(p.InvalidArgumentTypeID(0, TypeFunction), p)
	assert.Equal(t, "Invalid argument [0]: Expected Type '?'", msg)
}

func TestDefaultTypeNames_CoverEveryType(t *testing.T) {
	assert.Len(t, DefaultTypeNames, int(TypeBuffer)+1)
}

func TestReporter_ReportThrowsInVM(t *testing.T) {
	e := newTestEnv(t)

	fn := e.staticFunction(t, func(ctx *FunctionCallContext) Result {
		return ctx.ThrowRangeError("out of bounds")
	})
	_, err := e.call(fn, Value{h: e.vm.Undefined()})
	require.Error(t, err)
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindRangeError, exc.Kind)
	assert.Equal(t, "out of bounds", exc.Message)
}

func TestReporter_BypassPassesPendingException(t *testing.T) {
	e := newTestEnv(t)

	fn := e.staticFunction(t, func(ctx *FunctionCallContext) Result {
		return ctx.Throw(Value{h: ctx.Context().NewError(core.ErrorKindSyntaxError, "already thrown")})
	})
	_, err := e.call(fn, Value{h: e.vm.Undefined()})
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindSyntaxError, exc.Kind)
	assert.Equal(t, "already thrown", exc.Message)

	quiet := e.staticFunction(t, func(ctx *FunctionCallContext) Result {
		return ResultBypass
	})
	out, err := e.call(quiet, Value{h: e.vm.Undefined()})
	require.NoError(t, err)
	assert.True(t, out.IsUndefined())
}

func TestResult_Families(t *testing.T) {
	assert.True(t, ResultThrowError.IsThrow())
	assert.True(t, ResultThrowReferenceError.IsThrow())
	assert.False(t, ResultInvalidValue.IsThrow())

	assert.True(t, ResultInvalidValue.IsInvalidValue())
	assert.True(t, ResultUnsafeUint64Conversion.IsInvalidValue())
	assert.False(t, ResultInvalidArgumentsLength.IsInvalidValue())
	assert.False(t, ResultBypass.IsInvalidValue())

	assert.Equal(t, "Bypass", ResultBypass.String())
	assert.Equal(t, "Result(99)", Result(99).String())
}
