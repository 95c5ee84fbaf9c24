package njs

import (
	"math"

	"github.com/cryguy/njs/internal/core"
)

// MaxSafeInteger is the largest integer a JS number represents exactly.
const MaxSafeInteger = 1<<53 - 1

// unpackValue converts v into the Go variable out points to. Supported
// targets: *bool, *int32, *uint32, *int64, *uint64, *float32, *float64,
// *string, *Value, *Object.
func unpackValue(v core.Value, out any) Result {
	if v == nil {
		return ResultInvalidValue
	}
	switch p := out.(type) {
	case *bool:
		if v.Kind() != core.KindBoolean {
			return ResultInvalidValue
		}
		*p = v.Bool()
	case *int32:
		if !v.IsInt32() {
			return ResultInvalidValue
		}
		*p = int32(v.Float())
	case *uint32:
		if !v.IsUint32() {
			return ResultInvalidValue
		}
		*p = uint32(v.Float())
	case *int64:
		if v.Kind() != core.KindNumber {
			return ResultInvalidValue
		}
		n, r := doubleToInt64(v.Float())
		if r != ResultOk {
			return r
		}
		*p = n
	case *uint64:
		if v.Kind() != core.KindNumber {
			return ResultInvalidValue
		}
		n, r := doubleToUint64(v.Float())
		if r != ResultOk {
			return r
		}
		*p = n
	case *float64:
		if v.Kind() != core.KindNumber {
			return ResultInvalidValue
		}
		*p = v.Float()
	case *float32:
		if v.Kind() != core.KindNumber {
			return ResultInvalidValue
		}
		*p = float32(v.Float())
	case *string:
		if v.Kind() != core.KindString {
			return ResultInvalidValue
		}
		*p = v.String()
	case *Value:
		*p = Value{h: v}
	case *Object:
		o := v.Object()
		if o == nil {
			return ResultInvalidValue
		}
		*p = Object{o: o}
	default:
		check(false, "unsupported unpack target %T", out)
		return ResultInvalidState
	}
	return ResultOk
}

func doubleToInt64(f float64) (int64, Result) {
	if f != math.Trunc(f) || math.IsNaN(f) {
		return 0, ResultInvalidValue
	}
	if f < -MaxSafeInteger || f > MaxSafeInteger {
		return 0, ResultUnsafeInt64Conversion
	}
	return int64(f), ResultOk
}

func doubleToUint64(f float64) (uint64, Result) {
	if f != math.Trunc(f) || math.IsNaN(f) || f < 0 {
		return 0, ResultInvalidValue
	}
	if f > MaxSafeInteger {
		return 0, ResultUnsafeUint64Conversion
	}
	return uint64(f), ResultOk
}

// packValue converts a Go value into a VM value. 64-bit integers outside
// the safe range are refused rather than rounded.
func packValue(ctx core.Context, in any) (core.Value, Result) {
	switch v := in.(type) {
	case nil:
		return ctx.Undefined(), ResultOk
	case bool:
		return ctx.NewBoolean(v), ResultOk
	case int:
		return packInt64(ctx, int64(v))
	case int32:
		return ctx.NewNumber(float64(v)), ResultOk
	case uint32:
		return ctx.NewNumber(float64(v)), ResultOk
	case int64:
		return packInt64(ctx, v)
	case uint64:
		if v > MaxSafeInteger {
			return nil, ResultUnsafeUint64Conversion
		}
		return ctx.NewNumber(float64(v)), ResultOk
	case float32:
		return ctx.NewNumber(float64(v)), ResultOk
	case float64:
		return ctx.NewNumber(v), ResultOk
	case string:
		return ctx.NewString(v), ResultOk
	case Value:
		if !v.IsValid() {
			return ctx.Undefined(), ResultOk
		}
		return v.h, ResultOk
	case Object:
		if !v.IsValid() {
			return ctx.Undefined(), ResultOk
		}
		return v.o, ResultOk
	case core.Value:
		return v, ResultOk
	}
	check(false, "unsupported pack source %T", in)
	return nil, ResultInvalidState
}

// PackValue converts a Go value for code running outside a call context,
// such as task completions.
func PackValue(ctx core.Context, in any) (Value, Result) {
	h, r := packValue(ctx, in)
	if r != ResultOk {
		return Value{}, r
	}
	return Value{h: h}, ResultOk
}

// UnpackValue converts v into the variable out points to.
func UnpackValue(v Value, out any) Result { return unpackValue(v.h, out) }

func packInt64(ctx core.Context, v int64) (core.Value, Result) {
	if v < -MaxSafeInteger || v > MaxSafeInteger {
		return nil, ResultUnsafeInt64Conversion
	}
	return ctx.NewNumber(float64(v)), ResultOk
}

// Number is the set of Go types a Range can validate.
type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Range validates that an unpacked value lies in [Min, Max].
type Range[T Number] struct {
	Min, Max T
}

func (r Range[T]) Validate(v T) Result {
	if v < r.Min || v > r.Max {
		return ResultInvalidValueRange
	}
	return ResultOk
}
