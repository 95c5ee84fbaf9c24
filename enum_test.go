package njs

import (
	"strings"
	"testing"

	"github.com/cryguy/njs/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMode = NewEnum(3, "read-write\x00read-only\x00none\x00")

func TestEnum_Parse(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"read-write", 3, true},
		{"readwrite", 3, true},
		{"read-only", 4, true},
		{"readonly", 4, true},
		{"none", 5, true},
		{"read", 0, false},
		{"read-only-ish", 0, false},
		{"Read-only", 0, false},
		{"-read", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := testMode.Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEnum_Stringify(t *testing.T) {
	assert.Equal(t, 5, testMode.End())

	s, ok := testMode.Stringify(4)
	assert.True(t, ok)
	assert.Equal(t, "read-only", s)

	_, ok = testMode.Stringify(2)
	assert.False(t, ok)
	_, ok = testMode.Stringify(6)
	assert.False(t, ok)
}

func TestEnum_SerializeDeserialize(t *testing.T) {
	e := newTestEnv(t)

	v, r := testMode.Serialize(e.vm, 5)
	require.Equal(t, ResultOk, r)
	assert.Equal(t, "none", v.String())

	v, r = testMode.Serialize(e.vm, 42)
	assert.Equal(t, ResultInvalidValue, r)
	assert.Equal(t, "", v.String())

	var out int
	assert.Equal(t, ResultOk, testMode.Deserialize(e.str("readonly"), &out))
	assert.Equal(t, 4, out)
	assert.Equal(t, ResultInvalidValueTypeID, testMode.Deserialize(e.num(4), &out))
	assert.Equal(t, ResultInvalidValue, testMode.Deserialize(e.str("bogus"), &out))
	assert.Equal(t, ResultInvalidValue, testMode.Deserialize(e.str(strings.Repeat("r", MaxEnumLength+1)), &out))
	assert.Equal(t, 4, out)
}

func TestUnpackEnumArgument_Reports(t *testing.T) {
	e := newTestEnv(t)
	fn := e.staticFunction(t, func(ctx *FunctionCallContext) Result {
		var mode int
		if r := UnpackEnumArgument(ctx, 1, testMode, &mode); r != ResultOk {
			return r
		}
		return ctx.ReturnValue(int32(mode))
	})
	undef := Value{h: e.vm.Undefined()}

	out, err := e.call(fn, undef, e.num(0), e.str("read-only"))
	require.NoError(t, err)
	assert.Equal(t, float64(4), out.Float())

	_, err = e.call(fn, undef, e.num(0), e.num(4))
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "Invalid argument [1]: Expected Type 'njs::Enum'", exc.Message)

	_, err = e.call(fn, undef, e.num(0), e.str("sideways"))
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "Invalid argument [1]", exc.Message)
}
