package njs

import (
	"strings"

	"github.com/cryguy/njs/internal/core"
)

// MaxEnumLength bounds the strings Enum.Deserialize will try to match.
const MaxEnumLength = 64

// Enum maps the sequential integers Start, Start+1, ... to the strings in
// Names and back. A '-' inside a name is optional when parsing, so an entry
// "read-only" accepts both "read-only" and "readonly".
type Enum struct {
	Start int
	Names []string
}

// NewEnum builds an Enum from a '\x00'-separated table, the compact form
// static enum tables are usually written in.
func NewEnum(start int, table string) *Enum {
	return &Enum{Start: start, Names: strings.Split(strings.TrimSuffix(table, "\x00"), "\x00")}
}

// End returns the last valid value.
func (e *Enum) End() int { return e.Start + len(e.Names) - 1 }

// Parse returns the value whose name matches s.
func (e *Enum) Parse(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i, name := range e.Names {
		if enumMatch(name, s) {
			return e.Start + i, true
		}
	}
	return 0, false
}

// enumMatch compares in against name, skipping ignorable characters of name
// that do not match. The first character always has to match.
func enumMatch(name, in string) bool {
	if name == "" || name[0] != in[0] {
		return false
	}
	j := 1
	for i := 1; i < len(in); i++ {
		for {
			if j >= len(name) {
				return false
			}
			c := name[j]
			j++
			if c == in[i] {
				break
			}
			if c != '-' {
				return false
			}
		}
	}
	return j == len(name)
}

// Stringify returns the name of v.
func (e *Enum) Stringify(v int) (string, bool) {
	i := v - e.Start
	if i < 0 || i >= len(e.Names) || e.Names[i] == "" {
		return "", false
	}
	return e.Names[i], true
}

// Serialize packs v as its name. Unknown values yield an empty string and
// ResultInvalidValue.
func (e *Enum) Serialize(ctx core.Context, v int) (Value, Result) {
	s, ok := e.Stringify(v)
	if !ok {
		return Value{h: ctx.NewString("")}, ResultInvalidValue
	}
	return Value{h: ctx.NewString(s)}, ResultOk
}

// Deserialize unpacks a string value into its enum value.
func (e *Enum) Deserialize(v Value, out *int) Result {
	if !v.IsString() {
		return ResultInvalidValueTypeID
	}
	s := v.String()
	if len(s) > MaxEnumLength {
		return ResultInvalidValue
	}
	n, ok := e.Parse(s)
	if !ok {
		return ResultInvalidValue
	}
	*out = n
	return ResultOk
}

// UnpackEnumArgument unpacks argument i through e, filling the payload so
// the report names the argument and the expected type.
func UnpackEnumArgument(c *FunctionCallContext, i int, e *Enum, out *int) Result {
	switch r := e.Deserialize(c.Argument(i), out); r {
	case ResultOk:
		return ResultOk
	case ResultInvalidValueTypeID:
		return c.InvalidArgumentTypeID(i, TypeEnum)
	default:
		return c.InvalidArgumentAt(i)
	}
}
