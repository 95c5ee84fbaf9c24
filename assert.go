package njs

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var assertionsOff atomic.Bool

// SetAssertions turns programmer-error checks into panics (on, the
// default) or into logged errors (off).
func SetAssertions(on bool) { assertionsOff.Store(!on) }

// AssertionsEnabled reports the current assertion mode.
func AssertionsEnabled() bool { return !assertionsOff.Load() }

// AssertionError is the panic value of a failed assertion.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "njs: assertion failed: " + e.Msg }

func check(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if AssertionsEnabled() {
		panic(&AssertionError{Msg: msg})
	}
	log.WithField("assertion", msg).Error("njs: assertion failed")
	return false
}
