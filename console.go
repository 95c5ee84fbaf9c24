package njs

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// consoleLevels maps console methods to log levels. console.log goes to
// the runtime output as well.
var consoleLevels = []struct {
	name  string
	level log.Level
}{
	{"log", log.InfoLevel},
	{"info", log.InfoLevel},
	{"warn", log.WarnLevel},
	{"error", log.ErrorLevel},
	{"debug", log.DebugLevel},
}

// installConsole replaces globalThis.console with one backed by logrus.
func (rt *Runtime) installConsole() error {
	console := Object{o: rt.ctx.NewObject()}
	for _, l := range consoleLevels {
		l := l
		fn := func(ctx *FunctionCallContext) Result {
			msg := joinArguments(ctx)
			if l.name == "log" {
				fmt.Fprintln(rt.out, msg)
			}
			log.WithField("source", "console."+l.name).Log(l.level, msg)
			return ResultOk
		}
		tmpl := rt.ctx.NewFunctionTemplate(Static(l.name, fn).call(rt.env.Reporter), nil, nil)
		tmpl.SetClassName(l.name)
		f, err := tmpl.GetFunction()
		if err != nil {
			return fmt.Errorf("njs: console.%s: %w", l.name, err)
		}
		if err := console.o.Set(l.name, f); err != nil {
			return fmt.Errorf("njs: console.%s: %w", l.name, err)
		}
	}
	return rt.Expose("console", console)
}

func joinArguments(ctx *FunctionCallContext) string {
	parts := make([]string, ctx.ArgumentsLength())
	for i := range parts {
		parts[i] = ctx.Argument(i).String()
	}
	return strings.Join(parts, " ")
}
