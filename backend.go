package njs

import (
	"errors"
	"fmt"

	"github.com/cryguy/njs/internal/core"
	"github.com/cryguy/njs/internal/refvm"
)

// ErrUnknownBackend is returned for a Config.Backend that is neither the
// compiled-in engine nor "refvm".
var ErrUnknownBackend = errors.New("njs: unknown backend")

// BackendFor selects the backend named by cfg.Backend. The empty name is
// the engine compiled in by build tag. "refvm" is the in-process object
// model without a parser, whose collector is observable from Go.
func BackendFor(cfg Config) (core.Backend, error) {
	def := defaultBackend(cfg)
	switch cfg.Backend {
	case "", def.Name():
		return def, nil
	case "refvm":
		return refvm.Backend{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
