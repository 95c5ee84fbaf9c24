//go:build v8

package njs

import (
	"github.com/cryguy/njs/internal/core"
	"github.com/cryguy/njs/internal/v8engine"
)

func defaultBackend(Config) core.Backend {
	return v8engine.Backend{}
}
