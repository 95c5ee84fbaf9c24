//go:build !v8

package njs

import (
	"github.com/cryguy/njs/internal/core"
	"github.com/cryguy/njs/internal/quickjs"
)

func defaultBackend(cfg Config) core.Backend {
	return quickjs.Backend{MemoryLimit: uintptr(cfg.MemoryLimitMB) << 20}
}
