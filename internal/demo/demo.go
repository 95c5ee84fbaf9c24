// Package demo is a native module exercising the binding layer: a plain
// wrapped class, an abstract base with subclasses and an async sqlite-backed
// key/value store.
package demo

import (
	"fmt"
	"sync"

	"github.com/cryguy/njs"
	"gorm.io/gorm"
)

// Name is the name the module registers under.
const Name = "demo"

var (
	dsnMu sync.Mutex
	dsn   = "file::memory:"
)

// SetStoreDSN selects the database later loads of the module open for the
// Store class.
func SetStoreDSN(s string) {
	dsnMu.Lock()
	defer dsnMu.Unlock()
	dsn = s
}

func storeDSN() string {
	dsnMu.Lock()
	defer dsnMu.Unlock()
	return dsn
}

func init() {
	njs.Register(njs.Module{Name: Name, Init: Init})
}

// Init installs Object, Shape, Circle, Rect, Store and the Store mode
// names on exports. Store is only available when env has a work queue.
func Init(env *njs.Env, module, exports njs.Object) error {
	for _, c := range []*njs.Class{ObjectClass, ShapeClass, CircleClass, RectClass} {
		if _, err := njs.InitClass(env, exports, c); err != nil {
			return err
		}
	}

	modes := env.Context.NewObject()
	for i, name := range Mode.Names {
		if err := modes.Set(name, env.Context.NewNumber(float64(Mode.Start+i))); err != nil {
			return err
		}
	}
	if err := exports.Set("modes", njs.ValueOf(modes)); err != nil {
		return err
	}

	if env.Queue == nil {
		return nil
	}
	db, err := OpenDB(storeDSN())
	if err != nil {
		return err
	}
	if _, err := njs.InitClass(env, exports, storeClass(db, env.Queue)); err != nil {
		_ = closeDB(db)
		return fmt.Errorf("demo: %w", err)
	}
	env.AddCleanup(func() error { return closeDB(db) })
	return nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
