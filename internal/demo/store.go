package demo

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cryguy/njs"
	"github.com/cryguy/njs/internal/core"
	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const StoreTag njs.ObjectTag = 0x200

// Store access modes.
const (
	ModeReadWrite = iota
	ModeReadOnly
)

// Mode parses and prints Store access modes. "readonly" is accepted for
// "read-only".
var Mode = njs.NewEnum(ModeReadWrite, "read-write\x00read-only\x00")

// entry is one key/value row of a Store.
type entry struct {
	Store string `gorm:"primaryKey"`
	Key   string `gorm:"primaryKey"`
	Value string
}

func (entry) TableName() string { return "njs_store_entries" }

// OpenDB opens the sqlite database backing Store instances. One connection
// is kept so that in-memory DSNs see a single database.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("demo: opening store %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("demo: migrating store: %w", err)
	}
	return db, nil
}

// Store is a named key/value namespace in a sqlite database. Reads and
// writes run as tasks on the work queue and report through a Node-style
// callback(err, value).
type Store struct {
	njs.WrapData
	Name string
	Mode int

	db      *gorm.DB
	queue   *njs.WorkQueue
	pending atomic.Int32
}

// NewStore returns an unwrapped Store on db. Only the Go methods are usable
// until the Store class constructor binds it to a queue and a JS peer.
func NewStore(db *gorm.DB, name string, mode int) *Store {
	return &Store{Name: name, Mode: mode, db: db}
}

func (s *Store) Put(key, value string) error {
	if s.Mode == ModeReadOnly {
		return fmt.Errorf("store %s is read-only", s.Name)
	}
	return s.db.Save(&entry{Store: s.Name, Key: key, Value: value}).Error
}

// Get returns the value of key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var e entry
	err := s.db.Where(&entry{Store: s.Name, Key: key}).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&entry{}).Where(&entry{Store: s.Name}).Count(&n).Error
	return n, err
}

func (s *Store) Destroy() {
	log.WithField("store", s.Name).Debug("demo: store destroyed")
}

// storeClass binds Store for one Env. The database and queue are shared by
// every instance created through it.
func storeClass(db *gorm.DB, q *njs.WorkQueue) *njs.Class {
	return &njs.Class{
		Name: "Store",
		Tag:  StoreTag,
		Construct: func(ctx *njs.ConstructCallContext) njs.Result {
			var name string
			mode := ModeReadWrite
			if r := ctx.VerifyArgumentsRange(1, 2); r != njs.ResultOk {
				return r
			}
			if r := ctx.UnpackArgument(0, &name); r != njs.ResultOk {
				return ctx.InvalidArgumentTypeID(0, njs.TypeString)
			}
			if ctx.ArgumentsLength() == 2 {
				if r := njs.UnpackEnumArgument(&ctx.FunctionCallContext, 1, Mode, &mode); r != njs.ResultOk {
					return r
				}
			}
			s := NewStore(db, name, mode)
			s.queue = q
			return ctx.ReturnNew(s)
		},
		Items: []njs.BindingItem{
			njs.Getter[*Store]("name", func(ctx *njs.GetPropertyContext, self *Store) njs.Result {
				return ctx.ReturnValue(self.Name)
			}),
			njs.Getter[*Store]("mode", func(ctx *njs.GetPropertyContext, self *Store) njs.Result {
				v, r := Mode.Serialize(ctx.Context(), self.Mode)
				if r != njs.ResultOk {
					return ctx.InvalidValue()
				}
				return ctx.ReturnValue(v)
			}),
			njs.Getter[*Store]("pending", func(ctx *njs.GetPropertyContext, self *Store) njs.Result {
				return ctx.ReturnValue(self.pending.Load())
			}),
			njs.Method[*Store]("put", storePut),
			njs.Method[*Store]("get", storeGet),
			njs.Method[*Store]("count", storeCount),
		},
	}
}

// storeTask runs one database call off the VM goroutine. The store is
// pinned from post until OnDestroy so its JS peer outlives the task.
type storeTask struct {
	store *Store
	work  func() (any, error)

	result any
	err    error
}

func (t *storeTask) OnWork() { t.result, t.err = t.work() }

func (t *storeTask) OnDone(ctx core.Context, data *njs.TaskData) {
	if err := data.Err(); err != nil {
		t.err = err
	}
	var args [2]core.Value
	if t.err != nil {
		args[0] = ctx.NewError(core.ErrorKindError, t.err.Error())
		args[1] = ctx.Undefined()
	} else {
		v, r := njs.PackValue(ctx, t.result)
		if r != njs.ResultOk {
			args[0] = ctx.NewError(core.ErrorKindRangeError, "Result not representable as a number")
			args[1] = ctx.Undefined()
		} else {
			args[0] = ctx.Null()
			args[1] = v.Handle()
		}
	}
	if _, err := ctx.Call(data.Callback().Handle(), ctx.Undefined(), args[:]...); err != nil {
		log.WithField("store", t.store.Name).WithError(err).Warn("demo: store callback threw")
	}
}

func (t *storeTask) OnDestroy(ctx core.Context) {
	t.store.pending.Add(-1)
	t.store.Release()
}

// post schedules work for self with the callback at argument cb.
func post(ctx *njs.FunctionCallContext, self *Store, cb int, work func() (any, error)) njs.Result {
	fn := ctx.Argument(cb)
	if !fn.IsFunction() {
		return ctx.InvalidArgumentTypeID(cb, njs.TypeFunction)
	}
	if self.queue == nil {
		return ctx.ThrowError("Store has no work queue")
	}

	data := njs.NewTaskData()
	data.Set(ctx.Context(), njs.TaskCallback, fn)
	self.AddRef()
	self.pending.Add(1)
	if _, err := self.queue.Post(&storeTask{store: self, work: work}, data); err != nil {
		self.pending.Add(-1)
		self.Release()
		data.Reset()
		return ctx.ThrowError(err.Error())
	}
	return njs.ResultOk
}

func storePut(ctx *njs.FunctionCallContext, self *Store) njs.Result {
	var key, value string
	if r := ctx.VerifyArgumentsLength(3); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(0, &key); r != njs.ResultOk {
		return ctx.InvalidArgumentTypeID(0, njs.TypeString)
	}
	if r := ctx.UnpackArgument(1, &value); r != njs.ResultOk {
		return ctx.InvalidArgumentTypeID(1, njs.TypeString)
	}
	if self.Mode == ModeReadOnly {
		return ctx.ThrowTypeError(fmt.Sprintf("Store '%s' is read-only", self.Name))
	}
	return post(ctx, self, 2, func() (any, error) {
		return nil, self.Put(key, value)
	})
}

func storeGet(ctx *njs.FunctionCallContext, self *Store) njs.Result {
	var key string
	if r := ctx.VerifyArgumentsLength(2); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(0, &key); r != njs.ResultOk {
		return ctx.InvalidArgumentTypeID(0, njs.TypeString)
	}
	return post(ctx, self, 1, func() (any, error) {
		v, ok, err := self.Get(key)
		if err != nil || !ok {
			return nil, err
		}
		return v, nil
	})
}

func storeCount(ctx *njs.FunctionCallContext, self *Store) njs.Result {
	if r := ctx.VerifyArgumentsLength(1); r != njs.ResultOk {
		return r
	}
	return post(ctx, self, 0, func() (any, error) {
		return self.Count()
	})
}
