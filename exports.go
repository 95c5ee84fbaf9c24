package njs

import "github.com/cryguy/njs/internal/core"

// Type aliases re-exporting internal/core types so binding code can name
// VM-level types without importing the internal package.

type Context = core.Context
type Backend = core.Backend
type FunctionTemplate = core.FunctionTemplate
type ObjectTemplate = core.ObjectTemplate
type Signature = core.Signature
type PropertyAttribute = core.PropertyAttribute
type ErrorKind = core.ErrorKind
type Exception = core.Exception

// Constants re-exported from core.
const (
	AttrNone       = core.AttrNone
	AttrReadOnly   = core.AttrReadOnly
	AttrDontEnum   = core.AttrDontEnum
	AttrDontDelete = core.AttrDontDelete
)

// Functions re-exported from core.
var ParseException = core.ParseException
