// Package libfuncs is the lowering framework: every concrete libfunc of a
// program is turned into IR by a procedure looked up in a Table by its
// generic id.
package libfuncs

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// Libfunc is the capability a catalog entry provides to lowering
// procedures: its signature plus the generic arguments it was declared with.
type Libfunc interface {
	program.Libfunc
	Args() []ids.GenericArg
}

// Parameters of every lowered function. Procedures address the gas counter
// and the runtime block through them.
const (
	ArgsParam    ir.Var = "args"
	RetsParam    ir.Var = "rets"
	GasParam     ir.Var = "gas"
	RuntimeParam ir.Var = "rt"
)

// Context is shared by every lowering call of one compilation.
type Context struct {
	// Module receives helper methods declared by procedures.
	Module *ir.Program
	Logger *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Location identifies the statement being lowered.
type Location struct {
	Function  ids.FunctionId
	Statement ids.StatementIdx
	Libfunc   ids.ConcreteLibfuncId
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d(%s)", l.Function, l.Statement, l.Libfunc)
}

var ErrUnsupportedLibfunc = errors.New("no lowering registered for libfunc")

type ErrorKind int

const (
	// MissingFunction means a referenced function is absent from the registry.
	MissingFunction ErrorKind = iota + 1
	// InvalidSignature means generic arguments or operands do not match what
	// the procedure expects.
	InvalidSignature
	// LayoutMismatch means operand slot counts disagree with the declared types.
	LayoutMismatch
	// Declaration means a helper method could not be added to the module.
	Declaration
)

func (k ErrorKind) String() string {
	switch k {
	case MissingFunction:
		return "missing function"
	case InvalidSignature:
		return "invalid signature"
	case LayoutMismatch:
		return "layout mismatch"
	case Declaration:
		return "declaration"
	default:
		return "unknown"
	}
}

// Error is the failure of a fallible lowering procedure.
type Error struct {
	Loc  Location
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lower %s: %s: %v", e.Loc, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(loc Location, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Loc: loc, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// BuildFunc lowers one concrete libfunc invocation. It appends to entry and
// must finish it with exactly one terminator selecting one of the successors
// exposed by helper.
type BuildFunc[T types.Builder, L Libfunc] func(
	ctx *Context,
	reg *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	meta *metadata.Storage,
	info L,
) error

// InfallibleFunc is a procedure with no failure mode.
type InfallibleFunc[T types.Builder, L Libfunc] func(
	ctx *Context,
	reg *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	meta *metadata.Storage,
	info L,
)

// Infallible adapts f to a BuildFunc that always succeeds.
func Infallible[T types.Builder, L Libfunc](f InfallibleFunc[T, L]) BuildFunc[T, L] {
	return func(ctx *Context, reg *program.Registry[T, L], entry *ir.BlockBuilder, loc Location, helper *Helper, meta *metadata.Storage, info L) error {
		f(ctx, reg, entry, loc, helper, meta, info)
		return nil
	}
}

// Table maps generic libfunc ids to lowering procedures.
type Table[T types.Builder, L Libfunc] struct {
	procs map[ids.GenericLibfuncId]BuildFunc[T, L]
}

func NewTable[T types.Builder, L Libfunc]() *Table[T, L] {
	return &Table[T, L]{procs: make(map[ids.GenericLibfuncId]BuildFunc[T, L])}
}

// Register adds a procedure. Registering the same generic id twice panics.
func (t *Table[T, L]) Register(id ids.GenericLibfuncId, fn BuildFunc[T, L]) {
	if fn == nil {
		panic(fmt.Sprintf("libfuncs: nil procedure for %s", id))
	}
	if _, exists := t.procs[id]; exists {
		panic(fmt.Sprintf("libfuncs: procedure for %s already registered", id))
	}
	t.procs[id] = fn
}

func (t *Table[T, L]) Has(id ids.GenericLibfuncId) bool {
	_, ok := t.procs[id]
	return ok
}

// Generics lists the registered generic ids in sorted order.
func (t *Table[T, L]) Generics() []ids.GenericLibfuncId {
	out := make([]ids.GenericLibfuncId, 0, len(t.procs))
	for id := range t.procs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build dispatches info to its procedure.
func (t *Table[T, L]) Build(ctx *Context, reg *program.Registry[T, L], entry *ir.BlockBuilder, loc Location, helper *Helper, meta *metadata.Storage, info L) error {
	fn, ok := t.procs[info.GenericId()]
	if !ok {
		return fmt.Errorf("%w: %s at %s", ErrUnsupportedLibfunc, info.GenericId(), loc)
	}
	ctx.logger().Debug("lowering libfunc", "loc", loc.String(), "generic", string(info.GenericId()))
	return fn(ctx, reg, entry, loc, helper, meta, info)
}
