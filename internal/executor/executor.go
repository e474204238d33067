// Package executor loads compiled artifacts and invokes their entry points
// with value trees.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/trace"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

var (
	// ErrInsufficientGas means no initial gas could be established for a
	// call. The entry point is never invoked.
	ErrInsufficientGas = metadata.ErrInsufficientGas
	// ErrSymbolNotFound means the artifact does not export the entry point of
	// a function. This is a registry/artifact mismatch and is never retried.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrClosed means the executor was closed and its artifact unloaded.
	ErrClosed = errors.New("executor closed")
	// ErrInvalidArguments means the arguments do not match the signature.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrMissingGasMetadata means a native module carries no GasMetadata
	// entry, so no executor can resolve gas for it.
	ErrMissingGasMetadata = errors.New("missing gas metadata")
	// ErrIncompatibleArtifact means an artifact was built for another ABI.
	ErrIncompatibleArtifact = errors.New("incompatible artifact")
)

// Artifact is a loaded shared object exporting compiled entry points.
type Artifact interface {
	// Lookup returns the address of symbol. A missing symbol returns an
	// error wrapping ErrSymbolNotFound.
	Lookup(symbol string) (uintptr, error)
	Close() error
}

// Registry is what the executor needs from a program registry.
type Registry interface {
	types.Resolver
	Function(id ids.FunctionId) (*program.Function, error)
}

// Invocation is one prepared call handed to an Invoker.
type Invocation struct {
	Entry    uintptr
	Function *program.Function
	Args     []values.Value
	Gas      uint64
	Handler  hostcall.Handler
	Registry types.Resolver
	// Trace receives host call records when set.
	Trace *trace.Writer
}

// Invoker runs a native entry point. The executor holds its artifact open
// for the whole duration of Invoke.
type Invoker interface {
	Invoke(inv Invocation) (*values.ExecutionResult, error)
}

// AotNativeExecutor owns one loaded artifact and invokes the functions it
// exports. Invocations may run concurrently; Close waits for them.
type AotNativeExecutor struct {
	mu     sync.RWMutex
	lib    Artifact
	closed bool

	reg     Registry
	gas     metadata.GasMetadata
	invoker Invoker
	logger  *slog.Logger
	metrics *metrics
	trace   *trace.Writer
}

// New wraps an already loaded artifact. The executor takes ownership of lib.
func New(lib Artifact, reg Registry, gas metadata.GasMetadata, opts ...Option) (*AotNativeExecutor, error) {
	if lib == nil {
		return nil, fmt.Errorf("executor: nil artifact")
	}
	if reg == nil {
		return nil, fmt.Errorf("executor: nil registry")
	}
	cfg := parseOptions(opts)

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, err
	}
	invoker := cfg.invoker
	if invoker == nil {
		invoker = NewNativeInvoker(cfg.arenaSize)
	}

	return &AotNativeExecutor{
		lib:     lib,
		reg:     reg,
		gas:     gas,
		invoker: invoker,
		logger:  cfg.logger,
		metrics: m,
		trace:   cfg.trace,
	}, nil
}

// InvokeDynamic calls id with args, rejecting every host call.
func (e *AotNativeExecutor) InvokeDynamic(id ids.FunctionId, args []values.Value, gas *uint64) (*values.ExecutionResult, error) {
	return e.InvokeDynamicWithSyscallHandler(id, args, gas, nil)
}

// InvokeDynamicWithSyscallHandler calls id with args, routing host calls to
// handler. A nil handler rejects every host call. Traps are reported in the
// result, not as an error.
func (e *AotNativeExecutor) InvokeDynamicWithSyscallHandler(id ids.FunctionId, args []values.Value, gas *uint64, handler hostcall.Handler) (*values.ExecutionResult, error) {
	initial, err := e.gas.InitialAvailableGas(id, gas)
	if err != nil {
		e.metrics.observe(outcomeError, 0)
		return nil, fmt.Errorf("executor: invoke %s: %w", id, err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.metrics.observe(outcomeError, 0)
		return nil, fmt.Errorf("executor: invoke %s: %w", id, ErrClosed)
	}

	entry, err := e.lookup(id)
	if err != nil {
		e.metrics.observe(outcomeError, 0)
		return nil, fmt.Errorf("executor: invoke %s: %w", id, err)
	}
	fn, err := e.reg.Function(id)
	if err != nil {
		e.metrics.observe(outcomeError, 0)
		return nil, fmt.Errorf("executor: invoke %s: %w", id, err)
	}
	if len(args) != len(fn.Signature.ParamTypes) {
		e.metrics.observe(outcomeError, 0)
		return nil, fmt.Errorf("executor: invoke %s: %w: takes %d arguments, got %d",
			id, ErrInvalidArguments, len(fn.Signature.ParamTypes), len(args))
	}
	if handler == nil {
		handler = hostcall.Rejecting{}
	}

	start := time.Now()
	result, err := e.invoker.Invoke(Invocation{
		Entry:    entry,
		Function: fn,
		Args:     args,
		Gas:      initial,
		Handler:  handler,
		Registry: e.reg,
		Trace:    e.trace,
	})
	if err != nil {
		e.metrics.observe(outcomeError, 0)
		return nil, fmt.Errorf("executor: invoke %s: %w", id, err)
	}

	consumed := uint64(0)
	if initial > result.RemainingGas {
		consumed = initial - result.RemainingGas
	}
	if result.Failure != nil {
		e.metrics.observe(outcomeTrap, consumed)
		e.logger.Debug("invocation trapped", "function", id.String(), "code", result.Failure.Code, "reason", result.Failure.Reason)
	} else {
		e.metrics.observe(outcomeOK, consumed)
	}
	e.record(id, initial, result, time.Since(start))
	return result, nil
}

func (e *AotNativeExecutor) record(id ids.FunctionId, gas uint64, result *values.ExecutionResult, d time.Duration) {
	if e.trace == nil {
		return
	}
	rec := trace.Invocation{Function: id.Id, Gas: gas, Remaining: result.RemainingGas, Duration: d}
	if result.Failure != nil {
		rec.Code = result.Failure.Code
	}
	if err := e.trace.Invocation(id.String(), rec); err != nil {
		e.logger.Warn("failed to record invocation", "function", id.String(), "error", err)
	}
}

// InvokeContractDynamic calls a contract entry point: calldata is wrapped
// into the single Struct{Array<felt252>} argument such entry points take.
func (e *AotNativeExecutor) InvokeContractDynamic(id ids.FunctionId, calldata []int64, gas *uint64, handler hostcall.Handler) (*values.ContractExecutionResult, error) {
	result, err := e.InvokeDynamicWithSyscallHandler(id, []values.Value{values.CalldataArgument(calldata)}, gas, handler)
	if err != nil {
		return nil, err
	}
	out, err := values.ContractResultFrom(result)
	if err != nil {
		return nil, fmt.Errorf("executor: invoke %s: %w", id, err)
	}
	return &out, nil
}

// FindFunctionPtr returns the entry point address of id. The address is only
// valid until Close.
func (e *AotNativeExecutor) FindFunctionPtr(id ids.FunctionId) (uintptr, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, ErrClosed
	}
	return e.lookup(id)
}

func (e *AotNativeExecutor) lookup(id ids.FunctionId) (uintptr, error) {
	symbol := ids.EntrySymbol(id)
	ptr, err := e.lib.Lookup(symbol)
	if err != nil {
		if errors.Is(err, ErrSymbolNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, symbol, err)
	}
	if ptr == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return ptr, nil
}

// Close waits for running invocations and unloads the artifact. Later calls
// fail with ErrClosed. Close is idempotent.
func (e *AotNativeExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	lib := e.lib
	e.lib = nil
	if err := lib.Close(); err != nil {
		return fmt.Errorf("executor: close artifact: %w", err)
	}
	return nil
}
