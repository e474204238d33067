//go:build linux || darwin

package executor

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/ebitengine/purego"

	"github.com/tinyrange/aot/internal/values"
)

type nativeInvoker struct {
	arenaSize int
	logger    *slog.Logger
}

// NewNativeInvoker returns the invocation core calling entry points through
// purego. Each invocation gets a private arena of arenaSize bytes.
func NewNativeInvoker(arenaSize int) Invoker {
	if arenaSize <= 0 {
		arenaSize = DefaultArenaSize
	}
	return &nativeInvoker{arenaSize: arenaSize, logger: slog.Default()}
}

func (n *nativeInvoker) Invoke(inv Invocation) (*values.ExecutionResult, error) {
	a, err := newArena(n.arenaSize)
	if err != nil {
		return nil, err
	}
	defer a.release()

	m := &marshaler{reg: inv.Registry, mem: a}
	sig := inv.Function.Signature

	argWords, err := m.encodeArgs(sig.ParamTypes, inv.Args)
	if err != nil {
		return nil, err
	}
	retCount, err := m.frameWords(sig.RetTypes)
	if err != nil {
		return nil, err
	}

	argsPtr, err := a.Store(argWords)
	if err != nil {
		return nil, err
	}
	retsPtr, err := a.alloc(max(retCount, 1))
	if err != nil {
		return nil, err
	}
	gasPtr, err := a.Store([]uint64{inv.Gas})
	if err != nil {
		return nil, err
	}

	s := &session{arena: a, handler: inv.Handler, logger: n.logger, trace: inv.Trace, source: inv.Function.Id.String()}
	handle := openSession(s)
	defer closeSession(handle)
	rtPtr, err := s.runtimeBlock(handle)
	if err != nil {
		return nil, err
	}

	// Host callbacks run on this goroutine; keep it on one thread for the
	// duration of the native call.
	runtime.LockOSThread()
	code, _, _ := purego.SyscallN(inv.Entry, uintptr(argsPtr), uintptr(retsPtr), uintptr(gasPtr), uintptr(rtPtr))
	runtime.UnlockOSThread()

	gasWords, err := a.Load(gasPtr, 1)
	if err != nil {
		return nil, err
	}
	result := &values.ExecutionResult{RemainingGas: gasWords[0]}
	if code != 0 {
		result.Failure = &values.Failure{Code: uint64(code), Reason: values.TrapReason(uint64(code))}
		return result, nil
	}

	retWords, err := a.Load(retsPtr, retCount)
	if err != nil {
		return nil, err
	}
	if result.ReturnValues, err = m.decodeRets(sig.RetTypes, retWords); err != nil {
		return nil, fmt.Errorf("decode results of %s: %w", inv.Function.Id, err)
	}
	return result, nil
}
