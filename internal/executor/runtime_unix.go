//go:build linux || darwin

package executor

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/trace"
	"github.com/tinyrange/aot/internal/values"
)

// Native code reaches Go through two callbacks shared by every invocation in
// the process. The runtime block passed to each entry point carries a handle
// selecting the session of that invocation.

var (
	callbacksOnce    sync.Once
	reallocCallback  uintptr
	hostCallCallback uintptr

	sessions    sync.Map // uintptr -> *session
	nextSession atomic.Uint64
)

type session struct {
	arena   *arena
	handler hostcall.Handler
	logger  *slog.Logger

	// trace, when set, receives every host call under source.
	trace  *trace.Writer
	source string
}

func runtimeCallbacks() (realloc, hostCall uintptr) {
	callbacksOnce.Do(func() {
		reallocCallback = purego.NewCallback(func(handle, old, oldWords, newWords uintptr) uintptr {
			s, ok := lookupSession(handle)
			if !ok {
				return 0
			}
			return uintptr(s.arena.realloc(uint64(old), int(oldWords), int(newWords)))
		})
		hostCallCallback = purego.NewCallback(func(handle, selector, req, resp, gas uintptr) uintptr {
			s, ok := lookupSession(handle)
			if !ok {
				return uintptr(hostcall.ResultRevert)
			}
			return uintptr(s.hostCall(hostcall.Selector(selector), req, resp, uint64(gas)))
		})
	})
	return reallocCallback, hostCallCallback
}

func openSession(s *session) uintptr {
	handle := uintptr(nextSession.Add(1))
	sessions.Store(handle, s)
	return handle
}

func closeSession(handle uintptr) {
	sessions.Delete(handle)
}

func lookupSession(handle uintptr) (*session, bool) {
	v, ok := sessions.Load(handle)
	if !ok {
		return nil, false
	}
	return v.(*session), true
}

// nativeWords views n words of native stack memory owned by the caller of
// the callback.
func nativeWords(ptr uintptr, n int) []uint64 {
	if n == 0 || ptr == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(ptr)), n)
}

func (s *session) hostCall(sel hostcall.Selector, req, resp uintptr, gasPtr uint64) (result uint64) {
	out := nativeWords(resp, hostcall.ResponseWords(sel))
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("host call handler panicked", "selector", sel.String(), "panic", fmt.Sprint(r))
			msg := toWords(values.EncodeShortStrings("host handler panicked"))
			ptr, err := s.arena.Store(msg)
			if err != nil {
				ptr, msg = 0, nil
			}
			out[0], out[1] = ptr, uint64(len(msg))
			result = hostcall.ResultRevert
		}
	}()

	layout, _ := hostcall.LayoutOf(sel)
	request := append([]uint64(nil), nativeWords(req, layout.Request)...)

	gasWord, err := s.arena.Load(gasPtr, 1)
	if err != nil {
		out[0], out[1] = 0, 0
		return hostcall.ResultRevert
	}
	gas := gasWord[0]

	words, code := hostcall.Dispatch(s.handler, s.arena, sel, request, &gas)
	copy(out, words)
	if s.trace != nil {
		rec := trace.HostCall{Selector: sel, Request: request, Response: words, Result: code, GasBefore: gasWord[0], GasAfter: gas}
		if err := s.trace.HostCall(s.source, rec); err != nil {
			s.logger.Warn("failed to record host call", "error", err)
		}
	}
	if err := s.arena.write(gasPtr, []uint64{gas}); err != nil {
		return hostcall.ResultRevert
	}
	return code
}

func toWords(data []int64) []uint64 {
	out := make([]uint64, len(data))
	for i, v := range data {
		out[i] = uint64(v)
	}
	return out
}

// runtimeBlock allocates the block described by metadata.RuntimeWords.
func (s *session) runtimeBlock(handle uintptr) (uint64, error) {
	realloc, hostCall := runtimeCallbacks()
	block := make([]uint64, metadata.RuntimeWords)
	block[metadata.RuntimeHandleWord] = uint64(handle)
	block[metadata.RuntimeReallocWord] = uint64(realloc)
	block[metadata.RuntimeHostCallWord] = uint64(hostCall)
	return s.arena.Store(block)
}
