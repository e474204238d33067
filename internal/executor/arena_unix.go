//go:build linux || darwin

package executor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var errArenaExhausted = errors.New("invocation arena exhausted")

// arena is the memory shared with native code during one invocation: the
// argument, return and gas words, the runtime block, and every array
// allocated by the program. Allocation is a bump pointer; everything is
// released together.
type arena struct {
	mem  []byte
	base uint64
	used int
}

func newArena(size int) (*arena, error) {
	pageSize := unix.Getpagesize()
	size = ((size + pageSize - 1) / pageSize) * pageSize

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap invocation arena: %w", err)
	}
	return &arena{mem: mem, base: uint64(uintptr(unsafe.Pointer(&mem[0])))}, nil
}

func (a *arena) release() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}

// alloc reserves zeroed words and returns their address.
func (a *arena) alloc(words int) (uint64, error) {
	if words < 0 {
		return 0, fmt.Errorf("negative allocation of %d words", words)
	}
	size := words * 8
	if size > len(a.mem)-a.used {
		return 0, fmt.Errorf("%w: %d bytes requested, %d free", errArenaExhausted, size, len(a.mem)-a.used)
	}
	ptr := a.base + uint64(a.used)
	a.used += size
	return ptr, nil
}

func (a *arena) offset(ptr uint64, words int) (int, error) {
	if ptr < a.base || words < 0 {
		return 0, fmt.Errorf("address %#x outside invocation arena", ptr)
	}
	off := ptr - a.base
	if off%8 != 0 || off+uint64(words)*8 > uint64(a.used) {
		return 0, fmt.Errorf("range %#x+%d words outside invocation arena", ptr, words)
	}
	return int(off), nil
}

// Load implements hostcall.Memory.
func (a *arena) Load(ptr uint64, n int) ([]uint64, error) {
	off, err := a.offset(ptr, n)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.NativeEndian.Uint64(a.mem[off+i*8:])
	}
	return out, nil
}

// Store implements hostcall.Memory.
func (a *arena) Store(words []uint64) (uint64, error) {
	if len(words) == 0 {
		return 0, nil
	}
	ptr, err := a.alloc(len(words))
	if err != nil {
		return 0, err
	}
	return ptr, a.write(ptr, words)
}

func (a *arena) write(ptr uint64, words []uint64) error {
	off, err := a.offset(ptr, len(words))
	if err != nil {
		return err
	}
	for i, w := range words {
		binary.NativeEndian.PutUint64(a.mem[off+i*8:], w)
	}
	return nil
}

// realloc copies the first oldWords words at old into a fresh block of
// newWords words. It returns 0 when the arena cannot satisfy the request.
func (a *arena) realloc(old uint64, oldWords, newWords int) uint64 {
	if newWords < oldWords {
		return 0
	}
	var prev []uint64
	if oldWords > 0 {
		var err error
		if prev, err = a.Load(old, oldWords); err != nil {
			return 0
		}
	}
	ptr, err := a.alloc(newWords)
	if err != nil || ptr == 0 {
		return 0
	}
	if err := a.write(ptr, prev); err != nil {
		return 0
	}
	return ptr
}
