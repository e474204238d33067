package hostcall

import (
	"errors"
	"fmt"

	"github.com/tinyrange/aot/internal/values"
)

// Selector identifies a host operation on the native boundary.
type Selector uint64

const (
	SelectorStorageRead Selector = iota + 1
	SelectorStorageWrite
	SelectorEmitEvent
	SelectorCallContract
	SelectorGetBlockNumber
)

func (s Selector) String() string {
	switch s {
	case SelectorStorageRead:
		return "storage_read"
	case SelectorStorageWrite:
		return "storage_write"
	case SelectorEmitEvent:
		return "emit_event"
	case SelectorCallContract:
		return "call_contract"
	case SelectorGetBlockNumber:
		return "get_block_number"
	default:
		return fmt.Sprintf("selector(%d)", uint64(s))
	}
}

// Layout is the number of request and success-response words of a
// selector. Arrays occupy two words (pointer, length).
type Layout struct {
	Request  int
	Response int
}

var layouts = map[Selector]Layout{
	SelectorStorageRead:    {Request: 2, Response: 1},
	SelectorStorageWrite:   {Request: 3, Response: 0},
	SelectorEmitEvent:      {Request: 4, Response: 0},
	SelectorCallContract:   {Request: 4, Response: 2},
	SelectorGetBlockNumber: {Request: 0, Response: 1},
}

// RevertWords is the size of a failure response: the revert array header.
const RevertWords = 2

// LayoutOf returns the word layout of s.
func LayoutOf(s Selector) (Layout, bool) {
	l, ok := layouts[s]
	return l, ok
}

// ResponseWords is the buffer size a caller must reserve for s.
func ResponseWords(s Selector) int {
	return max(layouts[s].Response, RevertWords)
}

// Memory gives the dispatcher access to arrays living in native memory.
type Memory interface {
	// Load reads n words starting at ptr.
	Load(ptr uint64, n int) ([]uint64, error)
	// Store copies words into freshly allocated native memory.
	Store(words []uint64) (uint64, error)
}

// Result codes returned to native code.
const (
	ResultOK     uint64 = 0
	ResultRevert uint64 = 1
)

// Dispatch routes one request to h. It returns the response words and a
// result code. A failing handler yields ResultRevert with the revert array
// header as response; errors are never returned to native code directly.
func Dispatch(h Handler, mem Memory, sel Selector, req []uint64, gas *uint64) ([]uint64, uint64) {
	resp, err := dispatch(h, mem, sel, req, gas)
	if err == nil {
		return resp, ResultOK
	}

	var data []int64
	var revert *Revert
	if errors.As(err, &revert) {
		data = revert.Data
	} else {
		data = values.EncodeShortStrings(err.Error())
	}
	words := make([]uint64, len(data))
	for i, v := range data {
		words[i] = uint64(v)
	}
	ptr, storeErr := mem.Store(words)
	if storeErr != nil {
		return []uint64{0, 0}, ResultRevert
	}
	return []uint64{ptr, uint64(len(words))}, ResultRevert
}

func dispatch(h Handler, mem Memory, sel Selector, req []uint64, gas *uint64) ([]uint64, error) {
	layout, ok := layouts[sel]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sel, ErrUnsupported)
	}
	if len(req) != layout.Request {
		return nil, fmt.Errorf("%s: request has %d words, want %d", sel, len(req), layout.Request)
	}

	switch sel {
	case SelectorStorageRead:
		v, err := h.StorageRead(uint32(req[0]), int64(req[1]), gas)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(v)}, nil
	case SelectorStorageWrite:
		return nil, h.StorageWrite(uint32(req[0]), int64(req[1]), int64(req[2]), gas)
	case SelectorEmitEvent:
		keys, err := loadArray(mem, req[0], req[1])
		if err != nil {
			return nil, err
		}
		data, err := loadArray(mem, req[2], req[3])
		if err != nil {
			return nil, err
		}
		return nil, h.EmitEvent(keys, data, gas)
	case SelectorCallContract:
		calldata, err := loadArray(mem, req[2], req[3])
		if err != nil {
			return nil, err
		}
		ret, err := h.CallContract(int64(req[0]), int64(req[1]), calldata, gas)
		if err != nil {
			return nil, err
		}
		words := make([]uint64, len(ret))
		for i, v := range ret {
			words[i] = uint64(v)
		}
		ptr, err := mem.Store(words)
		if err != nil {
			return nil, err
		}
		return []uint64{ptr, uint64(len(words))}, nil
	case SelectorGetBlockNumber:
		n, err := h.GetBlockNumber(gas)
		if err != nil {
			return nil, err
		}
		return []uint64{n}, nil
	}
	return nil, fmt.Errorf("%s: %w", sel, ErrUnsupported)
}

func loadArray(mem Memory, ptr, n uint64) ([]int64, error) {
	if n == 0 {
		return nil, nil
	}
	words, err := mem.Load(ptr, int(n))
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(words))
	for i, w := range words {
		out[i] = int64(w)
	}
	return out, nil
}
