package trace

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tinyrange/aot/internal/hostcall"
)

// HostCall is one request made by native code through the runtime block.
type HostCall struct {
	Selector  hostcall.Selector
	Request   []uint64
	Response  []uint64
	Result    uint64
	GasBefore uint64
	GasAfter  uint64
}

func (c HostCall) String() string {
	status := "ok"
	if c.Result != hostcall.ResultOK {
		status = "revert"
	}
	return fmt.Sprintf("%s %v -> %s %v gas %d->%d", c.Selector, c.Request, status, c.Response, c.GasBefore, c.GasAfter)
}

func (c HostCall) encode() []byte {
	out := make([]byte, 0, 40+8*(len(c.Request)+len(c.Response)))
	out = binary.LittleEndian.AppendUint64(out, uint64(c.Selector))
	out = binary.LittleEndian.AppendUint64(out, c.Result)
	out = binary.LittleEndian.AppendUint64(out, c.GasBefore)
	out = binary.LittleEndian.AppendUint64(out, c.GasAfter)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Request)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Response)))
	for _, w := range c.Request {
		out = binary.LittleEndian.AppendUint64(out, w)
	}
	for _, w := range c.Response {
		out = binary.LittleEndian.AppendUint64(out, w)
	}
	return out
}

func DecodeHostCall(data []byte) (HostCall, error) {
	if len(data) < 40 {
		return HostCall{}, fmt.Errorf("trace: host call record of %d bytes", len(data))
	}
	c := HostCall{
		Selector:  hostcall.Selector(binary.LittleEndian.Uint64(data[0:])),
		Result:    binary.LittleEndian.Uint64(data[8:]),
		GasBefore: binary.LittleEndian.Uint64(data[16:]),
		GasAfter:  binary.LittleEndian.Uint64(data[24:]),
	}
	nreq := int(binary.LittleEndian.Uint32(data[32:]))
	nresp := int(binary.LittleEndian.Uint32(data[36:]))
	words := data[40:]
	if len(words) != 8*(nreq+nresp) {
		return HostCall{}, fmt.Errorf("trace: host call record has %d payload bytes, want %d", len(words), 8*(nreq+nresp))
	}
	c.Request = make([]uint64, nreq)
	for i := range c.Request {
		c.Request[i] = binary.LittleEndian.Uint64(words[8*i:])
	}
	c.Response = make([]uint64, nresp)
	for i := range c.Response {
		c.Response[i] = binary.LittleEndian.Uint64(words[8*(nreq+i):])
	}
	return c, nil
}

// Invocation summarises one completed call of an entry point.
type Invocation struct {
	Function  uint64
	Gas       uint64
	Remaining uint64
	// Code is the trap code, zero on success.
	Code     uint64
	Duration time.Duration
}

func (inv Invocation) String() string {
	outcome := "ok"
	if inv.Code != 0 {
		outcome = fmt.Sprintf("trap %d", inv.Code)
	}
	return fmt.Sprintf("f%d %s gas %d->%d in %s", inv.Function, outcome, inv.Gas, inv.Remaining, inv.Duration)
}

func (inv Invocation) encode() []byte {
	out := make([]byte, 0, 40)
	out = binary.LittleEndian.AppendUint64(out, inv.Function)
	out = binary.LittleEndian.AppendUint64(out, inv.Gas)
	out = binary.LittleEndian.AppendUint64(out, inv.Remaining)
	out = binary.LittleEndian.AppendUint64(out, inv.Code)
	out = binary.LittleEndian.AppendUint64(out, uint64(inv.Duration))
	return out
}

func DecodeInvocation(data []byte) (Invocation, error) {
	if len(data) != 40 {
		return Invocation{}, fmt.Errorf("trace: invocation record of %d bytes", len(data))
	}
	return Invocation{
		Function:  binary.LittleEndian.Uint64(data[0:]),
		Gas:       binary.LittleEndian.Uint64(data[8:]),
		Remaining: binary.LittleEndian.Uint64(data[16:]),
		Code:      binary.LittleEndian.Uint64(data[24:]),
		Duration:  time.Duration(binary.LittleEndian.Uint64(data[32:])),
	}, nil
}

// Describe renders the data of a record for display.
func Describe(kind Kind, data []byte) string {
	switch kind {
	case KindHostCall:
		if c, err := DecodeHostCall(data); err == nil {
			return c.String()
		}
	case KindInvocation:
		if inv, err := DecodeInvocation(data); err == nil {
			return inv.String()
		}
	case KindMessage:
		return string(data)
	}
	return fmt.Sprintf("%x", data)
}
