// Package trace records what compiled programs ask of the host.
package trace

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// A trace is a sequence of records:
//   - 2 bytes kind
//   - 2 bytes source length
//   - 4 bytes data length
//   - 8 bytes timestamp (nanoseconds since epoch)
//   - sourceLength bytes source
//   - dataLength bytes data
//
// All integers are little endian. Writers reserve space by atomically
// advancing the file offset, so concurrent invocations can share one trace.

const headerSize = 16

type Kind uint16

const (
	KindInvalid Kind = iota
	KindMessage
	KindHostCall
	KindInvocation
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindHostCall:
		return "host_call"
	case KindInvocation:
		return "invocation"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// WriterAtCloser is the storage a Writer appends to.
type WriterAtCloser interface {
	io.WriterAt
	io.Closer
}

// Writer appends records. It is safe for concurrent use.
type Writer struct {
	w      WriterAtCloser
	offset atomic.Int64
	now    func() time.Time
}

func NewWriter(w WriterAtCloser) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Create truncates path and returns a Writer appending to it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return NewWriter(f), nil
}

func encodeHeader(kind Kind, source string, data []byte, ts time.Time) []byte {
	header := make([]byte, headerSize, headerSize+len(source)+len(data))
	binary.LittleEndian.PutUint16(header[0:2], uint16(kind))
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(source)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint64(header[8:16], uint64(ts.UnixNano()))
	return header
}

func decodeHeader(header [headerSize]byte) (kind Kind, sourceLength uint16, dataLength uint32, ts int64) {
	kind = Kind(binary.LittleEndian.Uint16(header[0:2]))
	sourceLength = binary.LittleEndian.Uint16(header[2:4])
	dataLength = binary.LittleEndian.Uint32(header[4:8])
	ts = int64(binary.LittleEndian.Uint64(header[8:16]))
	return
}

// Write appends one record.
func (w *Writer) Write(kind Kind, source string, data []byte) error {
	if kind == KindInvalid {
		return fmt.Errorf("trace: invalid record kind")
	}
	if len(source) > 0xffff {
		return fmt.Errorf("trace: source of %d bytes is too long", len(source))
	}
	record := append(encodeHeader(kind, source, data, w.now()), source...)
	record = append(record, data...)

	size := int64(len(record))
	off := w.offset.Add(size) - size
	if _, err := w.w.WriteAt(record, off); err != nil {
		return fmt.Errorf("trace: write record: %w", err)
	}
	return nil
}

func (w *Writer) Messagef(source, format string, args ...any) error {
	return w.Write(KindMessage, source, fmt.Appendf(nil, format, args...))
}

func (w *Writer) HostCall(source string, c HostCall) error {
	return w.Write(KindHostCall, source, c.encode())
}

func (w *Writer) Invocation(source string, inv Invocation) error {
	return w.Write(KindInvocation, source, inv.encode())
}

func (w *Writer) Close() error {
	return w.w.Close()
}

// Buffer is an in-memory trace. It implements io.WriterAt and io.ReaderAt.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if end := int(off) + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	return copy(b.data[off:], p), nil
}

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *Buffer) Close() error { return nil }
