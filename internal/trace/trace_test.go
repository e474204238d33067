package trace

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/hostcall"
)

func readAll(t *testing.T, buf *Buffer) []Record {
	t.Helper()
	r, err := NewReader(buf, int64(buf.Len()))
	require.NoError(t, err)
	var out []Record
	require.NoError(t, r.Each(func(rec Record) error {
		out = append(out, rec)
		return nil
	}))
	return out
}

func TestMessageOrdering(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)
	fixed := time.Unix(100, 0)
	w.now = func() time.Time { return fixed }

	for i := 0; i < 10; i++ {
		require.NoError(t, w.Messagef("fn_double", "message %d", i))
	}

	recs := readAll(t, buf)
	require.Len(t, recs, 10)
	for i, rec := range recs {
		assert.Equal(t, KindMessage, rec.Kind)
		assert.Equal(t, "fn_double", rec.Source)
		assert.Equal(t, fmt.Sprintf("message %d", i), string(rec.Data))
		assert.True(t, fixed.Equal(rec.Time))
	}
}

func TestConcurrentWritersKeepTimestampOrder(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, w.Messagef(fmt.Sprintf("worker%d", i), "tick"))
			}
		}()
	}
	wg.Wait()

	recs := readAll(t, buf)
	require.Len(t, recs, 40)
	for i := 0; i < len(recs)-1; i++ {
		assert.False(t, recs[i].Time.After(recs[i+1].Time), "record %d", i)
	}
}

func TestRecordsRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace")
	w, err := Create(path)
	require.NoError(t, err)

	call := HostCall{
		Selector:  hostcall.SelectorStorageRead,
		Request:   []uint64{0, 5},
		Response:  []uint64{77},
		Result:    hostcall.ResultOK,
		GasBefore: 100,
		GasAfter:  97,
	}
	inv := Invocation{Function: 3, Gas: 100, Remaining: 97, Duration: time.Millisecond}
	require.NoError(t, w.HostCall("entry", call))
	require.NoError(t, w.Invocation("entry", inv))
	require.NoError(t, w.Close())

	r, closer, err := Open(path)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, []string{"entry"}, r.Sources())
	var kinds []Kind
	require.NoError(t, r.Each(func(rec Record) error {
		kinds = append(kinds, rec.Kind)
		switch rec.Kind {
		case KindHostCall:
			got, err := DecodeHostCall(rec.Data)
			require.NoError(t, err)
			assert.Equal(t, call, got)
		case KindInvocation:
			got, err := DecodeInvocation(rec.Data)
			require.NoError(t, err)
			assert.Equal(t, inv, got)
		}
		return nil
	}))
	assert.Equal(t, []Kind{KindHostCall, KindInvocation}, kinds)
}

func TestSearchFilters(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)
	clock := time.Unix(0, 0)
	w.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, w.Messagef("a", "1"))
	require.NoError(t, w.Invocation("b", Invocation{Function: 1}))
	require.NoError(t, w.Messagef("a", "3"))
	require.NoError(t, w.Messagef("b", "4"))

	r, err := NewReader(buf, int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Sources())

	start, end := r.TimeRange()
	assert.Equal(t, time.Unix(1, 0), start)
	assert.Equal(t, time.Unix(4, 0), end)

	count := func(opts SearchOptions) int {
		n, err := r.Count(opts)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, 4, count(SearchOptions{}))
	assert.Equal(t, 2, count(SearchOptions{Sources: []string{"a"}}))
	assert.Equal(t, 1, count(SearchOptions{Kinds: []Kind{KindInvocation}}))
	assert.Equal(t, 2, count(SearchOptions{Start: time.Unix(2, 0), End: time.Unix(3, 0)}))
	assert.Equal(t, 3, count(SearchOptions{Limit: 3}))

	var data []string
	require.NoError(t, r.Search(SearchOptions{Sources: []string{"b", "a"}, Kinds: []Kind{KindMessage}}, func(rec Record) error {
		data = append(data, string(rec.Data))
		return nil
	}))
	assert.Equal(t, []string{"1", "3", "4"}, data)
}

func TestReaderRejectsCorruptTrace(t *testing.T) {
	buf := &Buffer{}
	_, err := buf.WriteAt(make([]byte, headerSize), 0)
	require.NoError(t, err)
	_, err = NewReader(buf, int64(buf.Len()))
	assert.Error(t, err)

	buf = &Buffer{}
	require.NoError(t, NewWriter(buf).Messagef("src", "payload"))
	_, err = NewReader(buf, int64(buf.Len()-2))
	assert.Error(t, err)
}

func TestDecodeRejectsShortRecords(t *testing.T) {
	_, err := DecodeHostCall(make([]byte, 12))
	assert.Error(t, err)
	bad := HostCall{Request: []uint64{1}}.encode()
	_, err = DecodeHostCall(bad[:len(bad)-1])
	assert.Error(t, err)
	_, err = DecodeInvocation(make([]byte, 39))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	c := HostCall{Selector: hostcall.SelectorGetBlockNumber, Response: []uint64{9}, Result: hostcall.ResultOK, GasBefore: 5, GasAfter: 5}
	assert.Equal(t, "get_block_number [] -> ok [9] gas 5->5", Describe(KindHostCall, c.encode()))
	assert.Equal(t, "f2 trap 256 gas 10->4 in 0s", Describe(KindInvocation, Invocation{Function: 2, Gas: 10, Remaining: 4, Code: 256}.encode()))
	assert.Equal(t, "hi", Describe(KindMessage, []byte("hi")))
}

func BenchmarkWriteMessage(b *testing.B) {
	w := NewWriter(&Buffer{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Messagef("bench", "hello, world")
	}
}
