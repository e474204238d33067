package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

type SearchOptions struct {
	// The start and end timestamps to search within.
	Start time.Time
	End   time.Time

	// Limit only returns the first N matching records.
	Limit int

	// Only return records for the given sources.
	Sources []string
	// Only return records of the given kinds.
	Kinds []Kind
}

// Record is one decoded trace entry.
type Record struct {
	Time   time.Time
	Kind   Kind
	Source string
	Data   []byte
}

type indexEntry struct {
	offset   int64
	unixNano int64
	kind     Kind
}

// Reader indexes a trace by source.
type Reader struct {
	r io.ReaderAt

	index   map[string][]indexEntry
	sources []string

	earliest int64
	latest   int64
}

func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	ret := &Reader{
		r:     r,
		index: make(map[string][]indexEntry),
	}
	if err := ret.indexAll(io.NewSectionReader(r, 0, size)); err != nil {
		return nil, fmt.Errorf("trace: index: %w", err)
	}
	return ret, nil
}

// Open indexes the trace at path. The returned Closer releases the file.
func Open(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("trace: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("trace: %w", err)
	}
	r, err := NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return r, f, nil
}

func (r *Reader) indexAll(in io.Reader) error {
	var header [headerSize]byte
	source := make([]byte, 0xffff)
	br := bufio.NewReaderSize(in, 1<<20)

	var offset int64
	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read header at %d: %w", offset, err)
		}
		kind, sourceLength, dataLength, ts := decodeHeader(header)
		if kind == KindInvalid {
			return fmt.Errorf("invalid record at %d", offset)
		}
		if r.earliest == 0 || ts < r.earliest {
			r.earliest = ts
		}
		if ts > r.latest {
			r.latest = ts
		}

		if _, err := io.ReadFull(br, source[:sourceLength]); err != nil {
			return fmt.Errorf("read source at %d: %w", offset, err)
		}
		if _, err := br.Discard(int(dataLength)); err != nil {
			return fmt.Errorf("skip data at %d: %w", offset, err)
		}

		name := string(source[:sourceLength])
		if _, ok := r.index[name]; !ok {
			r.sources = append(r.sources, name)
		}
		r.index[name] = append(r.index[name], indexEntry{offset: offset, unixNano: ts, kind: kind})

		offset += headerSize + int64(sourceLength) + int64(dataLength)
	}
}

// Search calls fn for every matching record, ordered by timestamp and then
// by position in the trace.
func (r *Reader) Search(opts SearchOptions, fn func(Record) error) error {
	type match struct {
		source string
		entry  indexEntry
	}
	var matches []match

	sources := r.sources
	if len(opts.Sources) > 0 {
		sources = opts.Sources
	}
	kinds := make(map[Kind]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds[k] = true
	}

	for _, source := range sources {
		for _, e := range r.index[source] {
			ts := time.Unix(0, e.unixNano)
			if !opts.Start.IsZero() && ts.Before(opts.Start) {
				continue
			}
			if !opts.End.IsZero() && ts.After(opts.End) {
				continue
			}
			if len(kinds) > 0 && !kinds[e.kind] {
				continue
			}
			matches = append(matches, match{source: source, entry: e})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].entry, matches[j].entry
		if a.unixNano != b.unixNano {
			return a.unixNano < b.unixNano
		}
		return a.offset < b.offset
	})
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}

	for _, m := range matches {
		var header [headerSize]byte
		if _, err := r.r.ReadAt(header[:], m.entry.offset); err != nil {
			return err
		}
		kind, sourceLength, dataLength, _ := decodeHeader(header)
		data := make([]byte, dataLength)
		if dataLength > 0 {
			if _, err := r.r.ReadAt(data, m.entry.offset+headerSize+int64(sourceLength)); err != nil {
				return err
			}
		}
		if err := fn(Record{Time: time.Unix(0, m.entry.unixNano), Kind: kind, Source: m.source, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) Each(fn func(Record) error) error {
	return r.Search(SearchOptions{}, fn)
}

// Count returns the number of records matching opts.
func (r *Reader) Count(opts SearchOptions) (int, error) {
	n := 0
	err := r.Search(opts, func(Record) error {
		n++
		return nil
	})
	return n, err
}

// Sources returns every source in the order it first appeared.
func (r *Reader) Sources() []string {
	return append([]string(nil), r.sources...)
}

func (r *Reader) TimeRange() (time.Time, time.Time) {
	return time.Unix(0, r.earliest), time.Unix(0, r.latest)
}
