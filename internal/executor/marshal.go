package executor

import (
	"fmt"

	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

// marshaler converts value trees to and from the word layout used by
// compiled code. Array elements live in mem.
type marshaler struct {
	reg types.Resolver
	mem hostcall.Memory
}

func (m *marshaler) slots(id ids.ConcreteTypeId) (int, error) {
	l, err := types.SlotsOf(m.reg, id)
	if err != nil {
		return 0, err
	}
	return l.Slots, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}

// encode appends the words of v, typed as id, to out.
func (m *marshaler) encode(out []uint64, v values.Value, id ids.ConcreteTypeId) ([]uint64, error) {
	ty, err := m.reg.ResolveType(id)
	if err != nil {
		return nil, err
	}

	switch ty.Kind() {
	case types.KindScalar:
		s, ok := v.(values.Scalar)
		if !ok {
			return nil, invalidf("%s expects a scalar, got %T", id, v)
		}
		return append(out, uint64(s)), nil

	case types.KindU64:
		u, ok := v.(values.U64)
		if !ok {
			return nil, invalidf("%s expects a u64, got %T", id, v)
		}
		return append(out, uint64(u)), nil

	case types.KindNonZero:
		start := len(out)
		out, err = m.encode(out, v, ty.Members()[0])
		if err != nil {
			return nil, err
		}
		for _, w := range out[start:] {
			if w != 0 {
				return out, nil
			}
		}
		return nil, invalidf("%s must not be zero", id)

	case types.KindStruct:
		s, ok := v.(values.Struct)
		if !ok {
			return nil, invalidf("%s expects a struct, got %T", id, v)
		}
		members := ty.Members()
		if len(s.Fields) != len(members) {
			return nil, invalidf("%s has %d fields, got %d", id, len(members), len(s.Fields))
		}
		for i, f := range s.Fields {
			if out, err = m.encode(out, f, members[i]); err != nil {
				return nil, err
			}
		}
		return out, nil

	case types.KindEnum:
		e, ok := v.(values.Enum)
		if !ok {
			return nil, invalidf("%s expects an enum, got %T", id, v)
		}
		variants := ty.Members()
		if e.Tag < 0 || e.Tag >= len(variants) {
			return nil, invalidf("%s has %d variants, got tag %d", id, len(variants), e.Tag)
		}
		width, err := m.slots(id)
		if err != nil {
			return nil, err
		}
		start := len(out)
		out = append(out, uint64(e.Tag))
		if out, err = m.encode(out, e.Payload, variants[e.Tag]); err != nil {
			return nil, err
		}
		for len(out)-start < width {
			out = append(out, 0)
		}
		return out, nil

	case types.KindArray:
		a, ok := v.(values.Array)
		if !ok {
			return nil, invalidf("%s expects an array, got %T", id, v)
		}
		var elems []uint64
		for _, el := range a.Elems {
			if elems, err = m.encode(elems, el, ty.Members()[0]); err != nil {
				return nil, err
			}
		}
		var ptr uint64
		if len(elems) > 0 {
			if ptr, err = m.mem.Store(elems); err != nil {
				return nil, err
			}
		}
		return append(out, ptr, uint64(len(a.Elems))), nil

	default:
		return nil, fmt.Errorf("executor: cannot marshal %s of kind %s", id, ty.Kind())
	}
}

// decode reads one value typed as id from the front of words and returns it
// with the number of words consumed.
func (m *marshaler) decode(words []uint64, id ids.ConcreteTypeId) (values.Value, int, error) {
	ty, err := m.reg.ResolveType(id)
	if err != nil {
		return nil, 0, err
	}
	width, err := m.slots(id)
	if err != nil {
		return nil, 0, err
	}
	if len(words) < width {
		return nil, 0, fmt.Errorf("executor: %s needs %d words, %d left", id, width, len(words))
	}

	switch ty.Kind() {
	case types.KindScalar:
		return values.Scalar(int64(words[0])), 1, nil

	case types.KindU64:
		return values.U64(words[0]), 1, nil

	case types.KindNonZero:
		return m.decode(words, ty.Members()[0])

	case types.KindStruct:
		s := values.Struct{DebugName: id.DebugName}
		off := 0
		for _, member := range ty.Members() {
			f, n, err := m.decode(words[off:], member)
			if err != nil {
				return nil, 0, err
			}
			s.Fields = append(s.Fields, f)
			off += n
		}
		return s, off, nil

	case types.KindEnum:
		variants := ty.Members()
		tag := words[0]
		if tag >= uint64(len(variants)) {
			return nil, 0, fmt.Errorf("executor: %s returned tag %d of %d variants", id, tag, len(variants))
		}
		payload, _, err := m.decode(words[1:], variants[tag])
		if err != nil {
			return nil, 0, err
		}
		return values.Enum{Tag: int(tag), Payload: payload, DebugName: id.DebugName}, width, nil

	case types.KindArray:
		ptr, n := words[0], words[1]
		elem := ty.Members()[0]
		es, err := m.slots(elem)
		if err != nil {
			return nil, 0, err
		}
		a := values.Array{Elems: []values.Value{}}
		var data []uint64
		if n > 0 && es > 0 {
			if data, err = m.mem.Load(ptr, int(n)*es); err != nil {
				return nil, 0, err
			}
		} else {
			data = make([]uint64, 0)
		}
		for i := uint64(0); i < n; i++ {
			el, _, err := m.decode(data[int(i)*es:], elem)
			if err != nil {
				return nil, 0, err
			}
			a.Elems = append(a.Elems, el)
		}
		return a, types.ArrayHeaderSlots, nil

	default:
		return nil, 0, fmt.Errorf("executor: cannot unmarshal %s of kind %s", id, ty.Kind())
	}
}

// encodeArgs lays the arguments of fn out back to back.
func (m *marshaler) encodeArgs(paramTypes []ids.ConcreteTypeId, args []values.Value) ([]uint64, error) {
	if len(args) != len(paramTypes) {
		return nil, invalidf("function takes %d arguments, got %d", len(paramTypes), len(args))
	}
	var out []uint64
	for i, a := range args {
		var err error
		if out, err = m.encode(out, a, paramTypes[i]); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return out, nil
}

// decodeRets reads the return values laid out back to back.
func (m *marshaler) decodeRets(retTypes []ids.ConcreteTypeId, words []uint64) ([]values.Value, error) {
	out := make([]values.Value, 0, len(retTypes))
	off := 0
	for i, ty := range retTypes {
		v, n, err := m.decode(words[off:], ty)
		if err != nil {
			return nil, fmt.Errorf("return value %d: %w", i, err)
		}
		out = append(out, v)
		off += n
	}
	return out, nil
}

// frameWords is the number of words occupied by values of tys.
func (m *marshaler) frameWords(tys []ids.ConcreteTypeId) (int, error) {
	total := 0
	for _, ty := range tys {
		n, err := m.slots(ty)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
