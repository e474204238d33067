package libfuncs

import (
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// BuildStructConstruct lays the members out back to back.
func BuildStructConstruct[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	entry.Append(helper.Br(0, concat(helper.Args()...)))
}

// BuildStructDeconstruct splits the struct words into its members.
func BuildStructDeconstruct[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	words := helper.Arg(0)
	results := helper.Results(0)
	members := make([]Slots, len(results))
	off := 0
	for i, r := range results {
		members[i] = VarSlots(words[off : off+len(r)])
		off += len(r)
	}
	entry.Append(helper.Br(0, members...))
}

// BuildEnumInit writes the variant tag followed by the payload, padded with
// zeros to the width of the widest variant.
func BuildEnumInit[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	_ *metadata.Storage,
	info L,
) error {
	idx, err := valueArg(loc, info, 1)
	if err != nil {
		return err
	}
	payload := helper.Arg(0)
	width := helper.ResultWords(0, 0)
	if 1+len(payload) > width {
		return newError(loc, LayoutMismatch, "variant %d needs %d words, enum has %d", idx, 1+len(payload), width)
	}
	words := Slots{ir.Int64(idx)}
	words = append(words, VarSlots(payload)...)
	for len(words) < width {
		words = append(words, ir.Int64(0))
	}
	entry.Append(helper.Br(0, words))
	return nil
}

// BuildEnumMatch branches on the tag word, handing each successor the
// payload words of its variant. Any tag not matching an earlier variant
// selects the last one.
func BuildEnumMatch[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	words := helper.Arg(0)
	tag, body := words[0], words[1:]
	payload := func(i int) Slots {
		return VarSlots(body[:helper.ResultWords(i, 0)])
	}

	n := helper.NumBranches()
	block := make(ir.Block, 0, n)
	for i := 0; i < n-1; i++ {
		block = append(block, ir.If(ir.IsEqual(tag, ir.Int64(int64(i))), helper.Br(i, payload(i))))
	}
	block = append(block, helper.Br(n-1, payload(n-1)))
	entry.Append(block)
}
