package libfuncs

import (
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// BuildJump lowers an unconditional jump: a single branch to successor 0
// carrying no values.
func BuildJump[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	entry.Append(helper.Br(0))
}
