package libfuncs

import (
	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
)

func valueArg[L Libfunc](loc Location, info L, i int) (int64, error) {
	args := info.Args()
	if i >= len(args) || args[i].Value == nil {
		return 0, newError(loc, InvalidSignature, "%s: generic argument %d must be a value", info.GenericId(), i)
	}
	return *args[i].Value, nil
}

func functionArg[L Libfunc](loc Location, info L, i int) (ids.FunctionId, error) {
	args := info.Args()
	if i >= len(args) || args[i].Function == nil {
		return ids.FunctionId{}, newError(loc, InvalidSignature, "%s: generic argument %d must be a function", info.GenericId(), i)
	}
	return *args[i].Function, nil
}

// concat flattens the words of several values.
func concat(parts ...[]ir.Var) Slots {
	var out Slots
	for _, p := range parts {
		out = append(out, VarSlots(p)...)
	}
	return out
}
