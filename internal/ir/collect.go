package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Params returns the parameters declared by m in declaration order.
func Params(m Method) []string {
	var params []string
	for _, f := range m {
		if p, ok := f.(DeclareParam); ok {
			params = append(params, string(p))
		}
	}
	return params
}

// Locals returns every variable referenced by m that is not a parameter,
// sorted by name.
func Locals(m Method) []string {
	vars := make(map[string]struct{})
	collectVariables(Block(m), vars)
	delete(vars, "")
	for _, p := range Params(m) {
		delete(vars, p)
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectVariables(f Fragment, vars map[string]struct{}) {
	switch v := f.(type) {
	case nil:
	case Block:
		for _, inner := range v {
			collectVariables(inner, vars)
		}
	case Method:
		collectVariables(Block(v), vars)
	case Var:
		vars[string(v)] = struct{}{}
	case MemVar:
		vars[string(v.Base)] = struct{}{}
		if v.Disp != nil {
			collectVariables(v.Disp, vars)
		}
	case DeclareParam:
		vars[string(v)] = struct{}{}
	case AssignFragment:
		collectVariables(v.Dst, vars)
		collectVariables(v.Src, vars)
	case OpFragment:
		collectVariables(v.Left, vars)
		collectVariables(v.Right, vars)
	case IfFragment:
		collectConditionVars(v.Cond, vars)
		collectVariables(v.Then, vars)
		if v.Otherwise != nil {
			collectVariables(v.Otherwise, vars)
		}
	case LabelFragment:
		collectVariables(v.Block, vars)
	case ReturnFragment:
		collectVariables(v.Value, vars)
	case CallFragment:
		collectVariables(v.Target, vars)
		for _, arg := range v.Args {
			collectVariables(arg, vars)
		}
		if v.Result != "" {
			vars[string(v.Result)] = struct{}{}
		}
	case BranchFragment:
		for _, mv := range v.Moves {
			vars[string(mv.Dst)] = struct{}{}
			collectVariables(mv.Src, vars)
		}
	case StackSlotFragment:
		collectVariables(v.Body, vars)
	default:
	}
}

func collectConditionVars(cond Condition, vars map[string]struct{}) {
	switch cv := cond.(type) {
	case CompareCondition:
		collectVariables(cv.Left, vars)
		collectVariables(cv.Right, vars)
	case IsNegativeCondition:
		collectVariables(cv.Value, vars)
	case IsZeroCondition:
		collectVariables(cv.Value, vars)
	default:
	}
}

// StackSlots returns the stack slots declared anywhere in m.
func StackSlots(m Method) []StackSlotFragment {
	var out []StackSlotFragment
	var walk func(f Fragment)
	walk = func(f Fragment) {
		switch v := f.(type) {
		case Block:
			for _, inner := range v {
				walk(inner)
			}
		case LabelFragment:
			walk(v.Block)
		case IfFragment:
			walk(v.Then)
			walk(v.Otherwise)
		case StackSlotFragment:
			out = append(out, v)
			walk(v.Body)
		}
	}
	walk(Block(m))
	return out
}

// PackABIVersion encodes a semantic version as major<<32 | minor<<16 | patch
// so an artifact can report it through a plain integer-returning symbol.
func PackABIVersion(v string) (uint64, error) {
	if !semver.IsValid(v) {
		return 0, fmt.Errorf("ir: invalid ABI version %q", v)
	}
	canon := strings.TrimPrefix(semver.Canonical(v), "v")
	if i := strings.IndexAny(canon, "-+"); i >= 0 {
		canon = canon[:i]
	}
	parts := strings.SplitN(canon, ".", 3)
	var packed uint64
	for i, shift := range []uint{32, 16, 0} {
		n, err := strconv.ParseUint(parts[i], 10, 16)
		if err != nil {
			return 0, fmt.Errorf("ir: ABI version component %q: %w", parts[i], err)
		}
		packed |= n << shift
	}
	return packed, nil
}

// UnpackABIVersion is the inverse of PackABIVersion.
func UnpackABIVersion(packed uint64) string {
	return fmt.Sprintf("v%d.%d.%d", packed>>32&0xffff, packed>>16&0xffff, packed&0xffff)
}
