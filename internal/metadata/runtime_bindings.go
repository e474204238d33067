package metadata

import (
	"github.com/tinyrange/aot/internal/ir"
)

// Shared helper methods emitted into a module the first time a lowering
// procedure needs to leave native code.
const (
	RuntimeReallocMethod  = "aot_rt_realloc"
	RuntimeHostCallMethod = "aot_rt_host_call"
)

// Word layout of the runtime block passed as the last argument of every
// entry point.
const (
	RuntimeHandleWord = iota
	RuntimeReallocWord
	RuntimeHostCallWord
	RuntimeWords
)

// RuntimeBindings tracks which runtime helper methods have been declared in
// the module of the current compilation.
type RuntimeBindings struct {
	realloc  bool
	hostCall bool
}

// Declared reports the helper methods emitted so far.
func (b *RuntimeBindings) Declared() []string {
	var out []string
	if b.realloc {
		out = append(out, RuntimeReallocMethod)
	}
	if b.hostCall {
		out = append(out, RuntimeHostCallMethod)
	}
	return out
}

// Realloc returns a call that grows the runtime-owned buffer at ptr from
// oldWords to newWords words, storing the new address (0 on failure) in
// result.
func (b *RuntimeBindings) Realloc(module *ir.Program, rt, ptr, oldWords, newWords ir.Fragment, result ir.Var) (ir.Fragment, error) {
	if !b.realloc {
		err := module.AddMethod(RuntimeReallocMethod, ir.Method{
			ir.DeclareParam("rt"),
			ir.DeclareParam("ptr"),
			ir.DeclareParam("old_words"),
			ir.DeclareParam("new_words"),
			ir.Assign(ir.Var("fn"), ir.Var("rt").Word(RuntimeReallocWord)),
			ir.Call(ir.Var("fn"), []ir.Fragment{
				ir.Var("rt").Word(RuntimeHandleWord),
				ir.Var("ptr"),
				ir.Var("old_words"),
				ir.Var("new_words"),
			}, "res"),
			ir.Return(ir.Var("res")),
		}, false)
		if err != nil {
			return nil, err
		}
		b.realloc = true
	}
	return ir.CallMethod(RuntimeReallocMethod, []ir.Fragment{rt, ptr, oldWords, newWords}, result), nil
}

// HostCall returns a call that forwards a host request to the runtime. The
// callee returns 0 when resp holds the success payload and 1 when it holds a
// revert array.
func (b *RuntimeBindings) HostCall(module *ir.Program, rt, selector, req, resp, gas ir.Fragment, result ir.Var) (ir.Fragment, error) {
	if !b.hostCall {
		err := module.AddMethod(RuntimeHostCallMethod, ir.Method{
			ir.DeclareParam("rt"),
			ir.DeclareParam("selector"),
			ir.DeclareParam("req"),
			ir.DeclareParam("resp"),
			ir.DeclareParam("gas"),
			ir.Assign(ir.Var("fn"), ir.Var("rt").Word(RuntimeHostCallWord)),
			ir.Call(ir.Var("fn"), []ir.Fragment{
				ir.Var("rt").Word(RuntimeHandleWord),
				ir.Var("selector"),
				ir.Var("req"),
				ir.Var("resp"),
				ir.Var("gas"),
			}, "res"),
			ir.Return(ir.Var("res")),
		}, false)
		if err != nil {
			return nil, err
		}
		b.hostCall = true
	}
	return ir.CallMethod(RuntimeHostCallMethod, []ir.Fragment{rt, selector, req, resp, gas}, result), nil
}
