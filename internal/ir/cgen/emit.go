// Package cgen lowers IR programs to a C translation unit and drives the
// system C compiler to turn it into objects and shared libraries.
package cgen

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/tinyrange/aot/internal/ir"
)

// ABIVersionSymbol is the exported function reporting the packed ABI version
// of a generated library.
const ABIVersionSymbol = "_aot_abi_version"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Emit renders p as a self-contained C translation unit.
func Emit(p *ir.Program) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("cgen: program must be non-nil")
	}

	exported := make(map[string]bool, len(p.Exported))
	for _, name := range p.Exported {
		if !p.HasMethod(name) {
			return nil, fmt.Errorf("cgen: exported method %q is not defined", name)
		}
		exported[name] = true
	}

	names := p.MethodNames()
	arity := make(map[string]int, len(names))

	var out bytes.Buffer
	out.WriteString("/* Code generated by aot. DO NOT EDIT. */\n")
	out.WriteString("#include <stdint.h>\n\n")

	for _, name := range names {
		if !identRe.MatchString(name) {
			return nil, fmt.Errorf("cgen: method name %q is not a C identifier", name)
		}
		params := ir.Params(p.Methods[name])
		arity[name] = len(params)
		fmt.Fprintf(&out, "%s;\n", prototype(name, params, exported[name]))
	}
	out.WriteString("\n")

	if p.ABIVersion != "" {
		packed, err := ir.PackABIVersion(p.ABIVersion)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&out, "uint64_t %s(void) { return UINT64_C(%d); }\n\n", ABIVersionSymbol, packed)
	}

	for _, name := range names {
		e := &emitter{method: name, arity: arity}
		if err := e.emitMethod(p.Methods[name], exported[name]); err != nil {
			return nil, fmt.Errorf("cgen: method %s: %w", name, err)
		}
		out.Write(e.buf.Bytes())
		out.WriteString("\n")
	}

	return out.Bytes(), nil
}

func prototype(name string, params []string, exported bool) string {
	var b strings.Builder
	if !exported {
		b.WriteString("static ")
	}
	b.WriteString("uint64_t ")
	b.WriteString(name)
	b.WriteString("(")
	if len(params) == 0 {
		b.WriteString("void")
	}
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("uint64_t ")
		b.WriteString(p)
	}
	b.WriteString(")")
	return b.String()
}

type emitter struct {
	buf    bytes.Buffer
	method string
	arity  map[string]int
	indent int
	tmp    int
}

func (e *emitter) line(format string, args ...any) {
	e.buf.WriteString(strings.Repeat("\t", e.indent))
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

func (e *emitter) emitMethod(m ir.Method, exported bool) error {
	params := ir.Params(m)
	for _, p := range params {
		if !identRe.MatchString(p) {
			return fmt.Errorf("parameter %q is not a C identifier", p)
		}
	}
	e.line("%s {", prototype(e.method, params, exported))
	e.indent++
	for _, local := range ir.Locals(m) {
		if !identRe.MatchString(local) {
			return fmt.Errorf("variable %q is not a C identifier", local)
		}
		e.line("uint64_t %s = 0;", local)
	}
	if err := e.compileBlock(ir.Block(m)); err != nil {
		return err
	}
	e.line("return 0;")
	e.indent--
	e.line("}")
	return nil
}

func (e *emitter) compileBlock(block ir.Block) error {
	for _, frag := range block {
		if err := e.compileFragment(frag); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) compileFragment(f ir.Fragment) error {
	switch frag := f.(type) {
	case nil:
		return nil
	case ir.Block:
		return e.compileBlock(frag)
	case ir.Method:
		return e.compileBlock(ir.Block(frag))
	case ir.DeclareParam:
		return nil
	case ir.AssignFragment:
		return e.compileAssign(frag)
	case ir.IfFragment:
		return e.compileIf(frag)
	case ir.GotoFragment:
		label, ok := frag.Label.(ir.Label)
		if !ok {
			return fmt.Errorf("goto target must be a label, got %T", frag.Label)
		}
		e.line("goto %s;", label)
		return nil
	case ir.LabelFragment:
		e.line("%s:;", frag.Label)
		return e.compileBlock(frag.Block)
	case ir.Label:
		e.line("%s:;", frag)
		return nil
	case ir.ReturnFragment:
		value, err := e.expr(frag.Value)
		if err != nil {
			return err
		}
		e.line("return %s;", value)
		return nil
	case ir.CallFragment:
		call, err := e.call(frag)
		if err != nil {
			return err
		}
		if frag.Result != "" {
			e.line("%s = %s;", frag.Result, call)
		} else {
			e.line("(void)%s;", call)
		}
		return nil
	case ir.BranchFragment:
		return e.compileBranch(frag)
	case ir.StackSlotFragment:
		e.line("{")
		e.indent++
		e.line("uint64_t %s[%d] = {0};", frag.Name, frag.Words)
		if err := e.compileFragment(frag.Body); err != nil {
			return err
		}
		e.indent--
		e.line("}")
		return nil
	default:
		return fmt.Errorf("unsupported statement fragment %T", f)
	}
}

func (e *emitter) compileAssign(a ir.AssignFragment) error {
	src, err := e.expr(a.Src)
	if err != nil {
		return err
	}
	switch dst := a.Dst.(type) {
	case ir.Var:
		e.line("%s = %s;", dst, src)
	case ir.MemVar:
		addr, ctype, err := e.memRef(dst)
		if err != nil {
			return err
		}
		e.line("*(%s *)(uintptr_t)(%s) = (%s)(%s);", ctype, addr, ctype, src)
	case ir.StackSlotMemFragment:
		e.line("%s[%d] = %s;", dst.Slot, dst.Index, src)
	default:
		return fmt.Errorf("cannot assign to %T", a.Dst)
	}
	return nil
}

func (e *emitter) compileIf(f ir.IfFragment) error {
	cond, err := e.condition(f.Cond)
	if err != nil {
		return err
	}
	e.line("if %s {", cond)
	e.indent++
	if err := e.compileFragment(f.Then); err != nil {
		return err
	}
	e.indent--
	if f.Otherwise != nil {
		e.line("} else {")
		e.indent++
		if err := e.compileFragment(f.Otherwise); err != nil {
			return err
		}
		e.indent--
	}
	e.line("}")
	return nil
}

func (e *emitter) compileBranch(br ir.BranchFragment) error {
	if len(br.Moves) == 0 {
		e.line("goto %s;", br.Target)
		return nil
	}
	e.line("{")
	e.indent++
	temps := make([]string, len(br.Moves))
	for i, mv := range br.Moves {
		src, err := e.expr(mv.Src)
		if err != nil {
			return err
		}
		e.tmp++
		temps[i] = fmt.Sprintf("__mv_%d", e.tmp)
		e.line("uint64_t %s = %s;", temps[i], src)
	}
	for i, mv := range br.Moves {
		e.line("%s = %s;", mv.Dst, temps[i])
	}
	e.line("goto %s;", br.Target)
	e.indent--
	e.line("}")
	return nil
}

func (e *emitter) call(c ir.CallFragment) (string, error) {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		v, err := e.expr(a)
		if err != nil {
			return "", err
		}
		args[i] = v
	}
	joined := strings.Join(args, ", ")

	if mp, ok := c.Target.(ir.MethodPointerFragment); ok {
		want, defined := e.arity[mp.Name]
		if !defined {
			return "", fmt.Errorf("call to undefined method %q", mp.Name)
		}
		if want != len(args) {
			return "", fmt.Errorf("call to %s passes %d arguments, want %d", mp.Name, len(args), want)
		}
		return fmt.Sprintf("%s(%s)", mp.Name, joined), nil
	}

	target, err := e.expr(c.Target)
	if err != nil {
		return "", err
	}
	sig := "void"
	if len(args) > 0 {
		sig = strings.TrimSuffix(strings.Repeat("uint64_t, ", len(args)), ", ")
	}
	return fmt.Sprintf("((uint64_t (*)(%s))(uintptr_t)(%s))(%s)", sig, target, joined), nil
}

func (e *emitter) memRef(m ir.MemVar) (addr string, ctype string, err error) {
	addr = string(m.Base)
	if m.Disp != nil {
		disp, err := e.expr(m.Disp)
		if err != nil {
			return "", "", err
		}
		addr = fmt.Sprintf("%s + %s", m.Base, disp)
	}
	switch m.Width {
	case ir.Width8:
		ctype = "uint8_t"
	case ir.Width16:
		ctype = "uint16_t"
	case ir.Width32:
		ctype = "uint32_t"
	case ir.Width64, 0:
		ctype = "uint64_t"
	default:
		return "", "", fmt.Errorf("unsupported memory width %d", m.Width)
	}
	return addr, ctype, nil
}

func (e *emitter) expr(f ir.Fragment) (string, error) {
	switch frag := f.(type) {
	case ir.Int64:
		return fmt.Sprintf("UINT64_C(%d)", uint64(frag)), nil
	case ir.Var:
		return string(frag), nil
	case ir.MemVar:
		addr, ctype, err := e.memRef(frag)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((uint64_t)*(%s *)(uintptr_t)(%s))", ctype, addr), nil
	case ir.StackSlotMemFragment:
		return fmt.Sprintf("%s[%d]", frag.Slot, frag.Index), nil
	case ir.StackSlotPtrFragment:
		return fmt.Sprintf("((uint64_t)(uintptr_t)%s)", frag.Slot), nil
	case ir.MethodPointerFragment:
		if _, ok := e.arity[frag.Name]; !ok {
			return "", fmt.Errorf("pointer to undefined method %q", frag.Name)
		}
		return fmt.Sprintf("((uint64_t)(uintptr_t)&%s)", frag.Name), nil
	case ir.OpFragment:
		return e.op(frag)
	default:
		return "", fmt.Errorf("unsupported expression fragment %T", f)
	}
}

func (e *emitter) op(o ir.OpFragment) (string, error) {
	left, err := e.expr(o.Left)
	if err != nil {
		return "", err
	}
	right, err := e.expr(o.Right)
	if err != nil {
		return "", err
	}
	var sym string
	switch o.Kind {
	case ir.OpAdd:
		sym = "+"
	case ir.OpSub:
		sym = "-"
	case ir.OpMul:
		sym = "*"
	case ir.OpDiv:
		sym = "/"
	case ir.OpShr:
		sym = ">>"
	case ir.OpShl:
		sym = "<<"
	case ir.OpAnd:
		sym = "&"
	case ir.OpOr:
		sym = "|"
	case ir.OpXor:
		sym = "^"
	default:
		return "", fmt.Errorf("unsupported op kind %d", o.Kind)
	}
	return fmt.Sprintf("(%s %s %s)", left, sym, right), nil
}

func (e *emitter) condition(c ir.Condition) (string, error) {
	switch cond := c.(type) {
	case ir.CompareCondition:
		left, err := e.expr(cond.Left)
		if err != nil {
			return "", err
		}
		right, err := e.expr(cond.Right)
		if err != nil {
			return "", err
		}
		signed := func(sym string) string {
			return fmt.Sprintf("((int64_t)%s %s (int64_t)%s)", left, sym, right)
		}
		switch cond.Kind {
		case ir.CompareEqual:
			return fmt.Sprintf("(%s == %s)", left, right), nil
		case ir.CompareNotEqual:
			return fmt.Sprintf("(%s != %s)", left, right), nil
		case ir.CompareLess:
			return signed("<"), nil
		case ir.CompareLessOrEqual:
			return signed("<="), nil
		case ir.CompareGreater:
			return signed(">"), nil
		case ir.CompareGreaterOrEqual:
			return signed(">="), nil
		case ir.CompareUnsignedLess:
			return fmt.Sprintf("(%s < %s)", left, right), nil
		case ir.CompareUnsignedGreaterOrEqual:
			return fmt.Sprintf("(%s >= %s)", left, right), nil
		default:
			return "", fmt.Errorf("unsupported compare kind %d", cond.Kind)
		}
	case ir.IsZeroCondition:
		value, err := e.expr(cond.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s == 0)", value), nil
	case ir.IsNegativeCondition:
		value, err := e.expr(cond.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((int64_t)%s < 0)", value), nil
	default:
		return "", fmt.Errorf("unsupported condition %T", c)
	}
}
