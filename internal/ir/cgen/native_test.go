//go:build (linux || darwin) && (amd64 || arm64)

package cgen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ebitengine/purego"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/ir"
)

func TestCompileAndLinkShared(t *testing.T) {
	backend := New(DefaultToolchain())
	if !backend.Toolchain.Available() {
		t.Skip("no C compiler available")
	}

	p := ir.NewProgram("v1.2.3")
	require.NoError(t, p.AddMethod("twice", ir.Method{
		ir.DeclareParam("x"),
		ir.If(ir.IsUnsignedGreaterOrEqual(ir.Var("x"), ir.Int64(1000)),
			ir.Return(ir.Int64(0)),
		),
		ir.Return(ir.Op(ir.OpAdd, ir.Var("x"), ir.Var("x"))),
	}, true))

	ctx := context.Background()
	obj, err := backend.CompileObject(ctx, p, ir.OptDefault)
	require.NoError(t, err)
	require.NotEmpty(t, obj)

	path := filepath.Join(t.TempDir(), "libtwice.so")
	require.NoError(t, backend.LinkShared(ctx, obj, path))

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	require.NoError(t, err)
	defer purego.Dlclose(lib)

	sym, err := purego.Dlsym(lib, "twice")
	require.NoError(t, err)
	r, _, _ := purego.SyscallN(sym, 21)
	require.Equal(t, uintptr(42), r)
	r, _, _ = purego.SyscallN(sym, 5000)
	require.Equal(t, uintptr(0), r)

	version, err := purego.Dlsym(lib, ABIVersionSymbol)
	require.NoError(t, err)
	packed, _, _ := purego.SyscallN(version)
	require.Equal(t, "v1.2.3", ir.UnpackABIVersion(uint64(packed)))
}

func TestCompileObjectReportsCompilerErrors(t *testing.T) {
	backend := New(Toolchain{CC: "definitely-not-a-compiler"})
	p := ir.NewProgram("v1.0.0")
	require.NoError(t, p.AddMethod("f", ir.Method{ir.Return(ir.Int64(0))}, true))
	_, err := backend.CompileObject(context.Background(), p, ir.OptNone)
	require.Error(t, err)
}
