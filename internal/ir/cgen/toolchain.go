package cgen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tinyrange/aot/internal/ir"
)

// BackendName is the name the C backend registers under.
const BackendName = "c"

// Toolchain describes the C compiler used to build objects and link shared
// libraries.
type Toolchain struct {
	CC      string
	CFlags  []string
	LDFlags []string
	// TempDir holds intermediate files. Empty means os.TempDir().
	TempDir string
}

// DefaultToolchain uses $CC, falling back to cc.
func DefaultToolchain() Toolchain {
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	return Toolchain{CC: cc}
}

// Available reports whether the compiler can be found.
func (t Toolchain) Available() bool {
	_, err := exec.LookPath(t.CC)
	return err == nil
}

// Backend is the C native backend.
type Backend struct {
	Toolchain Toolchain
}

var _ ir.NativeBackend = (*Backend)(nil)

func New(tc Toolchain) *Backend {
	return &Backend{Toolchain: tc}
}

func init() {
	ir.RegisterBackend(BackendName, New(DefaultToolchain()))
}

func (b *Backend) Emit(p *ir.Program) ([]byte, error) {
	return Emit(p)
}

func optFlag(opt ir.OptLevel) string {
	switch opt {
	case ir.OptNone:
		return "-O0"
	case ir.OptLess:
		return "-O1"
	case ir.OptAggressive:
		return "-O3"
	default:
		return "-O2"
	}
}

// CompileObject emits p as C and compiles it into a position-independent
// object file.
func (b *Backend) CompileObject(ctx context.Context, p *ir.Program, opt ir.OptLevel) ([]byte, error) {
	src, err := Emit(p)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(b.Toolchain.TempDir, "aot-cgen-")
	if err != nil {
		return nil, fmt.Errorf("cgen: create build dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "module.c")
	objPath := filepath.Join(dir, "module.o")
	if err := os.WriteFile(srcPath, src, 0o644); err != nil {
		return nil, fmt.Errorf("cgen: write source: %w", err)
	}

	args := []string{"-c", "-fPIC", optFlag(opt)}
	args = append(args, b.Toolchain.CFlags...)
	args = append(args, "-o", objPath, srcPath)
	if err := b.Toolchain.run(ctx, args...); err != nil {
		return nil, err
	}

	obj, err := os.ReadFile(objPath)
	if err != nil {
		return nil, fmt.Errorf("cgen: read object: %w", err)
	}
	return obj, nil
}

// LinkShared links object into a shared library at path.
func (b *Backend) LinkShared(ctx context.Context, object []byte, path string) error {
	if len(object) == 0 {
		return fmt.Errorf("cgen: empty object file")
	}
	dir, err := os.MkdirTemp(b.Toolchain.TempDir, "aot-link-")
	if err != nil {
		return fmt.Errorf("cgen: create link dir: %w", err)
	}
	defer os.RemoveAll(dir)

	objPath := filepath.Join(dir, "module.o")
	if err := os.WriteFile(objPath, object, 0o644); err != nil {
		return fmt.Errorf("cgen: write object: %w", err)
	}

	args := []string{"-shared"}
	args = append(args, b.Toolchain.LDFlags...)
	args = append(args, "-o", path, objPath)
	return b.Toolchain.run(ctx, args...)
}

func (t Toolchain) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.CC, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("cgen: %s %s: %w", t.CC, strings.Join(args, " "), err)
		}
		return fmt.Errorf("cgen: %s %s: %w\n%s", t.CC, strings.Join(args, " "), err, msg)
	}
	return nil
}
