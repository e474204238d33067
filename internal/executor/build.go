package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinyrange/aot/internal/compiler"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/ir/cgen"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/types"
)

// FromNativeModule compiles and links mod into a temporary shared object,
// loads it, and removes the file again. mod is consumed once the artifact is
// loaded: its GasMetadata entry moves into the executor. A module without a
// GasMetadata entry is rejected with ErrMissingGasMetadata before anything is
// built.
func FromNativeModule[T types.Builder, L libfuncs.Libfunc](ctx context.Context, mod *compiler.NativeModule[T, L], opt ir.OptLevel, opts ...Option) (*AotNativeExecutor, error) {
	cfg := parseOptions(opts)
	logger := cfg.logger.With("module", mod.ID)

	name := cfg.backend
	if name == "" {
		name = cgen.BackendName
	}
	backend := cfg.native
	if backend == nil {
		var err error
		if backend, err = ir.LookupNativeBackend(name); err != nil {
			return nil, fmt.Errorf("executor: %w", err)
		}
	}

	if _, ok := metadata.Get[metadata.GasMetadata](mod.Metadata); !ok {
		return nil, fmt.Errorf("executor: module %s: %w", mod.ID, ErrMissingGasMetadata)
	}

	dir, err := os.MkdirTemp(cfg.tempDir, "aot-"+mod.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("executor: create build directory: %w", err)
	}
	defer os.RemoveAll(dir)

	obj, err := backend.CompileObject(ctx, mod.Module, opt)
	if err != nil {
		return nil, fmt.Errorf("executor: compile module %s: %w", mod.ID, err)
	}
	path := filepath.Join(dir, sharedLibraryName())
	if err := backend.LinkShared(ctx, obj, path); err != nil {
		return nil, fmt.Errorf("executor: link module %s: %w", mod.ID, err)
	}

	lib, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded native module", "backend", name, "opt", opt.String(), "object_bytes", len(obj))

	gas, _ := metadata.Remove[metadata.GasMetadata](mod.Metadata)
	e, err := New(lib, mod.Registry, gas, opts...)
	if err != nil {
		lib.Close()
		return nil, err
	}
	return e, nil
}
