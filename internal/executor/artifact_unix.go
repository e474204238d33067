//go:build linux || darwin

package executor

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"
	"golang.org/x/mod/semver"

	"github.com/tinyrange/aot/internal/compiler"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/ir/cgen"
)

// SharedLibrary is an Artifact backed by dlopen.
type SharedLibrary struct {
	path   string
	handle uintptr
}

var _ Artifact = (*SharedLibrary)(nil)

// OpenSharedLibrary loads the shared object at path.
func OpenSharedLibrary(path string) (*SharedLibrary, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("executor: dlopen %s: %w", path, err)
	}
	return &SharedLibrary{path: path, handle: handle}, nil
}

func (l *SharedLibrary) Lookup(symbol string) (uintptr, error) {
	if l.handle == 0 {
		return 0, ErrClosed
	}
	ptr, err := purego.Dlsym(l.handle, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s in %s: %v", ErrSymbolNotFound, symbol, l.path, err)
	}
	return ptr, nil
}

func (l *SharedLibrary) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}

// ABIVersion calls the version function every module exports.
func (l *SharedLibrary) ABIVersion() (string, error) {
	fn, err := l.Lookup(cgen.ABIVersionSymbol)
	if err != nil {
		return "", err
	}
	packed, _, _ := purego.SyscallN(fn)
	return ir.UnpackABIVersion(uint64(packed)), nil
}

// LoadArtifact opens the shared object at path and checks that it was built
// for a compatible ABI.
func LoadArtifact(path string) (*SharedLibrary, error) {
	lib, err := OpenSharedLibrary(path)
	if err != nil {
		return nil, err
	}
	version, err := lib.ABIVersion()
	if err == nil {
		err = checkABI(version)
	}
	if err != nil {
		lib.Close()
		return nil, fmt.Errorf("executor: load %s: %w", path, err)
	}
	return lib, nil
}

func checkABI(version string) error {
	if !semver.IsValid(version) {
		return fmt.Errorf("%w: invalid ABI version %q", ErrIncompatibleArtifact, version)
	}
	if semver.Major(version) != semver.Major(compiler.ABIVersion) {
		return fmt.Errorf("%w: ABI %s, want %s", ErrIncompatibleArtifact, version, semver.Major(compiler.ABIVersion))
	}
	return nil
}

// sharedLibraryName is the file name of linked artifacts on this platform.
func sharedLibraryName() string {
	if runtime.GOOS == "darwin" {
		return "module.dylib"
	}
	return "module.so"
}
