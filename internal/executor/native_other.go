//go:build !(linux || darwin)

package executor

import (
	"fmt"
	"runtime"

	"github.com/tinyrange/aot/internal/values"
)

var errUnsupportedPlatform = fmt.Errorf("executor: native invocation is not supported on %s", runtime.GOOS)

// SharedLibrary is unavailable on this platform.
type SharedLibrary struct{}

func OpenSharedLibrary(path string) (*SharedLibrary, error) { return nil, errUnsupportedPlatform }

func LoadArtifact(path string) (*SharedLibrary, error) { return nil, errUnsupportedPlatform }

func (*SharedLibrary) Lookup(string) (uintptr, error) { return 0, errUnsupportedPlatform }

func (*SharedLibrary) Close() error { return nil }

type unsupportedInvoker struct{}

func NewNativeInvoker(int) Invoker { return unsupportedInvoker{} }

func (unsupportedInvoker) Invoke(Invocation) (*values.ExecutionResult, error) {
	return nil, errUnsupportedPlatform
}

func sharedLibraryName() string { return "module.dll" }
