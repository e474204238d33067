package ir

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// OptLevel selects how aggressively a backend optimises emitted code.
type OptLevel int

const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

func (o OptLevel) String() string {
	switch o {
	case OptNone:
		return "none"
	case OptLess:
		return "less"
	case OptDefault:
		return "default"
	case OptAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("OptLevel(%d)", int(o))
	}
}

// ParseOptLevel accepts the names printed by OptLevel.String and the numeric
// levels 0 to 3.
func ParseOptLevel(s string) (OptLevel, error) {
	for o := OptNone; o <= OptAggressive; o++ {
		if s == o.String() || s == fmt.Sprint(int(o)) {
			return o, nil
		}
	}
	return OptNone, fmt.Errorf("ir: unknown optimisation level %q", s)
}

// Backend turns a Program into target source.
type Backend interface {
	Emit(p *Program) ([]byte, error)
}

// NativeBackend extends Backend with the two steps needed to produce a
// loadable artifact.
type NativeBackend interface {
	Backend
	// CompileObject compiles the program into a relocatable object file.
	CompileObject(ctx context.Context, p *Program, opt OptLevel) ([]byte, error)
	// LinkShared links an object file into a shared library written to path.
	LinkShared(ctx context.Context, object []byte, path string) error
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// RegisterBackend wires a backend into the shared IR helpers. It panics when
// attempting to register the same name more than once so mistakes are caught
// during init.
func RegisterBackend(name string, backend Backend) {
	if name == "" {
		panic("ir: cannot register backend without a name")
	}
	if backend == nil {
		panic("ir: backend must be non-nil")
	}

	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("ir: backend %s already registered", name))
	}
	backends[name] = backend
}

func lookupBackend(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	if backend, ok := backends[name]; ok {
		return backend, nil
	}
	if name == "" {
		return nil, fmt.Errorf("ir: backend must be specified")
	}
	return nil, fmt.Errorf("ir: no backend registered for %q", name)
}

// Backends lists the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EmitForBackend lowers prog with the backend registered under name.
func EmitForBackend(name string, prog *Program) ([]byte, error) {
	if prog == nil {
		return nil, fmt.Errorf("ir: program must be non-nil")
	}
	backend, err := lookupBackend(name)
	if err != nil {
		return nil, err
	}
	return backend.Emit(prog)
}

// LookupNativeBackend returns the NativeBackend registered under name.
func LookupNativeBackend(name string) (NativeBackend, error) {
	backend, err := lookupBackend(name)
	if err != nil {
		return nil, err
	}
	native, ok := backend.(NativeBackend)
	if !ok {
		return nil, fmt.Errorf("ir: backend %q cannot produce native artifacts", name)
	}
	return native, nil
}
