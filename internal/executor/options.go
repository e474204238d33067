package executor

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/trace"
)

// DefaultArenaSize is the size of the memory region backing one invocation.
const DefaultArenaSize = 4 << 20

// Option configures an executor.
type Option interface {
	IsExecutorOption()
}

type executorConfig struct {
	logger     *slog.Logger
	invoker    Invoker
	registerer prometheus.Registerer
	arenaSize  int
	backend    string
	native     ir.NativeBackend
	tempDir    string
	trace      *trace.Writer
}

func parseOptions(opts []Option) executorConfig {
	cfg := executorConfig{
		logger:    slog.Default(),
		arenaSize: DefaultArenaSize,
	}

	for _, opt := range opts {
		switch o := opt.(type) {
		case interface{ Logger() *slog.Logger }:
			if l := o.Logger(); l != nil {
				cfg.logger = l
			}
		case interface{ Invoker() Invoker }:
			cfg.invoker = o.Invoker()
		case interface{ Registerer() prometheus.Registerer }:
			cfg.registerer = o.Registerer()
		case interface{ ArenaSize() int }:
			if n := o.ArenaSize(); n > 0 {
				cfg.arenaSize = n
			}
		case interface{ Backend() string }:
			cfg.backend = o.Backend()
		case interface{ NativeBackend() ir.NativeBackend }:
			cfg.native = o.NativeBackend()
		case interface{ TempDir() string }:
			cfg.tempDir = o.TempDir()
		case interface{ Trace() *trace.Writer }:
			cfg.trace = o.Trace()
		}
	}

	return cfg
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return &loggerOption{l: l}
}

type loggerOption struct{ l *slog.Logger }

func (*loggerOption) IsExecutorOption()      {}
func (o *loggerOption) Logger() *slog.Logger { return o.l }

// WithInvoker replaces the native invocation core.
func WithInvoker(inv Invoker) Option {
	return &invokerOption{inv: inv}
}

type invokerOption struct{ inv Invoker }

func (*invokerOption) IsExecutorOption()   {}
func (o *invokerOption) Invoker() Invoker { return o.inv }

// WithRegisterer registers the executor metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return &registererOption{r: r}
}

type registererOption struct{ r prometheus.Registerer }

func (*registererOption) IsExecutorOption()                   {}
func (o *registererOption) Registerer() prometheus.Registerer { return o.r }

// WithArenaSize sets the per-invocation memory size in bytes.
func WithArenaSize(n int) Option {
	return &arenaOption{n: n}
}

type arenaOption struct{ n int }

func (*arenaOption) IsExecutorOption() {}
func (o *arenaOption) ArenaSize() int  { return o.n }

// WithBackend selects the native backend used by FromNativeModule.
func WithBackend(name string) Option {
	return &backendOption{name: name}
}

type backendOption struct{ name string }

func (*backendOption) IsExecutorOption()  {}
func (o *backendOption) Backend() string { return o.name }

// WithNativeBackend builds artifacts with b instead of a registered backend.
func WithNativeBackend(b ir.NativeBackend) Option {
	return &nativeBackendOption{b: b}
}

type nativeBackendOption struct{ b ir.NativeBackend }

func (*nativeBackendOption) IsExecutorOption()                {}
func (o *nativeBackendOption) NativeBackend() ir.NativeBackend { return o.b }

// WithTempDir sets the directory FromNativeModule builds artifacts in.
func WithTempDir(dir string) Option {
	return &tempDirOption{dir: dir}
}

type tempDirOption struct{ dir string }

func (*tempDirOption) IsExecutorOption()  {}
func (o *tempDirOption) TempDir() string { return o.dir }

// WithTrace records every invocation and host call to w. The executor does
// not close w.
func WithTrace(w *trace.Writer) Option {
	return &traceOption{w: w}
}

type traceOption struct{ w *trace.Writer }

func (*traceOption) IsExecutorOption()       {}
func (o *traceOption) Trace() *trace.Writer { return o.w }
