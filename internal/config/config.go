// Package config loads the settings shared by the aot commands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/aot/internal/executor"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/ir/cgen"
)

const (
	Filename        = "aot.yaml"
	DefaultOptLevel = "default"
)

// Config describes how programs are compiled and executed.
type Config struct {
	Version int `yaml:"version"`

	Toolchain ToolchainConfig `yaml:"toolchain"`
	OptLevel  string          `yaml:"optLevel"`
	TempDir   string          `yaml:"tempDir,omitempty"`
	ArenaSize int             `yaml:"arenaSize,omitempty"`

	Debug   bool          `yaml:"debug,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Gas is the default initial gas per function name.
	Gas map[string]uint64 `yaml:"gas,omitempty"`
}

type ToolchainConfig struct {
	CC      string   `yaml:"cc"`
	CFlags  []string `yaml:"cflags,omitempty"`
	LDFlags []string `yaml:"ldflags,omitempty"`
}

type MetricsConfig struct {
	// Report prints the executor counters after a run.
	Report bool `yaml:"report,omitempty"`
}

func (c *Config) normalize() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Toolchain.CC == "" {
		c.Toolchain.CC = cgen.DefaultToolchain().CC
	}
	if c.OptLevel == "" {
		c.OptLevel = DefaultOptLevel
	}
	if c.ArenaSize <= 0 {
		c.ArenaSize = executor.DefaultArenaSize
	}
	if c.Gas == nil {
		c.Gas = make(map[string]uint64)
	}
}

// Default returns the configuration used when no file exists.
func Default() Config {
	var c Config
	c.normalize()
	return c
}

// Load reads path. A missing file yields Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if _, err := ir.ParseOptLevel(c.OptLevel); err != nil {
		return err
	}
	return nil
}

// Write stores c as YAML at path, creating parent directories.
func Write(path string, c Config) error {
	c.normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (c Config) Opt() ir.OptLevel {
	o, err := ir.ParseOptLevel(c.OptLevel)
	if err != nil {
		return ir.OptDefault
	}
	return o
}

// Backend builds the C backend described by the toolchain section.
func (c Config) Backend() *cgen.Backend {
	return cgen.New(cgen.Toolchain{
		CC:      c.Toolchain.CC,
		CFlags:  c.Toolchain.CFlags,
		LDFlags: c.Toolchain.LDFlags,
		TempDir: c.TempDir,
	})
}

// ExecutorOptions maps the execution settings onto executor options.
func (c Config) ExecutorOptions() []executor.Option {
	opts := []executor.Option{
		executor.WithNativeBackend(c.Backend()),
		executor.WithArenaSize(c.ArenaSize),
	}
	if c.TempDir != "" {
		opts = append(opts, executor.WithTempDir(c.TempDir))
	}
	return opts
}

// LogLevel is the slog level selected by Debug.
func (c Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
