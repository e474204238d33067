package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/executor"
	"github.com/tinyrange/aot/internal/ir"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), Filename))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, DefaultOptLevel, c.OptLevel)
	assert.Equal(t, executor.DefaultArenaSize, c.ArenaSize)
	assert.NotEmpty(t, c.Toolchain.CC)
	assert.Equal(t, ir.OptDefault, c.Opt())
	assert.Equal(t, slog.LevelInfo, c.LogLevel())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, os.WriteFile(path, []byte(`
toolchain:
  cc: clang
  cflags: [-g]
optLevel: aggressive
debug: true
metrics:
  report: true
gas:
  fn_double: 100
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "clang", c.Toolchain.CC)
	assert.Equal(t, []string{"-g"}, c.Toolchain.CFlags)
	assert.Equal(t, ir.OptAggressive, c.Opt())
	assert.Equal(t, slog.LevelDebug, c.LogLevel())
	assert.True(t, c.Metrics.Report)
	assert.Equal(t, map[string]uint64{"fn_double": 100}, c.Gas)

	b := c.Backend()
	assert.Equal(t, "clang", b.Toolchain.CC)
	assert.Len(t, c.ExecutorOptions(), 2)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"opt":     "optLevel: fastest\n",
		"version": "version: 3\n",
		"syntax":  "toolchain: [\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", Filename)
	in := Config{OptLevel: "none", TempDir: "/tmp/aot", Gas: map[string]uint64{"main": 5}}
	require.NoError(t, Write(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ir.OptNone, out.Opt())
	assert.Equal(t, "/tmp/aot", out.TempDir)
	assert.Equal(t, uint64(5), out.Gas["main"])
	assert.Len(t, out.ExecutorOptions(), 3)
}
