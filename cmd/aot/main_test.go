package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/config"
	"github.com/tinyrange/aot/internal/ir/cgen"
	"github.com/tinyrange/aot/internal/values"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), config.Filename)}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestSymbols(t *testing.T) {
	out, err := execute(t, "symbols", "testdata/double.yaml")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID  NAME"))
	fields := strings.Fields(lines[1])
	assert.Equal(t, []string{"0", "fn_double", "_aot_ciface_f0_fn__double", "(felt252)", "->", "(felt252)", "10"}, fields)
	assert.Equal(t, strings.Index(lines[0], "SYMBOL"), strings.Index(lines[1], "_aot_ciface_"))
}

func TestCompileEmitC(t *testing.T) {
	out, err := execute(t, "compile", "--emit-c", "testdata/double.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "_aot_ciface_f0_fn__double")
	assert.Contains(t, out, cgen.ABIVersionSymbol)
}

func TestCompileRejectsMissingProgram(t *testing.T) {
	_, err := execute(t, "compile", "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.Filename)
	var stdout bytes.Buffer
	cmd := newRootCmd(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "init"})
	require.NoError(t, cmd.Execute())

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)

	cmd = newRootCmd(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "init"})
	assert.Error(t, cmd.Execute())
}

func TestParseArgs(t *testing.T) {
	_, reg, err := loadProgram("testdata/double.yaml")
	require.NoError(t, err)
	fn, err := lookupFunction(reg, "fn_double")
	require.NoError(t, err)

	vals, err := parseArgs(reg, fn, []string{"0x15"})
	require.NoError(t, err)
	assert.Equal(t, []values.Value{values.Scalar(21)}, vals)

	_, err = parseArgs(reg, fn, nil)
	assert.Error(t, err)
	_, err = parseArgs(reg, fn, []string{"x"})
	assert.Error(t, err)

	byId, err := lookupFunction(reg, "0")
	require.NoError(t, err)
	assert.Same(t, fn, byId)
	_, err = lookupFunction(reg, "nope")
	assert.Error(t, err)
}

func TestParseArgsRejectsComposites(t *testing.T) {
	_, reg, err := loadProgram("testdata/counter.yaml")
	require.NoError(t, err)
	fn, err := lookupFunction(reg, "entry")
	require.NoError(t, err)
	_, err = parseArgs(reg, fn, []string{"1"})
	assert.ErrorContains(t, err, "cannot be given on the command line")
}

func TestSeedState(t *testing.T) {
	state, err := seedState([]string{"5=77", "0x10=-1"})
	require.NoError(t, err)
	v, ok := state.Load(0, 5)
	assert.True(t, ok)
	assert.Equal(t, int64(77), v)
	v, _ = state.Load(0, 16)
	assert.Equal(t, int64(-1), v)

	_, err = seedState([]string{"5"})
	assert.Error(t, err)
}

func TestWriteTableTruncatesWideCells(t *testing.T) {
	var b bytes.Buffer
	writeTable(&b, [][]string{{"A", "B"}, {strings.Repeat("x", 60), "y"}})
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Index(lines[0], "B"), ansi.StringWidth(lines[1][:strings.Index(lines[1], "y")]))
	assert.Contains(t, lines[1], "…")
	assert.LessOrEqual(t, ansi.StringWidth(strings.TrimSpace(lines[1][:strings.Index(lines[1], "y")])), maxCellWidth)
}
