//go:build (linux || darwin) && (amd64 || arm64)

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/ir/cgen"
)

func requireCC(t *testing.T) {
	t.Helper()
	if !cgen.DefaultToolchain().Available() {
		t.Skip("no C compiler available")
	}
}

func TestRunDouble(t *testing.T) {
	requireCC(t)
	out, err := execute(t, "run", "--gas", "100", "--metrics", "testdata/double.yaml", "fn_double", "21")
	require.NoError(t, err)
	assert.Contains(t, out, "returns: [42]\nremaining gas: 90\n")
	assert.Contains(t, out, `aot_executor_invocations_total{outcome="ok"} 1`)
	assert.Contains(t, out, "aot_executor_gas_consumed 10")

	out, err = execute(t, "run", "--gas", "5", "testdata/double.yaml", "fn_double", "21")
	require.NoError(t, err)
	assert.Contains(t, out, "trap: trap 0 (code 256)")
}

func TestRunWithoutGasIsAnError(t *testing.T) {
	requireCC(t)
	_, err := execute(t, "run", "testdata/double.yaml", "fn_double", "21")
	assert.ErrorContains(t, err, "insufficient gas")
}

func TestRunContract(t *testing.T) {
	requireCC(t)
	out, err := execute(t, "run", "--contract", "--storage", "5=77", "testdata/counter.yaml", "entry", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "returns: [77]")

	out, err = execute(t, "run", "--contract", "testdata/counter.yaml", "entry")
	require.NoError(t, err)
	assert.Contains(t, out, "failed: storage_read: host call not supported")
}

func TestCompileSharedObject(t *testing.T) {
	requireCC(t)
	path := filepath.Join(t.TempDir(), "double.so")
	out, err := execute(t, "compile", "-o", path, "testdata/double.yaml")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRunRecordsTrace(t *testing.T) {
	requireCC(t)
	path := filepath.Join(t.TempDir(), "run.trace")
	_, err := execute(t, "run", "--contract", "--storage", "5=77", "--trace", path, "testdata/counter.yaml", "entry")
	require.NoError(t, err)

	out, err := execute(t, "trace", path)
	require.NoError(t, err)
	assert.Contains(t, out, "storage_read [0 5] -> ok [77]")
	assert.Contains(t, out, "invocation")
	assert.Contains(t, out, "2 records\n")

	out, err = execute(t, "trace", "--source", "other", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 records\n")
}
