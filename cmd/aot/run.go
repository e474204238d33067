package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tinyrange/aot/internal/executor"
	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/trace"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

type runFlags struct {
	gas      int64
	contract bool
	host     bool
	storage  []string
	block    uint64
	metrics  bool
	trace    string
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <program.yaml> <function> [args...]",
		Short: "Compile a program and invoke one of its functions",
		Long: `Compile a program, load it and invoke a function.

Arguments are integers matching the function parameters. With --contract the
arguments are calldata for a contract entry point.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, args[0], args[1], args[2:])
		},
	}
	cmd.Flags().Int64Var(&f.gas, "gas", -1, "initial gas (default from metadata)")
	cmd.Flags().BoolVar(&f.contract, "contract", false, "treat arguments as contract calldata")
	cmd.Flags().BoolVar(&f.host, "host", false, "serve host calls from in-memory state")
	cmd.Flags().StringArrayVar(&f.storage, "storage", nil, "seed host storage with key=value (implies --host)")
	cmd.Flags().Uint64Var(&f.block, "block", 0, "block number reported to the program")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "print executor metrics after the run")
	cmd.Flags().StringVar(&f.trace, "trace", "", "record invocations and host calls to this file")
	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags, path, name string, args []string) error {
	mod, err := a.buildModule(path)
	if err != nil {
		return err
	}
	fn, err := lookupFunction(mod.Registry, name)
	if err != nil {
		return err
	}

	var handler hostcall.Handler
	if f.host || len(f.storage) > 0 {
		state, err := seedState(f.storage)
		if err != nil {
			return err
		}
		state.BlockNumber = f.block
		handler = state
	}

	metrics := prometheus.NewRegistry()
	opts := append(a.cfg.ExecutorOptions(),
		executor.WithLogger(a.logger),
		executor.WithRegisterer(metrics),
	)
	if f.trace != "" {
		tw, err := trace.Create(f.trace)
		if err != nil {
			return err
		}
		defer tw.Close()
		opts = append(opts, executor.WithTrace(tw))
	}
	e, err := executor.FromNativeModule(cmd.Context(), mod, a.cfg.Opt(), opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	var gas *uint64
	if f.gas >= 0 {
		g := uint64(f.gas)
		gas = &g
	}

	if f.contract {
		calldata, err := parseInts(args)
		if err != nil {
			return err
		}
		r, err := e.InvokeContractDynamic(fn.Id, calldata, gas, handler)
		if err != nil {
			return err
		}
		printContractResult(a.stdout, r)
	} else {
		vals, err := parseArgs(mod.Registry, fn, args)
		if err != nil {
			return err
		}
		r, err := e.InvokeDynamicWithSyscallHandler(fn.Id, vals, gas, handler)
		if err != nil {
			return err
		}
		printResult(a.stdout, r)
	}

	if f.metrics || a.cfg.Metrics.Report {
		return printMetrics(a.stdout, metrics)
	}
	return nil
}

// lookupFunction accepts a debug name or a numeric id.
func lookupFunction(reg *coreRegistry, name string) (*program.Function, error) {
	if fn, err := reg.FunctionByName(name); err == nil {
		return fn, nil
	}
	id, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("no function named %q", name)
	}
	return reg.Function(ids.FunctionId{Id: id})
}

func parseInts(args []string) ([]int64, error) {
	out := make([]int64, len(args))
	for i, s := range args {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseArgs converts command line integers into values for fn. Only scalar
// parameters can be given this way.
func parseArgs(reg *coreRegistry, fn *program.Function, args []string) ([]values.Value, error) {
	params := fn.Signature.ParamTypes
	if len(args) != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", fn.Id, len(params), len(args))
	}
	out := make([]values.Value, len(args))
	for i, s := range args {
		ty, err := reg.Type(params[i])
		if err != nil {
			return nil, err
		}
		kind := ty.Kind()
		if kind == types.KindNonZero {
			inner, err := reg.Type(ty.Members()[0])
			if err != nil {
				return nil, err
			}
			kind = inner.Kind()
		}
		switch kind {
		case types.KindScalar:
			v, err := strconv.ParseInt(s, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = values.Scalar(v)
		case types.KindU64:
			v, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = values.U64(v)
		default:
			return nil, fmt.Errorf("argument %d: %s cannot be given on the command line", i, params[i])
		}
	}
	return out, nil
}

// seedState builds host state from key=value pairs in storage domain 0.
func seedState(pairs []string) (*hostcall.State, error) {
	state := hostcall.NewState()
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("storage %q: want key=value", p)
		}
		kv, err := parseInts([]string{k, v})
		if err != nil {
			return nil, fmt.Errorf("storage %q: %w", p, err)
		}
		var free uint64
		if err := state.StorageWrite(0, kv[0], kv[1], &free); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func printResult(w io.Writer, r *values.ExecutionResult) {
	if r.Failure != nil {
		fmt.Fprintf(w, "trap: %s\n", r.Failure)
	} else {
		fmt.Fprintf(w, "returns: [%s]\n", joinValues(r.ReturnValues))
	}
	fmt.Fprintf(w, "remaining gas: %d\n", r.RemainingGas)
}

func printContractResult(w io.Writer, r *values.ContractExecutionResult) {
	if r.FailureFlag {
		fmt.Fprintf(w, "failed: %s\n", r.ErrorMessage)
	} else {
		parts := make([]string, len(r.ReturnValues))
		for i, v := range r.ReturnValues {
			parts[i] = strconv.FormatInt(v, 10)
		}
		fmt.Fprintf(w, "returns: [%s]\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "remaining gas: %d\n", r.RemainingGas)
}

func joinValues(vs []values.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
