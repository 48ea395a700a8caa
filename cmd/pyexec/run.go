package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyexec/language/python"
	"github.com/caffeineduck/pyexec/process"
)

var runCmd = &cobra.Command{
	Use:   "run [args...]",
	Short: "Run the interpreter with arguments",
	Long: `Run the interpreter and stream its output.

Arguments after the command are passed to the interpreter unchanged:
  - Script: pyexec run script.py --verbose
  - Inline flag: pyexec run -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | pyexec run

The interpreter's exit status becomes pyexec's exit status.`,
	RunE: runRun,
}

var moduleCmd = &cobra.Command{
	Use:   "module <name> [args...]",
	Short: "Run a library module as a script (python -m)",
	Long: `Run a module with "-m <name>" and stream its output.

  pyexec module pip list
  pyexec module http.server 8000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runModule,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Code to execute")
	addSpawnFlags(runCmd)
	addSpawnFlags(moduleCmd)

	// Everything after the first positional belongs to the interpreter.
	runCmd.Flags().SetInterspersed(false)
	moduleCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(runCmd, moduleCmd)
}

func addSpawnFlags(cmd *cobra.Command) {
	cmd.Flags().String("cwd", "", "Working directory")
	cmd.Flags().StringToString("env", nil, "Extra environment variable KEY=VALUE (repeatable)")
	cmd.Flags().Bool("merge-stderr", false, "Send stderr to stdout")
}

func spawnOptions(cmd *cobra.Command) process.SpawnOptions {
	cwd, _ := cmd.Flags().GetString("cwd")
	env, _ := cmd.Flags().GetStringToString("env")
	merge, _ := cmd.Flags().GetBool("merge-stderr")
	return process.SpawnOptions{
		Cwd:         cwd,
		Env:         env,
		Timeout:     cfg.Timeout,
		MergeStdErr: merge,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")

	switch {
	case code != "":
		args = append(python.CodeArgs(code), args...)
	case len(args) == 0:
		in := cmd.InOrStdin()
		if interactive(in) {
			return cmd.Help()
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return cmd.Help()
		}
		args = python.CodeArgs(string(data))
	}

	opts := spawnOptions(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		obs, err := a.python.ExecObservable(ctx, args, opts)
		if err != nil {
			return err
		}
		return stream(cmd, obs)
	})
}

func runModule(cmd *cobra.Command, args []string) error {
	opts := spawnOptions(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		obs, err := a.python.ExecModuleObservable(ctx, args[0], args[1:], opts)
		if err != nil {
			return err
		}
		return stream(cmd, obs)
	})
}

// interactive reports whether in is a terminal rather than piped input.
func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// stream copies obs to the command's stdout and stderr as it arrives.
func stream(cmd *cobra.Command, obs *process.ObservableResult) error {
	for out := range obs.Out {
		w := cmd.OutOrStdout()
		if out.Source == process.Stderr {
			w = cmd.ErrOrStderr()
		}
		if _, err := io.WriteString(w, out.Out); err != nil {
			obs.Cancel()
			return err
		}
	}
	return obs.Wait()
}
