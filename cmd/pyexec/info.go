package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyexec/language/python"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show interpreter metadata",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var installedCmd = &cobra.Command{
	Use:   "installed <module>...",
	Short: "Check whether modules can be imported",
	Long: `Check whether each module can be imported by the interpreter.

Exits non-zero when any module is missing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstalled,
}

var detailsCmd = &cobra.Command{
	Use:   "details [args...]",
	Short: "Print the command lines pyexec would launch, without running them",
	RunE:  runDetails,
}

func init() {
	detailsCmd.Flags().StringP("module", "m", "", "Also describe running this module")
	detailsCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(infoCmd, installedCmd, detailsCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		info, err := a.python.InterpreterInformation(ctx)
		if err != nil {
			return err
		}
		executable, err := a.python.ExecutablePath(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "path:         %s\n", info.Path)
		fmt.Fprintf(w, "executable:   %s\n", executable)
		fmt.Fprintf(w, "version:      %s\n", info.Version)
		fmt.Fprintf(w, "architecture: %s\n", info.Architecture)
		fmt.Fprintf(w, "sys.prefix:   %s\n", info.SysPrefix)
		fmt.Fprintf(w, "sys.version:  %s\n", strings.ReplaceAll(info.SysVersion, "\n", " "))
		return nil
	})
}

func runInstalled(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var missing []string
		for _, module := range args {
			ok, err := a.python.IsModuleInstalled(ctx, module)
			if err != nil {
				return err
			}
			status := "installed"
			if !ok {
				status = "not installed"
				missing = append(missing, module)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", module, status)
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing modules: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

func runDetails(cmd *cobra.Command, args []string) error {
	module, _ := cmd.Flags().GetString("module")
	return withApp(cmd, func(_ context.Context, a *app) error {
		details, err := a.python.ExecutionDetails(python.DetailsRequest{
			Args:       args,
			ModuleName: module,
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "exec:       %s\n", details.Exec.CommandLine())
		fmt.Fprintf(w, "observable: %s\n", details.ExecObservable.CommandLine())
		if details.ExecModule != nil {
			fmt.Fprintf(w, "module:     %s\n", details.ExecModule.CommandLine())
		}
		return nil
	})
}
