package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyexec/language/python"
	"github.com/caffeineduck/pyexec/process"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run lines of code interactively",
	Long: `Start an interactive loop. Each entry runs as "python -c <entry>" in a
fresh interpreter, so no state survives between entries.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.pyexec_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".pyexec_history")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		info, err := a.python.InterpreterInformation(ctx)
		if err != nil {
			return err
		}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:            ">>> ",
			HistoryFile:       historyFile,
			HistoryLimit:      1000,
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
			Stdin:             io.NopCloser(cmd.InOrStdin()),
			Stdout:            cmd.OutOrStdout(),
			Stderr:            cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("initialize readline: %w", err)
		}
		defer rl.Close()

		fmt.Fprintf(cmd.ErrOrStderr(), "pyexec %s REPL (type 'exit' to quit, Ctrl+D to exit)\n", info.Version)
		return replLoop(ctx, cmd, rl, a.python)
	})
}

func replLoop(ctx context.Context, cmd *cobra.Command, rl *readline.Instance, svc python.ExecutionService) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed == "exit" || trimmed == "quit" {
			return nil
		}

		result, err := svc.Exec(ctx, python.CodeArgs(line), process.SpawnOptions{Timeout: cfg.Timeout})
		if result.Stdout != "" {
			fmt.Fprint(out, result.Stdout)
			if !strings.HasSuffix(result.Stdout, "\n") {
				fmt.Fprintln(out)
			}
		}
		if result.Stderr != "" {
			fmt.Fprint(errOut, result.Stderr)
		}

		var exitErr *process.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	}
}
