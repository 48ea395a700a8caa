package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/caffeineduck/pyexec/process"
)

func main() {
	os.Exit(execute())
}

// execute runs the root command and maps its error to an exit status. An
// interpreter that exited non-zero already wrote its own diagnostics.
func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
