// Package python runs Python interpreters through a process.Service.
package python

import (
	_ "embed"
	"strings"
)

//go:embed interpreter_info.py
var interpreterInfoScript string

// ModuleFlag makes the interpreter run a module as a script.
const ModuleFlag = "-m"

// ModuleArgs returns the arguments that run module with args:
// ["-m", module, args...]. The result never aliases args.
func ModuleArgs(module string, args []string) []string {
	out := make([]string, 0, len(args)+2)
	out = append(out, ModuleFlag, module)
	return append(out, args...)
}

// CodeArgs returns the arguments that run code as a program.
func CodeArgs(code string) []string {
	return []string{"-c", code}
}

// ExecInfo describes how an interpreter invocation would be launched.
type ExecInfo struct {
	// Command is the program to start.
	Command string
	// Args follow Command on the command line.
	Args []string
	// PythonExecutable is the interpreter itself; it differs from Command
	// when a launcher such as "conda run" wraps the interpreter.
	PythonExecutable string
}

// CommandLine returns Command and Args joined with spaces.
func (i ExecInfo) CommandLine() string {
	return strings.Join(append([]string{i.Command}, i.Args...), " ")
}

// BuildExecInfo describes running the interpreter at path with args.
func BuildExecInfo(path string, args ...string) ExecInfo {
	return BuildExecInfoFromCommand([]string{path}, args...)
}

// BuildExecInfoFromCommand describes running args through a launcher command
// whose last element is the interpreter, for example
// ["conda", "run", "-n", "ml", "python"].
func BuildExecInfoFromCommand(command []string, args ...string) ExecInfo {
	if len(command) == 0 {
		return ExecInfo{Args: append([]string{}, args...)}
	}
	all := make([]string, 0, len(command)-1+len(args))
	all = append(all, command[1:]...)
	all = append(all, args...)
	return ExecInfo{
		Command:          command[0],
		Args:             all,
		PythonExecutable: command[len(command)-1],
	}
}
