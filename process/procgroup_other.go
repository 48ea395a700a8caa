//go:build !unix

package process

import "os/exec"

// killGroupOnCancel keeps the default cancellation, which kills only the
// direct child. waitDelay still bounds how long Wait blocks on descendants.
func killGroupOnCancel(cmd *exec.Cmd) {}
