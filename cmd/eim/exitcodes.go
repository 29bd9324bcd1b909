package main

import "os"

// Exit codes for the distinguishable failure modes, so scripts can
// branch without parsing output.
const (
	ExitSuccess = 0

	ExitGeneral = 1

	ExitUsage = 2

	// ExitInstallFailed indicates the installation pipeline emitted a
	// terminal Error event.
	ExitInstallFailed = 3

	// ExitNotFound indicates a named installation does not exist.
	ExitNotFound = 4

	ExitCancelled = 5
)

func exitWithCode(code int) {
	os.Exit(code)
}
