package main

import (
	"fmt"
	"os"

	"github.com/crytic/schlau/cmd"
	"github.com/crytic/schlau/cmd/exitcodes"
)

func main() {
	err := cmd.Execute()

	// Handled errors were already reported by the command that raised them.
	var exitCode int
	err, exitCode = exitcodes.GetInnerErrorAndExitCode(err)
	if err != nil && exitCode != exitcodes.ExitCodeHandledError {
		fmt.Fprintln(os.Stderr, err)
	}

	if exitCode != exitcodes.ExitCodeSuccess {
		os.Exit(exitCode)
	}
}
