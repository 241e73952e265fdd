// Command studymate is the entry point for the StudyMate study assistant.
// It ingests course material into a local library, answers questions with
// page-level citations, and can expose the library over an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/cmd/studymate/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
