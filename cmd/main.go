package main

import (
	"fmt"
	"os"

	"github.com/rony4d/go-peerz/cmd/peerz/launcher"
)

func main() {

	// Hand the full list of command-line arguments to the launcher
	if err := launcher.Launch(os.Args); err != nil {

		// Report the issue to stderr so the user sees it
		fmt.Fprintln(os.Stderr, "Error:", err)

		// Exit with a non-zero status code to indicate failure
		os.Exit(1)
	}
}
