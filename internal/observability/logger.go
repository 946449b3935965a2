// Package observability holds the process-wide CLI logger.
package observability

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/logging"
)

// CLILogger is used by all CLI commands (SIMPLE profile).
var CLILogger *logging.Logger

// InitCLILogger initializes the CLI logger. Verbose raises the level
// to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize CLI logger: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}
