package logging

import (
	"io"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

// Setup installs the CLI handler on w as the process-wide logger and returns it.
func Setup(w io.Writer, verbose bool) log.Interface {
	log.SetHandler(cli.New(w))
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	return log.Log
}
