package utils

import (
	"fmt"
	"io"
	"os"
)

var (
	verbose       bool
	verboseOutput io.Writer = os.Stderr
)

func SetVerbose(v bool) {
	verbose = v
}

// SetVerboseOutput redirects verbose lines, stderr by default so they do not
// mix with tables on stdout.
func SetVerboseOutput(w io.Writer) {
	verboseOutput = w
}

func VerbosePrintln(format string, a ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(verboseOutput, format, a...)
	fmt.Fprintln(verboseOutput)
}
