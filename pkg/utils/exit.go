package utils

import (
	"fmt"
	"io"
	"os"
)

var (
	exitOutput io.Writer = os.Stderr
	exit                 = os.Exit
)

// CheckErrorAndExit prints msg and err and exits with status 1 when err is
// not nil.
func CheckErrorAndExit(err error, msg string) {
	if err == nil {
		return
	}
	fmt.Fprintf(exitOutput, "%s: %s\n", msg, err)
	exit(1)
}
