package helpers

import (
	"fmt"
	"io"
)

// MustFprintln is fmt.Fprintln for writers where a failed write means the output is unusable
// anyway (the console, a report file being generated).
func MustFprintln(w io.Writer, a ...any) {
	if _, err := fmt.Fprintln(w, a...); err != nil {
		panic(err)
	}
}

// MustFprintf is the Fprintf counterpart of MustFprintln.
func MustFprintf(w io.Writer, format string, a ...any) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		panic(err)
	}
}
