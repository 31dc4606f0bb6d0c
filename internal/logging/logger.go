package logging

import (
	"io"
	"log"
	"os"
)

// New returns a stdout logger prefixed with the component name.
func New(component string) *log.Logger {
	return NewWriter(component, os.Stdout)
}

// NewWriter is New with an explicit destination, used by tests and by the
// fatal path which writes to stderr.
func NewWriter(component string, w io.Writer) *log.Logger {
	prefix := component
	if prefix != "" {
		prefix = "[" + component + "] "
	}

	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Discard is a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
