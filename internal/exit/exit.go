package exit

import (
	"fmt"
	"io"
)

// Stream selects where a Result is printed.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Result is how a command finishes: a message, where it goes and the
// process exit code.
type Result struct {
	Stream   Stream
	ExitCode int
	Message  string
}

// Print writes the message to stdout or stderr according to Stream.
func (r *Result) Print(stdout, stderr io.Writer) {
	w := stdout
	if r.Stream == Stderr {
		w = stderr
	}
	fmt.Fprint(w, r.Message)
}

func Success(message string) *Result {
	return &Result{
		Stream:   Stdout,
		ExitCode: 0,
		Message:  message,
	}
}

func Error(message string) *Result {
	return &Result{
		Stream:   Stderr,
		ExitCode: 1,
		Message:  message,
	}
}

func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}
