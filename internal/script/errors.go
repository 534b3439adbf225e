package script

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned for an action keyword the language does not define.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgument is returned when an action's arguments do not fit its shape.
	ErrInvalidArgument = errors.New("invalid argument")
)

// SyntaxError attributes a decode failure to a source line.
type SyntaxError struct {
	Line int
	Raw  string
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Raw, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
