package cmd

import (
	"errors"
	"fmt"
)

// Translation is a message format shared by commands so that common failures
// read the same everywhere.
type Translation string

// F formats the Translation with the arguments passed.
func (t Translation) F(a ...any) string {
	return fmt.Sprintf(string(t), a...)
}

const (
	MessageUnknown          Translation = "Unknown command: %v. Please check that the command exists and that you have permission to use it."
	MessagePermission       Translation = "You do not have permission to use this command."
	MessageUsage            Translation = "Usage: %v"
	MessageParameterInvalid Translation = "Invalid parameter: %v"
	MessageMissingArgs      Translation = "Missing argument: %v"
	MessageUnexpectedArgs   Translation = "Unexpected arguments: %v"
	MessageNumberInvalid    Translation = "Invalid number: %v"
	MessageBooleanInvalid   Translation = "Invalid boolean: %v"
)

// Output holds the output of a command execution. It holds success messages
// and error messages, which the Source executing the command receives.
type Output struct {
	errors   []error
	messages []fmt.Stringer
}

type message string

func (m message) String() string { return string(m) }

// Errorf formats an error message and adds it to the command output.
func (o *Output) Errorf(format string, a ...any) {
	o.errors = append(o.errors, fmt.Errorf(format, a...))
}

// Error formats an error message and adds it to the command output.
func (o *Output) Error(a ...any) {
	o.errors = append(o.errors, errors.New(fmt.Sprint(a...)))
}

// Errort adds a Translation as an error message to the command output.
func (o *Output) Errort(t Translation, a ...any) {
	o.errors = append(o.errors, errors.New(t.F(a...)))
}

// Printf formats a (success) message and adds it to the command output.
func (o *Output) Printf(format string, a ...any) {
	o.messages = append(o.messages, message(fmt.Sprintf(format, a...)))
}

// Print formats a (success) message and adds it to the command output.
func (o *Output) Print(a ...any) {
	o.messages = append(o.messages, message(fmt.Sprint(a...)))
}

// Printt adds a Translation as a message to the command output.
func (o *Output) Printt(t Translation, a ...any) {
	o.messages = append(o.messages, message(t.F(a...)))
}

// Errors returns a list of all errors added to the command output.
func (o *Output) Errors() []error {
	return o.errors
}

// ErrorCount returns the count of errors that the command output has.
func (o *Output) ErrorCount() int {
	return len(o.errors)
}

// Messages returns a list of all messages added to the command output.
func (o *Output) Messages() []fmt.Stringer {
	return o.messages
}

// MessageCount returns the count of (success) messages that the command
// output has.
func (o *Output) MessageCount() int {
	return len(o.messages)
}
