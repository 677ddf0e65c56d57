package cmd

import (
	"regexp"
)

// argPattern splits a command line into arguments, keeping quoted arguments
// such as "two words" together.
var argPattern = regexp.MustCompile(`"([^"]*)"|(\S+)`)

// Line holds the arguments of a command line that are yet to be parsed.
type Line struct {
	args []string
}

func newLine(args string) *Line {
	return &Line{args: splitArgs(args)}
}

func splitArgs(s string) []string {
	matches := argPattern.FindAllStringSubmatch(s, -1)
	args := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[2] != "" {
			args = append(args, m[2])
			continue
		}
		args = append(args, m[1])
	}
	return args
}

// Next returns the next argument without consuming it.
func (l *Line) Next() (string, bool) {
	if len(l.args) == 0 {
		return "", false
	}
	return l.args[0], true
}

// RemoveNext consumes the next argument.
func (l *Line) RemoveNext() {
	if len(l.args) == 0 {
		return
	}
	l.args = l.args[1:]
}

// RemoveAll consumes and returns all remaining arguments.
func (l *Line) RemoveAll() []string {
	args := l.args
	l.args = nil
	return args
}

// Leftover returns the arguments that have not been consumed.
func (l *Line) Leftover() []string {
	return l.args
}

// Len returns the number of arguments left.
func (l *Line) Len() int {
	return len(l.args)
}
