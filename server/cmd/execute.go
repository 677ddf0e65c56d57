package cmd

import (
	"strings"
)

// ExecuteLine executes a command line on behalf of the Source passed. The
// commandLine is expected to include the prefix passed, such as "!!" for chat
// commands. If the command cannot be found, an appropriate error is sent back
// to the Source. The optional before function may be supplied to intercept
// execution; returning false from it will stop execution.
func ExecuteLine(source Source, commandLine, prefix string, before func(Command, []string) bool) {
	if source == nil {
		panic("cmd.ExecuteLine: source must not be nil")
	}
	commandLine = strings.TrimSpace(commandLine)
	if commandLine == "" {
		return
	}
	rest, ok := strings.CutPrefix(commandLine, prefix)
	if !ok {
		return
	}
	name, args, _ := strings.Cut(rest, " ")
	name = strings.ToLower(name)
	if name == "" {
		return
	}

	command, ok := ByAlias(name)
	if !ok {
		output := &Output{}
		output.Errort(MessageUnknown, name)
		source.SendCommandOutput(output)
		return
	}
	if before != nil && !before(command, strings.Fields(args)) {
		return
	}
	command.Execute(args, source)
}
