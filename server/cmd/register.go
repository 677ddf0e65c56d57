package cmd

import (
	"sync"
)

// commands holds a list of registered commands indexed by their name and
// aliases.
var commands sync.Map

// Register registers a command with its name and all aliases that it has. Any
// command with the same name or aliases will be overwritten.
func Register(command Command) {
	for _, alias := range command.aliases {
		commands.Store(alias, command)
	}
}

// Unregister removes a command and all of its aliases, if they still map to
// a command with the same name.
func Unregister(name string) {
	command, ok := ByAlias(name)
	if !ok {
		return
	}
	for _, alias := range command.aliases {
		if c, ok := ByAlias(alias); ok && c.name == command.name {
			commands.Delete(alias)
		}
	}
}

// ByAlias looks up a command by an alias. If found, the command and true are
// returned. If not, the returned command is empty and false.
func ByAlias(alias string) (Command, bool) {
	command, ok := commands.Load(alias)
	if !ok {
		return Command{}, false
	}
	return command.(Command), true
}

// Commands returns a map of all registered commands indexed by the alias they
// were registered with.
func Commands() map[string]Command {
	cmd := make(map[string]Command)
	commands.Range(func(key, value any) bool {
		cmd[key.(string)] = value.(Command)
		return true
	})
	return cmd
}
