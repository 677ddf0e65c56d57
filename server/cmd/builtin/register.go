package builtin

import (
	"github.com/dm-vev/botmanager/server/cmd"
)

// Register registers the built-in command set on the provided server.
func Register(srv serverAdapter) {
	cmd.Register(newHelpCommand(srv))
	cmd.Register(newListCommand(srv))
	cmd.Register(newStatusCommand(srv))
	cmd.Register(newAboutCommand(srv))
	cmd.Register(newPluginCommand(srv))
	cmd.Register(newStopCommand(srv))
}
