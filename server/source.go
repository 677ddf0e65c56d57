package server

import (
	"github.com/dm-vev/botmanager/server/cmd"
)

// playerSource is the command source of a player typing a plugin command in
// chat. Output is sent back to the player with tellraw.
type playerSource struct {
	srv  *Server
	name string
}

func (srv *Server) playerSource(name string) cmd.Source {
	return playerSource{srv: srv, name: name}
}

// Name returns the name of the player.
func (p playerSource) Name() string {
	return p.name
}

// PermissionLevel returns the configured permission level of the player.
func (p playerSource) PermissionLevel() int {
	return p.srv.PermissionLevel(p.name)
}

// Player reports that the source is an in-game player.
func (p playerSource) Player() bool {
	return true
}

// SendCommandOutput sends messages to the player, errors in red.
func (p playerSource) SendCommandOutput(o *cmd.Output) {
	for _, m := range o.Messages() {
		p.tell(m.String())
	}
	for _, err := range o.Errors() {
		p.tell("§c" + err.Error())
	}
}

func (p playerSource) tell(message string) {
	if err := p.srv.Tell(p.name, message); err != nil {
		p.srv.log.Debug("Send command output.", "player", p.name, "error", err)
	}
}
