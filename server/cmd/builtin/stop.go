package builtin

import (
	"github.com/dm-vev/botmanager/server/cmd"
)

type stopCommand struct {
	srv serverAdapter
}

func newStopCommand(srv serverAdapter) cmd.Command {
	return cmd.New("stop", "Stops the server.", nil, stopCommand{srv: srv})
}

func (s stopCommand) Run(_ cmd.Source, o *cmd.Output) {
	o.Print("Stopping server...")
	if err := s.srv.Close(); err != nil {
		o.Error(err)
	}
}

// Allow only lets the console stop the server. Player commands run on the
// goroutine reading the server output, which stop waits for.
func (stopCommand) Allow(src cmd.Source) bool {
	return !cmd.IsPlayer(src)
}
