package builtin

import (
	"strings"

	"github.com/dm-vev/botmanager/server/cmd"
)

type listCommand struct {
	srv serverAdapter
}

func newListCommand(srv serverAdapter) cmd.Command {
	return cmd.New("list", "Lists players currently online.", []string{"players"}, listCommand{srv: srv})
}

func (l listCommand) Run(_ cmd.Source, o *cmd.Output) {
	names := l.srv.Players()
	o.Printf("There are %d players online.", len(names))
	if len(names) != 0 {
		o.Print(strings.Join(names, ", "))
	}
}
