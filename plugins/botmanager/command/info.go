package command

import (
	"strings"

	"github.com/dm-vev/botmanager/server/cmd"
)

type infoCommand struct {
	Info cmd.SubCommand `cmd:"info"`
	Name string         `cmd:"name"`
	h    *Handler
}

func (c infoCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Info)
}

func (c infoCommand) Run(_ cmd.Source, o *cmd.Output) {
	info, err := c.h.m.Bot(c.Name)
	if err != nil {
		c.h.fail(o, err)
		return
	}
	l := c.h.l
	none := l.F("info.none")
	or := func(s string) string {
		if s == "" {
			return none
		}
		return s
	}

	o.Print(l.F("info.name", info.Name, info.MCName))
	o.Print(l.F("info.comment", or(info.Comment)))
	o.Print(l.F("info.location", info.Location.Display()))
	if len(info.Actions) == 0 {
		o.Print(l.F("info.actions", none))
	} else {
		o.Print(l.F("info.actions", ""))
		for i, action := range info.Actions {
			o.Print(l.F("info.action", i, action))
		}
	}
	o.Print(l.F("info.tags", or(strings.Join(info.Tags, ", "))))
	o.Print(l.F("info.flags", c.yesNo(info.AutoLogin), c.yesNo(info.AutoRunActions), c.yesNo(info.AutoUpdate)))
	o.Print(l.F("info.state", c.h.state(info)))
	o.Print(l.F("info.uuid", info.UUID.String()))
}

func (c infoCommand) yesNo(v bool) string {
	if v {
		return c.h.l.F("info.true")
	}
	return c.h.l.F("info.false")
}
