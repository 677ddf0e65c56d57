package command

import (
	"github.com/dm-vev/botmanager/server/cmd"
)

type spawnCommand struct {
	Spawn cmd.SubCommand `cmd:"spawn"`
	Name  string         `cmd:"name"`
	h     *Handler
}

func (c spawnCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Spawn)
}

func (c spawnCommand) Run(src cmd.Source, _ *cmd.Output) {
	p := player(src)
	c.h.async(src, func(o *cmd.Output) {
		info, err := c.h.m.Spawn(c.Name, p)
		if err != nil {
			c.h.fail(o, err)
			return
		}
		o.Print(c.h.l.F("spawn.success", info.Name))
	})
}

type killCommand struct {
	Kill cmd.SubCommand `cmd:"kill"`
	Name string         `cmd:"name"`
	h    *Handler
}

func (c killCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Kill)
}

func (c killCommand) Run(src cmd.Source, _ *cmd.Output) {
	c.h.async(src, func(o *cmd.Output) {
		info, err := c.h.m.Kill(c.Name)
		if err != nil {
			c.h.fail(o, err)
			return
		}
		o.Print(c.h.l.F("kill.success", info.Name))
	})
}

type actionCommand struct {
	Action cmd.SubCommand    `cmd:"action"`
	Name   string            `cmd:"name"`
	Index  cmd.Optional[int] `cmd:"index"`
	h      *Handler
}

func (c actionCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Action)
}

func (c actionCommand) Run(_ cmd.Source, o *cmd.Output) {
	if index, ok := c.Index.Load(); ok {
		info, err := c.h.m.RunAction(c.Name, index)
		if err != nil {
			c.h.fail(o, err)
			return
		}
		o.Print(c.h.l.F("action.index", index, info.Name))
		return
	}
	info, err := c.h.m.RunActions(c.Name)
	if err != nil {
		c.h.fail(o, err)
		return
	}
	o.Print(c.h.l.F("action.success", info.Name))
}
