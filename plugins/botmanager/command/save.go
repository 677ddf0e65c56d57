package command

import (
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/go-gl/mathgl/mgl64"
)

type saveCommand struct {
	Save cmd.SubCommand `cmd:"save"`
	Name string         `cmd:"name"`
	h    *Handler
}

func (c saveCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Save)
}

func (c saveCommand) Run(src cmd.Source, o *cmd.Output) {
	info, err := c.h.m.Commit(c.Name, player(src))
	if err != nil {
		c.h.fail(o, err)
		return
	}
	o.Print(c.h.l.F("save.success", info.Name, info.Location.Display()))
}

type saveAtCommand struct {
	Save      cmd.SubCommand `cmd:"save"`
	Name      string         `cmd:"name"`
	X         float64        `cmd:"x"`
	Y         float64        `cmd:"y"`
	Z         float64        `cmd:"z"`
	Yaw       float64        `cmd:"yaw"`
	Pitch     float64        `cmd:"pitch"`
	Dimension string         `cmd:"dimension"`
	h         *Handler
}

func (c saveAtCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Save)
}

func (c saveAtCommand) Run(_ cmd.Source, o *cmd.Output) {
	dim, err := location.ParseDimension(c.Dimension)
	if err != nil {
		c.h.fail(o, err)
		return
	}
	loc := location.New(mgl64.Vec3{c.X, c.Y, c.Z}, mgl64.Vec2{c.Yaw, c.Pitch}, dim)
	info, err := c.h.m.Register(c.Name, loc)
	if err != nil {
		c.h.fail(o, err)
		return
	}
	o.Print(c.h.l.F("save.success", info.Name, info.Location.Display()))
}

type delCommand struct {
	Del  cmd.SubCommand `cmd:"del"`
	Name string         `cmd:"name"`
	h    *Handler
}

func (c delCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Delete)
}

func (c delCommand) Run(_ cmd.Source, o *cmd.Output) {
	info, err := c.h.m.Delete(c.Name)
	if err != nil {
		c.h.fail(o, err)
		return
	}
	o.Print(c.h.l.F("del.success", info.Name))
}
