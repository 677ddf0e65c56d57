package command

import (
	"sort"
	"strings"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/server/cmd"
)

type tagsCommand struct {
	Tags cmd.SubCommand `cmd:"tags"`
	h    *Handler
}

func (c tagsCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Tags)
}

func (c tagsCommand) Run(_ cmd.Source, o *cmd.Output) {
	tags := c.h.m.Tags()
	if len(tags) == 0 {
		o.Print(c.h.l.F("tags.empty"))
		return
	}
	names := make([]string, 0, len(tags))
	for tag := range tags {
		names = append(names, tag)
	}
	sort.Strings(names)
	o.Print(c.h.l.F("tags.title"))
	for _, tag := range names {
		o.Print(c.h.l.F("tags.entry", tag, tags[tag]))
	}
}

type tagCommand struct {
	Tags cmd.SubCommand `cmd:"tags"`
	Tag  string         `cmd:"tag"`
	h    *Handler
}

func (c tagCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Tags)
}

func (c tagCommand) Run(_ cmd.Source, o *cmd.Output) {
	bots := c.h.m.BotsByTag(c.Tag)
	if len(bots) == 0 {
		c.h.fail(o, bot.TagNotExistsError{Tag: c.Tag})
		return
	}
	names := make([]string, len(bots))
	for i, info := range bots {
		names[i] = info.Name
	}
	o.Print(c.h.l.F("tags.bots", c.Tag, strings.Join(names, ", ")))
}

type tagOp string

func (tagOp) Type() string { return "operation" }

func (tagOp) Options(cmd.Source) []string { return []string{"spawn", "kill"} }

type tagRunCommand struct {
	Tags cmd.SubCommand `cmd:"tags"`
	Tag  string         `cmd:"tag"`
	Op   tagOp          `cmd:"operation"`
	h    *Handler
}

func (c tagRunCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Tags)
}

func (c tagRunCommand) Run(src cmd.Source, _ *cmd.Output) {
	c.h.async(src, func(o *cmd.Output) {
		if c.Op == "kill" {
			infos, err := c.h.m.KillTag(c.Tag)
			if err != nil {
				c.h.fail(o, err)
			}
			if len(infos) != 0 || err == nil {
				o.Print(c.h.l.F("tags.kill", len(infos), c.Tag))
			}
			return
		}
		infos, err := c.h.m.SpawnTag(c.Tag)
		if err != nil {
			c.h.fail(o, err)
		}
		if len(infos) != 0 || err == nil {
			o.Print(c.h.l.F("tags.spawn", len(infos), c.Tag))
		}
	})
}
