package command

import (
	"flag"
	"io"
	"strings"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/server/cmd"
)

type listCommand struct {
	List  cmd.SubCommand            `cmd:"list"`
	Flags cmd.Optional[cmd.Arguments] `cmd:"flags"`
	h     *Handler
}

func (c listCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.List)
}

func (c listCommand) Run(_ cmd.Source, o *cmd.Output) {
	flags, _ := c.Flags.Load()
	q, err := parseListFlags(flags)
	if err != nil {
		o.Error(c.h.l.F("error.failed", err.Error()))
		return
	}
	page, err := c.h.m.List(q)
	if err != nil {
		c.h.fail(o, err)
		return
	}
	c.h.printPage(o, page, q)
}

// parseListFlags parses `--index N --online --saved --tag T`. If neither
// --online nor --saved is passed, both online and saved bots are listed.
func parseListFlags(args []string) (bot.ListQuery, error) {
	var q bot.ListQuery
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&q.Index, "index", 0, "page index")
	fs.BoolVar(&q.Online, "online", false, "list online bots")
	fs.BoolVar(&q.Saved, "saved", false, "list saved bots")
	fs.StringVar(&q.Tag, "tag", "", "only list bots with the tag")
	if err := fs.Parse(args); err != nil {
		return q, err
	}
	if fs.NArg() != 0 {
		return q, flagError(fs.Args())
	}
	if !q.Online && !q.Saved {
		q.Online, q.Saved = true, true
	}
	return q, nil
}

type flagError []string

func (e flagError) Error() string {
	return "unexpected arguments: " + strings.Join(e, " ")
}

func (h *Handler) printPage(o *cmd.Output, page bot.Page, q bot.ListQuery) {
	if page.Total == 0 {
		o.Print(h.l.F("list.empty"))
		return
	}
	o.Print(h.l.F("list.title", page.Index, page.MaxIndex, page.Total))
	for _, info := range page.Bots {
		o.Print(h.l.F("list.entry", info.Name, info.Comment, h.state(info)))
	}
	if page.Index < page.MaxIndex {
		o.Print(h.l.F("list.next", h.root(), page.Index+1))
	}
}

func (h *Handler) state(info bot.Info) string {
	state := h.l.F("list.offline")
	if info.Online {
		state = h.l.F("list.online")
	}
	if info.Saved {
		state += " " + h.l.F("list.saved")
	}
	return state
}
