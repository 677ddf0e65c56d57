// Package command implements the `bot` command tree of the bot manager.
package command

import (
	"errors"
	"log/slog"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/plugins/botmanager/lang"
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/dm-vev/botmanager/server/cmd"
)

// Permissions holds the minimum permission level of each sub command.
type Permissions struct {
	List   int
	Spawn  int
	Kill   int
	Action int
	Tags   int
	Info   int
	Save   int
	Delete int
	Config int
}

// Config configures a Handler.
type Config struct {
	// Name is the name of the root command. It defaults to bot.
	Name string
	// Prefix is the command prefix shown in replies, such as !!.
	Prefix      string
	Manager     *bot.Manager
	Lang        *lang.Lang
	Permissions Permissions
	// Run runs fn on a worker. Spawning and killing bots are run through
	// it. It defaults to running fn directly.
	Run func(fn func())
	Log *slog.Logger
}

// Handler translates the `bot` command tree into Manager operations and
// formats their results.
type Handler struct {
	conf Config
	m    *bot.Manager
	l    *lang.Lang
	log  *slog.Logger
}

// New creates a Handler using the Config.
func (conf Config) New() *Handler {
	if conf.Name == "" {
		conf.Name = "bot"
	}
	if conf.Run == nil {
		conf.Run = func(fn func()) { fn() }
	}
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	return &Handler{conf: conf, m: conf.Manager, l: conf.Lang, log: conf.Log}
}

// Command returns the root command, to be registered with the host.
func (h *Handler) Command() cmd.Command {
	return cmd.New(h.conf.Name, "Manages bots.", nil,
		rootCommand{h: h},
		helpCommand{h: h},
		listCommand{h: h},
		spawnCommand{h: h},
		killCommand{h: h},
		actionCommand{h: h},
		tagsCommand{h: h},
		tagCommand{h: h},
		tagRunCommand{h: h},
		infoCommand{h: h},
		saveCommand{h: h},
		saveAtCommand{h: h},
		delCommand{h: h},
		configCommand{h: h},
	)
}

func (h *Handler) root() string {
	return h.conf.Prefix + h.conf.Name
}

// player returns the name of src if it is a player, or an empty string.
func player(src cmd.Source) string {
	if cmd.IsPlayer(src) {
		return src.Name()
	}
	return ""
}

// async runs fn through the worker and sends the output it wrote to src once
// it returns.
func (h *Handler) async(src cmd.Source, fn func(o *cmd.Output)) {
	h.conf.Run(func() {
		o := &cmd.Output{}
		fn(o)
		src.SendCommandOutput(o)
	})
}

var botErrorKeys = map[error]string{
	bot.ErrBotNotExists:     "error.bot_not_exists",
	bot.ErrBotAlreadyExists: "error.bot_already_exists",
	bot.ErrBotOnline:        "error.bot_online",
	bot.ErrBotOffline:       "error.bot_offline",
	bot.ErrBotAlreadySaved:  "error.bot_already_saved",
	bot.ErrBotNotSaved:      "error.bot_not_saved",
}

// fail adds the translated message of err to o.
func (h *Handler) fail(o *cmd.Output, err error) {
	var (
		botErr    *bot.BotError
		listErr   bot.IllegalListIndexError
		actionErr bot.IllegalActionIndexError
		tagIdxErr bot.IllegalTagIndexError
		tagErr    bot.TagNotExistsError
		nameErr   bot.IllegalNameError
		dimErr    location.IllegalDimensionError
	)
	switch {
	case errors.As(err, &botErr):
		if key, ok := botErrorKeys[botErr.Kind]; ok {
			o.Error(h.l.F(key, botErr.Name))
			return
		}
	case errors.As(err, &listErr):
		o.Error(h.l.F("error.illegal_list_index", listErr.Index, listErr.Max))
		return
	case errors.As(err, &actionErr):
		o.Error(h.l.F("error.illegal_action_index", actionErr.Index))
		return
	case errors.As(err, &tagIdxErr):
		o.Error(h.l.F("error.illegal_tag_index", tagIdxErr.Index))
		return
	case errors.As(err, &tagErr):
		o.Error(h.l.F("error.tag_not_exists", tagErr.Tag))
		return
	case errors.As(err, &nameErr):
		o.Error(h.l.F("error.illegal_name", nameErr.Name))
		return
	case errors.As(err, &dimErr):
		o.Error(h.l.F("error.illegal_dimension", dimErr.Value))
		return
	}
	h.log.Error("Bot command failed.", "error", err)
	o.Error(h.l.F("error.failed", err.Error()))
}

// allow returns an Allow function for the permission level passed.
func allow(src cmd.Source, level int) bool {
	return src.PermissionLevel() >= level
}

type rootCommand struct {
	h *Handler
}

func (c rootCommand) Run(_ cmd.Source, o *cmd.Output) {
	c.h.help(o)
}

type helpCommand struct {
	Help cmd.SubCommand `cmd:"help"`
	h    *Handler
}

func (c helpCommand) Run(_ cmd.Source, o *cmd.Output) {
	c.h.help(o)
}

func (h *Handler) help(o *cmd.Output) {
	for _, line := range h.l.Lines("help", h.root()) {
		o.Print(line)
	}
}
