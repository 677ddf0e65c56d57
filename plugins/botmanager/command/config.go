package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/dm-vev/botmanager/server/cmd"
)

type configField string

func (configField) Type() string { return "field" }

func (configField) Options(cmd.Source) []string {
	return []string{"name", "position", "facing", "dimension", "comment", "actions", "tags", "autoLogin", "autoRunActions", "autoUpdate"}
}

type configCommand struct {
	Config cmd.SubCommand            `cmd:"config"`
	Name   string                    `cmd:"name"`
	Field  configField               `cmd:"field"`
	Value  cmd.Optional[cmd.Varargs] `cmd:"value"`
	h      *Handler
}

func (c configCommand) Allow(src cmd.Source) bool {
	return allow(src, c.h.conf.Permissions.Config)
}

// errMissingValue and invalidValueError are replied to with the field the
// value belongs to.
var errMissingValue = errors.New("missing value")

type invalidValueError struct {
	value string
}

func (e invalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q", e.value)
}

func (c configCommand) Run(_ cmd.Source, o *cmd.Output) {
	value, _ := c.Value.Load()
	args := strings.TrimSpace(string(value))
	field := string(c.Field)

	var (
		info bot.Info
		err  error
	)
	if field == "name" {
		if args == "" {
			err = errMissingValue
		} else {
			info, err = c.h.m.Rename(c.Name, args)
		}
	} else {
		info, err = c.h.m.Configure(c.Name, func(b *bot.Bot) error {
			return configure(b, field, args)
		})
	}

	var invalid invalidValueError
	switch {
	case errors.Is(err, errMissingValue):
		o.Error(c.h.l.F("config.missing_value", field))
	case errors.As(err, &invalid):
		o.Error(c.h.l.F("config.invalid_value", invalid.value, field))
	case err != nil:
		c.h.fail(o, err)
	default:
		o.Print(c.h.l.F("config.success", field, info.Name))
	}
}

// configure sets field of b from the arguments passed.
func configure(b *bot.Bot, field, args string) error {
	switch field {
	case "position":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		loc := b.Location()
		copy(loc.Position[:], v)
		b.SetLocation(loc)
	case "facing":
		v, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		loc := b.Location()
		copy(loc.Facing[:], v)
		b.SetLocation(loc)
	case "dimension":
		if args == "" {
			return errMissingValue
		}
		dim, err := location.ParseDimension(args)
		if err != nil {
			return err
		}
		loc := b.Location()
		loc.Dimension = dim
		b.SetLocation(loc)
	case "comment":
		b.SetComment(args)
	case "actions":
		return editList(args, listEditor{
			append: b.AppendAction,
			insert: b.InsertAction,
			delete: b.DeleteAction,
			edit:   b.EditAction,
			clear:  b.ClearActions,
		})
	case "tags":
		return editList(args, listEditor{
			append: b.AppendTag,
			insert: b.InsertTag,
			delete: b.DeleteTag,
			edit:   b.EditTag,
			clear:  b.ClearTags,
		})
	case "autoLogin", "autoRunActions", "autoUpdate":
		if args == "" {
			return errMissingValue
		}
		v, err := strconv.ParseBool(args)
		if err != nil {
			return invalidValueError{value: args}
		}
		switch field {
		case "autoLogin":
			b.SetAutoLogin(v)
		case "autoRunActions":
			b.SetAutoRunActions(v)
		default:
			b.SetAutoUpdate(v)
		}
	}
	return nil
}

func parseFloats(args string, n int) ([]float64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, errMissingValue
	}
	if len(fields) != n {
		return nil, invalidValueError{value: args}
	}
	v := make([]float64, n)
	for i, f := range fields {
		var err error
		if v[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, invalidValueError{value: f}
		}
	}
	return v, nil
}

type listEditor struct {
	append func(string)
	insert func(int, string) error
	delete func(int) error
	edit   func(int, string) error
	clear  func()
}

// editList applies `append <v>`, `insert <i> <v>`, `delete <i>`,
// `edit <i> <v>` or `clear` to a list of the bot.
func editList(args string, e listEditor) error {
	op, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)
	switch op {
	case "":
		return errMissingValue
	case "clear":
		e.clear()
		return nil
	case "append":
		if rest == "" {
			return errMissingValue
		}
		e.append(rest)
		return nil
	case "insert", "delete", "edit":
	default:
		return invalidValueError{value: op}
	}

	indexArg, value, _ := strings.Cut(rest, " ")
	value = strings.TrimSpace(value)
	if indexArg == "" {
		return errMissingValue
	}
	index, err := strconv.Atoi(indexArg)
	if err != nil {
		return invalidValueError{value: indexArg}
	}
	if op == "delete" {
		return e.delete(index)
	}
	if value == "" {
		return errMissingValue
	}
	if op == "insert" {
		return e.insert(index, value)
	}
	return e.edit(index, value)
}
