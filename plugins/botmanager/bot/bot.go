package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/dm-vev/botmanager/server"
	"github.com/google/uuid"
)

// Executor executes raw server commands.
type Executor interface {
	Execute(command string) error
}

// Locator returns the live location of a connected player.
type Locator func(player string) (location.Location, error)

// NamePlaceholder is replaced with the in-game name of the bot in actions
// containing it. Such actions are executed as they are instead of being
// passed to the `player` command.
const NamePlaceholder = "{name}"

// Gamemode is the game mode applied to bots once they joined.
type Gamemode struct {
	// Mode is the game mode name, such as survival. No game mode is applied
	// if it is empty.
	Mode string
	// Force applies Mode to bots that are not saved as well.
	Force bool
}

// env holds the collaborators of the bots of one Manager.
type env struct {
	exec     Executor
	locate   Locator
	gamemode Gamemode
	persist  func() error
	log      *slog.Logger
}

func (e *env) execute(command string) error {
	if e.exec == nil {
		return nil
	}
	if err := e.exec.Execute(command); err != nil {
		return fmt.Errorf("execute %q: %w", command, err)
	}
	return nil
}

// Bot is a fake player controlled through the carpet `player` command. Bots
// are owned by a Manager; they are only handed out under its lock through
// Manager.Configure.
type Bot struct {
	env *env

	name     string
	mcName   string
	location location.Location
	comment  string
	actions  []string
	tags     []string

	autoLogin      bool
	autoRunActions bool
	autoUpdate     bool

	online bool
	saved  bool
}

func newBot(e *env, rec Record) *Bot {
	return &Bot{
		env:            e,
		name:           rec.Name,
		location:       rec.Location,
		comment:        rec.Comment,
		actions:        slices.Clone(rec.Actions),
		tags:           slices.Clone(rec.Tags),
		autoLogin:      rec.AutoLogin,
		autoRunActions: rec.AutoRunActions,
		autoUpdate:     rec.AutoUpdate,
	}
}

func (b *Bot) Name() string                    { return b.name }
func (b *Bot) Location() location.Location     { return b.location }
func (b *Bot) Comment() string                 { return b.comment }
func (b *Bot) Actions() []string               { return slices.Clone(b.actions) }
func (b *Bot) Tags() []string                  { return slices.Clone(b.tags) }
func (b *Bot) AutoLogin() bool                 { return b.autoLogin }
func (b *Bot) AutoRunActions() bool            { return b.autoRunActions }
func (b *Bot) AutoUpdate() bool                { return b.autoUpdate }
func (b *Bot) Online() bool                    { return b.online }
func (b *Bot) Saved() bool                     { return b.saved }
func (b *Bot) SetLocation(l location.Location) { b.location = l }
func (b *Bot) SetComment(comment string)       { b.comment = comment }
func (b *Bot) SetActions(actions []string)     { b.actions = slices.Clone(actions) }
func (b *Bot) SetTags(tags []string)           { b.tags = slices.Clone(tags) }
func (b *Bot) SetAutoLogin(v bool)             { b.autoLogin = v }
func (b *Bot) SetAutoRunActions(v bool)        { b.autoRunActions = v }
func (b *Bot) SetAutoUpdate(v bool)            { b.autoUpdate = v }
func (b *Bot) SetOnline(v bool)                { b.online = v }
func (b *Bot) SetSaved(v bool)                 { b.saved = v }

// MCName returns the in-game name of the bot. It falls back to the name of
// the bot if it never joined.
func (b *Bot) MCName() string {
	if b.mcName == "" {
		return b.name
	}
	return b.mcName
}

// HasTag reports if the bot carries tag.
func (b *Bot) HasTag(tag string) bool {
	return slices.Contains(b.tags, tag)
}

// Spawn sends the command spawning the bot at its location. The bot only
// becomes online once Spawned is called for the join.
func (b *Bot) Spawn() error {
	if b.online {
		return botError(ErrBotOnline, b.name)
	}
	p, f := b.location.Position, b.location.Facing
	return b.env.execute(fmt.Sprintf("player %s spawn at %s %s %s facing %s %s in %s",
		b.name, num(p[0]), num(p[1]), num(p[2]), num(f[0]), num(f[1]), b.location.Dimension.ID()))
}

// Spawned marks the bot online under the in-game name mcName. The game mode
// is applied if the bot is saved or the game mode is forced, and the actions
// are run if auto run actions is set.
func (b *Bot) Spawned(mcName string) error {
	b.online = true
	b.mcName = mcName
	if mode := b.env.gamemode.Mode; mode != "" && (b.saved || b.env.gamemode.Force) {
		if err := b.env.execute("gamemode " + mode + " " + b.MCName()); err != nil {
			return err
		}
	}
	if b.autoRunActions {
		return b.RunActions()
	}
	return nil
}

// Kill sends the command removing the bot from the game. With auto update
// set, the location of the bot is refreshed from its live position and
// persisted first. The bot stays online if the command could not be sent.
func (b *Bot) Kill() error {
	if !b.online {
		return botError(ErrBotOffline, b.name)
	}
	if b.autoUpdate && b.env.locate != nil {
		loc, err := b.env.locate(b.MCName())
		if err != nil {
			b.env.log.Warn("Could not update bot location.", "bot", b.name, "error", err)
		} else {
			b.location = loc
			if b.saved && b.env.persist != nil {
				if err := b.env.persist(); err != nil {
					b.env.log.Error("Persist updated bot location.", "bot", b.name, "error", err)
				}
			}
		}
	}
	if err := b.env.execute("player " + b.MCName() + " kill"); err != nil {
		return err
	}
	b.online = false
	return nil
}

// RunActions runs every action of the bot in order.
func (b *Bot) RunActions() error {
	if !b.online {
		return botError(ErrBotOffline, b.name)
	}
	for _, action := range b.actions {
		if err := b.env.execute(b.actionCommand(action)); err != nil {
			return err
		}
	}
	return nil
}

// RunAction runs the action at index, which must be in [0, len(actions)).
func (b *Bot) RunAction(index int) error {
	if !b.online {
		return botError(ErrBotOffline, b.name)
	}
	if index < 0 || index >= len(b.actions) {
		return IllegalActionIndexError{Index: index}
	}
	return b.env.execute(b.actionCommand(b.actions[index]))
}

func (b *Bot) actionCommand(action string) string {
	if strings.Contains(action, NamePlaceholder) {
		return strings.ReplaceAll(action, NamePlaceholder, b.MCName())
	}
	return "player " + b.MCName() + " " + action
}

// AppendAction adds an action to the end of the action list.
func (b *Bot) AppendAction(action string) {
	b.actions = append(b.actions, action)
}

// InsertAction inserts an action at index, which may equal the length of the
// action list.
func (b *Bot) InsertAction(index int, action string) error {
	if index < 0 || index > len(b.actions) {
		return IllegalActionIndexError{Index: index}
	}
	b.actions = slices.Insert(b.actions, index, action)
	return nil
}

// DeleteAction removes the action at index.
func (b *Bot) DeleteAction(index int) error {
	if index < 0 || index >= len(b.actions) {
		return IllegalActionIndexError{Index: index}
	}
	b.actions = slices.Delete(b.actions, index, index+1)
	return nil
}

// EditAction replaces the action at index.
func (b *Bot) EditAction(index int, action string) error {
	if index < 0 || index >= len(b.actions) {
		return IllegalActionIndexError{Index: index}
	}
	b.actions[index] = action
	return nil
}

// ClearActions removes all actions.
func (b *Bot) ClearActions() { b.actions = nil }

// AppendTag adds a tag to the end of the tag list.
func (b *Bot) AppendTag(tag string) {
	b.tags = append(b.tags, tag)
}

// InsertTag inserts a tag at index, which may equal the length of the tag
// list.
func (b *Bot) InsertTag(index int, tag string) error {
	if index < 0 || index > len(b.tags) {
		return IllegalTagIndexError{Index: index}
	}
	b.tags = slices.Insert(b.tags, index, tag)
	return nil
}

// DeleteTag removes the tag at index.
func (b *Bot) DeleteTag(index int) error {
	if index < 0 || index >= len(b.tags) {
		return IllegalTagIndexError{Index: index}
	}
	b.tags = slices.Delete(b.tags, index, index+1)
	return nil
}

// EditTag replaces the tag at index.
func (b *Bot) EditTag(index int, tag string) error {
	if index < 0 || index >= len(b.tags) {
		return IllegalTagIndexError{Index: index}
	}
	b.tags[index] = tag
	return nil
}

// ClearTags removes all tags.
func (b *Bot) ClearTags() { b.tags = nil }

// SavingData returns the persisted record of the bot.
func (b *Bot) SavingData() Record {
	return Record{
		Name:           b.name,
		Location:       b.location,
		Comment:        b.comment,
		Actions:        nonNil(b.actions),
		Tags:           nonNil(b.tags),
		AutoLogin:      b.autoLogin,
		AutoRunActions: b.autoRunActions,
		AutoUpdate:     b.autoUpdate,
	}
}

// Info returns a snapshot of the bot.
func (b *Bot) Info() Info {
	return Info{
		Record: b.SavingData(),
		MCName: b.MCName(),
		UUID:   server.OfflineUUID(b.MCName()),
		Online: b.online,
		Saved:  b.saved,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Info is an immutable snapshot of a Bot.
type Info struct {
	Record
	MCName string    `json:"mcName"`
	UUID   uuid.UUID `json:"uuid"`
	Online bool      `json:"online"`
	Saved  bool      `json:"saved"`
}

// HasTag reports if the bot carries tag.
func (i Info) HasTag(tag string) bool {
	return slices.Contains(i.Tags, tag)
}

// Record is the persisted form of a Bot.
type Record struct {
	Name           string            `json:"name"`
	Location       location.Location `json:"location"`
	Comment        string            `json:"comment"`
	Actions        []string          `json:"actions"`
	Tags           []string          `json:"tags"`
	AutoLogin      bool              `json:"autoLogin"`
	AutoRunActions bool              `json:"autoRunActions"`
	AutoUpdate     bool              `json:"autoUpdate"`
}
