package command

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/plugins/botmanager/lang"
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sandertv/gophertunnel/minecraft/text"
)

type recordingExecutor struct {
	mu       sync.Mutex
	commands []string
}

func (e *recordingExecutor) Execute(command string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	return nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *memFiles) LoadJSON(name string, v any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (f *memFiles) SaveJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[name] = data
	return nil
}

type testSource struct {
	name   string
	level  int
	player bool
	out    []string
}

func (s *testSource) Name() string         { return s.name }
func (s *testSource) PermissionLevel() int { return s.level }
func (s *testSource) Player() bool         { return s.player }

func (s *testSource) SendCommandOutput(o *cmd.Output) {
	for _, m := range o.Messages() {
		s.out = append(s.out, text.Clean(m.String()))
	}
	for _, err := range o.Errors() {
		s.out = append(s.out, "error: "+text.Clean(err.Error()))
	}
}

func (s *testSource) take() []string {
	out := s.out
	s.out = nil
	return out
}

var steveAt = location.New(mgl64.Vec3{100, 70, -20}, mgl64.Vec2{45, 10}, location.Overworld)

type fixture struct {
	h       *Handler
	m       *bot.Manager
	exec    *recordingExecutor
	c       cmd.Command
	console *testSource
	steve   *testSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	exec := &recordingExecutor{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := bot.Config{
		Server: exec,
		Locate: func(player string) (location.Location, error) {
			if player == "Steve" {
				return steveAt, nil
			}
			return location.Location{}, errors.New("not online")
		},
		Store: bot.NewJSONStore(&memFiles{}, ""),
		Log:   log,
	}.New()
	if err != nil {
		t.Fatalf("bot.Config.New() error = %v", err)
	}
	l, err := lang.New("en_us")
	if err != nil {
		t.Fatalf("lang.New() error = %v", err)
	}
	h := Config{
		Prefix:      "!!",
		Manager:     m,
		Lang:        l,
		Permissions: Permissions{Save: cmd.PermissionHelper, Delete: cmd.PermissionHelper, Config: cmd.PermissionHelper},
		Log:         log,
	}.New()
	return &fixture{
		h:       h,
		m:       m,
		exec:    exec,
		c:       h.Command(),
		console: &testSource{name: "Console", level: cmd.PermissionOwner},
		steve:   &testSource{name: "Steve", level: cmd.PermissionAdmin, player: true},
	}
}

func (f *fixture) run(src *testSource, args string) []string {
	f.c.Execute(args, src)
	return src.take()
}

func (f *fixture) expect(t *testing.T, src *testSource, args string, want ...string) {
	t.Helper()
	if got := f.run(src, args); !slices.Equal(got, want) {
		t.Fatalf("%q output = %q, want %q", args, got, want)
	}
}

func TestSaveSpawnKillDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.expect(t, f.console, "list", "No bots to list.")
	f.expect(t, f.console, "save alice 0 64 0 0 0 moon", "error: Illegal dimension moon.")
	f.expect(t, f.console, "save alice 0 64 0 0 0 overworld", "Saved bot alice at [0, 64, 0] [0, 0] overworld.")
	f.expect(t, f.console, "save alice 1 2 3 0 0 0", "error: Bot alice is already saved.")
	f.expect(t, f.console, "save bob", "error: Bot bob does not exist.")
	f.expect(t, f.steve, "save Bob", "Saved bot bob at [100, 70, -20] [45, 10] overworld.")

	f.expect(t, f.console, "spawn alice", "Spawning bot alice.")
	if got := f.exec.commands; len(got) != 1 || got[0] != "player alice spawn at 0 64 0 facing 0 0 in minecraft:overworld" {
		t.Fatalf("spawn commands = %q", got)
	}
	f.m.Spawned("alice", false)
	f.expect(t, f.console, "spawn alice", "error: Bot alice is already online.")
	f.expect(t, f.console, "kill alice", "Killed bot alice.")
	f.expect(t, f.console, "kill alice", "error: Bot alice is offline.")
	f.expect(t, f.console, "spawn carl", "error: Bot carl is not saved.")

	f.expect(t, f.console, "del alice", "Deleted bot alice.")
	f.expect(t, f.console, "del alice", "error: Bot alice does not exist.")
}

func TestList(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"} {
		if _, err := f.m.Register(name, steveAt); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	f.m.Spawned("k", false)

	out := f.run(f.console, "list")
	if len(out) != 12 || out[0] != "Bots (page 0/1, 11 total)" || out[1] != "a  offline saved" || out[11] != "Next page: !!bot list --index 1" {
		t.Fatalf("list output = %q", out)
	}
	f.expect(t, f.console, "list --index 1", "Bots (page 1/1, 11 total)", "k  online saved")
	f.expect(t, f.console, "list --online", "Bots (page 0/0, 1 total)", "k  online saved")
	f.expect(t, f.console, "list --index 5", "error: Illegal page index 5, pages go from 0 to 1.")
	f.expect(t, f.console, "list --index -1", "error: Illegal page index -1, pages go from 0 to 1.")
	if _, err := f.m.Configure("c", func(b *bot.Bot) error {
		b.SetTags([]string{"my farm"})
		return nil
	}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	f.expect(t, f.console, `list --tag "my farm"`, "Bots (page 0/0, 1 total)", "c  offline saved")
	if out := f.run(f.console, "list --colour"); len(out) != 1 || !strings.HasPrefix(out[0], "error: Operation failed") {
		t.Fatalf("list with an unknown flag output = %q", out)
	}
}

func TestParseListFlags(t *testing.T) {
	t.Parallel()

	tests := map[string]bot.ListQuery{
		"":                       {Online: true, Saved: true},
		"--online":               {Online: true},
		"--saved --index 2":      {Index: 2, Saved: true},
		"-tag farm --online":     {Online: true, Tag: "farm"},
		"--online=false --saved": {Saved: true},
	}
	for args, want := range tests {
		got, err := parseListFlags(strings.Fields(args))
		if err != nil || got != want {
			t.Fatalf("parseListFlags(%q) = %+v, %v, want %+v", args, got, err, want)
		}
	}
	if got, err := parseListFlags([]string{"--tag", "my farm"}); err != nil || got.Tag != "my farm" {
		t.Fatalf("parseListFlags() of a tag with a space = %+v, %v", got, err)
	}
	if _, err := parseListFlags([]string{"--index", "x"}); err == nil {
		t.Fatal("parseListFlags() accepted a non numeric index")
	}
	if _, err := parseListFlags([]string{"stray"}); err == nil {
		t.Fatal("parseListFlags() accepted a positional argument")
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.m.Register("alice", steveAt); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	f.expect(t, f.console, "config alice actions append use continuous", "Set actions of alice.")
	f.expect(t, f.console, "config alice actions insert 0 jump", "Set actions of alice.")
	f.expect(t, f.console, "config alice actions edit 1 attack once", "Set actions of alice.")
	f.expect(t, f.console, "config alice actions insert 5 jump", "error: Illegal action index 5.")
	f.expect(t, f.console, "config alice actions delete x", "error: Invalid value x for actions.")
	f.expect(t, f.console, "config alice actions append", "error: Missing value for actions.")
	f.expect(t, f.console, "config alice tags append farm", "Set tags of alice.")
	f.expect(t, f.console, "config alice tags delete 3", "error: Illegal tag index 3.")
	f.expect(t, f.console, "config alice autologin true", "Set autoLogin of alice.")
	f.expect(t, f.console, "config alice autoUpdate maybe", "error: Invalid value maybe for autoUpdate.")
	f.expect(t, f.console, "config alice dimension the_end", "Set dimension of alice.")
	f.expect(t, f.console, "config alice position 1 2", "error: Invalid value 1 2 for position.")
	f.expect(t, f.console, "config alice facing 90 -10", "Set facing of alice.")
	f.expect(t, f.console, "config alice comment \"main farm\"", "Set comment of alice.")

	info, err := f.m.Bot("alice")
	if err != nil {
		t.Fatalf("Bot() error = %v", err)
	}
	if !slices.Equal(info.Actions, []string{"jump", "attack once"}) || !slices.Equal(info.Tags, []string{"farm"}) {
		t.Fatalf("actions = %q, tags = %q", info.Actions, info.Tags)
	}
	if !info.AutoLogin || info.AutoUpdate || info.Comment != "main farm" {
		t.Fatalf("Bot() = %+v", info)
	}
	want := location.New(steveAt.Position, mgl64.Vec2{90, -10}, location.End)
	if info.Location != want {
		t.Fatalf("Location = %v, want %v", info.Location, want)
	}

	f.expect(t, f.console, "config alice name Bob", "Set name of bob.")
	if f.m.Contains("alice") || !f.m.Contains("bob") {
		t.Fatal("config name did not rename the bot")
	}
	f.expect(t, f.console, "config bob actions clear", "Set actions of bob.")
	f.m.Spawned("bob", false)
	f.expect(t, f.console, "config bob name carl", "error: Bot bob is already online.")
	f.expect(t, f.console, "config nobody comment x", "error: Bot nobody does not exist.")
}

func TestActionAndTags(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, name := range []string{"a", "b"} {
		if _, err := f.m.Register(name, steveAt); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if _, err := f.m.Configure(name, func(b *bot.Bot) error {
			b.SetTags([]string{"farm"})
			b.SetActions([]string{"use"})
			return nil
		}); err != nil {
			t.Fatalf("Configure() error = %v", err)
		}
	}
	f.expect(t, f.console, "action a", "error: Bot a is offline.")
	f.m.Spawned("a", false)
	f.expect(t, f.console, "action a 1", "error: Illegal action index 1.")
	f.expect(t, f.console, "action a 0", "Ran action 0 of a.")
	f.expect(t, f.console, "action a", "Ran the actions of a.")

	f.expect(t, f.console, "tags", "Tags", "farm (2 bots)")
	f.expect(t, f.console, "tags farm", "Bots tagged farm: a, b")
	f.expect(t, f.console, "tags mine", "error: No bot is tagged mine.")
	f.expect(t, f.console, "tags farm spawn", "Spawning 1 bots tagged farm.")
	f.expect(t, f.console, "tags farm kill", "Killed 1 bots tagged farm.")
	f.expect(t, f.console, "tags mine kill", "error: No bot is tagged mine.")
}

func TestInfo(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.m.Register("alice", steveAt); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	out := f.run(f.console, "info alice")
	want := []string{
		"Bot alice (alice)",
		"Comment: none",
		"Location: [100, 70, -20] [45, 10] overworld",
		"Actions: none",
		"Tags: none",
		"Auto login: no, auto run actions: no, auto update: no",
		"State: offline saved",
	}
	if len(out) != len(want)+1 || !slices.Equal(out[:len(want)], want) || !strings.HasPrefix(out[len(want)], "UUID: ") {
		t.Fatalf("info output = %q", out)
	}
	f.expect(t, f.console, "info bob", "error: Bot bob does not exist.")
}

func TestPermissionsAndHelp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	guest := &testSource{name: "Alex", level: cmd.PermissionUser, player: true}
	out := f.run(guest, "save alex 0 0 0 0 0 0")
	if len(out) != 1 || !strings.HasPrefix(out[0], "error: ") {
		t.Fatalf("save by a user output = %q", out)
	}
	if f.m.Contains("alex") {
		t.Fatal("a user without permission saved a bot")
	}
	f.h.conf.Permissions.Tags = cmd.PermissionHelper
	for _, args := range []string{"tags", "tags farm", "tags farm spawn"} {
		if out := f.run(guest, args); len(out) != 1 || !strings.HasPrefix(out[0], "error: ") {
			t.Fatalf("%s by a user output = %q", args, out)
		}
	}
	if out := f.run(f.console, "tags"); len(out) != 1 || out[0] != "No bot carries a tag." {
		t.Fatalf("tags by the console output = %q", out)
	}
	help := f.run(guest, "")
	if len(help) != 10 || help[1] != "!!bot list [--index N] [--online] [--saved] [--tag T] list bots" {
		t.Fatalf("help output = %q", help)
	}
	if got := f.run(guest, "help"); !slices.Equal(got, help) {
		t.Fatalf("help sub command output = %q, want %q", got, help)
	}
}

func TestAsyncRunner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var queued []func()
	f.h.conf.Run = func(fn func()) { queued = append(queued, fn) }
	if _, err := f.m.Register("alice", steveAt); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := f.run(f.console, "spawn alice"); len(got) != 0 {
		t.Fatalf("spawn replied before the worker ran: %q", got)
	}
	if len(queued) != 1 {
		t.Fatalf("spawn queued %d jobs, want 1", len(queued))
	}
	queued[0]()
	if got := f.console.take(); !slices.Equal(got, []string{"Spawning bot alice."}) {
		t.Fatalf("spawn worker output = %q", got)
	}
}
