package builtin

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/dm-vev/botmanager/server/plugin"
)

type fakeServer struct {
	players  []string
	plugins  []plugin.Info
	closed   bool
	disabled string
}

func (f *fakeServer) Players() []string          { return f.players }
func (f *fakeServer) PlayerCount() int           { return len(f.players) }
func (f *fakeServer) Running() bool              { return true }
func (f *fakeServer) StartTime() time.Time       { return time.Now().Add(-time.Minute) }
func (f *fakeServer) CommandPrefix() string      { return "!!" }
func (f *fakeServer) Close() error               { f.closed = true; return nil }
func (f *fakeServer) PluginsEnabled() bool       { return true }
func (f *fakeServer) PluginInfos() []plugin.Info { return f.plugins }

func (f *fakeServer) EnablePlugin(path string) (plugin.Info, error) {
	return plugin.Info{}, errors.New("cannot enable " + path)
}

func (f *fakeServer) DisablePlugin(name string) (plugin.Info, error) {
	f.disabled = name
	return plugin.Info{Name: name}, nil
}

func (f *fakeServer) ReloadPlugin(name string) (plugin.Info, error) {
	return plugin.Info{Name: name, Version: "1.0.0"}, nil
}

type testSource struct {
	level  int
	player bool
	out    []string
}

func (s *testSource) Name() string         { return "tester" }
func (s *testSource) PermissionLevel() int { return s.level }
func (s *testSource) Player() bool         { return s.player }

func (s *testSource) SendCommandOutput(o *cmd.Output) {
	for _, m := range o.Messages() {
		s.out = append(s.out, m.String())
	}
	for _, err := range o.Errors() {
		s.out = append(s.out, "error: "+err.Error())
	}
}

func TestBuiltinCommands(t *testing.T) {
	srv := &fakeServer{
		players: []string{"Alex", "Steve"},
		plugins: []plugin.Info{{Name: "zeta", Path: "z.so"}, {Name: "alpha", Version: "2.0.0", Path: "builtin"}},
	}
	Register(srv)

	tests := map[string]struct {
		line   string
		player bool
		want   []string
	}{
		"list":           {line: "!!list", want: []string{"There are 2 players online.", "Alex, Steve"}},
		"alias":          {line: "!!players", want: []string{"There are 2 players online.", "Alex, Steve"}},
		"plugin list":    {line: "!!plugin list", want: []string{"alpha v2.0.0 (builtin)", "zeta (z.so)"}},
		"plugin reload":  {line: "!!plugin reload alpha", want: []string{"Reloaded alpha v1.0.0."}},
		"plugin enable":  {line: "!!plugin enable x.so", want: []string{"error: cannot enable x.so"}},
		"stop by player": {line: "!!stop", player: true, want: []string{"error: " + cmd.MessagePermission.F()}},
		"help usage":     {line: "!!help plugin", want: []string{"Manages plugins.", "!!plugin list", "!!plugin enable <file: string>", "!!plugin disable <name: string>", "!!plugin reload <name: string>"}},
	}
	for name, tc := range tests {
		src := &testSource{level: cmd.PermissionOwner, player: tc.player}
		cmd.ExecuteLine(src, tc.line, "!!", nil)
		if strings.Join(src.out, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("%s: output = %q, want %q", name, src.out, tc.want)
		}
	}

	src := &testSource{level: cmd.PermissionOwner}
	cmd.ExecuteLine(src, "!!plugin disable zeta", "!!", nil)
	if srv.disabled != "zeta" {
		t.Fatalf("DisablePlugin() called with %q, want zeta", srv.disabled)
	}
	cmd.ExecuteLine(src, "!!stop", "!!", nil)
	if !srv.closed {
		t.Fatal("stop did not close the server")
	}
}

func TestHelpListsAllowedCommands(t *testing.T) {
	Register(&fakeServer{})

	src := &testSource{level: cmd.PermissionGuest, player: true}
	cmd.ExecuteLine(src, "!!help", "!!", nil)
	joined := strings.Join(src.out, "\n")
	if !strings.Contains(joined, "!!list - Lists players currently online.") {
		t.Fatalf("help output misses list: %q", joined)
	}
	if strings.Contains(joined, "!!stop") {
		t.Fatalf("help output lists stop for a player: %q", joined)
	}
}
