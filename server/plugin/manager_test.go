package plugin

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
)

type testServer struct{}
type testConfig struct{}

type testHost struct{}

func (testHost) Instance() testServer { return testServer{} }
func (testHost) Config() testConfig   { return testConfig{} }
func (testHost) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
func (testHost) StartTime() time.Time                   { return time.Time{} }
func (testHost) Running() bool                          { return true }
func (testHost) Execute(string) error                   { return nil }
func (testHost) Query(string) (string, error)           { return "", nil }
func (testHost) Say(string) error                       { return nil }
func (testHost) Tell(string, string) error              { return nil }
func (testHost) PlayerInfo(string) (PlayerSummary, error) { return PlayerSummary{}, nil }
func (testHost) PlayerSummaries() []PlayerSummary {
	return []PlayerSummary{{Name: "Steve", Connected: true}}
}
func (testHost) PlayerCount() int                  { return 1 }
func (testHost) ExecuteCommand(cmd.Source, string) {}
func (testHost) Close() error                      { return nil }
func (testHost) LoadPlugins()                      {}
func (testHost) PluginsEnabled() bool              { return true }

func TestSanitizePluginDirectory(t *testing.T) {
	cases := map[string]string{
		"":                  "plugin",
		"   ":               "plugin",
		"Bot Manager":       "bot-manager",
		"Bot_Manager":       "bot_manager",
		"Bot.Manager":       "bot.manager",
		"Bot@Manager#":      "bot-manager",
		"--Already-Safe--":  "already-safe",
		"    dots...here  ": "dots...here",
	}

	for input, want := range cases {
		if got := sanitizePluginDirectory(input); got != want {
			t.Fatalf("sanitizePluginDirectory(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPluginBaseName(t *testing.T) {
	cases := map[string]string{
		"":                  "plugin",
		"file":              "file",
		"file.so":           "file",
		"path/to/plugin.so": "plugin",
		"path/.hidden.so":   ".hidden",
	}

	for input, want := range cases {
		if got := pluginBaseName(input); got != want {
			t.Fatalf("pluginBaseName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidVersion(t *testing.T) {
	cases := map[string]bool{
		"1.2.3":   true,
		"v0.4.0":  true,
		"2.0":     true,
		"latest":  false,
		"1.2.3.4": false,
		"":        false,
	}
	for input, want := range cases {
		if got := validVersion(input); got != want {
			t.Fatalf("validVersion(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestManagerPluginDataDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: root})

	if got, want := manager.pluginDataDirectory("Bot Manager"), filepath.Join(root, "data", "bot-manager"); got != want {
		t.Fatalf("pluginDataDirectory() = %q, want %q", got, want)
	}
	manager.cfg.DataDirectory = "custom"
	if got, want := manager.pluginDataDirectory("Other"), filepath.Join(root, "custom", "other"); got != want {
		t.Fatalf("pluginDataDirectory() with custom root = %q, want %q", got, want)
	}
}

func TestManagerMigrateDataDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: root})

	from := filepath.Join(root, "old")
	to := filepath.Join(root, "new")
	if err := os.MkdirAll(from, 0o755); err != nil {
		t.Fatalf("create source directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(from, "botList.json"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source data: %v", err)
	}
	if err := manager.migrateDataDirectory(from, to); err != nil {
		t.Fatalf("migrateDataDirectory() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(to, "botList.json"))
	if err != nil {
		t.Fatalf("read migrated file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("migrated data = %q, want %q", data, "payload")
	}
	if _, err := os.Stat(from); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source directory still exists after migrate")
	}

	// An empty source next to an existing target is dropped.
	if err := os.MkdirAll(from, 0o755); err != nil {
		t.Fatalf("recreate source directory: %v", err)
	}
	if err := manager.migrateDataDirectory(from, to); err != nil {
		t.Fatalf("migrateDataDirectory() onto existing target error = %v", err)
	}
	if _, err := os.Stat(from); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty source directory was kept")
	}
}

func TestManagerDirectoryResolution(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: root, DataDirectory: "state"})

	if got, want := manager.DataRoot(), filepath.Join(root, "state"); got != want {
		t.Fatalf("DataRoot() = %q, want %q", got, want)
	}
	if got, want := manager.ResolvePath("example.so"), filepath.Join(root, "example.so"); got != want {
		t.Fatalf("ResolvePath() relative = %q, want %q", got, want)
	}
	abs := filepath.Join(root, "other.so")
	if got := manager.ResolvePath(abs); got != abs {
		t.Fatalf("ResolvePath() absolute = %q, want %q", got, abs)
	}
}

type closingPlugin struct {
	name   string
	closed chan struct{}
}

func (p *closingPlugin) Name() string { return p.name }

func (p *closingPlugin) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func TestManagerDisableAll(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true})
	first := &closingPlugin{name: "first", closed: make(chan struct{})}
	second := &closingPlugin{name: "second", closed: make(chan struct{})}
	manager.plugins = []pluginInstance[testServer, testConfig]{
		{name: first.name, plugin: first, path: "first.so"},
		{name: second.name, plugin: second, path: "second.so"},
	}

	infos, err := manager.DisableAll()
	if err != nil {
		t.Fatalf("DisableAll() error = %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "second" || infos[1].Name != "first" {
		t.Fatalf("DisableAll() = %v, want second then first", infos)
	}
	for _, p := range []*closingPlugin{first, second} {
		select {
		case <-p.closed:
		default:
			t.Fatalf("plugin %s was not closed", p.name)
		}
	}
	if got := manager.Infos(); len(got) != 0 {
		t.Fatalf("DisableAll() left %d plugins loaded", len(got))
	}
}

func TestManagerDisableAllDisabled(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: false})
	if infos, err := manager.DisableAll(); !errors.Is(err, ErrDisabled) || infos != nil {
		t.Fatalf("DisableAll() = (%v, %v), want (nil, ErrDisabled)", infos, err)
	}
}

type statefulPlugin struct {
	NopHandler
	api      *API[testServer, testConfig]
	restored any
	count    int
}

func (p *statefulPlugin) Name() string    { return "Stateful" }
func (p *statefulPlugin) Version() string { return "1.0.0" }
func (p *statefulPlugin) Close() error    { return nil }

func (p *statefulPlugin) HandlePluginUnloaded() {
	p.api.SetReloadState(p.count + 1)
}

type pingCommand struct{}

func (pingCommand) Run(_ cmd.Source, o *cmd.Output) { o.Print("pong") }

func TestManagerFactoryReloadHandsOverState(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: t.TempDir()})
	var instances []*statefulPlugin
	manager.RegisterFactory("Stateful", func(api *API[testServer, testConfig]) (Plugin, error) {
		p := &statefulPlugin{api: api}
		if state, ok := api.ReloadState(); ok {
			p.restored, p.count = state, state.(int)
		}
		api.Events().Handle(p)
		api.RegisterCommand(cmd.New("statefulping", "", nil, pingCommand{}))
		instances = append(instances, p)
		return p, nil
	})

	info, err := manager.Enable("stateful")
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if info.Name != "Stateful" || info.Version != "1.0.0" || info.Path != "stateful" {
		t.Fatalf("Enable() = %+v", info)
	}
	if _, err := manager.Enable("stateful"); !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("second Enable() error = %v, want ErrAlreadyLoaded", err)
	}
	if _, ok := cmd.ByAlias("statefulping"); !ok {
		t.Fatalf("command was not registered")
	}

	if _, err := manager.Reload("stateful"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("factory called %d times, want 2", len(instances))
	}
	if instances[1].restored != 1 {
		t.Fatalf("reloaded instance state = %v, want 1", instances[1].restored)
	}

	if _, err := manager.Disable("STATEFUL"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if _, ok := cmd.ByAlias("statefulping"); ok {
		t.Fatalf("command survived Disable()")
	}
	if regs := manager.events.registrations(); len(regs) != 0 {
		t.Fatalf("Disable() left %d event registrations", len(regs))
	}
}

func TestAPIContextCancelledOnDisable(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: t.TempDir()})
	var api *API[testServer, testConfig]
	manager.RegisterFactory("ctx", func(a *API[testServer, testConfig]) (Plugin, error) {
		api = a
		return &closingPlugin{name: "ctx", closed: make(chan struct{})}, nil
	})

	if _, err := manager.Enable("ctx"); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	ctx := api.Context()
	if err := ctx.Err(); err != nil {
		t.Fatalf("Context().Err() = %v while enabled", err)
	}
	if _, err := manager.Disable("ctx"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Context() was not cancelled by Disable()")
	}
}

func TestManagerHandlePluginPanicDisablesPlugin(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true})
	closed := make(chan struct{})
	manager.plugins = []pluginInstance[testServer, testConfig]{
		{name: "panic", plugin: &closingPlugin{name: "panic", closed: closed}, path: "panic.so"},
	}
	manager.events.add("panic", NopHandler{})

	manager.handlePluginPanic("panic", errors.New("boom"))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("plugin close was not invoked after panic")
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		manager.mu.RLock()
		remaining := len(manager.plugins)
		manager.mu.RUnlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("plugin was not removed after panic")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if regs := manager.events.registrations(); len(regs) != 0 {
		t.Fatalf("expected handlers to be cleared, got %d registrations", len(regs))
	}
}

type configFile struct {
	Language string
	Gamemode struct {
		Mode  string
		Force bool
	}
}

func TestAPILoadConfigWritesDefaults(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: t.TempDir()})
	api := newAPI(manager, testHost{}, "cfg", "cfg")

	c := configFile{Language: "en_us"}
	c.Gamemode.Mode = "survival"
	if err := api.LoadConfig("config.toml", &c); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(api.DataDirectory(), "config.toml")); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if err := os.WriteFile(filepath.Join(api.DataDirectory(), "config.toml"), []byte("Language = \"zh_cn\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := api.LoadConfig("config.toml", &c); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Language != "zh_cn" || c.Gamemode.Mode != "survival" {
		t.Fatalf("LoadConfig() = %+v, want zh_cn with survival kept", c)
	}
}

func TestAPIJSON(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](testHost{}, Config{Enabled: true, Directory: t.TempDir()})
	api := newAPI(manager, testHost{}, "json", "json")

	var v map[string][]string
	if ok, err := api.LoadJSON("botList.json", &v); ok || err != nil {
		t.Fatalf("LoadJSON() on missing file = (%v, %v), want (false, nil)", ok, err)
	}
	if err := api.SaveJSON("botList.json", map[string][]string{"botList": {"a", "<b>"}}); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	if ok, err := api.LoadJSON("botList.json", &v); !ok || err != nil {
		t.Fatalf("LoadJSON() = (%v, %v), want (true, nil)", ok, err)
	}
	if got := v["botList"]; len(got) != 2 || got[1] != "<b>" {
		t.Fatalf("LoadJSON() = %v", v)
	}
	if _, err := api.resolveDataPath("../escape.json"); err == nil {
		t.Fatalf("resolveDataPath() accepted an escaping path")
	}
	if !api.Online("steve") || api.Online("alex") {
		t.Fatalf("Online() did not match player summaries case-insensitively")
	}
}

// Ensure compile-time conformance for the test host.
var _ Host[testServer, testConfig] = testHost{}
