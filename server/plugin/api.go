package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/pelletier/go-toml"
)

// API exposes functionality of the server core to plugins.
type API[S any, C any] struct {
	manager *Manager[S, C]
	host    Host[S, C]
	path    string
	name    atomic.Value // stores string
	ctx     atomic.Pointer[ctxBox]
	dataDir atomic.Value // stores string

	mu       sync.Mutex
	commands []string
}

func newAPI[S any, C any](manager *Manager[S, C], host Host[S, C], name, path string) *API[S, C] {
	api := &API[S, C]{manager: manager, host: host, path: path}
	api.name.Store(name)
	api.ctx.Store(&ctxBox{ctx: context.Background()})
	return api
}

func (api *API[S, C]) setName(name string) {
	if name == "" {
		return
	}
	api.name.Store(name)
}

func (api *API[S, C]) pluginName() string {
	if s, ok := api.name.Load().(string); ok && s != "" {
		return s
	}
	return "plugin"
}

func (api *API[S, C]) setContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	api.ctx.Store(&ctxBox{ctx: ctx})
}

// ctxBox holds the context of an API. Contexts of different concrete types
// are stored over the lifetime of a plugin.
type ctxBox struct {
	ctx context.Context
}

// Name returns the name the plugin is registered under.
func (api *API[S, C]) Name() string {
	return api.pluginName()
}

// Context returns a cancellable context that is invalidated when the plugin is disabled.
func (api *API[S, C]) Context() context.Context {
	if box := api.ctx.Load(); box != nil {
		return box.ctx
	}
	return context.Background()
}

func (api *API[S, C]) setDataDirectory(dir string) {
	if dir == "" {
		api.dataDir.Store("")
		return
	}
	api.dataDir.Store(filepath.Clean(dir))
}

// DataDirectory returns the path to the plugin's data directory.
func (api *API[S, C]) DataDirectory() string {
	if dir, ok := api.dataDir.Load().(string); ok && dir != "" {
		return dir
	}
	return api.manager.pluginDataDirectory(api.pluginName())
}

func (api *API[S, C]) resolveDataPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("data path is empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("data path must be relative")
	}
	base := api.DataDirectory()
	target := filepath.Join(base, filepath.Clean(name))
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("data path escapes plugin directory")
	}
	return target, nil
}

// EnsureDataSubdir ensures a subdirectory inside the plugin data directory exists and returns its path.
func (api *API[S, C]) EnsureDataSubdir(name string) (string, error) {
	path := api.DataDirectory()
	if name != "" {
		var err error
		if path, err = api.resolveDataPath(name); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// OpenDataFile opens or creates a file within the plugin data directory using the provided flags and permissions.
func (api *API[S, C]) OpenDataFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if perm == 0 {
		perm = 0o644
	}
	return os.OpenFile(path, flag, perm)
}

// LoadConfig decodes the TOML file name in the data directory into v. When
// the file does not exist, the current value of v is written to it as the
// default configuration. Fields missing from an existing file keep the value
// v held before the call.
func (api *API[S, C]) LoadConfig(name string, v any) error {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err := toml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode default config: %w", err)
		}
		if err := api.writeDataFile(path, data); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// LoadJSON decodes the JSON file name in the data directory into v. It
// reports false without error when the file does not exist.
func (api *API[S, C]) LoadJSON(name string, v any) (bool, error) {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// SaveJSON encodes v as indented JSON into the file name in the data
// directory. The file is replaced atomically.
func (api *API[S, C]) SaveJSON(name string, v any) error {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return api.writeDataFile(path, buf.Bytes())
}

func (api *API[S, C]) writeDataFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Go launches fn on a new goroutine tied to the plugin's lifecycle context. Panics cause the plugin to be disabled.
func (api *API[S, C]) Go(fn func(context.Context)) {
	if fn == nil {
		return
	}
	ctx := api.Context()
	name := api.pluginName()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				api.manager.handlePluginPanic(name, r)
			}
		}()
		fn(ctx)
	}()
}

// ReloadState returns the value passed to SetReloadState by the previous
// instance of the plugin loaded from the same path, if any. The state is
// handed out once.
func (api *API[S, C]) ReloadState() (any, bool) {
	return api.manager.takeReloadState(api.path)
}

// SetReloadState stores state for the next instance of the plugin enabled
// from the same path. It is typically called from the handler of
// EventPluginUnloaded.
func (api *API[S, C]) SetReloadState(state any) {
	api.manager.setReloadState(api.path, state)
}

// Server returns the underlying server instance.
func (api *API[S, C]) Server() S {
	return api.host.Instance()
}

// Config returns a snapshot of the server configuration at the time of the call.
func (api *API[S, C]) Config() C {
	return api.host.Config()
}

// StartTime reports when the server finished starting.
func (api *API[S, C]) StartTime() time.Time {
	return api.host.StartTime()
}

// Running reports if the server process is up.
func (api *API[S, C]) Running() bool {
	return api.host.Running()
}

// Logger returns a logger scoped to the plugin's name for structured logging.
func (api *API[S, C]) Logger() *slog.Logger {
	logger := api.host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("plugin", api.pluginName())
}

// Execute writes a raw command to the server console.
func (api *API[S, C]) Execute(command string) error {
	return api.host.Execute(command)
}

// Query runs a command over RCON and returns the response of the server.
func (api *API[S, C]) Query(command string) (string, error) {
	return api.host.Query(command)
}

// Say broadcasts a chat message to every online player.
func (api *API[S, C]) Say(message string) error {
	return api.host.Say(message)
}

// Tell sends a chat message to a single player.
func (api *API[S, C]) Tell(player, message string) error {
	return api.host.Tell(player, message)
}

// PlayerInfo queries the live location of an online player.
func (api *API[S, C]) PlayerInfo(name string) (PlayerSummary, error) {
	return api.host.PlayerInfo(name)
}

// PlayerSummaries returns metadata snapshots for all connected players.
func (api *API[S, C]) PlayerSummaries() []PlayerSummary {
	return api.host.PlayerSummaries()
}

// PlayerCount returns the number of players currently connected to the server.
func (api *API[S, C]) PlayerCount() int {
	return api.host.PlayerCount()
}

// Online reports if a player with the name passed is connected. Names are
// compared case-insensitively.
func (api *API[S, C]) Online(name string) bool {
	for _, summary := range api.PlayerSummaries() {
		if strings.EqualFold(summary.Name, name) {
			return true
		}
	}
	return false
}

// RegisterCommand registers a command with the global command registry. The
// command is unregistered again when the plugin is disabled.
func (api *API[S, C]) RegisterCommand(command cmd.Command) {
	cmd.Register(command)
	api.mu.Lock()
	api.commands = append(api.commands, command.Name())
	api.mu.Unlock()
}

func (api *API[S, C]) unregisterCommands() {
	api.mu.Lock()
	names := api.commands
	api.commands = nil
	api.mu.Unlock()
	for _, name := range names {
		cmd.Unregister(name)
	}
}

// Commands returns all registered commands indexed by alias.
func (api *API[S, C]) Commands() map[string]cmd.Command {
	return cmd.Commands()
}

// ExecuteCommand executes a command line on behalf of the provided source.
// The command line should include the command prefix.
func (api *API[S, C]) ExecuteCommand(source cmd.Source, commandLine string) {
	api.host.ExecuteCommand(source, commandLine)
}

// Plugins returns metadata for all currently loaded plugins.
func (api *API[S, C]) Plugins() []Info {
	return api.manager.Infos()
}

// Plugin returns a loaded plugin by name if present.
func (api *API[S, C]) Plugin(name string) (Plugin, bool) {
	return api.manager.Plugin(name)
}

// EnablePlugin loads and enables a plugin by factory name or file path.
func (api *API[S, C]) EnablePlugin(path string) (Info, error) {
	return api.manager.Enable(path)
}

// DisablePlugin disables a plugin by its name.
func (api *API[S, C]) DisablePlugin(name string) (Info, error) {
	return api.manager.Disable(name)
}

// ReloadPlugin reloads a plugin by disabling and re-enabling it.
func (api *API[S, C]) ReloadPlugin(name string) (Info, error) {
	return api.manager.Reload(name)
}

// CloseServer requests a graceful server shutdown.
func (api *API[S, C]) CloseServer() error {
	return api.host.Close()
}

// PluginsEnabled reports whether the plugin subsystem is currently active.
func (api *API[S, C]) PluginsEnabled() bool {
	return api.host.PluginsEnabled()
}

// PluginDataRoot returns the root directory used to persist plugin data.
func (api *API[S, C]) PluginDataRoot() string {
	return api.manager.DataRoot()
}

// Events returns helpers for subscribing to server lifecycle events.
func (api *API[S, C]) Events() *PluginEvents[S, C] {
	return &PluginEvents[S, C]{api: api}
}

// PluginEvents exposes registration helpers for subscribing to host events.
type PluginEvents[S any, C any] struct {
	api *API[S, C]
}

// Handle registers a Handler invoked for every event dispatched by the host.
// The returned function removes the handler when called.
func (pe *PluginEvents[S, C]) Handle(handler Handler) func() {
	if pe == nil || handler == nil {
		return func() {}
	}
	return pe.api.manager.events.add(pe.api.pluginName(), handler)
}

// Clear removes all handlers previously registered by the plugin.
func (pe *PluginEvents[S, C]) Clear() {
	if pe == nil {
		return
	}
	pe.api.manager.events.clear(pe.api.pluginName())
}
