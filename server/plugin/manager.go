package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goplugin "plugin"
	"runtime/debug"
	"slices"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

var pluginFactorySymbols = []string{"InitPlugin", "Init", "NewPlugin", "New"}

type pluginInstance[S any, C any] struct {
	name    string
	version string
	path    string
	plugin  Plugin
	api     *API[S, C]
	cancel  context.CancelFunc
}

func (pi pluginInstance[S, C]) info() Info {
	return Info{Name: pi.name, Version: pi.version, Path: pi.path}
}

// Manager coordinates plugin discovery, loading and lifecycle management.
// Plugins are either Go plugin files opened with the plugin package or
// factories compiled into the binary and passed to RegisterFactory.
type Manager[S any, C any] struct {
	host       Host[S, C]
	cfg        Config
	log        *slog.Logger
	runtimeLog *slog.Logger

	once      sync.Once
	mu        sync.RWMutex
	plugins   []pluginInstance[S, C]
	factories map[string]PluginFactory[S, C]
	events    *eventHub

	stateMu sync.Mutex
	states  map[string]any
}

// NewManager constructs a Manager using the provided host and configuration snapshot.
func NewManager[S any, C any](host Host[S, C], cfg Config) *Manager[S, C] {
	manager := &Manager[S, C]{
		host: host,
		cfg: Config{
			Enabled:       cfg.Enabled,
			Directory:     cfg.Directory,
			DataDirectory: cfg.DataDirectory,
			Autoload:      cfg.Autoload,
			Files:         slices.Clone(cfg.Files),
		},
		factories: map[string]PluginFactory[S, C]{},
		states:    map[string]any{},
	}
	logger := host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	manager.log = logger
	manager.runtimeLog = logger.With("subsystem", "plugin.runtime")
	manager.events = newEventHub(logger, manager.handlePluginPanic)
	return manager
}

// RegisterFactory makes a plugin compiled into the binary available under
// name. It may then be enabled with Enable(name), by listing name in
// Config.Files, or by setting Config.Autoload.
func (m *Manager[S, C]) RegisterFactory(name string, factory PluginFactory[S, C]) {
	if factory == nil {
		return
	}
	m.mu.Lock()
	m.factories[strings.ToLower(name)] = factory
	m.mu.Unlock()
}

func (m *Manager[S, C]) factory(name string) (PluginFactory[S, C], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.factories[strings.ToLower(name)]
	return f, ok
}

// Enabled reports whether the plugin subsystem should run.
func (m *Manager[S, C]) Enabled() bool {
	return m.cfg.Enabled
}

// Directory returns the directory searched for plugin binaries.
func (m *Manager[S, C]) Directory() string {
	return m.directory()
}

// DataRoot returns the root directory used for plugin data storage.
func (m *Manager[S, C]) DataRoot() string {
	return m.dataRoot()
}

// ResolvePath resolves path against the configured plugin directory when it is
// not absolute and returns the cleaned result.
func (m *Manager[S, C]) ResolvePath(path string) string {
	return m.resolvePath(path)
}

// LoadConfigured initialises the plugin system and enables plugins based on configuration.
func (m *Manager[S, C]) LoadConfigured() {
	m.once.Do(m.loadConfigured)
}

// Infos returns metadata for all loaded plugins.
func (m *Manager[S, C]) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, len(m.plugins))
	for i, p := range m.plugins {
		infos[i] = p.info()
	}
	return infos
}

// Plugin returns a loaded plugin by its case-insensitive name.
func (m *Manager[S, C]) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plugins {
		if strings.EqualFold(p.name, name) {
			return p.plugin, true
		}
	}
	return nil, false
}

// Dispatch delivers an event to the handlers of every loaded plugin.
func (m *Manager[S, C]) Dispatch(e Event) {
	m.events.dispatch(e, "")
}

// Enable loads and enables a plugin. path is either the name of a factory
// passed to RegisterFactory or the path of a Go plugin file.
func (m *Manager[S, C]) Enable(path string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	if err := m.ensureDataRoot(); err != nil {
		return Info{}, fmt.Errorf("prepare plugin data storage: %w", err)
	}
	if factory, ok := m.factory(path); ok {
		return m.enable(factory, "RegisterFactory", strings.ToLower(path), strings.ToLower(path))
	}

	if err := m.ensureDirectory(); err != nil {
		return Info{}, fmt.Errorf("prepare plugin directory: %w", err)
	}
	resolved := m.resolvePath(path)
	mod, err := goplugin.Open(resolved)
	if err != nil {
		return Info{}, fmt.Errorf("open plugin: %w", err)
	}
	factory, symbol, err := lookupPluginFactory[S, C](mod)
	if err != nil {
		return Info{}, fmt.Errorf("locate plugin factory: %w", err)
	}
	return m.enable(factory, symbol, resolved, pluginBaseName(resolved))
}

func (m *Manager[S, C]) enable(factory PluginFactory[S, C], symbol, path, initialName string) (info Info, err error) {
	m.mu.RLock()
	for _, existing := range m.plugins {
		if existing.path == path {
			m.mu.RUnlock()
			return existing.info(), ErrAlreadyLoaded
		}
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithCancel(context.Background())
	api := newAPI(m, m.host, initialName, path)
	api.setContext(ctx)
	initialDataDir := m.pluginDataDirectory(initialName)
	if err := os.MkdirAll(initialDataDir, 0o755); err != nil {
		cancel()
		return Info{}, fmt.Errorf("create plugin data directory: %w", err)
	}
	api.setDataDirectory(initialDataDir)
	defer func() {
		if err != nil {
			cancel()
			m.events.clear(api.pluginName())
			api.unregisterCommands()
		}
	}()
	inst, err := factory(api)
	if err != nil {
		return Info{}, fmt.Errorf("initialise plugin via %s: %w", symbol, err)
	}
	if inst == nil {
		return Info{}, fmt.Errorf("initialise plugin via %s: factory returned nil", symbol)
	}

	previousName := api.pluginName()
	name := inst.Name()
	if name == "" {
		name = previousName
	}
	api.setName(name)
	m.events.rename(previousName, name)

	if targetDir := m.pluginDataDirectory(name); targetDir != api.DataDirectory() {
		if err := m.migrateDataDirectory(api.DataDirectory(), targetDir); err != nil {
			m.runtimeLog.Error("Migrate plugin data directory.", "plugin", name, "error", err)
		} else {
			api.setDataDirectory(targetDir)
		}
	}

	version := ""
	if v, ok := inst.(VersionedPlugin); ok {
		version = v.Version()
		if !validVersion(version) {
			m.log.Warn("Plugin version is not a semantic version.", "name", name, "version", version)
		}
	}

	entry := pluginInstance[S, C]{
		name:    name,
		version: version,
		path:    path,
		plugin:  inst,
		api:     api,
		cancel:  cancel,
	}

	m.mu.Lock()
	for _, existing := range m.plugins {
		if strings.EqualFold(existing.name, entry.name) {
			m.mu.Unlock()
			if err := entry.plugin.Close(); err != nil {
				m.log.Error("Close conflicting plugin instance.", "error", err, "name", entry.name, "path", path)
			}
			return Info{}, fmt.Errorf("%w: %s", ErrNameConflict, entry.name)
		}
	}
	m.plugins = append(m.plugins, entry)
	m.mu.Unlock()

	attrs := []any{"name", entry.name, "path", entry.path, "symbol", symbol}
	if entry.version != "" {
		attrs = append(attrs, "version", entry.version)
	}
	m.log.Info("Plugin enabled.", attrs...)
	return entry.info(), nil
}

// Disable disables a plugin by its case-insensitive name and removes it from
// the manager. The plugin receives EventPluginUnloaded before it is closed.
func (m *Manager[S, C]) Disable(name string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}

	m.mu.Lock()
	index := slices.IndexFunc(m.plugins, func(p pluginInstance[S, C]) bool {
		return strings.EqualFold(p.name, name)
	})
	if index == -1 {
		m.mu.Unlock()
		return Info{}, ErrNotFound
	}
	entry := m.plugins[index]
	m.plugins = slices.Delete(m.plugins, index, index+1)
	m.mu.Unlock()

	m.events.dispatch(Event{Kind: EventPluginUnloaded}, entry.name)
	if err := entry.plugin.Close(); err != nil {
		m.mu.Lock()
		m.plugins = append(m.plugins, entry)
		m.mu.Unlock()
		return Info{}, fmt.Errorf("close plugin: %w", err)
	}
	m.release(entry)

	m.log.Info("Plugin disabled.", "name", entry.name, "path", entry.path)
	return entry.info(), nil
}

func (m *Manager[S, C]) release(entry pluginInstance[S, C]) {
	if entry.cancel != nil {
		entry.cancel()
	}
	m.events.clear(entry.name)
	if entry.api != nil {
		entry.api.unregisterCommands()
	}
}

// Reload disables and then re-enables a plugin by name. State passed to
// API.SetReloadState while unloading is available to the new instance
// through API.ReloadState.
func (m *Manager[S, C]) Reload(name string) (Info, error) {
	info, err := m.Disable(name)
	if err != nil {
		return Info{}, err
	}

	reloaded, err := m.Enable(info.Path)
	if err != nil {
		return Info{}, err
	}

	attrs := []any{"name", reloaded.Name, "path", reloaded.Path}
	if reloaded.Version != "" {
		attrs = append(attrs, "version", reloaded.Version)
	}
	m.log.Info("Plugin reloaded.", attrs...)
	return reloaded, nil
}

// DisableAll disables all currently loaded plugins in reverse load order.
// The returned slice contains metadata for every plugin that was disabled in
// the order the operations were performed.
func (m *Manager[S, C]) DisableAll() ([]Info, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.RLock()
	names := make([]string, len(m.plugins))
	for i, p := range m.plugins {
		names[i] = p.name
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		info, err := m.Disable(names[i])
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Shutdown disables all plugins in reverse load order.
func (m *Manager[S, C]) Shutdown() {
	m.mu.Lock()
	plugins := slices.Clone(m.plugins)
	m.plugins = nil
	m.mu.Unlock()

	for i := len(plugins) - 1; i >= 0; i-- {
		entry := plugins[i]
		m.events.dispatch(Event{Kind: EventPluginUnloaded}, entry.name)
		err := entry.plugin.Close()
		m.release(entry)
		if err != nil {
			m.log.Error("Disable plugin.", "error", err, "name", entry.name, "path", entry.path)
			continue
		}
		m.log.Info("Plugin disabled.", "name", entry.name, "path", entry.path)
	}
}

func (m *Manager[S, C]) setReloadState(path string, state any) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if state == nil {
		delete(m.states, path)
		return
	}
	m.states[path] = state
}

func (m *Manager[S, C]) takeReloadState(path string) (any, bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	state, ok := m.states[path]
	delete(m.states, path)
	return state, ok
}

func (m *Manager[S, C]) loadConfigured() {
	cfg := m.cfg
	if !cfg.Enabled {
		m.log.Debug("Plugin system disabled.")
		return
	}

	seen := map[string]struct{}{}
	var static, paths []string
	add := func(list *[]string, key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		*list = append(*list, key)
	}

	if cfg.Autoload {
		m.mu.RLock()
		for name := range m.factories {
			add(&static, name)
		}
		m.mu.RUnlock()
	}
	for _, file := range cfg.Files {
		if _, ok := m.factory(file); ok {
			add(&static, strings.ToLower(file))
			continue
		}
		add(&paths, m.resolvePath(file))
	}
	if cfg.Autoload {
		paths = append(paths, m.discover(seen)...)
	}

	if len(static)+len(paths) == 0 {
		m.log.Debug("No plugins discovered.")
		return
	}

	slices.Sort(static)
	slices.Sort(paths)
	for _, path := range append(static, paths...) {
		if _, err := m.Enable(path); err != nil {
			m.log.Error("Enable plugin.", "error", err, "path", path)
		}
	}
}

// discover returns every .so file in the plugin directory not yet in seen.
func (m *Manager[S, C]) discover(seen map[string]struct{}) []string {
	dir := m.directory()
	if err := m.ensureDirectory(); err != nil {
		m.log.Error("Create plugin directory.", "error", err, "dir", dir)
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.log.Error("Read plugin directory.", "error", err, "dir", dir)
		return nil
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".so") {
			continue
		}
		path := filepath.Clean(filepath.Join(dir, entry.Name()))
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	return paths
}

func (m *Manager[S, C]) directory() string {
	if m.cfg.Directory == "" {
		return "plugins"
	}
	return m.cfg.Directory
}

func (m *Manager[S, C]) ensureDirectory() error {
	return os.MkdirAll(m.directory(), 0o755)
}

func (m *Manager[S, C]) resolvePath(path string) string {
	if path == "" {
		return ""
	}

	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		return cleaned
	}

	dir := filepath.Clean(m.directory())
	if cleaned == dir {
		return dir
	}

	// Paths already relative to the plugin directory, such as
	// "plugins/demo.so", are not joined a second time.
	if rel, err := filepath.Rel(dir, cleaned); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return cleaned
	}
	return filepath.Join(dir, cleaned)
}

func (m *Manager[S, C]) dataRoot() string {
	dir := m.cfg.DataDirectory
	if dir == "" {
		dir = filepath.Join(m.directory(), "data")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.directory(), dir)
	}
	return filepath.Clean(dir)
}

func (m *Manager[S, C]) ensureDataRoot() error {
	return os.MkdirAll(m.dataRoot(), 0o755)
}

func (m *Manager[S, C]) pluginDataDirectory(name string) string {
	return filepath.Join(m.dataRoot(), sanitizePluginDirectory(name))
}

func (m *Manager[S, C]) migrateDataDirectory(from, to string) error {
	if from == to {
		return nil
	}
	if to == "" {
		return fmt.Errorf("empty target data directory")
	}
	if from == "" {
		return os.MkdirAll(to, 0o755)
	}
	info, err := os.Stat(from)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.MkdirAll(to, 0o755)
		}
		return fmt.Errorf("stat source data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source data directory is not a directory")
	}
	if _, err := os.Stat(to); err == nil {
		// The target already holds data from an earlier run.
		return os.Remove(from)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("ensure target parent: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename data directory: %w", err)
	}
	return nil
}

func (m *Manager[S, C]) handlePluginPanic(name string, reason any) {
	pluginName := name
	if pluginName == "" {
		pluginName = "plugin"
	}
	m.events.clear(pluginName)
	m.runtimeLog.Error("Plugin panic.", "plugin", pluginName, "panic", reason, "stack", string(debug.Stack()))
	go func() {
		info, err := m.Disable(pluginName)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.runtimeLog.Error("Disable panic plugin.", "plugin", pluginName, "error", err)
			}
			return
		}
		m.runtimeLog.Warn("Plugin disabled after panic.", "name", info.Name, "path", info.Path)
	}()
}

// validVersion reports if v is a semantic version. The leading v is optional.
func validVersion(v string) bool {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.IsValid(v)
}

func pluginBaseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if base == "" || base == "." {
		return "plugin"
	}
	return base
}

func sanitizePluginDirectory(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(name)))
	sanitized = strings.Trim(sanitized, "-_.")
	if sanitized == "" {
		return "plugin"
	}
	return sanitized
}

func lookupPluginFactory[S any, C any](mod *goplugin.Plugin) (PluginFactory[S, C], string, error) {
	for _, symbol := range pluginFactorySymbols {
		sym, err := mod.Lookup(symbol)
		if err != nil {
			continue
		}
		factory, err := asPluginFactory[S, C](sym, symbol)
		if err != nil {
			return nil, symbol, err
		}
		return factory, symbol, nil
	}
	return nil, "", fmt.Errorf("no compatible factory symbol found")
}

func asPluginFactory[S any, C any](sym any, symbol string) (PluginFactory[S, C], error) {
	switch fn := sym.(type) {
	case PluginFactory[S, C]:
		return fn, nil
	case *PluginFactory[S, C]:
		return *fn, nil
	case func(*API[S, C]) (Plugin, error):
		return fn, nil
	case *func(*API[S, C]) (Plugin, error):
		return *fn, nil
	case func(*API[S, C]) Plugin:
		return func(api *API[S, C]) (Plugin, error) {
			if p := fn(api); p != nil {
				return p, nil
			}
			return nil, fmt.Errorf("%s returned nil plugin", symbol)
		}, nil
	default:
		return nil, fmt.Errorf("symbol %s has incompatible type %T", symbol, sym)
	}
}
