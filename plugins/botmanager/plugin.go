// Package botmanager implements a plugin managing simulated players (bots)
// on the wrapped server. Bots are spawned and killed with the server's
// `player` command, remember where they were saved and can run scripted
// actions once they joined.
package botmanager

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/plugins/botmanager/command"
	"github.com/dm-vev/botmanager/plugins/botmanager/httpapi"
	"github.com/dm-vev/botmanager/plugins/botmanager/lang"
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/dm-vev/botmanager/server"
	"github.com/dm-vev/botmanager/server/plugin"
)

// Version is the version of the plugin.
const Version = "1.0.0"

// Plugin is the bot manager plugin.
type Plugin struct {
	api      *server.PluginAPI
	log      *slog.Logger
	settings Settings
	names    Names

	m     *bot.Manager
	h     *command.Handler
	unsub func()

	stopHTTP context.CancelFunc
	httpDone chan struct{}
}

// reloadState is handed to the next instance of the plugin when it is
// reloaded.
type reloadState struct {
	Bots []bot.Info
}

// Init is the plugin factory. It loads the settings and the saved bots from
// the plugin data directory, registers the bot command and starts the HTTP
// API if enabled.
func Init(api *server.PluginAPI) (server.Plugin, error) {
	p := &Plugin{api: api, log: api.Logger(), settings: DefaultSettings()}
	if err := api.LoadConfig(SettingsFile, &p.settings); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	p.names = Names{Prefix: p.settings.Name.Prefix, Suffix: p.settings.Name.Suffix}

	l, err := lang.New(p.settings.Language)
	if err != nil {
		return nil, fmt.Errorf("load language: %w", err)
	}
	p.m, err = bot.Config{
		Server:    api,
		Locate:    p.Location,
		Store:     bot.NewJSONStore(api, ""),
		ParseName: p.names.Parse,
		Gamemode:  bot.Gamemode{Mode: p.settings.Gamemode.Mode, Force: p.settings.Gamemode.Force},
		Log:       p.log,
	}.New()
	if err != nil {
		return nil, fmt.Errorf("load bots: %w", err)
	}
	p.restore()

	prefix := api.Config().CommandPrefix
	if prefix == "" {
		prefix = "!!"
	}
	p.h = command.Config{
		Prefix:      prefix,
		Manager:     p.m,
		Lang:        l,
		Permissions: p.settings.Permissions,
		Run:         p.run,
		Log:         p.log,
	}.New()
	api.RegisterCommand(p.h.Command())
	p.unsub = api.Events().Handle(events{p: p})

	if p.settings.HTTP.Enabled {
		if err := p.serveHTTP(); err != nil {
			p.unsub()
			return nil, err
		}
	}
	p.log.Info("Bot manager enabled.", "bots", p.m.Len(), "language", l.Tag().String())
	return p, nil
}

// Name is part of the server.Plugin interface.
func (p *Plugin) Name() string { return "BotManager" }

// Version is part of the server.VersionedPlugin interface.
func (p *Plugin) Version() string { return Version }

// Manager returns the bot registry of the plugin.
func (p *Plugin) Manager() *bot.Manager { return p.m }

// Close stops the HTTP API and detaches the plugin from the server.
func (p *Plugin) Close() error {
	if p.stopHTTP != nil {
		p.stopHTTP()
		select {
		case <-p.httpDone:
		case <-time.After(10 * time.Second):
			p.log.Warn("HTTP API did not stop in time.")
		}
	}
	if p.unsub != nil {
		p.unsub()
	}
	return nil
}

// Location returns the live location of the player passed.
func (p *Plugin) Location(player string) (location.Location, error) {
	summary, err := p.api.PlayerInfo(player)
	if err != nil {
		return location.Location{}, err
	}
	dim := location.Dimension(summary.Dimension)
	if !dim.Valid() {
		return location.Location{}, location.IllegalDimensionError{Value: fmt.Sprint(summary.Dimension)}
	}
	return location.New(summary.Position, summary.Rotation, dim), nil
}

// run runs spawn and kill commands away from the goroutine reading the
// console.
func (p *Plugin) run(fn func()) {
	p.api.Go(func(context.Context) { fn() })
}

// restore takes over the bots of the previous instance of the plugin, if it
// was reloaded, and marks bots that are online on the server as online.
func (p *Plugin) restore() {
	var prev []bot.Info
	if state, ok := p.api.ReloadState(); ok {
		if s, ok := state.(reloadState); ok {
			prev = s.Bots
		}
	}
	live := make([]string, 0)
	if p.api.Running() {
		for _, summary := range p.api.PlayerSummaries() {
			if p.names.MayBeBot(summary.Name) {
				live = append(live, summary.Name)
			}
		}
	}
	p.m.Restore(prev, live)
}

func (p *Plugin) serveHTTP() error {
	addr := p.settings.HTTP.Address
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := httpapi.Config{Manager: p.m, Token: p.settings.HTTP.Token, Log: p.log.With("subsystem", "http")}.New()
	ctx, cancel := context.WithCancel(p.api.Context())
	p.stopHTTP, p.httpDone = cancel, make(chan struct{})
	p.api.Go(func(context.Context) {
		defer close(p.httpDone)
		if err := srv.Serve(ctx, l); err != nil {
			p.log.Error("Serve HTTP API.", "error", err)
		}
	})
	return nil
}

// events handles the server events relevant to bots.
type events struct {
	plugin.NopHandler
	p *Plugin
}

func (e events) HandleServerStartup() {
	if infos := e.p.m.AutoLogin(); len(infos) != 0 {
		e.p.log.Info("Spawned auto login bots.", "count", len(infos))
	}
}

func (e events) HandleServerStop(int) {
	e.p.m.ServerStopped()
}

func (e events) HandlePlayerJoined(player string) {
	if !e.p.names.MayBeBot(player) {
		return
	}
	if info, ok := e.p.m.Spawned(player, e.p.names.Decorated(player)); ok {
		e.p.log.Debug("Bot joined.", "bot", info.Name, "player", player)
	}
}

func (e events) HandlePlayerLeft(player string) {
	if !e.p.names.MayBeBot(player) {
		return
	}
	if info, ok := e.p.m.Left(player); ok {
		e.p.log.Debug("Bot left.", "bot", info.Name, "player", player)
	}
}

func (e events) HandlePluginUnloaded() {
	e.p.api.SetReloadState(reloadState{Bots: e.p.m.All()})
}
