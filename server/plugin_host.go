package server

import (
	"log/slog"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/dm-vev/botmanager/server/plugin"
)

type pluginHost struct {
	srv *Server
}

func newPluginHost(srv *Server) plugin.Host[*Server, Config] {
	return pluginHost{srv: srv}
}

func (h pluginHost) Instance() *Server {
	return h.srv
}

func (h pluginHost) Config() Config {
	return h.srv.conf
}

func (h pluginHost) Logger() *slog.Logger {
	return h.srv.log
}

func (h pluginHost) StartTime() time.Time {
	return h.srv.StartTime()
}

func (h pluginHost) Running() bool {
	return h.srv.Running()
}

func (h pluginHost) Execute(command string) error {
	return h.srv.Execute(command)
}

func (h pluginHost) Query(command string) (string, error) {
	return h.srv.Query(command)
}

func (h pluginHost) Say(message string) error {
	return h.srv.Say(message)
}

func (h pluginHost) Tell(player, message string) error {
	return h.srv.Tell(player, message)
}

func (h pluginHost) PlayerInfo(name string) (plugin.PlayerSummary, error) {
	return h.srv.PlayerInfo(name)
}

func (h pluginHost) PlayerSummaries() []plugin.PlayerSummary {
	names := h.srv.Players()
	summaries := make([]plugin.PlayerSummary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, plugin.PlayerSummary{
			UUID:      OfflineUUID(name),
			Name:      name,
			Connected: true,
		})
	}
	return summaries
}

func (h pluginHost) PlayerCount() int {
	return h.srv.PlayerCount()
}

func (h pluginHost) ExecuteCommand(source cmd.Source, commandLine string) {
	h.srv.ExecuteCommand(source, commandLine)
}

func (h pluginHost) Close() error {
	return h.srv.Close()
}

func (h pluginHost) LoadPlugins() {
	h.srv.LoadPlugins()
}

func (h pluginHost) PluginsEnabled() bool {
	return h.srv.PluginsEnabled()
}

var _ plugin.Host[*Server, Config] = pluginHost{}
