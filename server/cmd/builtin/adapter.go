package builtin

import (
	"time"

	"github.com/dm-vev/botmanager/server/plugin"
)

// serverAdapter is the part of *server.Server the built-in commands use.
type serverAdapter interface {
	Players() []string
	PlayerCount() int
	Running() bool
	StartTime() time.Time
	CommandPrefix() string
	Close() error

	PluginsEnabled() bool
	PluginInfos() []plugin.Info
	EnablePlugin(path string) (plugin.Info, error)
	DisablePlugin(name string) (plugin.Info, error)
	ReloadPlugin(name string) (plugin.Info, error)
}
