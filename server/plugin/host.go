package plugin

import (
	"log/slog"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
)

// Host exposes the subset of server functionality required by the plugin
// manager and APIs.
type Host[S any, C any] interface {
	// Instance returns the underlying server value.
	Instance() S
	// Config returns a snapshot of the server configuration.
	Config() C
	// Logger returns the logger used for structured diagnostics.
	Logger() *slog.Logger
	// StartTime reports the time the server finished starting up. It is the
	// zero time while the server is not running.
	StartTime() time.Time
	// Running reports if the wrapped server process is up.
	Running() bool
	// Execute writes a raw command to the server console.
	Execute(command string) error
	// Query runs a command over RCON and returns the server's response.
	Query(command string) (string, error)
	// Say broadcasts a chat message to every online player.
	Say(message string) error
	// Tell sends a chat message to one player.
	Tell(player, message string) error
	// PlayerInfo queries the live position, rotation and dimension of an
	// online player.
	PlayerInfo(name string) (PlayerSummary, error)
	// PlayerSummaries returns metadata about all currently connected players.
	PlayerSummaries() []PlayerSummary
	// PlayerCount returns the number of currently connected players.
	PlayerCount() int
	// ExecuteCommand runs a plugin command line on behalf of the given source.
	ExecuteCommand(source cmd.Source, commandLine string)
	// Close shuts the underlying server down.
	Close() error
	// LoadPlugins triggers discovery and activation for configured plugins.
	LoadPlugins()
	// PluginsEnabled reports if the plugin system is active.
	PluginsEnabled() bool
}
