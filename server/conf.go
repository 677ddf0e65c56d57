package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/dm-vev/botmanager/server/plugin"
)

// Config contains options for running a wrapped Minecraft Java server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Command is the command line starting the Java server, for example
	// `java -Xmx2G -jar server.jar nogui`. The first field is the executable.
	Command []string
	// WorkingDirectory is the directory the server process is started in.
	WorkingDirectory string
	// CommandPrefix is the prefix that marks a chat or console line as a
	// plugin command. It defaults to "!!".
	CommandPrefix string
	// StopTimeout is how long Close waits for the server to exit after
	// sending `stop` before the process is killed.
	StopTimeout time.Duration
	// RCON configures the RCON connection used by Query and PlayerInfo. RCON
	// is dialled once the server reports that RCON is running.
	RCON RCONConfig
	// Plugins configures the plugin loader.
	Plugins plugin.Config
	// DefaultPermission is the permission level of players not listed in
	// Permissions.
	DefaultPermission int
	// Permissions maps lower-cased player names to their permission level.
	Permissions map[string]int
}

// RCONConfig holds the RCON connection settings.
type RCONConfig struct {
	Enabled  bool
	Address  string
	Password string
	Timeout  time.Duration
}

// UserConfig is the user configuration of the server wrapper. It holds
// settings that affect the behaviour of the wrapper and is decoded from
// config.toml.
type UserConfig struct {
	Server struct {
		// Command is the command line used to start the Java server.
		Command string
		// WorkingDirectory is the directory the server is started in. It
		// should contain server.properties and the server jar.
		WorkingDirectory string
		// CommandPrefix marks chat lines that should be executed as plugin
		// commands.
		CommandPrefix string
		// StopTimeout is the maximum time to wait for the server to stop,
		// such as "30s".
		StopTimeout string
	}
	RCON struct {
		// Enabled controls if RCON is used for queries. The server must have
		// enable-rcon=true in server.properties.
		Enabled bool
		// Address is the address of the RCON listener.
		Address string
		// Password is the value of rcon.password in server.properties.
		Password string
		// Timeout limits dialling and each query, such as "5s".
		Timeout string
	}
	Plugins struct {
		// Enabled controls if plugins are loaded.
		Enabled bool
		// Directory is searched for Go plugin files.
		Directory string
		// DataDirectory holds one data folder per plugin.
		DataDirectory string
		// Autoload enables every built-in plugin and every .so file found.
		Autoload bool
		// Files enumerates plugins to enable by name or path.
		Files []string
	}
	Permissions struct {
		// Default is the permission level of players not listed in Players,
		// from 0 (guest) to 4 (owner).
		Default int
		// Players maps player names to their permission level.
		Players map[string]int
	}
}

// Config converts a UserConfig to a Config, so that it may be used for
// creating a Server. An error is returned if a setting cannot be parsed.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	conf := Config{
		Log:              log,
		Command:          strings.Fields(uc.Server.Command),
		WorkingDirectory: uc.Server.WorkingDirectory,
		CommandPrefix:    uc.Server.CommandPrefix,
		RCON: RCONConfig{
			Enabled:  uc.RCON.Enabled,
			Address:  uc.RCON.Address,
			Password: uc.RCON.Password,
		},
		Plugins: plugin.Config{
			Enabled:       uc.Plugins.Enabled,
			Directory:     uc.Plugins.Directory,
			DataDirectory: uc.Plugins.DataDirectory,
			Autoload:      uc.Plugins.Autoload,
			Files:         uc.Plugins.Files,
		},
		DefaultPermission: clampPermission(uc.Permissions.Default),
		Permissions:       make(map[string]int, len(uc.Permissions.Players)),
	}
	if len(conf.Command) == 0 {
		return conf, fmt.Errorf("server command is empty")
	}
	var err error
	if conf.StopTimeout, err = parseDuration(uc.Server.StopTimeout, 30*time.Second); err != nil {
		return conf, fmt.Errorf("parse stop timeout: %w", err)
	}
	if conf.RCON.Timeout, err = parseDuration(uc.RCON.Timeout, 5*time.Second); err != nil {
		return conf, fmt.Errorf("parse rcon timeout: %w", err)
	}
	for name, level := range uc.Permissions.Players {
		if level != clampPermission(level) {
			log.Warn("Permission level out of range, clamping.", "player", name, "level", level)
		}
		conf.Permissions[strings.ToLower(name)] = clampPermission(level)
	}
	return conf, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func clampPermission(level int) int {
	return min(max(level, cmd.PermissionGuest), cmd.PermissionOwner)
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Server.Command = "java -Xmx2G -jar server.jar nogui"
	c.Server.WorkingDirectory = "server"
	c.Server.CommandPrefix = "!!"
	c.Server.StopTimeout = "30s"
	c.RCON.Enabled = true
	c.RCON.Address = "127.0.0.1:25575"
	c.RCON.Timeout = "5s"
	c.Plugins.Enabled = true
	c.Plugins.Directory = "plugins"
	c.Plugins.DataDirectory = "data"
	c.Plugins.Autoload = true
	c.Permissions.Default = cmd.PermissionUser
	c.Permissions.Players = map[string]int{}
	return c
}
