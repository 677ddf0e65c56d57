package botmanager

import (
	"github.com/dm-vev/botmanager/plugins/botmanager/command"
	"github.com/dm-vev/botmanager/server/cmd"
)

// SettingsFile is the name of the settings file in the plugin data
// directory.
const SettingsFile = "config.toml"

// Settings is the configuration of the bot manager, decoded from
// config.toml in the plugin data directory.
type Settings struct {
	// Language is the language of replies, such as en_us or zh_cn.
	Language string
	Name     struct {
		// Prefix and Suffix decorate bot names. Names typed by users are
		// decorated before they are looked up, and joining players wearing
		// the decoration are tracked as bots.
		Prefix string
		Suffix string
	}
	Gamemode struct {
		// Mode is the gamemode set for saved bots once they joined, such as
		// survival. Leave it empty to keep the gamemode of the server.
		Mode string
		// Force sets the gamemode of bots that are not saved too.
		Force bool
	}
	// Permissions holds the permission level required for each sub command,
	// from 0 (guest) to 4 (owner).
	Permissions command.Permissions
	HTTP        struct {
		// Enabled starts the HTTP API.
		Enabled bool
		// Address is the TCP address the HTTP API listens on.
		Address string
		// Token, if set, must be passed as a bearer token.
		Token string
	}
}

// DefaultSettings returns the settings written to config.toml if it does not
// exist yet.
func DefaultSettings() Settings {
	var s Settings
	s.Language = "en_us"
	s.Name.Prefix = "bot_"
	s.Gamemode.Mode = "survival"
	s.Permissions = command.Permissions{
		List:   cmd.PermissionGuest,
		Spawn:  cmd.PermissionUser,
		Kill:   cmd.PermissionUser,
		Action: cmd.PermissionUser,
		Tags:   cmd.PermissionUser,
		Info:   cmd.PermissionGuest,
		Save:   cmd.PermissionHelper,
		Delete: cmd.PermissionHelper,
		Config: cmd.PermissionHelper,
	}
	s.HTTP.Address = "127.0.0.1:8091"
	return s
}
