package botmanager

import (
	"regexp"
	"strings"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
)

// validName matches the player names accepted by the server.
var validName = regexp.MustCompile(`^[a-z0-9_]{3,16}$`)

// Names decorates bot names with a prefix and a suffix.
type Names struct {
	Prefix string
	Suffix string
}

// Parse returns the registry key of name: name lower-cased and decorated
// with the prefix and suffix unless it already carries them. Parse is
// idempotent.
func (n Names) Parse(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", bot.IllegalNameError{Name: name}
	}
	prefix, suffix := strings.ToLower(n.Prefix), strings.ToLower(n.Suffix)
	if !strings.HasPrefix(key, prefix) {
		key = prefix + key
	}
	if !strings.HasSuffix(key, suffix) {
		key += suffix
	}
	if !validName.MatchString(key) {
		return "", bot.IllegalNameError{Name: name}
	}
	return key, nil
}

// Decorated reports if the player name passed carries the prefix and suffix.
// Without a prefix and suffix no player is considered decorated.
func (n Names) Decorated(player string) bool {
	if n.Prefix == "" && n.Suffix == "" {
		return false
	}
	p := strings.ToLower(player)
	return strings.HasPrefix(p, strings.ToLower(n.Prefix)) && strings.HasSuffix(p, strings.ToLower(n.Suffix)) &&
		len(p) > len(n.Prefix)+len(n.Suffix)
}

// MayBeBot reports if the player name passed may belong to a bot. With a
// prefix or suffix configured, only decorated players may be bots.
func (n Names) MayBeBot(player string) bool {
	return n.Decorated(player) || (n.Prefix == "" && n.Suffix == "")
}
