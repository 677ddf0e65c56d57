package cmd

// Permission levels recognised by sources. Higher levels include the rights of
// lower ones.
const (
	PermissionGuest = iota
	PermissionUser
	PermissionHelper
	PermissionAdmin
	PermissionOwner
)

// Source represents a source of a command execution, such as the console or a
// player typing a command in chat.
type Source interface {
	// Name returns the name shown for the source.
	Name() string
	// PermissionLevel returns the permission level of the source, ranging
	// from PermissionGuest to PermissionOwner.
	PermissionLevel() int
	// SendCommandOutput sends a command output to the source.
	SendCommandOutput(o *Output)
}

// LevelAllower is an Allower-compatible helper that allows sources with at
// least the permission level held.
type LevelAllower int

// Allow reports if src has at least the level of the LevelAllower.
func (l LevelAllower) Allow(src Source) bool {
	return src.PermissionLevel() >= int(l)
}

// IsPlayer reports if src is an in-game player, as opposed to the console or
// another non-player source. Player sources implement a Player() bool method.
func IsPlayer(src Source) bool {
	p, ok := src.(interface{ Player() bool })
	return ok && p.Player()
}
