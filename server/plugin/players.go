package plugin

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// PlayerSummary captures a snapshot of an online player at the moment the
// summary was produced. Position, Rotation and Dimension are only filled by
// Host.PlayerInfo, which queries the server for them.
type PlayerSummary struct {
	UUID      uuid.UUID
	Name      string
	Dimension int
	Position  mgl64.Vec3
	Rotation  mgl64.Vec2
	Connected bool
}
