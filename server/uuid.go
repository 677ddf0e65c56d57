package server

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// OfflineUUID returns the UUID the server assigns to a player named name when
// running in offline mode, which is the case for fake players.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}
