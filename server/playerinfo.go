package server

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dm-vev/botmanager/server/plugin"
	"github.com/go-gl/mathgl/mgl64"
)

// entityData matches the reply to `data get entity <name> <path>`.
var entityData = regexp.MustCompile(`^(\S+) has the following entity data: (.+)$`)

// PlayerInfo queries the position, rotation and dimension of an online
// player over RCON.
func (srv *Server) PlayerInfo(name string) (plugin.PlayerSummary, error) {
	summary := plugin.PlayerSummary{UUID: OfflineUUID(name), Name: name, Connected: srv.Online(name)}
	if !summary.Connected {
		return summary, fmt.Errorf("player %s is not online", name)
	}
	pos, err := srv.entityData(name, "Pos")
	if err != nil {
		return summary, err
	}
	if summary.Position, err = parseVec3(pos); err != nil {
		return summary, fmt.Errorf("parse position: %w", err)
	}
	rot, err := srv.entityData(name, "Rotation")
	if err != nil {
		return summary, err
	}
	if summary.Rotation, err = parseVec2(rot); err != nil {
		return summary, fmt.Errorf("parse rotation: %w", err)
	}
	dim, err := srv.entityData(name, "Dimension")
	if err != nil {
		return summary, err
	}
	if summary.Dimension, err = parseDimensionID(dim); err != nil {
		return summary, err
	}
	return summary, nil
}

func (srv *Server) entityData(name, path string) (string, error) {
	resp, err := srv.Query("data get entity " + name + " " + path)
	if err != nil {
		return "", fmt.Errorf("query %s of %s: %w", path, name, err)
	}
	m := entityData.FindStringSubmatch(strings.TrimSpace(resp))
	if m == nil {
		return "", fmt.Errorf("query %s of %s: unexpected response %q", path, name, resp)
	}
	return m[2], nil
}

// parseNumbers parses an NBT list such as `[0.5d, 64.0d, -3.25d]`.
func parseNumbers(s string, n int) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a list: %q", s)
	}
	fields := strings.Split(s[1:len(s)-1], ",")
	if len(fields) != n {
		return nil, fmt.Errorf("list %q has %d elements, want %d", s, len(fields), n)
	}
	nums := make([]float64, n)
	for i, f := range fields {
		f = strings.TrimRight(strings.TrimSpace(f), "dDfF")
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		nums[i] = v
	}
	return nums, nil
}

func parseVec3(s string) (mgl64.Vec3, error) {
	n, err := parseNumbers(s, 3)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{n[0], n[1], n[2]}, nil
}

func parseVec2(s string) (mgl64.Vec2, error) {
	n, err := parseNumbers(s, 2)
	if err != nil {
		return mgl64.Vec2{}, err
	}
	return mgl64.Vec2{n[0], n[1]}, nil
}

// parseDimensionID converts the Dimension entity data of both the namespaced
// (1.16+) and numeric (older) form to -1, 0 or 1.
func parseDimensionID(s string) (int, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	switch s {
	case "minecraft:overworld", "0", "0i":
		return 0, nil
	case "minecraft:the_nether", "-1", "-1i":
		return -1, nil
	case "minecraft:the_end", "1", "1i":
		return 1, nil
	}
	return 0, fmt.Errorf("unknown dimension %q", s)
}
