// Package location implements the Location value a bot is spawned at: a
// position, a facing and a dimension.
package location

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sandertv/gophertunnel/minecraft/text"
)

// Location is a position, a facing (yaw, pitch) and a dimension. Locations
// are values; a bot's location is replaced as a whole.
type Location struct {
	Position  mgl64.Vec3
	Facing    mgl64.Vec2
	Dimension Dimension
}

// New returns a Location. It does not validate the dimension.
func New(pos mgl64.Vec3, facing mgl64.Vec2, dim Dimension) Location {
	return Location{Position: pos, Facing: facing, Dimension: dim}
}

// MissingFieldError is returned by FromDict when a required key is absent.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("location: missing field %q", e.Field)
}

// FromDict extracts a Location from its persisted form. All of position,
// facing and dimension must be present; nothing is defaulted.
func FromDict(data map[string]any) (Location, error) {
	var l Location
	pos, err := floats(data, "position", 3)
	if err != nil {
		return l, err
	}
	facing, err := floats(data, "facing", 2)
	if err != nil {
		return l, err
	}
	raw, ok := data["dimension"]
	if !ok {
		return l, MissingFieldError{Field: "dimension"}
	}
	n, ok := number(raw)
	if !ok || n != math.Trunc(n) || !Dimension(n).Valid() {
		return l, IllegalDimensionError{Value: fmt.Sprint(raw)}
	}
	copy(l.Position[:], pos)
	copy(l.Facing[:], facing)
	l.Dimension = Dimension(n)
	return l, nil
}

func floats(data map[string]any, key string, n int) ([]float64, error) {
	raw, ok := data[key]
	if !ok {
		return nil, MissingFieldError{Field: key}
	}
	var values []float64
	switch v := raw.(type) {
	case []any:
		for _, e := range v {
			f, ok := number(e)
			if !ok {
				return nil, fmt.Errorf("location: %s: %v is not a number", key, e)
			}
			values = append(values, f)
		}
	case []float64:
		values = append(values, v...)
	case mgl64.Vec3:
		values = v[:]
	case mgl64.Vec2:
		values = v[:]
	default:
		return nil, fmt.Errorf("location: %s: unexpected type %T", key, raw)
	}
	if len(values) != n {
		return nil, fmt.Errorf("location: %s: expected %d values, got %d", key, n, len(values))
	}
	return values, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Dict returns the persisted form of l, the inverse of FromDict.
func (l Location) Dict() map[string]any {
	return map[string]any{
		"position":  []any{l.Position[0], l.Position[1], l.Position[2]},
		"facing":    []any{l.Facing[0], l.Facing[1]},
		"dimension": int(l.Dimension),
	}
}

type record struct {
	Position  [3]float64 `json:"position"`
	Facing    [2]float64 `json:"facing"`
	Dimension int        `json:"dimension"`
}

// MarshalJSON encodes l as {"position": [x, y, z], "facing": [yaw, pitch],
// "dimension": id}.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{Position: l.Position, Facing: l.Facing, Dimension: int(l.Dimension)})
}

// UnmarshalJSON decodes l strictly through FromDict.
func (l *Location) UnmarshalJSON(b []byte) error {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	loc, err := FromDict(data)
	if err != nil {
		return err
	}
	*l = loc
	return nil
}

func round(v float64) float64 {
	return math.Round(v*10) / 10
}

// RoundedPosition returns the position rounded to one decimal.
func (l Location) RoundedPosition() mgl64.Vec3 {
	return mgl64.Vec3{round(l.Position[0]), round(l.Position[1]), round(l.Position[2])}
}

// RoundedFacing returns the facing rounded to one decimal.
func (l Location) RoundedFacing() mgl64.Vec2 {
	return mgl64.Vec2{round(l.Facing[0]), round(l.Facing[1])}
}

// String returns the rounded location in the form "[x, y, z] [yaw, pitch] dimension".
func (l Location) String() string {
	p, f := l.RoundedPosition(), l.RoundedFacing()
	return fmt.Sprintf("[%v, %v, %v] [%v, %v] %s", p[0], p[1], p[2], f[0], f[1], l.Dimension.Name())
}

// Display returns the rounded location with colour formatting codes.
func (l Location) Display() string {
	p, f := l.RoundedPosition(), l.RoundedFacing()
	c := l.Dimension.Colour()
	return text.Colourf("<aqua>[%v, %v, %v]</aqua> <grey>[%v, %v]</grey> <%s>%s</%s>", p[0], p[1], p[2], f[0], f[1], c, l.Dimension.Name(), c)
}
