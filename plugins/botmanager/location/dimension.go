package location

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dimension is one of the three vanilla dimensions, encoded the way the game
// encodes dimension ids in older saves.
type Dimension int

const (
	Nether    Dimension = -1
	Overworld Dimension = 0
	End       Dimension = 1
)

// ErrIllegalDimension is wrapped by every error returned for a dimension
// that is not one of Nether, Overworld or End.
var ErrIllegalDimension = errors.New("illegal dimension")

// IllegalDimensionError is returned when parsing a dimension fails. Value is
// the text that could not be parsed.
type IllegalDimensionError struct {
	Value string
}

func (e IllegalDimensionError) Error() string {
	return fmt.Sprintf("illegal dimension %q", e.Value)
}

func (e IllegalDimensionError) Unwrap() error { return ErrIllegalDimension }

// Valid reports if d is one of the known dimensions.
func (d Dimension) Valid() bool {
	return d >= Nether && d <= End
}

// ID returns the namespaced id of the dimension, as used by commands such as
// `execute in`.
func (d Dimension) ID() string {
	switch d {
	case Nether:
		return "minecraft:the_nether"
	case End:
		return "minecraft:the_end"
	}
	return "minecraft:overworld"
}

// Name returns the short name of the dimension.
func (d Dimension) Name() string {
	switch d {
	case Nether:
		return "nether"
	case End:
		return "end"
	case Overworld:
		return "overworld"
	}
	return "unknown"
}

// Colour returns the text colour tag the dimension is displayed with.
func (d Dimension) Colour() string {
	switch d {
	case Nether:
		return "red"
	case End:
		return "purple"
	}
	return "green"
}

func (d Dimension) String() string {
	return d.Name()
}

// ParseDimension parses a dimension from user input. It accepts the integer
// ids -1, 0 and 1, the short names, the vanilla names and namespaced ids.
func ParseDimension(s string) (Dimension, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "minecraft:")
	switch v {
	case "overworld":
		return Overworld, nil
	case "nether", "the_nether":
		return Nether, nil
	case "end", "the_end":
		return End, nil
	}
	if n, err := strconv.Atoi(v); err == nil && Dimension(n).Valid() {
		return Dimension(n), nil
	}
	return Overworld, IllegalDimensionError{Value: s}
}
