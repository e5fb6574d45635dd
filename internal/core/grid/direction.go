package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidHeading   = errors.New("invalid heading")
)

// Direction is an absolute cardinal direction. Values are single bits so that
// several directions can be combined into a Mask.
type Direction uint8

const (
	North Direction = 1 << iota
	East
	South
	West
)

// Directions lists the cardinal directions in a fixed order.
var Directions = [4]Direction{North, East, South, West}

func (d Direction) Valid() bool {
	return d == North || d == East || d == South || d == West
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection maps "north", "east", "south" and "west" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "north":
		return North, nil
	case "east":
		return East, nil
	case "south":
		return South, nil
	case "west":
		return West, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Opposite panics on an invalid direction, like every other method below that
// needs a cardinal value.
func (d Direction) Opposite() Direction {
	return Orient(d).Backward
}

// Left is the direction after a quarter turn counter-clockwise.
func (d Direction) Left() Direction {
	return Orient(d).Left
}

// Right is the direction after a quarter turn clockwise.
func (d Direction) Right() Direction {
	return Orient(d).Right
}

// Yaw returns the heading angle in radians in grid coordinates, where x grows
// east and y grows south: east is 0 and south is +pi/2.
func (d Direction) Yaw() float64 {
	switch d {
	case East:
		return 0
	case South:
		return math.Pi / 2
	case West:
		return math.Pi
	case North:
		return -math.Pi / 2
	default:
		panic(fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d)))
	}
}

// Mask is a set of directions.
type Mask uint8

func MaskOf(dirs ...Direction) Mask {
	var m Mask
	for _, d := range dirs {
		m |= Mask(d)
	}
	return m
}

func (m Mask) Has(d Direction) bool { return m&Mask(d) != 0 }

func (m Mask) With(d Direction) Mask { return m | Mask(d) }

func (m Mask) Without(d Direction) Mask { return m &^ Mask(d) }
