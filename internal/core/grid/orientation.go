package grid

import "fmt"

// Orientation maps the four relative directions of a facing to absolute ones.
type Orientation struct {
	Forward  Direction
	Backward Direction
	Left     Direction
	Right    Direction
}

var rotations = map[Direction]Orientation{
	North: {Forward: North, Backward: South, Left: West, Right: East},
	East:  {Forward: East, Backward: West, Left: North, Right: South},
	South: {Forward: South, Backward: North, Left: East, Right: West},
	West:  {Forward: West, Backward: East, Left: South, Right: North},
}

// Orient returns the orientation of an entity facing the given direction.
func Orient(facing Direction) Orientation {
	o, ok := rotations[facing]
	if !ok {
		panic(fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(facing)))
	}
	return o
}

// Resolve turns a heading into an absolute direction. Absolute headings are
// returned unchanged.
func (o Orientation) Resolve(h Heading) Direction {
	switch h {
	case Forward:
		return o.Forward
	case Backward:
		return o.Backward
	case Left:
		return o.Left
	case Right:
		return o.Right
	case HeadNorth:
		return North
	case HeadEast:
		return East
	case HeadSouth:
		return South
	case HeadWest:
		return West
	default:
		panic(fmt.Errorf("%w: %d", ErrInvalidHeading, uint8(h)))
	}
}

// Point is an integer grid coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Translate returns the adjacent point one step towards d. North decreases y.
func (p Point) Translate(d Direction) Point {
	switch d {
	case North:
		return Point{X: p.X, Y: p.Y - 1}
	case South:
		return Point{X: p.X, Y: p.Y + 1}
	case East:
		return Point{X: p.X + 1, Y: p.Y}
	case West:
		return Point{X: p.X - 1, Y: p.Y}
	default:
		panic(fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d)))
	}
}
