package grid

import "fmt"

// Heading is the direction argument of a move or rotate action. It is either
// relative to the current facing or absolute.
type Heading uint8

const (
	NoHeading Heading = iota
	Forward
	Backward
	Left
	Right
	HeadNorth
	HeadEast
	HeadSouth
	HeadWest
)

var headingNames = map[Heading]string{
	Forward:   "forward",
	Backward:  "backward",
	Left:      "left",
	Right:     "right",
	HeadNorth: "north",
	HeadEast:  "east",
	HeadSouth: "south",
	HeadWest:  "west",
}

func (h Heading) String() string {
	if name, ok := headingNames[h]; ok {
		return name
	}
	if h == NoHeading {
		return ""
	}
	return fmt.Sprintf("heading(%d)", uint8(h))
}

// Relative reports whether h depends on the facing it is resolved against.
func (h Heading) Relative() bool {
	return h >= Forward && h <= Right
}

func ParseHeading(s string) (Heading, error) {
	for h, name := range headingNames {
		if name == s {
			return h, nil
		}
	}
	if s == "" {
		return NoHeading, nil
	}
	return NoHeading, fmt.Errorf("%w: %q", ErrInvalidHeading, s)
}

func (h Heading) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Heading) UnmarshalText(text []byte) error {
	parsed, err := ParseHeading(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
