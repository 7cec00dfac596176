package exercise

import "fmt"

// Phase is the stage of a repetition cycle.
type Phase int

const (
	Idle Phase = iota
	Down
	Up
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = Idle
	case "down":
		*p = Down
	case "up":
		*p = Up
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}
