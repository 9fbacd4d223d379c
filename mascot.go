// Package mascot implements the agent runtime for a desktop mascot
// companion system: the behaviour/action interpreter, the expression VM,
// the affordance matchmaker, and the supporting Environment/Pointer
// facades. Rendering, compositor I/O, and on-disk asset decoding are
// handled by collaborators the core only talks to through interfaces
// (see environment.go and prototype.go).
package mascot

import "time"

// Vec2 is a 2D vector used for positions, velocities, and offsets.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle with the origin at its top-left corner.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle,
// inclusive of its edges.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Tick is a monotonically increasing counter of agent runtime steps,
// nominally advanced at ~25 Hz by the host's tick source.
type Tick uint64

// TickInterval is the nominal spacing between ticks.
const TickInterval = 40 * time.Millisecond

// BorderType classifies a point against work-area and foreground-window
// geometry, as reported by the Environment Facade.
type BorderType uint8

const (
	BorderNone BorderType = iota
	BorderFloor
	BorderCeiling
	BorderWall
	BorderAny
	BorderInvalid
)

// String implements fmt.Stringer for log output.
func (b BorderType) String() string {
	switch b {
	case BorderNone:
		return "none"
	case BorderFloor:
		return "floor"
	case BorderCeiling:
		return "ceiling"
	case BorderWall:
		return "wall"
	case BorderAny:
		return "any"
	case BorderInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}
