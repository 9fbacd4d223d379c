package render

import mascot "github.com/mascotrt/mascot"

// Camera is a Scene's on-screen viewport. EbitenHost keeps exactly one,
// resized whenever the host window changes; the teacher's zoom/rotation/
// follow-target behavior has no analogue here since a mascot overlay
// never pans or scales its view.
type Camera struct {
	Viewport mascot.Rect
}
