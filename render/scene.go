package render

import (
	"github.com/hajimehoshi/ebiten/v2"

	mascot "github.com/mascotrt/mascot"
)

// TextureRegion names a sub-rectangle of one atlas page. It mirrors the
// teacher's region descriptor but drops the trim/rotation fields no
// mascot sprite sheet uses (sprites are exported un-trimmed, one page per
// distinct source image).
type TextureRegion struct {
	Page          uint16
	X, Y          uint16
	Width, Height uint16
	OriginalW     uint16
	OriginalH     uint16
}

// Scene is a host's display list: a root Node every claimed agent sprite
// is parented under, plus the atlas pages those sprites' TextureRegions
// reference. It does not draw — compositor submission is the embedding
// application's concern (out of scope per the Environment Facade
// boundary); Scene only tracks what EbitenHost needs to keep a sprite's
// position and texture in sync with its Agent.
type Scene struct {
	root  *Node
	pages map[int]*ebiten.Image
}

// NewScene creates an empty Scene with a bare root Node.
func NewScene() *Scene {
	return &Scene{root: NewSprite("root", TextureRegion{}), pages: make(map[int]*ebiten.Image)}
}

// Root returns the Scene's root Node. Every sprite a host claims for an
// Agent is parented here (directly, since mascots don't nest).
func (s *Scene) Root() *Node {
	return s.root
}

// NewCamera creates a Camera over viewport and returns it; a host keeps
// the returned Camera to adjust on resize.
func (s *Scene) NewCamera(viewport mascot.Rect) *Camera {
	return &Camera{Viewport: viewport}
}

// RegisterPage associates an atlas page index with the backing image, the
// first time a sprite referencing that image is seen (EbitenHost.regionFor).
func (s *Scene) RegisterPage(page int, img *ebiten.Image) {
	s.pages[page] = img
}
