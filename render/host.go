package render

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	mascot "github.com/mascotrt/mascot"
)

// agentSurface is the concrete SurfaceHandle EbitenHost hands back to a
// claimed Agent: one sprite Node parented under the host's Scene root.
type agentSurface struct {
	node  *Node
	agent *mascot.Agent // back-reference so SubsurfaceAttachPose can resolve sprite + facing
}

// EbitenHost implements mascot.Host by driving a [Scene]: every live Agent
// gets one sprite Node, repositioned and re-textured each tick from the
// subsurface_move/subsurface_attach_pose calls Environment.Tick makes
// (spec.md §6 External Interfaces). A single EbitenHost instance backs
// one on-screen work area; a multi-monitor daemon constructs one per
// Environment.
type EbitenHost struct {
	mu sync.Mutex

	scene  *Scene
	camera *Camera

	workArea mascot.Rect
	screenW, screenH, screenScale float64
	ie       mascot.IEWindow
	hasIE    bool
	caps     mascot.Capability

	pageOf   map[*ebiten.Image]uint16
	nextPage int
}

// NewEbitenHost creates a host that tracks its sprites in scene (it does
// not draw), adding one full-viewport camera sized by a later call to
// Resize.
func NewEbitenHost(scene *Scene) *EbitenHost {
	h := &EbitenHost{
		scene:       scene,
		screenScale: 1,
		pageOf:      make(map[*ebiten.Image]uint16),
	}
	h.camera = scene.NewCamera(mascot.Rect{})
	return h
}

// Resize updates the host's reported screen size and work area, and
// resizes its camera viewport to match. Call this from ebiten.Game's
// Layout.
func (h *EbitenHost) Resize(workArea mascot.Rect, screenW, screenH, scale float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workArea = workArea
	h.screenW, h.screenH = screenW, screenH
	h.screenScale = scale
	h.camera.Viewport = mascot.Rect{X: 0, Y: 0, Width: screenW, Height: screenH}
}

// SetActiveIE reports (or clears) the foreground window a host plug-in is
// tracking, gating CapIE (spec.md GLOSSARY "IE").
func (h *EbitenHost) SetActiveIE(ie mascot.IEWindow, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ie, h.hasIE = ie, active
}

// SetCapabilities sets the compositor capability bitmask this host
// negotiated with the display server (supplemented feature,
// original_source/plugins.c's capability negotiation).
func (h *EbitenHost) SetCapabilities(caps mascot.Capability) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.caps = caps
}

// Claim creates a sprite Node for a, parents it under the scene root, and
// assigns it as a.Surface so Environment.Tick starts syncing it. A
// rendering loop calls this once per newly observed live Agent (e.g. by
// diffing Environment.Agents() each frame).
func (h *EbitenHost) Claim(a *mascot.Agent) {
	if a.Surface != nil {
		return
	}
	node := NewSprite(agentNodeName(a), TextureRegion{})
	h.scene.Root().AddChild(node)
	surf := &agentSurface{node: node, agent: a}
	a.Surface = surf
	h.applyPose(surf, a)
}

func agentNodeName(a *mascot.Agent) string {
	if a.Proto != nil {
		return a.Proto.Name
	}
	return "agent"
}

// applyPose resolves the agent's current sprite frame into the Node's
// TextureRegion, using whichever pose was attached most recently.
func (h *EbitenHost) applyPose(surf *agentSurface, a *mascot.Agent) {
	if pose, ok := a.CurrentPose(); ok {
		h.attachPose(surf, pose)
	}
}

// attachPose resolves pose.SpriteIndex against the claiming agent's
// Prototype atlas, picking the left- or right-facing sprite by the
// agent's current facing local, and lazily registers the underlying
// image as an atlas page the first time it's seen (original_source's
// mascot sprites are small per-animation bitmaps, not a single packed
// atlas).
func (h *EbitenHost) attachPose(surf *agentSurface, pose mascot.Pose) {
	a := surf.agent
	if a.Proto == nil || a.Proto.AtlasData == nil {
		return
	}
	if pose.SpriteIndex < 0 || pose.SpriteIndex >= len(a.Proto.AtlasData.Sprites) {
		return
	}
	pair := a.Proto.AtlasData.Sprites[pose.SpriteIndex]
	img := pair.Left
	if a.LookingRight() {
		img = pair.Right
	}
	if img == nil {
		return
	}
	surf.node.SetTextureRegion(h.regionFor(img))
}

func (h *EbitenHost) regionFor(img *ebiten.Image) TextureRegion {
	h.mu.Lock()
	defer h.mu.Unlock()
	page, ok := h.pageOf[img]
	if !ok {
		page = uint16(h.nextPage)
		h.nextPage++
		h.pageOf[img] = page
		h.scene.RegisterPage(int(page), img)
	}
	b := img.Bounds()
	return TextureRegion{
		Page: page, X: 0, Y: 0,
		Width: uint16(b.Dx()), Height: uint16(b.Dy()),
		OriginalW: uint16(b.Dx()), OriginalH: uint16(b.Dy()),
	}
}

func (h *EbitenHost) WorkArea() mascot.Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.workArea
}

func (h *EbitenHost) ScreenSize() (w, h2 float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.screenW, h.screenH
}

func (h *EbitenHost) ScreenScale() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.screenScale
}

func (h *EbitenHost) ActiveIE() (mascot.IEWindow, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ie, h.hasIE
}

func (h *EbitenHost) Capabilities() mascot.Capability {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.caps
}

func (h *EbitenHost) SubsurfaceMove(s mascot.SurfaceHandle, x, y float64, useCallback, interpolate bool) mascot.MoveResult {
	surf, ok := s.(*agentSurface)
	if !ok || surf.node == nil {
		return mascot.MoveInvalid
	}
	wa := h.WorkArea()
	clamped := false
	if x < wa.X {
		x, clamped = wa.X, true
	} else if x > wa.X+wa.Width {
		x, clamped = wa.X+wa.Width, true
	}
	if y < wa.Y {
		y, clamped = wa.Y, true
	} else if y > wa.Y+wa.Height {
		y, clamped = wa.Y+wa.Height, true
	}
	surf.node.X, surf.node.Y = x, y
	if clamped {
		return mascot.MoveClamped
	}
	return mascot.MoveOK
}

func (h *EbitenHost) SubsurfaceAttachPose(s mascot.SurfaceHandle, pose mascot.Pose) {
	surf, ok := s.(*agentSurface)
	if !ok || surf.agent == nil {
		return
	}
	h.attachPose(surf, pose)
}

func (h *EbitenHost) SubsurfaceRelease(s mascot.SurfaceHandle) {
	surf, ok := s.(*agentSurface)
	if !ok || surf.node == nil {
		return
	}
	surf.node.Dispose()
	surf.node = nil
}

func (h *EbitenHost) SubsurfaceDrag(s mascot.SurfaceHandle, p mascot.PointerSnapshot) {
	surf, ok := s.(*agentSurface)
	if !ok || surf.node == nil {
		return
	}
	surf.node.X, surf.node.Y = p.X, p.Y
}

func (h *EbitenHost) IEThrow(vx, vy, gravity float64, tick mascot.Tick) bool {
	_, active := h.ActiveIE()
	return active
}

func (h *EbitenHost) IEMove(x, y float64) mascot.MoveResult {
	if _, active := h.ActiveIE(); !active {
		return mascot.MoveInvalid
	}
	return mascot.MoveOK
}

func (h *EbitenHost) IEStopMovement() bool {
	_, active := h.ActiveIE()
	return active
}
