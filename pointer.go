package mascot

// DeviceType tags which input device last moved the pointer (spec.md §3).
type DeviceType uint8

const (
	DeviceMouse DeviceType = iota
	DevicePen
	DeviceEraser
	DeviceTouch
)

// MouseButtons is a bitmask of currently-held pointer buttons.
type MouseButtons uint8

const (
	ButtonLeft MouseButtons = 1 << iota
	ButtonRight
	ButtonMiddle
)

const dragIdleWindow = 250 // ticks (spec.md §4.D drag)
const dragActivationPixels = 5.0

// PointerSnapshot is the tick-boundary view of the pointer every Agent
// observes for the whole tick (spec.md §5 ordering guarantees).
type PointerSnapshot struct {
	X, Y         float64 // screen-global coordinates
	PendingX, PendingY float64
	MascotX, MascotY float64 // local to the hit sprite, if any
	Device       DeviceType
	Buttons      MouseButtons
	Captured     *Agent
}

// SelectionCallback is invoked once with the next pointer click, the
// callback form of a begin-selection registration (spec.md §4.G). The ipc
// package does not register any.
type SelectionCallback func(x, y float64)

// Arbiter owns process-wide pointer state and arbitrates which Agent, if
// any, currently captures it. It holds no lock of its own: it serializes
// with agents by acquiring each agent's lock for the duration of a
// transition (spec.md §4.F, §5 "The arbiter owns no lock of its own").
type Arbiter struct {
	current PointerSnapshot
	last    PointerSnapshot

	selecting map[*Environment]SelectionCallback
}

// NewArbiter creates an idle pointer arbiter.
func NewArbiter() *Arbiter {
	return &Arbiter{selecting: make(map[*Environment]SelectionCallback)}
}

// Current returns the last-observed pointer state.
func (p *Arbiter) Current() PointerSnapshot { return p.current }

// Move updates the observed absolute pointer position and device type.
// It does not fire pending selections; PressLeft does.
func (p *Arbiter) Move(x, y float64, device DeviceType) {
	p.last = p.current
	p.current.X, p.current.Y = x, y
	p.current.Device = device
}

// BeginSelection registers a one-shot callback for env. The next PressLeft
// fires every pending callback, whichever environment registered it, and
// clears them all (spec.md §4.G).
func (p *Arbiter) BeginSelection(env *Environment, cb SelectionCallback) {
	p.selecting[env] = cb
}

// CancelSelection clears a pending selection registration for env.
func (p *Arbiter) CancelSelection(env *Environment) {
	delete(p.selecting, env)
}

// fulfilSelections fires every pending selection callback and clears them.
func (p *Arbiter) fulfilSelections(x, y float64) {
	for env, cb := range p.selecting {
		cb(x, y)
		delete(p.selecting, env)
	}
}

// HotspotHit runs point-in-shape hit testing against the current
// animation's hotspot list, returning the matched Hotspot or nil.
func HotspotHit(anim *Animation, frameIndex int, lx, ly float64) *Hotspot {
	if anim == nil || frameIndex < 0 || frameIndex >= len(anim.Poses) {
		return nil
	}
	for i := range anim.Poses[frameIndex].Hotspots {
		h := &anim.Poses[frameIndex].Hotspots[i]
		switch h.Shape {
		case HotspotRect:
			if lx >= h.X && lx <= h.X+h.W && ly >= h.Y && ly <= h.Y+h.H {
				return h
			}
		case HotspotEllipse:
			cx, cy := h.X+h.W/2, h.Y+h.H/2
			rx, ry := h.W/2, h.H/2
			if rx == 0 || ry == 0 {
				continue
			}
			dx, dy := (lx-cx)/rx, (ly-cy)/ry
			if dx*dx+dy*dy <= 1 {
				return h
			}
		}
	}
	return nil
}

// PressLeft processes a left-button press at the given sprite-local
// coordinates on agent (nil if the press missed every sprite). On hit, it
// runs hotspot hit-testing and latches a behaviour; on miss (or no
// hotspot under the press), if dragging is configured and agent isn't
// already grabbed, it starts a drag (spec.md §4.F).
func (p *Arbiter) PressLeft(agent *Agent, localX, localY float64, draggingEnabled bool) {
	p.current.Buttons |= ButtonLeft

	if len(p.selecting) > 0 {
		p.fulfilSelections(p.current.X, p.current.Y)
		return
	}

	if agent == nil {
		return
	}

	agent.Lock()
	defer agent.Unlock()

	if hs := HotspotHit(agent.CurrentAnimation, agent.FrameIndex, localX, localY); hs != nil {
		if b := agent.Proto.BehaviourByName(hs.Behaviour); b != nil {
			agent.Hotspot.Active = true
			agent.Hotspot.Behaviour = b
		}
		return
	}

	if draggingEnabled && !agent.Drag.Capturing {
		p.startDragLocked(agent)
	}
}

// startDragLocked transitions agent into drag behaviour. Caller must hold
// agent's lock.
func (p *Arbiter) startDragLocked(agent *Agent) {
	if agent.Proto.DragBehaviour == nil {
		return
	}
	agent.Drag.Dragged = true
	agent.Drag.Capturing = true
	agent.Drag.StartX, agent.Drag.StartY = p.current.X, p.current.Y
	agent.Drag.LastX, agent.Drag.LastY = p.current.X, p.current.Y
	p.current.Captured = agent
	agent.setBehaviourLocked(agent.Proto.DragBehaviour)
	agent.State = StateDrag
}

// Motion feeds the surface layer with the new absolute position while
// grabbing, and records the delta for the drag embedded action.
func (p *Arbiter) Motion(x, y float64) {
	p.last = p.current
	p.current.X, p.current.Y = x, y
	if a := p.current.Captured; a != nil {
		a.Lock()
		a.Drag.LastX, a.Drag.LastY = x, y
		a.Unlock()
	}
}

// ReleaseLeft computes the release delta and ends a drag as a throw
// (spec.md §4.F release-left). outOfBounds reports whether the release
// point falls outside work, so the caller may decide to dispose.
func (p *Arbiter) ReleaseLeft(workArea Rect) (outOfBounds bool) {
	p.current.Buttons &^= ButtonLeft
	a := p.current.Captured
	if a == nil {
		return false
	}
	p.current.Captured = nil

	a.Lock()
	defer a.Unlock()

	dx := p.current.X - a.Drag.StartX
	dy := p.current.Y - a.Drag.StartY
	a.Locals[LocalInitialVelX].Value = dx
	a.Locals[LocalInitialVelY].Value = -dy // mascot frame is Y-up
	a.Drag.Capturing = false
	a.Drag.Dragged = false

	if a.Proto.ThrownBehaviour != nil {
		a.setBehaviourLocked(a.Proto.ThrownBehaviour)
		a.State = StateMove
	}

	return !workArea.Contains(p.current.X, p.current.Y)
}

// ToolRemoved handles a tablet pen lifted while capturing (drag_end with
// thrown=false), per spec.md §4.F.
func (p *Arbiter) ToolRemoved() {
	a := p.current.Captured
	if a == nil {
		return
	}
	p.current.Captured = nil
	a.Lock()
	defer a.Unlock()
	a.Drag.Capturing = false
	a.Drag.Dragged = false
	if a.Proto.FallBehaviour != nil {
		a.setBehaviourLocked(a.Proto.FallBehaviour)
		a.State = StateFall
	}
}
