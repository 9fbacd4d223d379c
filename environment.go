package mascot

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mascotrt/mascot/config"
)

// MoveResult is the outcome of a subsurface move request (spec.md §6).
type MoveResult uint8

const (
	MoveOK MoveResult = iota
	MoveClamped
	MoveEnvironmentChanged
	MoveOutOfBounds
	MoveInvalid
)

// Capability is a bitmask of optional compositor features the host has
// negotiated at startup (supplemented feature, original_source/plugins.c's
// capability negotiation).
type Capability uint32

const (
	CapIE Capability = 1 << iota // foreground-window tracking
	CapMultiOutput
	CapCursorShape
)

// IEWindow is the bounding box of a foreground application window the
// host plug-in reports, against which agents may wall-climb, sit, or be
// thrown (GLOSSARY "IE").
type IEWindow struct {
	Bounds  Rect
	Surface SurfaceHandle
}

// SurfaceHandle is an opaque reference to the compositor surface backing
// a rendered Agent; the core never interprets it, only passes it to the
// Environment's subsurface_* operations (spec.md §6, out-of-scope I/O
// boundary).
type SurfaceHandle interface{}

// Host is the set of operations the core Environment Facade expects from
// its display-server/compositor collaborator (spec.md §6). It is the
// explicit interface that replaces the original's implicit globals (§9).
type Host interface {
	WorkArea() Rect
	ScreenSize() (w, h float64)
	ScreenScale() float64
	ActiveIE() (IEWindow, bool)

	SubsurfaceMove(s SurfaceHandle, x, y float64, useCallback, interpolate bool) MoveResult
	SubsurfaceAttachPose(s SurfaceHandle, pose Pose)
	SubsurfaceRelease(s SurfaceHandle)
	SubsurfaceDrag(s SurfaceHandle, p PointerSnapshot)

	IEThrow(vx, vy, gravity float64, tick Tick) bool
	IEMove(x, y float64) MoveResult
	IEStopMovement() bool

	Capabilities() Capability
}

// Environment is one hosted screen/work-area: it owns the authoritative
// Agent list, runs the per-tick loop, and is the single writer of the
// tick-boundary pointer/work-area/IE snapshot every Agent observes for the
// whole tick (spec.md §5 ordering guarantees).
type Environment struct {
	mu sync.Mutex

	id  uint32
	log *logrus.Entry

	Host  Host
	Store *Store
	Affordances *AffordanceRegistry
	Sink  LifecycleSink // optional ECS/UI event consumer

	agents   map[uint32]*Agent
	tick     Tick

	// Per-tick snapshot, sampled once in PreTick.
	workArea      Rect
	screenW, screenH float64
	pointer       PointerSnapshot
	activeIE      IEWindow
	hasActiveIE   bool
	capabilities  Capability

	bordersScratch map[[2]int64]BorderType // supplemented: per-tick border memo

	Config *config.RuntimeConfig
}

// EnvID implements EnvironmentRef.
func (e *Environment) EnvID() uint32 { return e.id }

var envIDCounter uint32

// NewEnvironment creates an Environment bound to the given Host, Store,
// and shared config. A fresh AffordanceRegistry is created unless shared
// is passed (for a multi-environment "unified outputs" cohort).
func NewEnvironment(host Host, store *Store, cfg *config.RuntimeConfig, shared *AffordanceRegistry) *Environment {
	envIDCounter++
	reg := shared
	if reg == nil {
		reg = NewAffordanceRegistry()
	}
	reg.UnifiedOutputs = cfg.UnifiedOutputs
	return &Environment{
		id:             envIDCounter,
		log:            logrus.WithField("env", envIDCounter),
		Host:           host,
		Store:          store,
		Affordances:    reg,
		agents:         make(map[uint32]*Agent),
		bordersScratch: make(map[[2]int64]BorderType),
		Config:         cfg,
	}
}

// PreTick samples the Host once per tick: work area, pointer position,
// and foreground-window geometry. Every Agent observes these values for
// the whole tick, consistent with spec.md §5 ordering guarantees.
func (e *Environment) PreTick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workArea = e.Host.WorkArea()
	e.screenW, e.screenH = e.Host.ScreenSize()
	e.capabilities = e.Host.Capabilities()
	if ie, ok := e.Host.ActiveIE(); ok && e.capabilities&CapIE != 0 {
		e.activeIE, e.hasActiveIE = ie, true
	} else {
		e.hasActiveIE = false
	}
	for k := range e.bordersScratch {
		delete(e.bordersScratch, k)
	}
}

// WorkArea returns the snapshot sampled this tick.
func (e *Environment) WorkArea() Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workArea
}

// PointerSnapshot returns the snapshot sampled this tick.
func (e *Environment) PointerSnapshot() PointerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pointer
}

// SetPointerSnapshot is called by the Pointer Arbiter ahead of tick to
// publish the latest observed pointer coordinates (spec.md §2 control flow).
func (e *Environment) SetPointerSnapshot(p PointerSnapshot) {
	e.mu.Lock()
	e.pointer = p
	e.mu.Unlock()
}

// capabilitiesSnapshot returns the Host capability bitmask sampled this
// tick (spec.md §9 explicit-context replacement for the original's global
// plugin-capability lookup).
func (e *Environment) capabilitiesSnapshot() Capability {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capabilities
}

// ActiveIE returns the foreground-window bounding box sampled this tick,
// or ok=false if none is active or the host lacks CapIE.
func (e *Environment) ActiveIE() (IEWindow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeIE, e.hasActiveIE
}

// screenYToMascotY converts a screen-local Y (origin top) to mascot-local Y
// (origin bottom), per spec.md §6.
func (e *Environment) screenYToMascotY(y float64) float64 {
	return e.workArea.Height - y
}

// GetBorderType classifies (x, y) against work-area and foreground-window
// borders, memoized for the remainder of the current tick (supplemented
// feature from original_source/environment.c's border cache).
func (e *Environment) GetBorderType(x, y float64) BorderType {
	key := [2]int64{int64(x), int64(y)}
	e.mu.Lock()
	if bt, ok := e.bordersScratch[key]; ok {
		e.mu.Unlock()
		return bt
	}
	e.mu.Unlock()

	bt := e.classifyBorder(x, y)

	e.mu.Lock()
	e.bordersScratch[key] = bt
	e.mu.Unlock()
	return bt
}

func (e *Environment) classifyBorder(x, y float64) BorderType {
	wa := e.workArea
	const epsilon = 0.5
	if x < wa.X || x > wa.X+wa.Width {
		return BorderInvalid
	}
	if y <= wa.Y+epsilon {
		return BorderCeiling
	}
	if y >= wa.Y+wa.Height-epsilon {
		return BorderFloor
	}
	if x <= wa.X+epsilon || x >= wa.X+wa.Width-epsilon {
		return BorderWall
	}
	if ie, ok := e.ActiveIE(); ok {
		b := ie.Bounds
		if x >= b.X && x <= b.X+b.Width {
			if y <= b.Y+epsilon {
				return BorderFloor
			}
			if x <= b.X+epsilon || x >= b.X+b.Width-epsilon {
				return BorderWall
			}
		}
	}
	return BorderNone
}

// LifecycleSink receives agent lifecycle notifications (spawn and
// dispose) for an optional ECS/UI consumer to drive its own systems off
// of, without polling the IPC socket (SPEC_FULL.md's ecs bridge).
type LifecycleSink interface {
	Publish(agentID uint32, kind AgentEventKind)
}

// AddAgent links agent into this Environment's authoritative list. The
// Affordance Registry never holds lifetime over an agent, only the
// Environment does (spec.md §9 "cyclic ownership").
func (e *Environment) AddAgent(a *Agent) {
	e.mu.Lock()
	e.agents[a.ID] = a
	sink := e.Sink
	e.mu.Unlock()
	if sink != nil {
		sink.Publish(a.ID, AgentEventNone) // AgentEventNone doubles as "spawned" for lifecycle purposes
	}
}

// RemoveAgent unlinks agent, releasing its Prototype reference.
func (e *Environment) RemoveAgent(id uint32) {
	e.mu.Lock()
	a, ok := e.agents[id]
	if ok {
		delete(e.agents, id)
	}
	sink := e.Sink
	e.mu.Unlock()
	if ok {
		e.Affordances.Announce(a, "")
		a.Proto.Release()
		if a.Surface != nil && e.Host != nil {
			e.Host.SubsurfaceRelease(a.Surface)
		}
		if sink != nil {
			sink.Publish(id, AgentEventDispose)
		}
	}
}

// Agents returns a snapshot slice of live agents, sorted by ID for
// deterministic IPC listing order.
func (e *Environment) Agents() []*Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Agent, 0, len(e.agents))
	for _, a := range e.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AgentByID looks up a live agent by ID.
func (e *Environment) AgentByID(id uint32) *Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agents[id]
}

// syncSurface pushes an agent's post-tick position and pose to its
// rendering host, once a host has claimed the agent by assigning a
// Surface (spec.md §6 subsurface_move/subsurface_attach_pose). Agents
// with no Surface are invisible until a rendering host claims them.
func (e *Environment) syncSurface(a *Agent) {
	if e.Host == nil || a.Surface == nil {
		return
	}
	x, y := a.Position()
	e.Host.SubsurfaceMove(a.Surface, x, e.screenYToMascotY(y), true, true)
	if pose, ok := a.CurrentPose(); ok {
		e.Host.SubsurfaceAttachPose(a.Surface, pose)
	}
}

// Tick advances the tick counter and interprets every live agent once,
// applying any clone/dispose events it collects (spec.md §2 control
// flow); migrate events are not applied. It returns the new tick value.
func (e *Environment) Tick() Tick {
	e.PreTick()

	e.mu.Lock()
	e.tick++
	tick := e.tick
	agents := make([]*Agent, 0, len(e.agents))
	for _, a := range e.agents {
		agents = append(agents, a)
	}
	e.mu.Unlock()

	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	var clones []*CloneRequest
	var disposed []uint32
	for _, a := range agents {
		events := InterpretTick(a, e, tick)
		for _, ev := range events {
			switch ev.Kind {
			case AgentEventClone:
				clones = append(clones, ev.Clone)
			case AgentEventDispose:
				disposed = append(disposed, a.ID)
			}
		}
		e.syncSurface(a)
	}

	for _, id := range disposed {
		e.RemoveAgent(id)
	}
	// Clones join the tick set the following tick (spec.md §5 ordering).
	for _, c := range clones {
		clone, err := Spawn(SpawnParams{
			Prototype:    c.Prototype,
			VelX:         c.VelX,
			VelY:         c.VelY,
			X:            c.X,
			Y:            c.Y,
			LookingRight: c.LookingRight,
			Env:          e,
		})
		if err != nil {
			e.log.WithError(err).Warn("clone spawn failed")
			continue
		}
		if c.Behaviour != "" {
			if b := c.Prototype.BehaviourByName(c.Behaviour); b != nil {
				clone.SetBehaviour(b)
			}
		}
		e.AddAgent(clone)
	}

	return tick
}
