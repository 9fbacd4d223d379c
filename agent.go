package mascot

import (
	"fmt"
	"sync"
)

// Fixed local-variable slot indices (spec.md §3 "Agent"). Slots 0-23 have
// reserved semantics; the remaining slots up to maxLocalVariables are
// available for prototype-defined custom variables.
const (
	LocalX             = 0
	LocalY             = 1
	LocalTargetX       = 2
	LocalTargetY       = 3
	LocalGravity       = 4
	LocalLookingRight  = 5
	LocalAirDragX      = 6
	LocalAirDragY      = 7
	LocalVelocityX     = 8
	LocalVelocityY     = 9
	LocalBornX         = 10
	LocalBornY         = 11
	LocalInitialVelX   = 12
	LocalInitialVelY   = 13
	LocalVelocityParam = 14
	LocalFootX         = 15
	LocalFootDX        = 16
	LocalModX          = 17
	LocalModY          = 18
	LocalGap           = 19
	LocalBornInterval  = 20
	LocalBornCount     = 21
	LocalIEOffsetX     = 22
	LocalIEOffsetY     = 23

	maxLocalVariables = 128
	maxActionStack    = 128
	maxBehaviourPool  = 128
)

// LocalKind distinguishes the storage interpretation of a local variable.
type LocalKind uint8

const (
	LocalKindInt LocalKind = iota
	LocalKindFloat
)

// LocalVariable is one of an Agent's 128 local-variable slots.
type LocalVariable struct {
	Kind     LocalKind
	InUse    bool
	Value    float64
	Backing  *Expression // optional initializer/derivation expression
	Evaluated bool        // true once Backing has been evaluated and cached
}

func loadAgentLocal(agent *Agent, slot uint8) (float32, error) {
	if agent == nil {
		return 0, fmt.Errorf("no agent bound to expression")
	}
	if int(slot) >= maxLocalVariables {
		return 0, fmt.Errorf("local variable slot %d out of range", slot)
	}
	v := &agent.Locals[slot]
	if !v.InUse {
		return 0, nil
	}
	return float32(v.Value), nil
}

// StateTag names the coarse state an Agent's current embedded action puts
// it in, used for debugging/IPC snapshots (spec.md §3).
type StateTag uint8

const (
	StateNone StateTag = iota
	StateStay
	StateAnimate
	StateMove
	StateFall
	StateInteract
	StateJump
	StateDrag
	StateDragResist
	StateScanMove
	StateScanJump
	StateIEFall
	StateIEWalk
	StateIEThrow
)

// actionStackEntry resumes a parent action on child completion.
type actionStackEntry struct {
	action     *Action
	localIndex int
}

// DragState tracks pointer-capture/drag bookkeeping for one Agent.
type DragState struct {
	Dragged       bool
	DraggedAtTick Tick
	Capturing     bool
	StartX, StartY float64
	LastX, LastY   float64
}

// HotspotState latches a behaviour selected by a hotspot click/hold.
type HotspotState struct {
	Active    bool
	Behaviour *Behaviour
}

// AgentEvent is one outcome of a tick, reported back to the Environment.
type AgentEvent struct {
	Kind   AgentEventKind
	Clone  *CloneRequest // set when Kind == AgentEventClone
	Target EnvironmentRef // set when Kind == AgentEventMigrate
}

// AgentEventKind enumerates the events an Agent.Tick can emit.
type AgentEventKind uint8

const (
	AgentEventNone AgentEventKind = iota
	AgentEventClone
	AgentEventDispose
	AgentEventMigrate
)

// CloneRequest describes a requested clone spawn (embedded "clone" action).
type CloneRequest struct {
	Prototype   *Prototype
	X, Y        float64
	VelX, VelY  float64
	LookingRight bool
	Behaviour   string
}

// EnvironmentRef is an opaque handle to an Environment, used for migration
// events without creating an import cycle on a concrete type.
type EnvironmentRef interface {
	EnvID() uint32
}

// maxTickEvents bounds the events a single Tick can emit (spec.md §4.C).
const maxTickEvents = 128

// Agent is one live mascot. Every exported method that mutates state
// acquires mu for its duration; callers driving the tick loop must not
// hold mu across a call into the Environment or Affordance Registry to
// avoid lock-ordering cycles (those collaborators never call back into an
// agent they don't already hold the lock for).
type Agent struct {
	mu sync.Mutex

	ID    uint32
	Proto *Prototype // borrowed, ref-counted reference
	Env   EnvironmentRef

	// Surface is the host-owned compositor handle backing this Agent's
	// rendered pose. Nil until a rendering host claims the Agent (via
	// Environment.Agents()) and assigns one; the core never creates or
	// interprets it (spec.md §6 subsurface_* operations).
	Surface SurfaceHandle

	Locals [maxLocalVariables]LocalVariable

	actionStack []actionStackEntry

	BehaviourPool []weightedBehaviour

	CurrentBehaviour *Behaviour
	CurrentAction    *ActionRef
	CurrentAnimation *Animation
	FrameIndex       int
	AnimIndex        int
	NextFrameTick    Tick
	ActionDeadline   Tick

	State StateTag

	Drag    DragState
	Hotspot HotspotState

	CurrentAffordance string
	Target            *Agent
	Affordances       *AffordanceRegistry

	AssociatedIE *IEWindow

	scratch any // per-action auxiliary data, owned by the active embedded action

	pendingClone *CloneRequest // set by the clone handler for one tick, read by InterpretTick

	exprCache map[uint16]exprCache // evaluate-once memo, keyed by expression ID, cleared per action context

	refCount int32
}

// weightedBehaviour is one candidate in a rebuilt behaviour pool.
type weightedBehaviour struct {
	behaviour *Behaviour
	frequency float64
	condition *Expression
}

// SpawnParams bundles the seed state for a new Agent (spec.md §4.C spawn).
type SpawnParams struct {
	Prototype          *Prototype
	InitialBehaviour   string
	VelX, VelY         float64
	X, Y               float64
	Gravity            float64
	AirDragX, AirDragY float64
	LookingRight       bool
	Env                EnvironmentRef
}

var agentIDCounter uint32

func nextAgentID() uint32 {
	agentIDCounter++
	return agentIDCounter
}

// Spawn allocates a new Agent from p, seeding its local variables and
// resolving its initial behaviour (spec.md §4.C).
func Spawn(p SpawnParams) (*Agent, error) {
	if p.Prototype == nil {
		return nil, fmt.Errorf("spawn: nil prototype")
	}
	a := &Agent{
		ID:          nextAgentID(),
		Proto:       p.Prototype,
		Env:         p.Env,
		refCount:    1,
		Affordances: p.Prototype.Affordances,
	}
	p.Prototype.Retain()

	seedLocal(a, LocalX, float64(int64(p.X)))
	seedLocal(a, LocalY, float64(int64(p.Y)))
	seedLocal(a, LocalGravity, p.Gravity)
	seedLocal(a, LocalAirDragX, p.AirDragX)
	seedLocal(a, LocalAirDragY, p.AirDragY)
	seedLocal(a, LocalVelocityX, p.VelX)
	seedLocal(a, LocalVelocityY, p.VelY)
	seedLocal(a, LocalInitialVelX, p.VelX)
	seedLocal(a, LocalInitialVelY, p.VelY)
	seedLocal(a, LocalBornX, float64(int64(p.X)))
	seedLocal(a, LocalBornY, float64(int64(p.Y)))
	if p.LookingRight {
		seedLocal(a, LocalLookingRight, 1)
	} else {
		seedLocal(a, LocalLookingRight, 0)
	}

	for i := range a.Locals {
		if !a.Locals[i].InUse {
			a.Locals[i].InUse = true
		}
	}

	var b *Behaviour
	if p.InitialBehaviour != "" {
		b = p.Prototype.BehaviourByName(p.InitialBehaviour)
	}
	if b == nil {
		b = p.Prototype.PickRootBehaviour()
	}
	a.setBehaviourLocked(b)

	return a, nil
}

func seedLocal(a *Agent, slot int, v float64) {
	a.Locals[slot].InUse = true
	a.Locals[slot].Value = v
}

// Retain increments the agent's reference count. Used by collaborators
// (e.g. an IPC snapshot in flight) that hold a pointer across a tick
// boundary without the agent lock.
func (a *Agent) Retain() { a.mu.Lock(); a.refCount++; a.mu.Unlock() }

// Release decrements the agent's reference count.
func (a *Agent) Release() { a.mu.Lock(); a.refCount--; a.mu.Unlock() }

// SetBehaviour cleans the current action, clears the action stack, and
// rebuilds the behaviour pool from b (spec.md §4.C set_behaviour).
func (a *Agent) SetBehaviour(b *Behaviour) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setBehaviourLocked(b)
}

func (a *Agent) setBehaviourLocked(b *Behaviour) {
	if a.CurrentAction != nil {
		cleanAction(a, a.CurrentAction)
	}
	a.actionStack = a.actionStack[:0]
	a.CurrentBehaviour = b
	a.CurrentAction = nil
	a.CurrentAnimation = nil
	a.State = StateNone
	a.BehaviourPool = buildBehaviourPool(a, b)
}

// Position returns the agent's current work-area-local coordinates.
func (a *Agent) Position() (x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Locals[LocalX].Value, a.Locals[LocalY].Value
}

// CurrentPose returns the Pose a rendering host should currently display
// for this agent, or ok=false while no animation is active (spec.md §6
// subsurface_attach_pose's payload).
func (a *Agent) CurrentPose() (pose Pose, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.CurrentAnimation == nil || len(a.CurrentAnimation.Poses) == 0 {
		return Pose{}, false
	}
	idx := a.FrameIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(a.CurrentAnimation.Poses) {
		idx = len(a.CurrentAnimation.Poses) - 1
	}
	return a.CurrentAnimation.Poses[idx], true
}

// LookingRight reports the facing direction implied by the agent's
// currently selected sprite orientation local.
func (a *Agent) LookingRight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Locals[LocalLookingRight].Value != 0
}

// Moved updates local variables after an external move (pointer-driven or
// environment migration), per spec.md §4.C.
func (a *Agent) Moved(x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Locals[LocalX].Value = x
	a.Locals[LocalY].Value = y
}

// Lock/Unlock expose the per-agent mutex to collaborators (Interpreter,
// Pointer Arbiter, Affordance Registry's interact()) that must hold it
// across a multi-step operation, per spec.md §9 "per-agent lock held
// across the whole tick".
func (a *Agent) Lock()   { a.mu.Lock() }
func (a *Agent) Unlock() { a.mu.Unlock() }
