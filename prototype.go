package mascot

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
)

// ActionKind enumerates the node types of an Action (spec.md §3 Prototype).
type ActionKind uint8

const (
	ActionStay ActionKind = iota
	ActionMove
	ActionAnimate
	ActionEmbedded
	ActionSequence
	ActionSelect
)

// EmbeddedKind tags which embedded handler an ActionEmbedded action runs.
type EmbeddedKind uint8

const (
	EmbeddedNone EmbeddedKind = iota
	EmbeddedLook
	EmbeddedFall
	EmbeddedJump
	EmbeddedDrag
	EmbeddedDragResist
	EmbeddedClone
	EmbeddedScanMove
	EmbeddedScanJump
	EmbeddedInteract
	EmbeddedDispose
	EmbeddedTransform
	EmbeddedWalkWithIE
	EmbeddedThrowWindow
	EmbeddedStay
	EmbeddedWalk
)

// ContentItem is one entry in an Action's ordered content: either an
// Animation frame set or a reference to another Action.
type ContentItem struct {
	Animation     *Animation
	ActionRef     *ActionRef
	Condition     *Expression
}

// ActionRef names a target Action. It also carries a target-look flag
// mirroring the original's affordance rendezvous option; the behaviour
// names an action kind consults (target/select/born) live on the Action.
type ActionRef struct {
	Action         *Action
	TargetLook     bool
	localIndex     int
}

// Action is one node in the hierarchical action state machine.
type Action struct {
	Name              string
	Kind              ActionKind
	Embedded          EmbeddedKind
	Content           []ContentItem
	Condition         *Expression
	SeekerBehaviour   string // behaviour the initiating agent switches to after a successful interact
	TargetBehaviour   string // behaviour the matched agent switches to after a successful interact
	TargetLook        bool   // invert the matched agent's facing if it already matches the seeker's
	SelectBehaviours  []string
	BornBehaviour     string
	AffordanceTag     string
	TransformTarget   string
	BornMascot        string
	Loop              bool
	RequiredBorder    BorderType
	LocalOverrides    [maxLocalVariables]*Expression
	DurationLimit     *Expression
	VelocityParam     *Expression
	BornX, BornY      *Expression
}

// Behaviour is a weighted selection over one Action.
type Behaviour struct {
	Name          string
	Hidden        bool
	IsCondition   bool
	LinkedAction  *Action
	Condition     *Expression
	AddBehaviours bool
	Next          []NextBehaviourRef
	Frequency     float64
}

// NextBehaviourRef is one weighted entry in a Behaviour's next-behaviour list.
type NextBehaviourRef struct {
	Behaviour *Behaviour
	Frequency float64
	Condition *Expression
}

// Pose is one rendered frame: a sprite pair (left/right-mirrored) plus
// anchor, velocity hint, and duration.
type Pose struct {
	SpriteIndex int
	AnchorX, AnchorY float64
	VelocityX, VelocityY float64
	Duration int // ticks
	Hotspots []Hotspot
}

// HotspotShapeKind selects a hotspot's hit-test geometry.
type HotspotShapeKind uint8

const (
	HotspotRect HotspotShapeKind = iota
	HotspotEllipse
)

// Hotspot is a clickable region on a Pose that latches a named behaviour.
type Hotspot struct {
	Shape     HotspotShapeKind
	X, Y, W, H float64
	Behaviour string
}

// Animation is an ordered sequence of Poses.
type Animation struct {
	Name  string
	Poses []Pose
}

// SpritePair is one atlas entry: a left-facing sprite and its
// right-mirrored counterpart, plus the sprite's region of the source
// image (the whole image unless the manifest gives one).
type SpritePair struct {
	Left, Right *ebiten.Image
	Region      Rect
}

// Atlas is the indexed sprite set owned by a Prototype.
type Atlas struct {
	Sprites []SpritePair
}

// Prototype is an immutable, reference-counted character package. Once
// published to a Store it never mutates; reload replaces it wholesale
// (spec.md §3 invariant).
type Prototype struct {
	ID          uint32
	Name        string // internal name, used for lookups
	DisplayName string
	Path        string
	ContentHash uint64 // supplemented feature: detect no-op reloads

	Actions     []*Action
	Behaviours  []*Behaviour
	Expressions []*Expression

	RootPool []NextBehaviourRef

	AtlasData *Atlas

	FallBehaviour   *Behaviour
	DragBehaviour   *Behaviour
	ThrownBehaviour *Behaviour
	DismissAction   *Action

	Affordances *AffordanceRegistry

	refCount int32
}

// Retain increments the prototype's reference count. Agents call this on
// spawn and the Store calls it when publishing.
func (p *Prototype) Retain() { atomic.AddInt32(&p.refCount, 1) }

// Release decrements the reference count; when it reaches zero the
// prototype is eligible for destruction. Destruction itself is a no-op in
// this implementation beyond bookkeeping, since Go's GC reclaims the
// memory once the last reference (agent or Store entry) drops it.
func (p *Prototype) Release() int32 { return atomic.AddInt32(&p.refCount, -1) }

// RefCount reports the current reference count (for tests/diagnostics).
func (p *Prototype) RefCount() int32 { return atomic.LoadInt32(&p.refCount) }

// BehaviourByName returns the named behaviour, or nil.
func (p *Prototype) BehaviourByName(name string) *Behaviour {
	for _, b := range p.Behaviours {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// ActionByName returns the named action, or nil.
func (p *Prototype) ActionByName(name string) *Action {
	for _, a := range p.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// PickRootBehaviour resolves the seed behaviour pool for a fresh agent by
// weighted random draw over RootPool (same algorithm as the interpreter's
// behaviour-pool selection, see interpreter.go).
func (p *Prototype) PickRootBehaviour() *Behaviour {
	return weightedPick(p.RootPool, nil)
}

// --- Store ---

// LoadError is a typed reason for a failed prototype load (spec.md §7).
type LoadError struct {
	Reason string
	Path   string
}

func (e *LoadError) Error() string { return fmt.Sprintf("prototype load: %s (%s)", e.Reason, e.Path) }

var (
	ErrManifestMissing     = &LoadError{Reason: "manifest-missing"}
	ErrManifestInvalid     = &LoadError{Reason: "manifest-invalid"}
	ErrVersionTooOld       = &LoadError{Reason: "version-too-old"}
	ErrVersionTooNew       = &LoadError{Reason: "version-too-new"}
	ErrProgramsMissing     = &LoadError{Reason: "programs-missing"}
	ErrProgramsInvalid     = &LoadError{Reason: "programs-invalid"}
	ErrActionsMissing      = &LoadError{Reason: "actions-missing"}
	ErrActionsInvalid      = &LoadError{Reason: "actions-invalid"}
	ErrBehavioursMissing   = &LoadError{Reason: "behaviours-missing"}
	ErrBehavioursInvalid   = &LoadError{Reason: "behaviours-invalid"}
	ErrAssetsFailed        = &LoadError{Reason: "assets-failed"}
	ErrAlreadyLoaded       = &LoadError{Reason: "already-loaded"}
)

// Store is a reference-held collection of Prototypes keyed by internal
// name (spec.md §4.B). It is read-mostly: readers hold a refcount on the
// Prototype they fetched and never hold the Store's lock for more than the
// lookup itself.
type Store struct {
	mu    sync.RWMutex
	byName map[string]*Prototype
	order  []*Prototype
	nextID uint32
}

// NewStore creates an empty Prototype Store.
func NewStore() *Store {
	return &Store{byName: make(map[string]*Prototype)}
}

// Add publishes p into the Store, keyed by p.Name. Returns ErrAlreadyLoaded
// if the name is already present (use Reload to replace).
func (s *Store) Add(p *Prototype) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[p.Name]; exists {
		return ErrAlreadyLoaded
	}
	s.nextID++
	p.ID = s.nextID
	p.Retain()
	s.byName[p.Name] = p
	s.order = append(s.order, p)
	return nil
}

// Reload replaces any existing prototype with the same name. In-flight
// agents keep their ref-counted handle to the old Prototype (spec.md's
// Open Question: this implementation does not migrate them, per the
// decision recorded in DESIGN.md).
func (s *Store) Reload(p *Prototype) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, existed := s.byName[p.Name]
	if existed && old.ContentHash == p.ContentHash {
		return nil // supplemented feature: no-op reload short-circuit
	}
	s.nextID++
	p.ID = s.nextID
	p.Retain()
	s.byName[p.Name] = p
	if existed {
		old.Release()
		for i, entry := range s.order {
			if entry == old {
				s.order[i] = p
				return nil
			}
		}
	}
	s.order = append(s.order, p)
	return nil
}

// Remove decrements the Store's reference to the named prototype and
// unindexes it. Actual destruction happens when the last agent releases
// its own reference.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byName[name]
	if !ok {
		return
	}
	delete(s.byName, name)
	for i, entry := range s.order {
		if entry == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	p.Release()
}

// protoNamespace is the fallback prefix consulted when a bare name isn't
// found directly (spec.md §4.B "Shimeji.<name>" fallback).
const protoNamespace = "Shimeji."

// GetByName looks up a prototype by its internal name, falling back to
// the "Shimeji.<name>" namespace if a bare name isn't found.
func (s *Store) GetByName(name string) *Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.byName[name]; ok {
		return p
	}
	if p, ok := s.byName[protoNamespace+name]; ok {
		return p
	}
	return nil
}

// GetByID looks up a prototype by its Store-assigned ID.
func (s *Store) GetByID(id uint32) *Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.order {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// GetByIndex returns the nth published prototype in publish order.
func (s *Store) GetByIndex(i int) *Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.order) {
		return nil
	}
	return s.order[i]
}

// Count reports the number of distinct prototypes currently published.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// All returns a snapshot slice of every published prototype, in publish
// order (used by the IPC Protocol's prototype-announcement stream).
func (s *Store) All() []*Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Prototype, len(s.order))
	copy(out, s.order)
	return out
}
