package mascot

import (
	"math/rand"
	"strings"
	"sync"
)

// affordanceSlotCount bounds the matchmaking table (spec.md §3 Affordance
// Registry: N-slot table).
const affordanceSlotCount = 4096

// AffordanceRegistry is the matchmaking table letting one agent locate
// another advertising a named capability, and atomically rendezvous into
// paired behaviours (spec.md §4.E). One registry is shared by a cohort of
// agents that are allowed to interact with each other (an Environment, or
// several when "unified outputs" is enabled).
type AffordanceRegistry struct {
	mu    sync.Mutex
	slots map[uint32]string // agentID -> affordance name
	byAgent map[uint32]*Agent
	occupancy int

	// UnifiedOutputs gates cross-environment candidacy (config key
	// unified_outputs, spec.md §6).
	UnifiedOutputs bool
}

// NewAffordanceRegistry creates an empty registry.
func NewAffordanceRegistry() *AffordanceRegistry {
	return &AffordanceRegistry{
		slots:   make(map[uint32]string),
		byAgent: make(map[uint32]*Agent),
	}
}

// Announce places or removes agent in the registry under the given
// affordance name. Passing an empty affordance removes the agent. An
// agent appears at most once (spec.md §3 invariant, §8 property 4).
func (r *AffordanceRegistry) Announce(agent *Agent, affordance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, had := r.slots[agent.ID]
	if affordance == "" {
		if had {
			delete(r.slots, agent.ID)
			delete(r.byAgent, agent.ID)
			r.occupancy--
		}
		return
	}
	if !had {
		r.occupancy++
	}
	if r.occupancy > affordanceSlotCount {
		// Table exhausted: drop the oldest semantics aren't specified, so
		// refuse the new announcement rather than evict (soft failure).
		r.occupancy--
		return
	}
	r.slots[agent.ID] = affordance
	r.byAgent[agent.ID] = agent
}

// FindTarget scans the table for an agent advertising affordanceName
// (case-insensitive), excluding seeking, and returns one candidate chosen
// by uniform random draw (spec.md §4.E find_target).
func (r *AffordanceRegistry) FindTarget(seeking *Agent, affordanceName string) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*Agent
	want := strings.ToLower(affordanceName)
	for id, aff := range r.slots {
		if id == seeking.ID {
			continue
		}
		if strings.ToLower(aff) == want {
			cand := r.byAgent[id]
			if !r.UnifiedOutputs && seeking.Env != nil && cand.Env != nil && cand.Env.EnvID() != seeking.Env.EnvID() {
				continue
			}
			candidates = append(candidates, cand)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// Occupancy reports the number of agents currently advertising an
// affordance (test/diagnostic helper).
func (r *AffordanceRegistry) Occupancy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupancy
}

// Interact completes a rendezvous between seeker and target: both agents
// are announced out of the registry, the seeker's position is copied onto
// the target, the target's LookingRight is inverted if targetLook is set
// and the two currently match, and each agent switches to its named
// behaviour (spec.md §4.E). Interact acquires both agents' locks in
// ascending agent-ID order, so a concurrent interact() running in the
// other direction takes them in the same order and cannot deadlock.
func (r *AffordanceRegistry) Interact(seeker, target *Agent, affordance, seekerBehaviour, targetBehaviour string, targetLook bool) {
	first, second := seeker, target
	if first.ID > second.ID {
		first, second = second, first
	}
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	r.Announce(seeker, "")
	r.Announce(target, "")

	target.Locals[LocalX].Value = seeker.Locals[LocalX].Value
	target.Locals[LocalY].Value = seeker.Locals[LocalY].Value

	if targetLook {
		seekerRight := seeker.Locals[LocalLookingRight].Value != 0
		targetRight := target.Locals[LocalLookingRight].Value != 0
		if seekerRight == targetRight {
			if targetRight {
				target.Locals[LocalLookingRight].Value = 0
			} else {
				target.Locals[LocalLookingRight].Value = 1
			}
		}
	}

	seeker.CurrentAffordance = ""
	target.CurrentAffordance = ""

	if seekerBehaviour != "" {
		if b := seeker.Proto.BehaviourByName(seekerBehaviour); b != nil {
			seeker.setBehaviourLocked(b)
		}
	}
	if targetBehaviour != "" {
		if b := target.Proto.BehaviourByName(targetBehaviour); b != nil {
			target.setBehaviourLocked(b)
		}
	}
}
