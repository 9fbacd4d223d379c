package mascot

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ActionOutcome is the result of one step of the action state machine
// (spec.md §7 "Interpreter outcome").
type ActionOutcome uint8

const (
	OutcomeOK ActionOutcome = iota
	OutcomeNext
	OutcomeReenter
	OutcomeClone
	OutcomeCloneAndNext
	OutcomeTransform
	OutcomeDispose
	OutcomeEscape
	OutcomeError
)

// maxInterpreterIterations bounds the per-tick inner loop (spec.md §4.D).
const maxInterpreterIterations = 16

// embeddedHandler is the uniform trait every embedded action kind
// implements, replacing the original's function-pointer table with a sum
// type dispatched through a Go interface (spec.md §9).
type embeddedHandler interface {
	initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick)
	nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome
	tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick)
	clean(a *Agent, ref *ActionRef)
}

var embeddedHandlers = map[EmbeddedKind]embeddedHandler{}

func registerEmbedded(kind EmbeddedKind, h embeddedHandler) {
	embeddedHandlers[kind] = h
}

// InterpretTick advances agent's state machine by one tick and returns up
// to maxTickEvents events (spec.md §4.C tick, §4.D per-tick loop). It
// acquires the agent lock for its entire duration.
func InterpretTick(a *Agent, env *Environment, tick Tick) []AgentEvent {
	a.Lock()
	defer a.Unlock()

	var events []AgentEvent
	emit := func(e AgentEvent) {
		if len(events) < maxTickEvents {
			events = append(events, e)
		}
	}

	if a.Drag.Dragged && a.Proto.DragBehaviour != nil && a.CurrentBehaviour != a.Proto.DragBehaviour {
		a.setBehaviourLocked(a.Proto.DragBehaviour)
		a.State = StateDrag
	}
	if a.Hotspot.Active && a.Hotspot.Behaviour != nil && a.CurrentBehaviour != a.Hotspot.Behaviour {
		a.setBehaviourLocked(a.Hotspot.Behaviour)
		a.Hotspot.Active = false
	}

	for iter := 0; iter < maxInterpreterIterations; iter++ {
		if a.CurrentBehaviour == nil {
			b := weightedPick(a.Proto.RootPool, a)
			if b == nil {
				return events
			}
			a.setBehaviourLocked(b)
		}
		if a.CurrentAction == nil {
			if a.CurrentBehaviour.LinkedAction == nil {
				a.CurrentBehaviour = nil
				continue
			}
			a.CurrentAction = &ActionRef{Action: a.CurrentBehaviour.LinkedAction}
			runInit(a, env, a.CurrentAction, tick)
		}

		outcome := runNextStep(a, env, a.CurrentAction, tick)

		switch outcome {
		case OutcomeOK:
			runTick(a, env, a.CurrentAction, tick)
			return events

		case OutcomeNext:
			if len(a.actionStack) > 0 {
				top := a.actionStack[len(a.actionStack)-1]
				a.actionStack = a.actionStack[:len(a.actionStack)-1]
				runClean(a, a.CurrentAction)
				a.CurrentAction = top.action
				continue
			}
			runClean(a, a.CurrentAction)
			a.CurrentAction = nil
			a.CurrentBehaviour = selectNextBehaviour(a, a.CurrentBehaviour)
			continue

		case OutcomeReenter:
			continue

		case OutcomeClone, OutcomeCloneAndNext:
			if a.pendingClone != nil {
				emit(AgentEvent{Kind: AgentEventClone, Clone: a.pendingClone})
				a.pendingClone = nil
			}
			if outcome == OutcomeCloneAndNext {
				outcome = OutcomeNext
				if len(a.actionStack) > 0 {
					top := a.actionStack[len(a.actionStack)-1]
					a.actionStack = a.actionStack[:len(a.actionStack)-1]
					a.CurrentAction = top.action
				} else {
					a.CurrentAction = nil
					a.CurrentBehaviour = selectNextBehaviour(a, a.CurrentBehaviour)
				}
			}
			continue

		case OutcomeTransform:
			if target, ok := a.scratch.(*Prototype); ok && target != nil {
				old := a.Proto
				a.Proto = target
				target.Retain()
				old.Release()
				a.CurrentAction = nil
				a.CurrentBehaviour = nil
			}
			continue

		case OutcomeDispose:
			emit(AgentEvent{Kind: AgentEventDispose})
			return events

		case OutcomeEscape:
			a.actionStack = a.actionStack[:0]
			a.CurrentAction = nil
			a.CurrentBehaviour = nil
			a.Drag.Dragged = false
			a.Drag.Capturing = false
			continue

		case OutcomeError:
			logrus.WithFields(logrus.Fields{"agent_id": a.ID}).Debug("action step returned error, treating as next")
			a.CurrentAction = nil
			a.CurrentBehaviour = selectNextBehaviour(a, a.CurrentBehaviour)
			continue
		}
	}

	// Soft-lock recovery (spec.md §4.H, §8 property 7): zero the
	// offending behaviour's frequency in the pool and force reselection.
	if a.CurrentBehaviour != nil {
		for i := range a.BehaviourPool {
			if a.BehaviourPool[i].behaviour == a.CurrentBehaviour {
				a.BehaviourPool[i].frequency = 0
			}
		}
		a.CurrentBehaviour = nil
		a.CurrentAction = nil
	}
	return events
}

func runInit(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	clearExprCache(a)
	if ref.Action.Kind == ActionEmbedded {
		if h, ok := embeddedHandlers[ref.Action.Embedded]; ok {
			h.initAction(a, env, ref, tick)
		}
	}
	applyLocalOverrides(a, ref.Action)
}

func applyLocalOverrides(a *Agent, act *Action) {
	for slot, expr := range act.LocalOverrides {
		if expr == nil {
			continue
		}
		v, err := evaluateCached(a, expr)
		if err != nil {
			continue
		}
		a.Locals[slot].Value = float64(v)
		a.Locals[slot].InUse = true
	}
}

// evaluateCached runs expr against a, honoring EvaluateOnce caching
// (spec.md §8 property 3). The cache is keyed by expression ID and
// cleared whenever the agent enters a new action context (see
// clearExprCache, called from runInit), so "the same
// action context" maps to "between two action-context transitions".
func evaluateCached(a *Agent, expr *Expression) (float32, error) {
	if expr == nil {
		return 0, nil
	}
	if expr.EvaluateOnce {
		if a.exprCache == nil {
			a.exprCache = make(map[uint16]exprCache)
		}
		if c, ok := a.exprCache[expr.ID]; ok && c.valid {
			return c.value, nil
		}
		v, err := Execute(expr, a)
		if err != nil {
			return 0, err
		}
		a.exprCache[expr.ID] = exprCache{exprID: expr.ID, value: v, valid: true}
		return v, nil
	}
	return Execute(expr, a)
}

// clearExprCache discards cached evaluate-once results, called whenever
// the agent's action context changes.
func clearExprCache(a *Agent) {
	for k := range a.exprCache {
		delete(a.exprCache, k)
	}
}

func runNextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	act := ref.Action

	cond := act.Condition
	if cond != nil {
		v, err := evaluateCached(a, cond)
		if err != nil {
			return OutcomeError
		}
		if v == 0 {
			return OutcomeNext
		}
	}
	if act.RequiredBorder != BorderNone && act.RequiredBorder != BorderAny {
		if env.GetBorderType(a.Locals[LocalX].Value, a.Locals[LocalY].Value) != act.RequiredBorder {
			return OutcomeNext
		}
	}
	if act.DurationLimit != nil {
		limit, err := evaluateCached(a, act.DurationLimit)
		if err == nil && limit > 0 && tick >= a.ActionDeadline {
			return OutcomeNext
		}
	}

	switch act.Kind {
	case ActionEmbedded:
		h, ok := embeddedHandlers[act.Embedded]
		if !ok {
			return OutcomeNext
		}
		return h.nextStep(a, env, ref, tick)

	case ActionSequence:
		return stepSequence(a, env, ref, tick)

	case ActionSelect:
		return stepSelect(a, env, ref, tick)

	case ActionStay, ActionMove, ActionAnimate:
		return stepAnimated(a, env, ref, tick, act.Kind == ActionMove)

	default:
		return OutcomeNext
	}
}

func runTick(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if ref.Action.Kind == ActionEmbedded {
		if h, ok := embeddedHandlers[ref.Action.Embedded]; ok {
			h.tickAction(a, env, ref, tick)
		}
	}
}

func runClean(a *Agent, ref *ActionRef) {
	if ref == nil {
		return
	}
	if ref.Action.Kind == ActionEmbedded {
		if h, ok := embeddedHandlers[ref.Action.Embedded]; ok {
			h.clean(a, ref)
		}
	}
	a.scratch = nil
}

func cleanAction(a *Agent, ref *ActionRef) { runClean(a, ref) }

// stepAnimated implements the common animation sub-step shared by stay,
// move, and animate actions (spec.md §4.D "Common sub-steps").
func stepAnimated(a *Agent, env *Environment, ref *ActionRef, tick Tick, applyVelocity bool) ActionOutcome {
	act := ref.Action
	var chosen *Animation
	for _, item := range act.Content {
		if item.Animation == nil {
			continue
		}
		if item.Condition != nil {
			v, err := evaluateCached(a, item.Condition)
			if err != nil || v == 0 {
				continue
			}
		}
		chosen = item.Animation
		break
	}
	if chosen == nil {
		return OutcomeNext
	}
	if chosen != a.CurrentAnimation {
		a.CurrentAnimation = chosen
		a.FrameIndex = 0
		return OutcomeReenter
	}
	if len(chosen.Poses) == 0 {
		return OutcomeNext
	}
	if tick >= a.NextFrameTick {
		pose := chosen.Poses[a.FrameIndex]
		a.NextFrameTick = tick + Tick(max1(pose.Duration))
		if applyVelocity {
			a.Locals[LocalX].Value += pose.VelocityX
			a.Locals[LocalY].Value += pose.VelocityY
		}
		a.FrameIndex++
		if a.FrameIndex >= len(chosen.Poses) {
			if act.Loop {
				a.FrameIndex = 0
			} else {
				a.FrameIndex = len(chosen.Poses) - 1
				return OutcomeNext
			}
		}
	}
	return OutcomeOK
}

func max1(d int) int {
	if d <= 0 {
		return 1
	}
	return d
}

// stepSequence advances an ActionSequence's ordered content, pushing the
// current action onto the stack when descending into a child
// action_reference (spec.md §4.D "Action stack discipline").
func stepSequence(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	act := ref.Action
	if ref.localIndex >= len(act.Content) {
		return OutcomeNext
	}
	item := act.Content[ref.localIndex]
	if item.Condition != nil {
		v, err := evaluateCached(a, item.Condition)
		if err != nil {
			return OutcomeError
		}
		if v == 0 {
			ref.localIndex++
			return OutcomeReenter
		}
	}
	if item.ActionRef != nil {
		if len(a.actionStack) >= maxActionStack {
			return OutcomeNext // action-stack-overflow, soft -> next
		}
		ref.localIndex++
		a.actionStack = append(a.actionStack, actionStackEntry{action: ref})
		a.CurrentAction = item.ActionRef
		runInit(a, env, a.CurrentAction, tick)
		return OutcomeReenter
	}
	// Inline animation content behaves like stepAnimated for this slot.
	return stepAnimated(a, env, &ActionRef{Action: &Action{
		Kind:    ActionAnimate,
		Content: []ContentItem{item},
		Loop:    false,
	}}, tick, false)
}

// stepSelect evaluates each content item's condition in order and
// descends into the first truthy one (spec.md §3 "select").
func stepSelect(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	for _, item := range ref.Action.Content {
		if item.ActionRef == nil {
			continue
		}
		if item.Condition != nil {
			v, err := evaluateCached(a, item.Condition)
			if err != nil || v == 0 {
				continue
			}
		}
		a.CurrentAction = item.ActionRef
		runInit(a, env, a.CurrentAction, tick)
		return OutcomeReenter
	}
	return OutcomeNext
}

// --- Behaviour pool selection (spec.md §4.D "Weighted behaviour selection") ---

// buildBehaviourPool rebuilds the weighted selection set for behaviour b,
// transparently inlining condition-behaviours' next-lists.
func buildBehaviourPool(a *Agent, b *Behaviour) []weightedBehaviour {
	var pool []weightedBehaviour
	var expand func(refs []NextBehaviourRef)
	expand = func(refs []NextBehaviourRef) {
		for _, r := range refs {
			if r.Behaviour == nil {
				continue
			}
			if r.Behaviour.IsCondition {
				ok := true
				if r.Behaviour.Condition != nil {
					v, err := evaluateCached(a, r.Behaviour.Condition)
					ok = err == nil && v != 0
				}
				if ok {
					expand(r.Behaviour.Next)
				}
				continue
			}
			pool = append(pool, weightedBehaviour{
				behaviour: r.Behaviour,
				frequency: r.Frequency,
				condition: r.Condition,
			})
		}
	}
	if b != nil {
		expand(b.Next)
	}
	if len(pool) >= maxBehaviourPool {
		pool = pool[:maxBehaviourPool]
	}
	return pool
}

// selectNextBehaviour performs the weighted random draw over current's
// pool, honoring per-candidate conditions and required border filters.
func selectNextBehaviour(a *Agent, current *Behaviour) *Behaviour {
	pool := a.BehaviourPool
	if current != nil && len(pool) == 0 {
		pool = buildBehaviourPool(a, current)
	}
	picked := pickFromPool(a, pool)
	if picked == nil {
		return nil
	}
	a.BehaviourPool = buildBehaviourPool(a, picked)
	return picked
}

func pickFromPool(a *Agent, pool []weightedBehaviour) *Behaviour {
	var total float64
	eligible := make([]weightedBehaviour, 0, len(pool))
	for _, wb := range pool {
		if wb.frequency <= 0 {
			continue
		}
		if wb.condition != nil {
			v, err := evaluateCached(a, wb.condition)
			if err != nil || v == 0 {
				continue
			}
		}
		total += wb.frequency
		eligible = append(eligible, wb)
	}
	if total <= 0 {
		return nil
	}
	roll := rand.Float64() * total
	for _, wb := range eligible {
		roll -= wb.frequency
		if roll <= 0 {
			return wb.behaviour
		}
	}
	return eligible[len(eligible)-1].behaviour
}

// weightedPick performs the same weighted-random draw directly over a
// Prototype's root NextBehaviourRef list (spec.md §4.C spawn / §4.D root
// pool seeding).
func weightedPick(refs []NextBehaviourRef, a *Agent) *Behaviour {
	pool := make([]weightedBehaviour, 0, len(refs))
	for _, r := range refs {
		if r.Behaviour == nil {
			continue
		}
		pool = append(pool, weightedBehaviour{behaviour: r.Behaviour, frequency: r.Frequency, condition: r.Condition})
	}
	return pickFromPool(a, pool)
}
