package mascot

import "math"

// scanMoveHandler implements the "scanmove" embedded action: the ground-
// bound counterpart to scanjump (original_source/src/mascot.h's
// mascot_state_scanmove, "moving to target mascot for interaction"). The
// agent walks horizontally toward a target advertising the requested
// affordance, keeping its current Y (no ballistic arc), and triggers an
// Interact once within VelocityParam px.
type scanMoveHandler struct{}

func init() { registerEmbedded(EmbeddedScanMove, &scanMoveHandler{}) }

func (scanMoveHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	target := a.Affordances.FindTarget(a, ref.Action.AffordanceTag)
	if target == nil {
		return
	}
	if limit := ref.Action.DurationLimit; limit != nil {
		if v, err := evaluateCached(a, limit); err == nil && v > 0 {
			a.ActionDeadline = tick + Tick(v)
		}
	}
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.Locals[LocalVelocityParam].Value = 0
	if expr := ref.Action.VelocityParam; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalVelocityParam].Value = float64(v)
		}
	} else {
		a.Locals[LocalVelocityParam].Value = 8
	}
	a.State = StateScanMove
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
	a.Target = target
}

func (scanMoveHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if a.Target == nil {
		return OutcomeNext
	}
	if env.GetBorderType(a.Locals[LocalX].Value, a.Locals[LocalY].Value) != BorderFloor {
		return OutcomeNext
	}

	dx := a.Target.Locals[LocalX].Value - a.Locals[LocalX].Value
	if math.Abs(dx) <= a.Locals[LocalVelocityParam].Value {
		target := a.Target
		scanMoveHandler{}.clean(a, ref)
		if !tryInteract(a, target, ref.Action) {
			return OutcomeNext
		}
		return OutcomeReenter
	}

	if a.Target.CurrentAffordance != ref.Action.AffordanceTag {
		a.Target = nil
	}
	if a.Target == nil {
		next := a.Affordances.FindTarget(a, ref.Action.AffordanceTag)
		if next == nil {
			return OutcomeNext
		}
		a.Target = next
	}

	return stepAnimated(a, env, ref, tick, false)
}

func (scanMoveHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if a.Target == nil {
		return
	}
	dx := a.Target.Locals[LocalX].Value - a.Locals[LocalX].Value
	velocity := a.Locals[LocalVelocityParam].Value
	lookingRight := dx > 0
	if lookingRight != (a.Locals[LocalLookingRight].Value != 0) {
		if lookingRight {
			a.Locals[LocalLookingRight].Value = 1
		} else {
			a.Locals[LocalLookingRight].Value = 0
		}
	}
	if math.Abs(dx) <= velocity {
		a.Locals[LocalX].Value = a.Target.Locals[LocalX].Value
		return
	}
	if dx > 0 {
		a.Locals[LocalX].Value += velocity
	} else {
		a.Locals[LocalX].Value -= velocity
	}
}

func (scanMoveHandler) clean(a *Agent, ref *ActionRef) {
	a.Locals[LocalVelocityParam].Value = 0
	a.Target = nil
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
}
