package mascot

import "math"

// scanJumpHandler implements the "scanjump" embedded action: the agent
// locks onto another agent advertising a named affordance and leaps toward
// it, re-acquiring a new target if the current one's affordance changes,
// then triggers an Interact once close enough
// (original_source/src/actions/scanjump.c).
type scanJumpHandler struct{}

func init() { registerEmbedded(EmbeddedScanJump, &scanJumpHandler{}) }

func (scanJumpHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
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
		a.Locals[LocalVelocityParam].Value = 20
	}

	a.State = StateScanJump
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
	a.Target = target
}

func (scanJumpHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if a.Target == nil {
		return OutcomeNext
	}
	if ref.Action.RequiredBorder != BorderAny && ref.Action.RequiredBorder != BorderNone {
		if env.GetBorderType(a.Locals[LocalX].Value, a.Locals[LocalY].Value) != ref.Action.RequiredBorder {
			return OutcomeNext
		}
	}

	dx := a.Target.Locals[LocalX].Value - a.Locals[LocalX].Value
	dy := a.Target.Locals[LocalY].Value - a.Locals[LocalY].Value
	distance := math.Sqrt(dx*dx + dy*dy)
	targetVel := math.Hypot(a.Target.Locals[LocalVelocityX].Value, a.Target.Locals[LocalVelocityY].Value) * 2
	myVel := math.Hypot(a.Locals[LocalVelocityX].Value, a.Locals[LocalVelocityY].Value) * 2

	if distance <= math.Max(targetVel, myVel) {
		target := a.Target
		scanJumpHandler{}.clean(a, ref)
		ok := tryInteract(a, target, ref.Action)
		if !ok {
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

// tryInteract performs the matchmaking rendezvous; it is a package-level
// helper because Interact is owned by the AffordanceRegistry, not the Agent.
func tryInteract(seeker, target *Agent, act *Action) bool {
	if seeker.Affordances == nil || seeker.Affordances != target.Affordances {
		return false
	}
	seeker.Affordances.Interact(seeker, target, act.AffordanceTag, act.SeekerBehaviour, act.TargetBehaviour, act.TargetLook)
	return true
}

func (scanJumpHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if a.Target == nil {
		return
	}
	targetX, targetY := a.Target.Locals[LocalX].Value, a.Target.Locals[LocalY].Value
	posX, posY := a.Locals[LocalX].Value, a.Locals[LocalY].Value
	velocityParam := a.Locals[LocalVelocityParam].Value

	lookingRight := posX < targetX

	distanceX := targetX - posX
	distanceY := (targetY - posY) + math.Abs(distanceX)
	distanceAbs := math.Sqrt(distanceX*distanceX + distanceY*distanceY)

	if lookingRight != (a.Locals[LocalLookingRight].Value != 0) {
		if lookingRight {
			a.Locals[LocalLookingRight].Value = 1
		} else {
			a.Locals[LocalLookingRight].Value = 0
		}
	}

	if distanceAbs <= velocityParam || distanceAbs == 0 {
		a.Locals[LocalX].Value = targetX
		a.Locals[LocalY].Value = targetY
		return
	}

	velocityX := (distanceX / distanceAbs) * velocityParam
	velocityY := (distanceY / distanceAbs) * velocityParam
	a.Locals[LocalX].Value = posX + velocityX
	a.Locals[LocalY].Value = posY + velocityY
}

func (scanJumpHandler) clean(a *Agent, ref *ActionRef) {
	a.Locals[LocalVelocityParam].Value = 0
	a.Locals[LocalTargetX].Value = 0
	a.Locals[LocalTargetY].Value = 0
	a.Target = nil
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
}
