package mascot

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// jumpRampTicks is how long the ballistic velocity ramps in from zero
// (supplemented anticipation effect, not present in the original's abrupt
// jump start).
const jumpRampTicks = 5

// jumpAux carries the ease-out (OutQuad) tween scaling VelocityParam over the first
// jumpRampTicks ticks of the jump, so the takeoff isn't an instant snap to
// full speed.
type jumpAux struct {
	ramp *gween.Tween
	age  float32
}

// jumpHandler implements the "jump" embedded action: the agent's target
// coordinates are evaluated once at init, then tickAction interpolates
// position toward the target at VelocityParam px/tick along the straight
// line, decelerating only by virtue of the recomputed direction vector
// (original_source/src/actions/jump.c).
type jumpHandler struct{}

func init() { registerEmbedded(EmbeddedJump, &jumpHandler{}) }

func (jumpHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.ActionDeadline = tick + 5
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil

	a.Locals[LocalTargetX].Value = 0
	a.Locals[LocalTargetY].Value = 0
	a.Locals[LocalVelocityParam].Value = 0

	if expr := ref.Action.LocalOverrides[LocalTargetX]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalTargetX].Value = float64(v)
		}
	}
	if expr := ref.Action.LocalOverrides[LocalTargetY]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalTargetY].Value = float64(v)
		}
	}
	if expr := ref.Action.VelocityParam; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalVelocityParam].Value = float64(v)
		}
	} else {
		a.Locals[LocalVelocityParam].Value = 20
	}

	if a.Locals[LocalTargetX].Value == -1 || a.Locals[LocalTargetY].Value == -1 {
		return
	}
	if a.Locals[LocalTargetY].Value != -1 {
		a.Locals[LocalTargetY].Value = env.screenYToMascotY(a.Locals[LocalTargetY].Value)
	}

	a.State = StateJump
	a.scratch = &jumpAux{ramp: gween.New(0, 1, jumpRampTicks, ease.OutQuad)}
	if a.Affordances != nil {
		a.Affordances.Announce(a, ref.Action.AffordanceTag)
	}
}

func (jumpHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if a.Locals[LocalTargetX].Value == a.Locals[LocalX].Value {
		return OutcomeNext
	}
	if a.ActionDeadline != 0 && tick >= a.ActionDeadline {
		return OutcomeNext
	}
	return stepAnimated(a, env, ref, tick, false)
}

func (jumpHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	wa := env.WorkArea()
	posX, posY := a.Locals[LocalX].Value, a.Locals[LocalY].Value
	targetX, targetY := a.Locals[LocalTargetX].Value, a.Locals[LocalTargetY].Value
	velocity := a.Locals[LocalVelocityParam].Value

	if aux, ok := a.scratch.(*jumpAux); ok && aux.ramp != nil {
		aux.age++
		factor, done := aux.ramp.Update(1)
		if done {
			aux.ramp = nil
		}
		velocity *= float64(factor)
	}

	lookingRight := posX < targetX

	if targetX < wa.X {
		targetX = wa.X
	} else if targetX > wa.X+wa.Width {
		targetX = wa.X + wa.Width
	}
	a.Locals[LocalTargetX].Value = targetX

	if targetY == -1 {
		targetY = posY
	} else if targetY < wa.Y {
		targetY = wa.Y
	} else if targetY > wa.Y+wa.Height {
		targetY = wa.Y + wa.Height
	}
	a.Locals[LocalTargetY].Value = targetY

	distanceX := targetX - posX
	var velocityX, velocityY float64

	if posY >= wa.Y+wa.Height {
		posY = wa.Y + wa.Height
		velocityY = 0
	} else {
		distanceYToTarget := targetY - posY
		if distanceX != 0 {
			dist := math.Sqrt(distanceX*distanceX + distanceYToTarget*distanceYToTarget)
			velocityX = velocity * (distanceX / dist)
			velocityY = velocity * (distanceYToTarget / dist)
			if posY > targetY {
				velocityY = -math.Abs(velocityY)
			} else {
				velocityY = math.Abs(velocityY)
			}
			posX += velocityX
			posY += velocityY
			a.Locals[LocalVelocityX].Value = velocityX
			a.Locals[LocalVelocityY].Value = velocityY
		}
	}

	if math.Abs(distanceX) < math.Abs(velocityX) {
		posX = targetX
		posY = targetY
	}

	if distanceX == 0 {
		a.Locals[LocalX].Value = posX
		a.Locals[LocalY].Value = posY
		return
	}

	if lookingRight != (a.Locals[LocalLookingRight].Value != 0) {
		if lookingRight {
			a.Locals[LocalLookingRight].Value = 1
		} else {
			a.Locals[LocalLookingRight].Value = 0
		}
	}

	if posX != a.Locals[LocalX].Value || posY != a.Locals[LocalY].Value {
		a.Locals[LocalX].Value = posX
		a.Locals[LocalY].Value = posY
		a.ActionDeadline = tick + 5
	}
}

func (jumpHandler) clean(a *Agent, ref *ActionRef) {
	a.Locals[LocalVelocityParam].Value = 0
	a.Locals[LocalTargetX].Value = 0
	a.Locals[LocalTargetY].Value = 0
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
}
