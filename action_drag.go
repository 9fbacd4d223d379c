package mascot

import "math/rand"

// dragAux is the scratch state carried by the drag embedded action: the
// previous tick's position, against which tickAction measures displacement
// to refresh the idle window (original_source/src/actions/dragging.c
// dragging_aux_data).
type dragAux struct {
	prevX, prevY float64
}

// dragHandler implements the "drag" embedded action: while the pointer
// holds the agent captured it rides along with the cursor and, once idle
// for dragIdleWindow ticks, has a 10% chance per tick of continuing to be
// dragged rather than giving up (original_source/src/actions/dragging.c).
type dragHandler struct{}

func init() { registerEmbedded(EmbeddedDrag, &dragHandler{}) }

func (dragHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.Drag.DraggedAtTick = tick
	a.State = StateDrag
	a.scratch = &dragAux{prevX: a.Locals[LocalX].Value, prevY: a.Locals[LocalY].Value}
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
}

func (dragHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	outcome := stepAnimated(a, env, ref, tick, false)
	if outcome != OutcomeOK {
		return outcome
	}
	if !a.Drag.Capturing {
		return OutcomeNext
	}
	if tick-a.Drag.DraggedAtTick >= dragIdleWindow {
		if rand.Float64() > 0.1 {
			return OutcomeNext
		}
	}
	return OutcomeOK
}

// tickAction applies the foot-spring dynamics that keep the sprite trailing
// the cursor with a damped lag, and forces facing to a fixed direction
// while captured (dragging.c dragging_action_tick).
func (dragHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	aux, _ := a.scratch.(*dragAux)
	if aux == nil {
		aux = &dragAux{prevX: a.Locals[LocalX].Value, prevY: a.Locals[LocalY].Value}
		a.scratch = aux
	}

	newX, newY := a.Locals[LocalX].Value, a.Locals[LocalY].Value

	footDX := a.Locals[LocalFootDX].Value
	footX := a.Locals[LocalFootX].Value
	footDX = (footDX + (newX-footX)*0.1) * 0.8
	footX = footX + footDX
	a.Locals[LocalFootDX].Value = footDX
	a.Locals[LocalFootX].Value = footX

	a.Locals[LocalLookingRight].Value = 0

	if abs64(newX-aux.prevX) >= 5 || abs64(newY-aux.prevY) >= 5 {
		a.Drag.DraggedAtTick = tick
	}
	aux.prevX, aux.prevY = newX, newY
}

func (dragHandler) clean(a *Agent, ref *ActionRef) {
	a.CurrentAnimation = nil
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.ActionDeadline = 0
	a.scratch = nil
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
