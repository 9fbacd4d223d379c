package mascot

// dragResistHandler implements the "drag_resist" embedded action: the brief
// transitional animation played once a drag ends before the agent falls or
// settles (original_source/src/mascot.h names the state
// mascot_state_drag_resist, "after drag action is finished, mascot escapes
// drag"; the body is not part of the retrieved source, so the stepping
// logic here follows the same bounded-animation pattern as the jump and
// scanjump handlers above).
type dragResistHandler struct{}

func init() { registerEmbedded(EmbeddedDragResist, &dragResistHandler{}) }

func (dragResistHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.State = StateDragResist
	if limit := ref.Action.DurationLimit; limit != nil {
		if v, err := evaluateCached(a, limit); err == nil && v > 0 {
			a.ActionDeadline = tick + Tick(v)
		}
	} else {
		a.ActionDeadline = tick + 5
	}
}

func (dragResistHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if tick >= a.ActionDeadline {
		return OutcomeNext
	}
	return stepAnimated(a, env, ref, tick, false)
}

func (dragResistHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (dragResistHandler) clean(a *Agent, ref *ActionRef) {
	a.CurrentAnimation = nil
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.ActionDeadline = 0
}
