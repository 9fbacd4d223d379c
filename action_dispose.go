package mascot

// disposeHandler implements the "dispose" embedded action: after playing
// its content once (if any), the agent is removed from its Environment via
// InterpretTick's OutcomeDispose case (original_source/src/mascot.c
// dispose_action_init/_next table entry; body not retrieved, so the
// one-shot-then-remove behavior follows the same pattern as the simple
// action kinds documented in mascot.c's action_funcs table comment).
type disposeHandler struct{}

func init() { registerEmbedded(EmbeddedDispose, &disposeHandler{}) }

func (disposeHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
}

func (disposeHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if len(ref.Action.Content) == 0 {
		return OutcomeDispose
	}
	outcome := stepAnimated(a, env, ref, tick, false)
	if outcome == OutcomeNext {
		return OutcomeDispose
	}
	return outcome
}

func (disposeHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (disposeHandler) clean(a *Agent, ref *ActionRef) {}
