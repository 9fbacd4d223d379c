package mascot

// stayHandler implements the "stay" embedded action kind: a pass-through
// to the shared animated sub-step with no position change
// (original_source/src/mascot.c stay_action_init/_tick/_next, which only
// wraps simple_action's animation stepping without velocity application).
// This exists alongside the Action-level ActionStay kind handled directly
// in interpreter.go's stepAnimated dispatch; it is registered for
// prototypes that reference "stay" as an explicit embedded kind rather
// than the bare stay action type.
type stayHandler struct{}

func init() { registerEmbedded(EmbeddedStay, &stayHandler{}) }

func (stayHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.State = StateNone
}

func (stayHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	return stepAnimated(a, env, ref, tick, false)
}

func (stayHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (stayHandler) clean(a *Agent, ref *ActionRef) {}
