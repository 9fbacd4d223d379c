package mascot

// walkHandler implements the "walk" embedded action kind: a pass-through
// to the shared animated sub-step with pose velocity applied each frame,
// the same way ActionMove is dispatched directly in interpreter.go. It
// is registered separately so prototypes may reference "walk" as a named
// embedded kind (original_source/src/mascot.c move_action_init/_tick/_next).
type walkHandler struct{}

func init() { registerEmbedded(EmbeddedWalk, &walkHandler{}) }

func (walkHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.State = StateMove
}

func (walkHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	return stepAnimated(a, env, ref, tick, true)
}

func (walkHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (walkHandler) clean(a *Agent, ref *ActionRef) {}
