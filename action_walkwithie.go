package mascot

// walkWithIEHandler implements the "walk-with-window" embedded action: the
// agent tracks the foreground window's top edge, walking along it the way
// it would walk a floor (original_source/src/mascot.c
// walkwithie_action_init/_tick/_next table entry). Degrades to OutcomeNext
// when the host hasn't negotiated CapIE, per SPEC_FULL's capability
// negotiation supplement.
type walkWithIEHandler struct{}

func init() { registerEmbedded(EmbeddedWalkWithIE, &walkWithIEHandler{}) }

func (walkWithIEHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.State = StateIEWalk
}

func (walkWithIEHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if env.capabilitiesSnapshot()&CapIE == 0 {
		return OutcomeNext
	}
	ie, ok := env.ActiveIE()
	if !ok {
		return OutcomeNext
	}
	floorY := ie.Bounds.Y
	a.Locals[LocalY].Value = floorY
	return stepAnimated(a, env, ref, tick, true)
}

func (walkWithIEHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	ie, ok := env.ActiveIE()
	if !ok {
		return
	}
	x := a.Locals[LocalX].Value
	if x < ie.Bounds.X {
		a.Locals[LocalX].Value = ie.Bounds.X
	} else if x > ie.Bounds.X+ie.Bounds.Width {
		a.Locals[LocalX].Value = ie.Bounds.X + ie.Bounds.Width
	}
}

func (walkWithIEHandler) clean(a *Agent, ref *ActionRef) {}
