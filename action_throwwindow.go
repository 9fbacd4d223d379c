package mascot

// throwWindowAux tracks elapsed ticks since the throw began, used to
// integrate the thrown window's ballistic trajectory
// (original_source/src/actions/throwie.c throwie_action_data).
type throwWindowAux struct {
	startTick Tick
}

// throwWindowHandler implements the "throw-window" embedded action: picks
// up the foreground window and flings it along a gravity-integrated
// trajectory via the Host's IE operations, falling back to the fall
// behaviour if IE tracking becomes unavailable mid-throw
// (original_source/src/actions/throwie.c).
type throwWindowHandler struct{}

func init() { registerEmbedded(EmbeddedThrowWindow, &throwWindowHandler{}) }

func (throwWindowHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if env.capabilitiesSnapshot()&CapIE == 0 {
		if a.Proto.FallBehaviour != nil {
			a.setBehaviourLocked(a.Proto.FallBehaviour)
		}
		return
	}
	if _, ok := env.ActiveIE(); !ok {
		if a.Proto.FallBehaviour != nil {
			a.setBehaviourLocked(a.Proto.FallBehaviour)
		}
		return
	}

	if expr := ref.Action.LocalOverrides[LocalInitialVelX]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalInitialVelX].Value = float64(v)
		}
	} else {
		a.Locals[LocalInitialVelX].Value = 32
	}
	if expr := ref.Action.LocalOverrides[LocalInitialVelY]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalInitialVelY].Value = float64(v)
		}
	} else {
		a.Locals[LocalInitialVelY].Value = -10
	}
	if expr := ref.Action.LocalOverrides[LocalGravity]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalGravity].Value = float64(v)
		}
	} else {
		a.Locals[LocalGravity].Value = 0.5
	}

	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.State = StateIEThrow
	a.scratch = &throwWindowAux{startTick: tick}

	vx := a.Locals[LocalInitialVelX].Value
	if a.Locals[LocalLookingRight].Value == 0 {
		vx = -vx
	}
	env.Host.IEThrow(vx, a.Locals[LocalInitialVelY].Value, a.Locals[LocalGravity].Value, tick)

	if a.Affordances != nil {
		a.Affordances.Announce(a, ref.Action.AffordanceTag)
	}
}

func (throwWindowHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if env.capabilitiesSnapshot()&CapIE == 0 {
		return OutcomeNext
	}
	if _, ok := env.ActiveIE(); !ok {
		if a.Proto.FallBehaviour != nil {
			a.setBehaviourLocked(a.Proto.FallBehaviour)
		}
		return OutcomeNext
	}
	if _, ok := a.scratch.(*throwWindowAux); !ok {
		return OutcomeNext
	}
	return stepAnimated(a, env, ref, tick, false)
}

func (throwWindowHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	aux, ok := a.scratch.(*throwWindowAux)
	if !ok {
		return
	}
	elapsed := float64(tick - aux.startTick)
	vx := a.Locals[LocalInitialVelX].Value
	if a.Locals[LocalLookingRight].Value == 0 {
		vx = -vx
	}
	vy := a.Locals[LocalInitialVelY].Value + elapsed*a.Locals[LocalGravity].Value
	env.Host.IEMove(a.Locals[LocalX].Value+vx, a.Locals[LocalY].Value-vy)
}

func (throwWindowHandler) clean(a *Agent, ref *ActionRef) {
	a.scratch = nil
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
}
