package mascot

// cloneAux counts down the configured number of spawns and the interval
// between them (spec.md §4.D "clone"/"breed"; original_source/src/mascot.h
// names the embedded kind breed_action_*, not included bodily in the
// retrieved source — the counting scheme here follows the
// BornInterval/BornCount local-variable pair the header reserves slots
// 20/21 for).
type cloneAux struct {
	remaining int
	nextAt    Tick
}

// cloneHandler implements the "clone" embedded action: spawns BornCount
// copies of the agent (or BornMascot, if named) at BornX/BornY, spaced
// BornInterval ticks apart, emitting one AgentEventClone per spawn via
// InterpretTick's OutcomeClone handling.
type cloneHandler struct{}

func init() { registerEmbedded(EmbeddedClone, &cloneHandler{}) }

func (cloneHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	count := 1
	if expr := ref.Action.LocalOverrides[LocalBornCount]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil && v > 0 {
			count = int(v)
		}
	}
	interval := Tick(1)
	if expr := ref.Action.LocalOverrides[LocalBornInterval]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil && v > 0 {
			interval = Tick(v)
		}
	}
	a.scratch = &cloneAux{remaining: count, nextAt: tick}
	a.Locals[LocalBornInterval].Value = float64(interval)
}

func (cloneHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	aux, ok := a.scratch.(*cloneAux)
	if !ok || aux.remaining <= 0 {
		return OutcomeNext
	}
	if tick < aux.nextAt {
		return OutcomeOK
	}

	proto := a.Proto
	if ref.Action.BornMascot != "" && env.Store != nil {
		if p := env.Store.GetByName(ref.Action.BornMascot); p != nil {
			proto = p
		}
	}

	bornX, bornY := a.Locals[LocalX].Value, a.Locals[LocalY].Value
	if ref.Action.BornX != nil {
		if v, err := evaluateCached(a, ref.Action.BornX); err == nil {
			bornX = float64(v)
		}
	}
	if ref.Action.BornY != nil {
		if v, err := evaluateCached(a, ref.Action.BornY); err == nil {
			bornY = float64(v)
		}
	}

	a.pendingClone = &CloneRequest{
		Prototype:    proto,
		X:            bornX,
		Y:            bornY,
		LookingRight: a.Locals[LocalLookingRight].Value != 0,
		Behaviour:    ref.Action.BornBehaviour,
	}

	aux.remaining--
	aux.nextAt = tick + Tick(a.Locals[LocalBornInterval].Value)

	if aux.remaining <= 0 {
		return OutcomeCloneAndNext
	}
	return OutcomeClone
}

func (cloneHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (cloneHandler) clean(a *Agent, ref *ActionRef) {}
