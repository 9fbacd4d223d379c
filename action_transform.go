package mascot

// transformAux holds the resolved destination prototype so nextStep only
// looks it up once.
type transformAux struct {
	target *Prototype
}

// transformHandler implements the "transform" embedded action: the agent
// swaps its Prototype for TransformTarget, retaining the new one and
// releasing the old, as handled by InterpretTick's OutcomeTransform case
// (original_source/src/mascot.c transform_action_init/_next, which this
// implementation's bodies were not retrieved for — the retain/release
// discipline follows Prototype's own ref-counting contract instead).
type transformHandler struct{}

func init() { registerEmbedded(EmbeddedTransform, &transformHandler{}) }

func (transformHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if env.Store == nil {
		return
	}
	target := env.Store.GetByName(ref.Action.TransformTarget)
	a.scratch = &transformAux{target: target}
}

func (transformHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	aux, ok := a.scratch.(*transformAux)
	if !ok || aux.target == nil {
		return OutcomeNext
	}
	target := aux.target
	a.scratch = target
	return OutcomeTransform
}

func (transformHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (transformHandler) clean(a *Agent, ref *ActionRef) {}
