package mascot

// lookHandler implements the "look" embedded action: a one-shot action that
// assigns LookingRight from its local override (leaving it unchanged when
// the action has none) and immediately advances, never attaching any frames of its own
// (original_source/src/actions/look.c). Supplemented into this
// implementation as a standalone embedded kind so behaviour authors can
// force a facing direction without a full animate action.
type lookHandler struct{}

func init() { registerEmbedded(EmbeddedLook, &lookHandler{}) }

func (lookHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if expr := ref.Action.LocalOverrides[LocalLookingRight]; expr != nil {
		if v, err := evaluateCached(a, expr); err == nil {
			a.Locals[LocalLookingRight].Value = float64(v)
			a.Locals[LocalLookingRight].InUse = true
		}
	}
}

func (lookHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	return OutcomeNext
}

func (lookHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {}

func (lookHandler) clean(a *Agent, ref *ActionRef) {}
