package mascot

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// interactAux tracks the hold-duration countdown visualized by a gween
// tween, so an IPC/UI observer can render the remaining fraction of an
// in-progress interact (supplemented; the original has no analogous
// countdown, but §6's "hold duration" interact variant implies one).
type interactAux struct {
	countdown *gween.Tween
}

// interactHandler implements the "interact" embedded action: the final,
// already-matched step of a scanjump/scanmove rendezvous. It has no
// animation/movement of its own — it only holds the two agents paired for
// the configured duration before allowing the ordinary behaviour tree to
// resume (original_source/src/mascot.c embedded_funcs table maps this kind
// straight to simple_action_tick/simple_action_next with a dedicated init
// and clean, i.e. it's a pass-through once mascot_interact has already run).
type interactHandler struct{}

func init() { registerEmbedded(EmbeddedInteract, &interactHandler{}) }

func (interactHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.State = StateInteract
	duration := float32(5)
	if limit := ref.Action.DurationLimit; limit != nil {
		if v, err := evaluateCached(a, limit); err == nil && v > 0 {
			duration = v
			a.ActionDeadline = tick + Tick(v)
		}
	}
	a.scratch = &interactAux{countdown: gween.New(1, 0, duration, ease.Linear)}
}

func (interactHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if a.ActionDeadline != 0 && tick >= a.ActionDeadline {
		return OutcomeNext
	}
	return stepAnimated(a, env, ref, tick, false)
}

func (interactHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	if aux, ok := a.scratch.(*interactAux); ok && aux.countdown != nil {
		if _, done := aux.countdown.Update(1); done {
			aux.countdown = nil
		}
	}
}

func (interactHandler) clean(a *Agent, ref *ActionRef) {
	a.ActionDeadline = 0
}
