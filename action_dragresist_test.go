package mascot

import "testing"

func newDragResistTestAgent(t *testing.T) *Agent {
	t.Helper()
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return a
}

func TestDragResistInitSetsDefaultDeadline(t *testing.T) {
	a := newDragResistTestAgent(t)
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedDragResist}}

	dragResistHandler{}.initAction(a, nil, ref, 10)

	if a.ActionDeadline != 15 {
		t.Errorf("ActionDeadline = %v, want 15 (tick+5 default)", a.ActionDeadline)
	}
	if a.State != StateDragResist {
		t.Errorf("State = %v, want StateDragResist", a.State)
	}
}

func TestDragResistInitUsesDurationLimitExpr(t *testing.T) {
	a := newDragResistTestAgent(t)
	act := &Action{Kind: ActionEmbedded, Embedded: EmbeddedDragResist, DurationLimit: constExpr(10)}
	ref := &ActionRef{Action: act}

	dragResistHandler{}.initAction(a, nil, ref, 10)

	if a.ActionDeadline != 20 {
		t.Errorf("ActionDeadline = %v, want 20 (tick+10)", a.ActionDeadline)
	}
}

func TestDragResistNextStepReturnsNextAtDeadline(t *testing.T) {
	a := newDragResistTestAgent(t)
	a.ActionDeadline = 5
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedDragResist}}

	if got := (dragResistHandler{}).nextStep(a, nil, ref, 5); got != OutcomeNext {
		t.Errorf("nextStep() at deadline = %v, want OutcomeNext", got)
	}
}

func TestDragResistNextStepStepsAnimationBeforeDeadline(t *testing.T) {
	a := newDragResistTestAgent(t)
	a.ActionDeadline = 100
	anim := &Animation{Poses: []Pose{{Duration: 1}}}
	act := &Action{Kind: ActionEmbedded, Embedded: EmbeddedDragResist, Content: []ContentItem{{Animation: anim}}}
	ref := &ActionRef{Action: act}

	if got := (dragResistHandler{}).nextStep(a, nil, ref, 1); got != OutcomeReenter {
		t.Errorf("nextStep() before deadline (first animation pick) = %v, want OutcomeReenter", got)
	}
}

func TestDragResistCleanResetsState(t *testing.T) {
	a := newDragResistTestAgent(t)
	a.CurrentAnimation = &Animation{}
	a.FrameIndex = 2
	a.AnimIndex = 1
	a.ActionDeadline = 99
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedDragResist}}

	dragResistHandler{}.clean(a, ref)

	if a.CurrentAnimation != nil || a.FrameIndex != 0 || a.AnimIndex != 0 || a.ActionDeadline != 0 {
		t.Error("clean() did not reset animation/deadline state")
	}
}
