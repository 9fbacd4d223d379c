package mascot

import "testing"

func TestDisposeInitClearsAnimationState(t *testing.T) {
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	a.CurrentAnimation = &Animation{}
	a.FrameIndex = 2
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedDispose}}

	disposeHandler{}.initAction(a, nil, ref, 1)

	if a.CurrentAnimation != nil || a.FrameIndex != 0 {
		t.Error("initAction did not reset animation state")
	}
}

func TestDisposeNextStepWithNoContentReturnsDisposeImmediately(t *testing.T) {
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedDispose}}

	if got := (disposeHandler{}).nextStep(a, nil, ref, 1); got != OutcomeDispose {
		t.Errorf("nextStep() with no content = %v, want OutcomeDispose", got)
	}
}

func TestDisposeNextStepConvertsOutcomeNextToDispose(t *testing.T) {
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	anim := &Animation{Poses: []Pose{{Duration: 1}}}
	act := &Action{Kind: ActionEmbedded, Embedded: EmbeddedDispose, Content: []ContentItem{{Animation: anim}}}
	ref := &ActionRef{Action: act}
	a.CurrentAnimation = anim // skip the OutcomeReenter pick so the single pose exhausts immediately

	if got := (disposeHandler{}).nextStep(a, nil, ref, 1); got != OutcomeDispose {
		t.Errorf("nextStep() once the lone pose exhausts = %v, want OutcomeDispose", got)
	}
}

func TestDisposeNextStepPassesThroughNonNextOutcomes(t *testing.T) {
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	anim := &Animation{Poses: []Pose{{Duration: 1}}}
	act := &Action{Kind: ActionEmbedded, Embedded: EmbeddedDispose, Content: []ContentItem{{Animation: anim}}}
	ref := &ActionRef{Action: act}

	if got := (disposeHandler{}).nextStep(a, nil, ref, 1); got != OutcomeReenter {
		t.Errorf("nextStep() on the first animation pick = %v, want OutcomeReenter (unchanged)", got)
	}
}

func TestDisposeTickActionAndCleanAreNoOps(t *testing.T) {
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	a.FrameIndex = 7
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedDispose}}

	disposeHandler{}.tickAction(a, nil, ref, 1)
	disposeHandler{}.clean(a, ref)

	if a.FrameIndex != 7 {
		t.Error("tickAction/clean unexpectedly touched FrameIndex")
	}
}
