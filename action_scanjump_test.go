package mascot

import "testing"

func newScanTestAgent(t *testing.T, name string, x, y float64, reg *AffordanceRegistry) *Agent {
	t.Helper()
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: name}, X: x, Y: y})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	a.Affordances = reg
	return a
}

func TestScanJumpInitNoTargetLeavesStateUnset(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play"}}

	scanJumpHandler{}.initAction(seeker, nil, ref, 1)

	if seeker.State == StateScanJump {
		t.Error("State = StateScanJump, want unset with no candidate")
	}
	if seeker.Target != nil {
		t.Error("Target set despite no candidate being found")
	}
}

func TestScanJumpInitLocksOntoTargetAndDefaultsVelocity(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	target := newScanTestAgent(t, "target", 50, 50, reg)
	reg.Announce(target, "play")
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play"}}

	scanJumpHandler{}.initAction(seeker, nil, ref, 1)

	if seeker.Target != target {
		t.Errorf("Target = %v, want %v", seeker.Target, target)
	}
	if seeker.State != StateScanJump {
		t.Errorf("State = %v, want StateScanJump", seeker.State)
	}
	if seeker.Locals[LocalVelocityParam].Value != 20 {
		t.Errorf("VelocityParam = %v, want default 20", seeker.Locals[LocalVelocityParam].Value)
	}
}

func TestScanJumpInitUsesVelocityOverrideAndDurationLimit(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	target := newScanTestAgent(t, "target", 50, 50, reg)
	reg.Announce(target, "play")
	act := &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play",
		VelocityParam: constExpr(7), DurationLimit: constExpr(10)}
	ref := &ActionRef{Action: act}

	scanJumpHandler{}.initAction(seeker, nil, ref, 1)

	if seeker.Locals[LocalVelocityParam].Value != 7 {
		t.Errorf("VelocityParam = %v, want 7", seeker.Locals[LocalVelocityParam].Value)
	}
	if seeker.ActionDeadline != 11 {
		t.Errorf("ActionDeadline = %v, want 11", seeker.ActionDeadline)
	}
}

func TestScanJumpNextStepNoTargetReturnsNext(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play"}}

	if got := (scanJumpHandler{}).nextStep(seeker, nil, ref, 1); got != OutcomeNext {
		t.Errorf("nextStep() with no target = %v, want OutcomeNext", got)
	}
}

func TestScanJumpNextStepRequiredBorderGate(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 400, 300, reg) // interior, not on the floor
	target := newScanTestAgent(t, "target", 450, 300, reg)
	seeker.Target = target
	host := hostfuncsTestHost{workArea: Rect{X: 0, Y: 0, Width: 800, Height: 600}}
	env := newTestEnvironment(t, host)
	env.PreTick()
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play",
		RequiredBorder: BorderFloor}}

	if got := (scanJumpHandler{}).nextStep(seeker, env, ref, 1); got != OutcomeNext {
		t.Errorf("nextStep() off the required border = %v, want OutcomeNext", got)
	}
}

func TestScanJumpNextStepInteractsWhenCloseEnough(t *testing.T) {
	reg := NewAffordanceRegistry()
	targetBehaviour := &Behaviour{Name: "greet"}
	seekerProto := &Prototype{Name: "seeker", Behaviours: []*Behaviour{targetBehaviour}}
	seeker, err := Spawn(SpawnParams{Prototype: seekerProto, X: 50, Y: 50})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	seeker.Affordances = reg
	target := newScanTestAgent(t, "target", 50, 50, reg)
	seeker.Target = target

	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play",
		SeekerBehaviour: "greet"}}

	got := scanJumpHandler{}.nextStep(seeker, nil, ref, 1)
	if got != OutcomeReenter {
		t.Errorf("nextStep() at zero distance = %v, want OutcomeReenter", got)
	}
	if seeker.Target != nil {
		t.Error("Target not cleared after a completed interact")
	}
	if seeker.CurrentBehaviour != targetBehaviour {
		t.Errorf("seeker.CurrentBehaviour = %v, want %v after interact", seeker.CurrentBehaviour, targetBehaviour)
	}
}

func TestScanJumpNextStepReacquiresWhenTargetAffordanceChanges(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	staleTarget := newScanTestAgent(t, "stale", 500, 500, reg)
	staleTarget.CurrentAffordance = "other"
	seeker.Target = staleTarget
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play"}}

	got := scanJumpHandler{}.nextStep(seeker, nil, ref, 1)
	if got != OutcomeNext {
		t.Errorf("nextStep() with a stale target and no replacement = %v, want OutcomeNext", got)
	}
}

func TestScanJumpTickActionSnapsToTargetWithinVelocity(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	target := newScanTestAgent(t, "target", 100, 0, reg)
	seeker.Target = target
	seeker.Locals[LocalVelocityParam].Value = 1000 // overshoot straight to the target
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump, AffordanceTag: "play"}}

	scanJumpHandler{}.tickAction(seeker, nil, ref, 1)

	if seeker.Locals[LocalX].Value != 100 || seeker.Locals[LocalY].Value != 0 {
		t.Errorf("position = (%v,%v), want snapped to target (100,0)", seeker.Locals[LocalX].Value, seeker.Locals[LocalY].Value)
	}
}

func TestScanJumpCleanClearsTargetAndLocals(t *testing.T) {
	reg := NewAffordanceRegistry()
	seeker := newScanTestAgent(t, "seeker", 0, 0, reg)
	target := newScanTestAgent(t, "target", 10, 10, reg)
	seeker.Target = target
	seeker.Locals[LocalVelocityParam].Value = 5
	seeker.Locals[LocalTargetX].Value = 10
	seeker.Locals[LocalTargetY].Value = 10
	reg.Announce(seeker, "play")
	ref := &ActionRef{Action: &Action{Kind: ActionEmbedded, Embedded: EmbeddedScanJump}}

	scanJumpHandler{}.clean(seeker, ref)

	if seeker.Target != nil {
		t.Error("Target not cleared by clean()")
	}
	if seeker.Locals[LocalVelocityParam].Value != 0 || seeker.Locals[LocalTargetX].Value != 0 || seeker.Locals[LocalTargetY].Value != 0 {
		t.Error("clean() did not zero the scanjump locals")
	}
	if reg.Occupancy() != 0 {
		t.Error("clean() did not announce the seeker out of the registry")
	}
}
