package mascot

import (
	"testing"

	"github.com/mascotrt/mascot/config"
)

func newTestEnvironment(t *testing.T, host Host) *Environment {
	t.Helper()
	store := NewStore()
	return NewEnvironment(host, store, config.Default(), nil)
}

func TestNewEnvironmentAssignsUniqueIDs(t *testing.T) {
	e1 := newTestEnvironment(t, hostfuncsTestHost{})
	e2 := newTestEnvironment(t, hostfuncsTestHost{})
	if e1.EnvID() == e2.EnvID() {
		t.Errorf("two environments share ID %d, want distinct IDs", e1.EnvID())
	}
}

func TestPreTickSamplesHostState(t *testing.T) {
	host := hostfuncsTestHost{
		workArea:     Rect{X: 1, Y: 2, Width: 800, Height: 600},
		screenW:      1920,
		screenH:      1080,
		capabilities: CapIE,
	}
	e := newTestEnvironment(t, host)
	e.PreTick()

	if got := e.WorkArea(); got != host.workArea {
		t.Errorf("WorkArea() = %v, want %v", got, host.workArea)
	}
	if e.screenW != 1920 || e.screenH != 1080 {
		t.Errorf("screen size = (%v,%v), want (1920,1080)", e.screenW, e.screenH)
	}
	if e.capabilitiesSnapshot() != CapIE {
		t.Errorf("capabilities = %v, want CapIE", e.capabilitiesSnapshot())
	}
}

func TestPreTickActiveIERequiresCapIE(t *testing.T) {
	ie := IEWindow{Bounds: Rect{Width: 100, Height: 100}}
	host := hostfuncsTestHost{ie: ie, ieActive: true} // no CapIE
	e := newTestEnvironment(t, host)
	e.PreTick()

	if _, ok := e.ActiveIE(); ok {
		t.Error("ActiveIE() ok = true, want false without CapIE")
	}
}

func TestPreTickActiveIEWithCapability(t *testing.T) {
	ie := IEWindow{Bounds: Rect{Width: 100, Height: 100}}
	host := hostfuncsTestHost{ie: ie, ieActive: true, capabilities: CapIE}
	e := newTestEnvironment(t, host)
	e.PreTick()

	got, ok := e.ActiveIE()
	if !ok {
		t.Fatal("ActiveIE() ok = false, want true with CapIE and an active IE")
	}
	if got.Bounds != ie.Bounds {
		t.Errorf("ActiveIE().Bounds = %v, want %v", got.Bounds, ie.Bounds)
	}
}

func TestPreTickClearsBordersScratch(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{Width: 800, Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()
	e.GetBorderType(5, 5) // populate the memo

	if len(e.bordersScratch) == 0 {
		t.Fatal("expected GetBorderType to populate bordersScratch")
	}
	e.PreTick()
	if len(e.bordersScratch) != 0 {
		t.Error("PreTick did not clear bordersScratch")
	}
}

func TestSetPointerSnapshotAndGet(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{})
	e.SetPointerSnapshot(PointerSnapshot{X: 7, Y: 9})
	got := e.PointerSnapshot()
	if got.X != 7 || got.Y != 9 {
		t.Errorf("PointerSnapshot() = %v, want X=7,Y=9", got)
	}
}

func TestScreenYToMascotY(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()
	if got := e.screenYToMascotY(100); got != 500 {
		t.Errorf("screenYToMascotY(100) = %v, want 500", got)
	}
}

type testLifecycleSink struct {
	events []AgentEventKind
}

func (s *testLifecycleSink) Publish(agentID uint32, kind AgentEventKind) {
	s.events = append(s.events, kind)
}

func TestAddAgentPublishesAndIndexes(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{})
	sink := &testLifecycleSink{}
	e.Sink = sink

	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	e.AddAgent(a)

	if e.AgentByID(a.ID) != a {
		t.Error("AgentByID did not find the added agent")
	}
	if len(sink.events) != 1 || sink.events[0] != AgentEventNone {
		t.Errorf("sink.events = %v, want one AgentEventNone", sink.events)
	}
}

func TestRemoveAgentReleasesPrototypeAndPublishesDispose(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{})
	sink := &testLifecycleSink{}
	e.Sink = sink

	proto := &Prototype{Name: "kuromi"}
	a, err := Spawn(SpawnParams{Prototype: proto})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	e.AddAgent(a)
	if proto.RefCount() != 1 {
		t.Fatalf("proto.RefCount() = %d, want 1 after Spawn", proto.RefCount())
	}

	e.RemoveAgent(a.ID)

	if e.AgentByID(a.ID) != nil {
		t.Error("agent still indexed after RemoveAgent")
	}
	if proto.RefCount() != 0 {
		t.Errorf("proto.RefCount() = %d, want 0 after RemoveAgent released it", proto.RefCount())
	}
	if len(sink.events) != 2 || sink.events[1] != AgentEventDispose {
		t.Errorf("sink.events = %v, want [None, Dispose]", sink.events)
	}
}

func TestRemoveAgentUnknownIDIsNoOp(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{})
	e.RemoveAgent(9999) // must not panic
}

func TestAgentsSortedByID(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{})
	var ids []uint32
	for i := 0; i < 3; i++ {
		a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}})
		if err != nil {
			t.Fatalf("Spawn: %v", err)
		}
		e.AddAgent(a)
		ids = append(ids, a.ID)
	}
	agents := e.Agents()
	if len(agents) != 3 {
		t.Fatalf("Agents() len = %d, want 3", len(agents))
	}
	for i := 1; i < len(agents); i++ {
		if agents[i-1].ID >= agents[i].ID {
			t.Errorf("Agents() not sorted by ID ascending: %v", agents)
		}
	}
}

func TestTickWithNoAgentsReturnsAdvancingCounter(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{workArea: Rect{Width: 800, Height: 600}})
	first := e.Tick()
	second := e.Tick()
	if second != first+1 {
		t.Errorf("Tick() sequence = %d,%d, want monotonically increasing by 1", first, second)
	}
}

func TestTickWithIdleAgentDoesNotPanic(t *testing.T) {
	e := newTestEnvironment(t, hostfuncsTestHost{workArea: Rect{Width: 800, Height: 600}})
	a, err := Spawn(SpawnParams{Prototype: &Prototype{Name: "kuromi"}, Env: e})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	e.AddAgent(a)
	e.Tick() // an agent with no root pool / behaviour must tick harmlessly
}

func TestClassifyBorderFloorAndCeiling(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{X: 0, Y: 0, Width: 800, Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()

	if got := e.GetBorderType(400, 0); got != BorderCeiling {
		t.Errorf("GetBorderType(top) = %v, want BorderCeiling", got)
	}
	if got := e.GetBorderType(400, 600); got != BorderFloor {
		t.Errorf("GetBorderType(bottom) = %v, want BorderFloor", got)
	}
}

func TestClassifyBorderWall(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{X: 0, Y: 0, Width: 800, Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()

	if got := e.GetBorderType(0, 300); got != BorderWall {
		t.Errorf("GetBorderType(left) = %v, want BorderWall", got)
	}
	if got := e.GetBorderType(800, 300); got != BorderWall {
		t.Errorf("GetBorderType(right) = %v, want BorderWall", got)
	}
}

func TestClassifyBorderNoneInInterior(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{X: 0, Y: 0, Width: 800, Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()

	if got := e.GetBorderType(400, 300); got != BorderNone {
		t.Errorf("GetBorderType(interior) = %v, want BorderNone", got)
	}
}

func TestClassifyBorderInvalidOutsideWorkArea(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{X: 0, Y: 0, Width: 800, Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()

	if got := e.GetBorderType(-50, 300); got != BorderInvalid {
		t.Errorf("GetBorderType(outside) = %v, want BorderInvalid", got)
	}
}

func TestClassifyBorderIEWindowFloorAndWall(t *testing.T) {
	host := hostfuncsTestHost{
		workArea:     Rect{X: 0, Y: 0, Width: 800, Height: 600},
		ie:           IEWindow{Bounds: Rect{X: 200, Y: 200, Width: 100, Height: 100}},
		ieActive:     true,
		capabilities: CapIE,
	}
	e := newTestEnvironment(t, host)
	e.PreTick()

	if got := e.GetBorderType(250, 200); got != BorderFloor {
		t.Errorf("GetBorderType(IE top) = %v, want BorderFloor", got)
	}
	if got := e.GetBorderType(200, 250); got != BorderWall {
		t.Errorf("GetBorderType(IE left edge) = %v, want BorderWall", got)
	}
}

func TestGetBorderTypeMemoizesAcrossCalls(t *testing.T) {
	host := hostfuncsTestHost{workArea: Rect{X: 0, Y: 0, Width: 800, Height: 600}}
	e := newTestEnvironment(t, host)
	e.PreTick()

	first := e.GetBorderType(400, 300)
	second := e.GetBorderType(400, 300)
	if first != second {
		t.Errorf("memoized GetBorderType changed between calls: %v vs %v", first, second)
	}
	if len(e.bordersScratch) != 1 {
		t.Errorf("bordersScratch len = %d, want 1 entry for a repeated point", len(e.bordersScratch))
	}
}
