// Package ecs adapts the Environment Facade's agent lifecycle
// notifications onto a Donburi event bus, so a host application can drive
// its own ECS-based overlay/UI layer off agent state without polling the
// IPC socket (SPEC_FULL.md's ecs bridge).
package ecs

import (
	mascot "github.com/mascotrt/mascot"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// LifecycleEvent carries one agent spawn/dispose notification onto
// the Donburi event bus, generalized from the teacher's pointer/drag
// InteractionEvent to an agent-lifecycle event.
type LifecycleEvent struct {
	AgentID uint32
	Kind    mascot.AgentEventKind
}

// LifecycleEventType is the Donburi event type for agent lifecycle events.
// Subscribe to this with LifecycleEventType.Subscribe and drain it in an
// ECS system with LifecycleEventType.ProcessEvents.
var LifecycleEventType = events.NewEventType[LifecycleEvent]()

type donburiSink struct {
	world donburi.World
}

// NewDonburiSink creates a mascot.LifecycleSink backed by a Donburi world.
// Pass the result as Environment.Sink to have every spawn/dispose
// published onto LifecycleEventType.
func NewDonburiSink(world donburi.World) mascot.LifecycleSink {
	return &donburiSink{world: world}
}

func (s *donburiSink) Publish(agentID uint32, kind mascot.AgentEventKind) {
	LifecycleEventType.Publish(s.world, LifecycleEvent{AgentID: agentID, Kind: kind})
}
