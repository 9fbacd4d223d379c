// Package ecs bridges agent lifecycle notifications onto a [Donburi]
// world as typed events, so a host application's ECS-based overlay/UI
// layer can react to spawn/dispose without polling the IPC socket.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	env.Sink = sink
//	ecs.LifecycleEventType.Subscribe(world, func(w donburi.World, e ecs.LifecycleEvent) { ... })
//	// in an ECS system:
//	ecs.LifecycleEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
