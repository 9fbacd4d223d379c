// Package render is the thin sprite-host adapter at the Environment
// Facade's display boundary: it implements mascot.Host by keeping one
// [Node] (a position plus an atlas [TextureRegion]) per claimed Agent,
// parented under a [Scene]'s root so a whole overlay can be torn down
// together. Everything the compositor actually does with those sprites —
// drawing, input binding, buffer submission — is the embedding
// application's concern; this package only tracks the state
// Environment.Tick's subsurface_* calls mutate.
//
// # Quick start
//
//	scene := render.NewScene()
//	host := render.NewEbitenHost(scene)
//	env := mascot.NewEnvironment(host, store, cfg, nil)
//
// [EbitenHost.Claim] attaches a sprite Node the first time an Agent is
// observed live; SubsurfaceMove/SubsurfaceAttachPose/SubsurfaceRelease
// keep it positioned, textured, and eventually disposed.
package render
