package mascot

import "math"

// fallHandler implements the "fall" embedded action: unconstrained gravity
// integration (VelocityY += Gravity, with no terminal-velocity clamp and
// AirDragY unused, plus an AirDragX damping on the horizontal carry-over
// from whatever action preceded the fall) until a border classified
// floor/IE-top is reached (spec.md §4.D "fall"; the velocity integration
// mirrors physics.c's border/collision primitives, whose body
// (check_collision_at, is_inside/is_outside) supplies the landing test
// this handler drives through Environment.GetBorderType rather than
// reimplementing bounding-box math redundantly).
type fallHandler struct{}

func init() { registerEmbedded(EmbeddedFall, &fallHandler{}) }

func (fallHandler) initAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	a.FrameIndex = 0
	a.AnimIndex = 0
	a.NextFrameTick = 0
	a.CurrentAnimation = nil
	a.State = StateFall
	if a.Affordances != nil {
		a.Affordances.Announce(a, "")
	}
}

func (fallHandler) nextStep(a *Agent, env *Environment, ref *ActionRef, tick Tick) ActionOutcome {
	if env.GetBorderType(a.Locals[LocalX].Value, a.Locals[LocalY].Value) == BorderFloor {
		return OutcomeNext
	}
	return stepAnimated(a, env, ref, tick, false)
}

func (fallHandler) tickAction(a *Agent, env *Environment, ref *ActionRef, tick Tick) {
	vx, vy := physicsClampVelocity(a)
	physicsIntegrate(a, env, vx, vy)
}

// physicsClampVelocity applies gravity to the vertical carry-over velocity
// and air drag to the horizontal one, defaulting both multipliers to
// identity when the prototype leaves them unset (physics.c's integrator).
func physicsClampVelocity(a *Agent) (vx, vy float64) {
	gravity := a.Locals[LocalGravity].Value
	if gravity == 0 {
		gravity = 1
	}
	airDragX := a.Locals[LocalAirDragX].Value
	if airDragX == 0 {
		airDragX = 1
	}
	vy = a.Locals[LocalVelocityY].Value + gravity
	vx = a.Locals[LocalVelocityX].Value * airDragX
	return vx, vy
}

// physicsIntegrate advances the agent's position by one tick of (vx, vy),
// clamping X to the work area and zeroing vertical velocity on landing.
func physicsIntegrate(a *Agent, env *Environment, vx, vy float64) {
	wa := env.WorkArea()
	x := a.Locals[LocalX].Value + vx
	y := a.Locals[LocalY].Value + vy

	if y >= wa.Y+wa.Height {
		y = wa.Y + wa.Height
		vy = 0
	}
	x = math.Max(wa.X, math.Min(wa.X+wa.Width, x))

	a.Locals[LocalX].Value = x
	a.Locals[LocalY].Value = y
	a.Locals[LocalVelocityX].Value = vx
	a.Locals[LocalVelocityY].Value = vy
}

func (fallHandler) clean(a *Agent, ref *ActionRef) {
	a.Locals[LocalVelocityX].Value = 0
	a.Locals[LocalVelocityY].Value = 0
}
