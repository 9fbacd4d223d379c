package mascot

import (
	"math"
	"math/rand"
)

// globalRegistry and functionRegistry are the fixed, named tables spec.md
// §4.A requires for "a fixed host-function table": the set of global
// symbols and callable functions every compiled Expression may reference
// by name. package_loader.go resolves a program's symbol names against
// these at load time; Execute then only ever indexes the resolved slice,
// never looks names up at evaluation time (original_source/src/expressions.c
// resolves the same way, against a static symbol table compiled into the
// binary).
var globalRegistry = map[string]GlobalGetter{
	"pointer_x": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		return vm.Push(float32(env.PointerSnapshot().X))
	},
	"pointer_y": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		return vm.Push(float32(env.PointerSnapshot().Y))
	},
	"screen_width": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		w, _ := env.Host.ScreenSize()
		return vm.Push(float32(w))
	},
	"screen_height": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		_, h := env.Host.ScreenSize()
		return vm.Push(float32(h))
	},
	"work_area_width": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		return vm.Push(float32(env.WorkArea().Width))
	},
	"work_area_height": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		return vm.Push(float32(env.WorkArea().Height))
	},
	"ie_active": func(vm *VMState) bool {
		env, ok := envOf(vm.Agent)
		if !ok {
			return vm.Push(0)
		}
		_, active := env.ActiveIE()
		return vm.Push(boolF(active))
	},
}

func envOf(a *Agent) (*Environment, bool) {
	if a == nil || a.Env == nil {
		return nil, false
	}
	env, ok := a.Env.(*Environment)
	return env, ok
}

var functionRegistry = map[string]HostFunc{
	"abs": func(vm *VMState) bool {
		v, ok := vm.Pop()
		if !ok {
			return false
		}
		return vm.Push(float32(math.Abs(float64(v))))
	},
	"min": func(vm *VMState) bool {
		b, a, ok := vm.pop2()
		if !ok {
			return false
		}
		return vm.Push(float32(math.Min(float64(a), float64(b))))
	},
	"max": func(vm *VMState) bool {
		b, a, ok := vm.pop2()
		if !ok {
			return false
		}
		return vm.Push(float32(math.Max(float64(a), float64(b))))
	},
	"sqrt": func(vm *VMState) bool {
		v, ok := vm.Pop()
		if !ok {
			return false
		}
		return vm.Push(float32(math.Sqrt(float64(v))))
	},
	"random": func(vm *VMState) bool {
		v, ok := vm.Pop()
		if !ok || v <= 0 {
			return vm.Push(0)
		}
		return vm.Push(float32(rand.Float64() * float64(v)))
	},
}
