package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules installs the quiz.* helper table into L.
//
// Precondition: L must be from NewSandboxedState; logger must be non-nil.
// Postcondition: quiz global is defined in L with log, clamp and DEFAULT_POINTS.
func RegisterModules(L *lua.LState, logger *zap.Logger, defaultPoints int) {
	mod := L.NewTable()
	L.SetField(mod, "DEFAULT_POINTS", lua.LNumber(defaultPoints))
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Info("scoring script", zap.String("message", L.CheckString(1)))
		return 0
	}))
	L.SetField(mod, "clamp", L.NewFunction(func(L *lua.LState) int {
		v, lo, hi := L.CheckNumber(1), L.CheckNumber(2), L.CheckNumber(3)
		switch {
		case v < lo:
			v = lo
		case v > hi:
			v = hi
		}
		L.Push(v)
		return 1
	}))
	L.SetGlobal("quiz", mod)
}
