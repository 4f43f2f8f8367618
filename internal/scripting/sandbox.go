// Package scripting runs operator-supplied scoring rules in a sandboxed
// GopherLua state. It has no dependency on the hub; results are returned to
// callers as plain Go values.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// call when no override is configured.
const DefaultInstructionLimit = 100_000

// ErrBudgetExhausted is returned by Run when the script used up its
// instruction budget.
var ErrBudgetExhausted = errors.New("scripting: instruction budget exhausted")

// budget cancels itself once Done has been polled limit times. GopherLua
// polls Done once per opcode while a context is set.
type budget struct {
	context.Context
	cancel    context.CancelFunc
	left      atomic.Int64
	exhausted atomic.Bool
}

func (b *budget) Done() <-chan struct{} {
	if b.left.Add(-1) < 0 && !b.exhausted.Swap(true) {
		b.cancel()
	}
	return b.Context.Done()
}

// NewSandboxedState returns an LState with only the base, table, string and
// math libraries, and with the base loaders that reach the filesystem or
// compile arbitrary chunks removed.
//
// Postcondition: The caller owns the LState and must call L.Close(). Execute
// scripts through Run so each call is bounded.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Run executes fn against L with a fresh budget of limit opcodes, also
// bounded by ctx.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit. fn must only use L.
// Postcondition: L has no context installed on return. An error caused by
// the budget running out wraps ErrBudgetExhausted.
func Run(ctx context.Context, L *lua.LState, limit int, fn func() error) error {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	b := &budget{}
	b.Context, b.cancel = context.WithCancel(ctx)
	b.left.Store(int64(limit))

	L.SetContext(b)
	err := fn()
	L.RemoveContext()
	b.cancel()

	if err != nil && b.exhausted.Load() {
		return fmt.Errorf("%w after %d instructions: %v", ErrBudgetExhausted, limit, err)
	}
	return err
}
