package scripting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/quiz"
)

// ScoreHook is the global Lua function a scoring script must define:
//
//	function score(correct, streak) return points end
const ScoreHook = "score"

// ErrNoScoreHook is returned when a script does not define ScoreHook.
var ErrNoScoreHook = errors.New("scoring script does not define " + ScoreHook)

// LuaScorer computes points with an operator-supplied Lua function.
// It implements quiz.Scorer.
//
// LuaScorer is safe for concurrent use; calls are serialized on its LState.
type LuaScorer struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
	name   string
}

var _ quiz.Scorer = (*LuaScorer)(nil)

// LoadScorerFile loads a scoring script from path.
//
// Precondition: logger must be non-nil; instLimit >= 0 (0 = default).
// Postcondition: Returns a ready LuaScorer, or an error if the file fails to
// load or does not define score.
func LoadScorerFile(logger *zap.Logger, path string, instLimit int) (*LuaScorer, error) {
	return loadScorer(logger, path, instLimit, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadScorerString loads a scoring script from source. name labels it in logs.
func LoadScorerString(logger *zap.Logger, name, source string, instLimit int) (*LuaScorer, error) {
	return loadScorer(logger, name, instLimit, func(L *lua.LState) error { return L.DoString(source) })
}

func loadScorer(logger *zap.Logger, name string, instLimit int, load func(*lua.LState) error) (*LuaScorer, error) {
	L := NewSandboxedState()
	RegisterModules(L, logger, quiz.DefaultPoints)

	err := Run(context.Background(), L, instLimit, func() error { return load(L) })
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", name, err)
	}
	if L.GetGlobal(ScoreHook).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("scripting: %q: %w", name, ErrNoScoreHook)
	}

	logger.Info("scoring script loaded", zap.String("script", name))
	return &LuaScorer{L: L, limit: instLimit, logger: logger, name: name}, nil
}

// Score calls score(correct, streak) and validates the result.
//
// Postcondition: Returns a non-negative integer, or an error if the script
// fails, exceeds its instruction budget, or returns a non-number.
func (s *LuaScorer) Score(correct bool, streak int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := Run(context.Background(), s.L, s.limit, func() error {
		return s.L.CallByParam(lua.P{
			Fn:      s.L.GetGlobal(ScoreHook),
			NRet:    1,
			Protect: true,
		}, lua.LBool(correct), lua.LNumber(streak))
	})
	if err != nil {
		s.logger.Warn("scoring script failed",
			zap.String("script", s.name),
			zap.Bool("correct", correct),
			zap.Int("streak", streak),
			zap.Error(err),
		)
		return 0, fmt.Errorf("scripting: %s: %w", ScoreHook, err)
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("scripting: %s returned %s, want number", ScoreHook, ret.Type())
	}
	f := float64(n)
	if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("scripting: %s returned out-of-range points %v", ScoreHook, f)
	}
	return int(f), nil
}

// Close releases the Lua state.
func (s *LuaScorer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
}
