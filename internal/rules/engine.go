// Package rules is the deterministic mechanics layer: combat resolution,
// XP and level progression, death handling, skill use, quest progress, and
// action-insight skill discovery.
//
// Every operation is pure with respect to its inputs: it takes a state value
// plus arguments and returns a new state value and a result. The only source
// of nondeterminism is the engine's RNG, which is seeded once at construction
// so that a fixed seed replays identically.
package rules

import (
	"log/slog"
	"math/rand"

	"github.com/loreforge/loreforge/internal/state"
)

// Engine evaluates game mechanics under a fixed difficulty and RNG seed.
// Not safe for concurrent use; the orchestrator serialises turns.
type Engine struct {
	difficulty state.Difficulty
	rng        *rand.Rand
	log        *slog.Logger
}

// NewEngine creates an engine. A nil logger disables rule logging.
func NewEngine(difficulty state.Difficulty, seed int64, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		difficulty: difficulty,
		rng:        rand.New(rand.NewSource(seed)),
		log:        log,
	}
}

// Difficulty returns the difficulty the engine scales against.
func (e *Engine) Difficulty() state.Difficulty {
	return e.difficulty
}

// RNG exposes the seeded RNG for operations that must share the engine's
// random stream (stat allocation at character creation).
func (e *Engine) RNG() *rand.Rand {
	return e.rng
}

// TickCooldowns returns the sheet with every active-skill cooldown reduced
// by one turn. Called once per processed turn.
func (e *Engine) TickCooldowns(sheet state.CharacterSheet) state.CharacterSheet {
	cp := sheet
	cp.Skills = make([]state.Skill, len(sheet.Skills))
	copy(cp.Skills, sheet.Skills)
	for i := range cp.Skills {
		if cp.Skills[i].CurrentCooldown > 0 {
			cp.Skills[i].CurrentCooldown--
		}
	}
	return cp
}
