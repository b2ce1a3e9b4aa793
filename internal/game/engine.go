// internal/game/engine.go
//
// Core game engine for a single Simon session.
// Responsibilities:
//   - Start games and grow the sequence one uniform random tile per round.
//   - Validate and apply taps against the expected sequence position.
//   - Track state transitions: idle → displaying → awaiting_input →
//     round_complete → displaying ... → game_over.
//
// Notes:
//   - The engine is pure: no timers live here. Playback pacing and the
//     delayed round advance are driven by Session (session.go).
//   - Tile draws are independent uniform draws over 0..8 with replacement;
//     consecutive repeats are allowed and never filtered.
//   - A tap outside awaiting_input, or with an index outside 0..8, is a
//     silent no-op rather than an error.
//   - randomID() is a compact hex identifier for correlating server state.
package game

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// New constructs an idle game with a crypto-random tile source.
func New() *Game {
	return NewWithRand(secureIntn)
}

// NewWithRand constructs an idle game with a caller-supplied tile source.
// Used by tests and by the HTTP layer's seeded games.
func NewWithRand(rng func(n int) int) *Game {
	return &Game{
		ID:           randomID(),
		State:        StateIdle,
		Sequence:     []int{},
		Input:        []int{},
		ExpectedTile: -1,
		MissIndex:    -1,
		rng:          rng,
	}
}

// Start resets the session and begins round one.
// Clears sequence and input, sets level=1 and score=0, appends the first
// random tile, and transitions to displaying.
func (g *Game) Start() {
	g.Sequence = g.Sequence[:0]
	g.Input = g.Input[:0]
	g.Level = 1
	g.Score = 0
	g.ExpectedTile = -1
	g.MissIndex = -1
	g.Sequence = append(g.Sequence, g.rng(GridTiles))
	g.State = StateDisplaying
}

// FinishPlayback transitions displaying → awaiting_input.
// No-op in any other state (a stale playback timer must not corrupt a
// session that has since moved on).
func (g *Game) FinishPlayback() {
	if g.State != StateDisplaying {
		return
	}
	g.State = StateAwaitingInput
}

// AdvanceRound transitions round_complete → displaying for the next round:
// appends one new random tile and clears the player input. No-op otherwise.
func (g *Game) AdvanceRound() {
	if g.State != StateRoundComplete {
		return
	}
	g.Sequence = append(g.Sequence, g.rng(GridTiles))
	g.Input = g.Input[:0]
	g.State = StateDisplaying
}

// SubmitTap applies one tile tap.
//
// Rules:
//   - Ignored (Applied=false, state unchanged) unless the game is in
//     awaiting_input and 0 <= tile < GridTiles.
//   - Mismatch against the same-position sequence element → game_over;
//     the expected tile and miss position are recorded for UI feedback and
//     the session high score is updated if beaten.
//   - Match with input still shorter than the sequence → stays awaiting_input.
//   - Match completing the sequence → score += PointsPerTile*len(sequence),
//     level += 1, state → round_complete.
func (g *Game) SubmitTap(tile int) TapResult {
	if g.State != StateAwaitingInput || tile < 0 || tile >= GridTiles {
		return TapResult{Applied: false, State: g.State, ExpectedTile: -1, MissIndex: -1}
	}

	g.Input = append(g.Input, tile)
	pos := len(g.Input) - 1

	if g.Sequence[pos] != tile {
		g.ExpectedTile = g.Sequence[pos]
		g.MissIndex = pos
		g.State = StateGameOver
		if g.Score > g.HighScore {
			g.HighScore = g.Score
		}
		return TapResult{
			Applied:      true,
			State:        g.State,
			ExpectedTile: g.ExpectedTile,
			MissIndex:    g.MissIndex,
		}
	}

	if len(g.Input) < len(g.Sequence) {
		return TapResult{Applied: true, State: g.State, ExpectedTile: -1, MissIndex: -1}
	}

	gained := PointsPerTile * len(g.Sequence)
	g.Score += gained
	g.Level++
	g.State = StateRoundComplete
	return TapResult{
		Applied:      true,
		State:        g.State,
		RoundScore:   gained,
		ExpectedTile: -1,
		MissIndex:    -1,
	}
}

// secureIntn returns a uniform int in [0,n) from crypto/rand.
func secureIntn(n int) int {
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(nBig.Int64())
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
