// internal/game/types.go
//
// Core type definitions for the Simon sequence engine.
// Defines:
//   - State: lifecycle of a single game session.
//   - Game: state for one in-progress or finished game.
//   - TapResult: the effect of a single tile tap.

package game

// State represents the lifecycle phase of a game session.
// Possible values:
//   - "idle":           no game running yet.
//   - "displaying":     the sequence is being played back to the player.
//   - "awaiting_input": the player is repeating the sequence.
//   - "round_complete": the sequence was repeated correctly; next round pending.
//   - "game_over":      the player tapped a wrong tile.
type State string

const (
	StateIdle          State = "idle"
	StateDisplaying    State = "displaying"
	StateAwaitingInput State = "awaiting_input"
	StateRoundComplete State = "round_complete"
	StateGameOver      State = "game_over"
)

const (
	// GridTiles is the number of tiles on the 3x3 board. Indices run 0..8.
	GridTiles = 9

	// PointsPerTile is the score granted per sequence element on a
	// completed round: score += PointsPerTile * len(sequence).
	PointsPerTile = 10

	// SaveThreshold is the minimum score above which a leaderboard
	// submission is offered. Enforced at the HTTP boundary, not here.
	SaveThreshold = 50
)

// Game holds the state of a single Simon game session.
type Game struct {
	ID        string // Unique game identifier (random hex string).
	Sequence  []int  // Growing tile sequence; len(Sequence) == Level while live.
	Input     []int  // Player taps for the current round; prefix of Sequence.
	Level     int    // Current round number, starting at 1.
	Score     int    // Accumulated score for this session.
	HighScore int    // Best score seen across restarts of this Game value.
	State     State

	// Populated when State == StateGameOver; -1 otherwise.
	ExpectedTile int // Tile the player should have tapped.
	MissIndex    int // Position in Sequence where the mismatch happened.

	rng func(n int) int // returns a uniform int in [0,n)
}

// TapResult reports the effect of one SubmitTap call.
type TapResult struct {
	Applied      bool  // false when the tap was ignored (wrong state or bad index)
	State        State // state after the tap
	RoundScore   int   // points granted if this tap completed a round
	ExpectedTile int   // valid when State == StateGameOver, else -1
	MissIndex    int   // valid when State == StateGameOver, else -1
}
