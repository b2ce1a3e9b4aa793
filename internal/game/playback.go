// internal/game/playback.go
//
// Declarative playback plans for sequence display.
//
// A plan is a time-ordered list of highlight on/off events computed up front
// from the sequence. A single scheduler (session.go) consumes the list with
// one timer per event. This replaces the chained delayed callbacks the
// original UI used for both regular playback and the end-of-game flash.

package game

import "time"

// Timings controls the pacing of sequence playback and round transitions.
type Timings struct {
	InitialDelay time.Duration // pause before the first highlight
	Highlight    time.Duration // how long each tile stays lit
	Gap          time.Duration // dark pause between tiles
	NextRound    time.Duration // pause after round_complete before the next round
}

// DefaultTimings matches the pacing of the mobile game.
func DefaultTimings() Timings {
	return Timings{
		InitialDelay: 500 * time.Millisecond,
		Highlight:    600 * time.Millisecond,
		Gap:          200 * time.Millisecond,
		NextRound:    time.Second,
	}
}

// Event is one step of a playback plan: light tile at offset At, or clear
// the highlight (On=false).
type Event struct {
	Tile int
	On   bool
	At   time.Duration // offset from plan start
}

// Plan computes the highlight schedule for one full playback of seq:
// an initial delay, then for each tile an on event held for the highlight
// duration, an off event, and a gap before the next tile.
func Plan(seq []int, t Timings) []Event {
	events := make([]Event, 0, 2*len(seq))
	at := t.InitialDelay
	for _, tile := range seq {
		events = append(events, Event{Tile: tile, On: true, At: at})
		at += t.Highlight
		events = append(events, Event{Tile: tile, On: false, At: at})
		at += t.Gap
	}
	return events
}

// PlanDuration is the offset at which a plan has fully finished, i.e. when
// input may open. The trailing gap after the last off event is included so
// the board is visibly dark before the player's turn.
func PlanDuration(seq []int, t Timings) time.Duration {
	return t.InitialDelay + time.Duration(len(seq))*(t.Highlight+t.Gap)
}

// gameOverFlashes is how many times the expected tile blinks after a miss.
const gameOverFlashes = 3

// GameOverPlan flashes the tile the player should have tapped. The caller
// clamps the miss index; tile is the already-resolved expected tile.
func GameOverPlan(tile int, t Timings) []Event {
	events := make([]Event, 0, 2*gameOverFlashes)
	at := t.InitialDelay
	for i := 0; i < gameOverFlashes; i++ {
		events = append(events, Event{Tile: tile, On: true, At: at})
		at += t.Highlight
		events = append(events, Event{Tile: tile, On: false, At: at})
		at += t.Gap
	}
	return events
}
