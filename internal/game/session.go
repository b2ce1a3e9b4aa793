// internal/game/session.go
//
// Session wraps a Game with the timers that drive it: playback highlights,
// the displaying → awaiting_input transition, the delayed advance into the
// next round, and the game-over flash.
//
// Every delayed callback captures the session epoch at schedule time and is
// a no-op if the session has been restarted or stopped since. A superseded
// session therefore cannot corrupt a later one.

package game

import (
	"sync"
	"time"
)

// Session is the scheduled, concurrency-safe driver for one Game.
type Session struct {
	mu        sync.Mutex
	g         *Game
	timings   Timings
	epoch     uint64 // bumped on Start/Stop; timers guard on it
	highlight int    // currently lit tile, -1 when dark
	saved     bool   // leaderboard submission already recorded
	timers    []*time.Timer
}

// NewSession builds a session around a fresh crypto-random game with the
// default pacing.
func NewSession() *Session {
	return NewSessionWith(New(), DefaultTimings())
}

// NewSessionWith builds a session around an existing game. Tests and seeded
// games pass their own Game and compressed timings.
func NewSessionWith(g *Game, t Timings) *Session {
	return &Session{g: g, timings: t, highlight: -1}
}

// ID returns the underlying game identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.ID
}

// Start begins a new game, superseding any in-flight playback or pending
// round advance from a previous run of this session.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.stopTimersLocked()
	s.saved = false
	s.highlight = -1
	s.g.Start()
	s.beginPlaybackLocked()
}

// Stop invalidates the session: all pending timers become no-ops.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.stopTimersLocked()
	s.highlight = -1
	s.g.State = StateIdle
}

// Tap forwards a tile tap to the engine and schedules whatever follows:
// the next round after a completed one, or the game-over flash on a miss.
func (s *Session) Tap(tile int) TapResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.g.SubmitTap(tile)
	if !res.Applied {
		return res
	}
	switch res.State {
	case StateRoundComplete:
		s.schedule(s.epoch, s.timings.NextRound, func() {
			s.g.AdvanceRound()
			s.beginPlaybackLocked()
		})
	case StateGameOver:
		s.scheduleGameOverFlashLocked()
	}
	return res
}

// Snapshot is an immutable view of the session for the presentation layer.
type Snapshot struct {
	GameID       string `json:"gameId"`
	State        State  `json:"state"`
	Level        int    `json:"level"`
	Score        int    `json:"score"`
	HighScore    int    `json:"highScore"`
	SequenceLen  int    `json:"sequenceLen"`
	Highlight    int    `json:"highlight"`    // lit tile, -1 when dark
	ExpectedTile int    `json:"expectedTile"` // -1 unless game over
	Saved        bool   `json:"saved"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		GameID:       s.g.ID,
		State:        s.g.State,
		Level:        s.g.Level,
		Score:        s.g.Score,
		HighScore:    s.g.HighScore,
		SequenceLen:  len(s.g.Sequence),
		Highlight:    s.highlight,
		ExpectedTile: s.g.ExpectedTile,
		Saved:        s.saved,
	}
}

// MarkSaved claims the one allowed leaderboard submission for this game.
// Returns false if the game is not over or the score was already saved.
func (s *Session) MarkSaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g.State != StateGameOver || s.saved {
		return false
	}
	s.saved = true
	return true
}

// ClearSaved releases the claim after a failed submission so the player can
// retry.
func (s *Session) ClearSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = false
}

// ----------------------------- internals -----------------------------------
// All helpers below require s.mu to be held.

// beginPlaybackLocked schedules the highlight events for the current
// sequence plus the transition into awaiting_input at plan end.
func (s *Session) beginPlaybackLocked() {
	epoch := s.epoch
	for _, ev := range Plan(s.g.Sequence, s.timings) {
		ev := ev
		s.schedule(epoch, ev.At, func() {
			if ev.On {
				s.highlight = ev.Tile
			} else {
				s.highlight = -1
			}
		})
	}
	s.schedule(epoch, PlanDuration(s.g.Sequence, s.timings), func() {
		s.g.FinishPlayback()
	})
}

// scheduleGameOverFlashLocked blinks the tile the player should have
// tapped. The miss index is clamped to 0 so a miss before any expected
// tile can never index outside the sequence.
func (s *Session) scheduleGameOverFlashLocked() {
	idx := s.g.MissIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.g.Sequence) {
		idx = len(s.g.Sequence) - 1
	}
	if idx < 0 {
		return // no sequence at all; nothing to flash
	}
	epoch := s.epoch
	for _, ev := range GameOverPlan(s.g.Sequence[idx], s.timings) {
		ev := ev
		s.schedule(epoch, ev.At, func() {
			if ev.On {
				s.highlight = ev.Tile
			} else {
				s.highlight = -1
			}
		})
	}
}

// schedule runs fn after d unless the session epoch has moved on by then.
// fn executes with s.mu held.
func (s *Session) schedule(epoch uint64, d time.Duration, fn func()) {
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return
		}
		fn()
	})
	s.timers = append(s.timers, t)
}

// stopTimersLocked stops and drops all pending timers. The epoch guard
// already neutralizes callbacks that are mid-flight.
func (s *Session) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
}
