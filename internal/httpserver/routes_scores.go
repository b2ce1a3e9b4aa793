// internal/httpserver/routes_scores.go
//
// HTTP routes for the leaderboard boundary.
// Exposes two endpoints under /scores:
//   - POST /scores     → submit a finished game's score
//   - GET  /scores/top → fetch the top-10 plus the caller's personal best
//
// The save threshold (score > 50) is enforced here, not in the engine or the
// store — the boundary owns that policy. Each finished game can be submitted
// once; the session carries the saved flag so a double post is rejected.
// Store failures degrade gracefully: the top list comes back empty and a
// failed submission releases the saved claim so the player can retry.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dougmcm/simon-server/internal/game"
	"github.com/dougmcm/simon-server/internal/leaderboard"
)

// scoresServer wraps dependencies for /scores endpoints.
type scoresServer struct {
	srv       *Server
	boards    *leaderboard.Store
	threshold int
}

// mountScores registers all /scores routes.
func (s *Server) mountScores(r chi.Router) {
	sc := &scoresServer{
		srv:       s,
		boards:    s.boards,
		threshold: game.SaveThreshold,
	}
	r.Route("/scores", func(r chi.Router) {
		r.Post("/", sc.handleSubmit)
		r.Get("/top", sc.handleTop)
	})
}

// ownerWithAnon returns the authenticated user if logged in, otherwise the
// anonymous cookie identity. The second value is the display name to use
// when the caller did not provide one.
func (sc *scoresServer) ownerWithAnon(w http.ResponseWriter, r *http.Request) (ownerID, name string) {
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		return me.ID, me.Username
	}
	return sc.srv.ensureAnonID(w, r), ""
}

// -----------------------------------------------------------------------------
// POST /scores

// submitReq is the payload for POST /scores.
type submitReq struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

// submitRes is returned by POST /scores.
type submitRes struct {
	Saved bool   `json:"saved"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// handleSubmit validates and records a leaderboard submission.
// - The game must exist, be over, and not already saved.
// - The score must exceed the save threshold.
// - Logged-in users submit under their username; guests under the given
//   name (trimmed, defaulting to "player").
func (sc *scoresServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var p submitReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	sess, err := sc.srv.store.Get(r.Context(), p.GameID)
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	snap := sess.Snapshot()
	if snap.State != game.StateGameOver {
		http.Error(w, `{"error":"game_not_over"}`, http.StatusConflict)
		return
	}
	if snap.Score <= sc.threshold {
		http.Error(w, `{"error":"below_threshold"}`, http.StatusUnprocessableEntity)
		return
	}

	ownerID, name := sc.ownerWithAnon(w, r)
	if name == "" {
		name = strings.TrimSpace(p.Name)
	}
	if name == "" {
		name = "player"
	}
	if len(name) > 24 {
		name = name[:24]
	}

	// Claim the single allowed submission before touching the store.
	if !sess.MarkSaved() {
		http.Error(w, `{"error":"already_saved"}`, http.StatusConflict)
		return
	}
	if err := sc.boards.Submit(r.Context(), ownerID, name, snap.Score); err != nil {
		sess.ClearSaved()
		log.Error().Err(err).Str("gameId", p.GameID).Msg("submit score")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(submitRes{Saved: true, Name: name, Score: snap.Score})
}

// -----------------------------------------------------------------------------
// GET /scores/top

// topRes is returned by GET /scores/top.
type topRes struct {
	Top  []leaderboard.Entry `json:"top"`
	Best int                 `json:"best"` // caller's personal best, 0 when none
}

// handleTop returns at most 10 entries, score descending. On store failure
// the list comes back empty rather than erroring — the renderer shows
// "no data" and the game is unaffected.
func (sc *scoresServer) handleTop(w http.ResponseWriter, r *http.Request) {
	limit := leaderboard.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	rows, err := sc.boards.Top(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("fetch top scores")
		rows = []leaderboard.Entry{}
	}

	ownerID, _ := sc.ownerWithAnon(w, r)
	best, err := sc.boards.Best(r.Context(), ownerID)
	if err != nil {
		log.Warn().Err(err).Msg("fetch personal best")
		best = 0
	}
	_ = json.NewEncoder(w).Encode(topRes{Top: rows, Best: best})
}
