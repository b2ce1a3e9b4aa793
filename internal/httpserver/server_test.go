package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	mrand "math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougmcm/simon-server/internal/game"
	"github.com/dougmcm/simon-server/internal/store"
	"github.com/dougmcm/simon-server/migrations"
)

// newTestServer spins up the full router over an isolated in-memory
// database. fast compresses playback pacing so tests do not sleep through
// real highlight durations. The returned client carries a cookie jar so the
// anonymous identity is stable across requests.
func newTestServer(t *testing.T, fast bool) (*httptest.Server, *http.Client) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Apply(db))

	srv := New(store.NewMemoryStore(), db)
	if fast {
		srv.SetTimings(game.Timings{
			InitialDelay: time.Millisecond,
			Highlight:    2 * time.Millisecond,
			Gap:          time.Millisecond,
			NextRound:    25 * time.Millisecond,
		})
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}
}

// doJSON issues a request with a JSON body and decodes the JSON response.
func doJSON(t *testing.T, c *http.Client, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

// num extracts an int from a decoded JSON number.
func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

// waitForState polls /game/state until the session reaches want.
func waitForState(t *testing.T, c *http.Client, base, gameID, want string) map[string]any {
	t.Helper()
	var snap map[string]any
	require.Eventually(t, func() bool {
		status, out := doJSON(t, c, http.MethodGet, base+"/game/state?gameId="+gameID, nil)
		if status != http.StatusOK {
			return false
		}
		snap = out
		return out["state"] == want
	}, 2*time.Second, time.Millisecond, "waiting for state %s", want)
	return snap
}

func TestHealth(t *testing.T) {
	ts, c := newTestServer(t, false)
	status, out := doJSON(t, c, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["ok"])
}

func TestUnknownGame(t *testing.T) {
	ts, c := newTestServer(t, false)

	status, _ := doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": "nope", "tile": 1})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, c, http.MethodGet, ts.URL+"/game/state?gameId=nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTapDuringPlaybackIsIgnored(t *testing.T) {
	// Default pacing: the first highlight is still half a second away, so
	// the tap below lands in the displaying phase and must change nothing.
	ts, c := newTestServer(t, false)

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/game/new", nil)
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)

	status, snap := doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": gameID, "tile": 0})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(game.StateDisplaying), snap["state"])
	assert.Equal(t, 0, num(snap["score"]))
	assert.Equal(t, 1, num(snap["level"]))
}

func TestFullGameAndLeaderboardFlow(t *testing.T) {
	ts, c := newTestServer(t, true)

	// Mirror the server's seeded tile source: one draw at start, one per
	// round advance.
	const seed = 42
	rng := mrand.New(mrand.NewSource(seed))
	var seq []int
	draw := func() { seq = append(seq, rng.Intn(game.GridTiles)) }

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/game/new", map[string]any{"seed": seed})
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)
	draw()

	// Three correct rounds: 10 + 20 + 30 = 60, above the save threshold.
	for round := 1; round <= 3; round++ {
		snap := waitForState(t, c, ts.URL, gameID, string(game.StateAwaitingInput))
		require.Equal(t, round, num(snap["sequenceLen"]))
		for _, tile := range seq {
			status, snap = doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": gameID, "tile": tile})
			require.Equal(t, http.StatusOK, status)
		}
		require.Equal(t, string(game.StateRoundComplete), snap["state"])
		draw()
	}

	// Miss on purpose in round four.
	snap := waitForState(t, c, ts.URL, gameID, string(game.StateAwaitingInput))
	require.Equal(t, 4, num(snap["sequenceLen"]))
	wrong := (seq[0] + 1) % game.GridTiles
	status, snap = doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": gameID, "tile": wrong})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, string(game.StateGameOver), snap["state"])
	assert.Equal(t, 60, num(snap["score"]))
	assert.Equal(t, seq[0], num(snap["expectedTile"]))

	// Submit and read the board back.
	status, out = doJSON(t, c, http.MethodPost, ts.URL+"/scores", map[string]any{"gameId": gameID, "name": "Alice"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["saved"])
	assert.Equal(t, 60, num(out["score"]))

	// A second submission for the same game is rejected.
	status, _ = doJSON(t, c, http.MethodPost, ts.URL+"/scores", map[string]any{"gameId": gameID, "name": "Alice"})
	assert.Equal(t, http.StatusConflict, status)

	status, out = doJSON(t, c, http.MethodGet, ts.URL+"/scores/top", nil)
	require.Equal(t, http.StatusOK, status)
	top, ok := out["top"].([]any)
	require.True(t, ok)
	require.Len(t, top, 1)
	first := top[0].(map[string]any)
	assert.Equal(t, "Alice", first["name"])
	assert.Equal(t, 60, num(first["score"]))
	assert.Equal(t, 60, num(out["best"]), "same anon identity sees its personal best")
}

func TestSubmitBelowThresholdRejected(t *testing.T) {
	ts, c := newTestServer(t, true)

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/game/new", map[string]any{"seed": 7})
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)

	// Fail immediately: score stays 0.
	waitForState(t, c, ts.URL, gameID, string(game.StateAwaitingInput))
	rng := mrand.New(mrand.NewSource(7))
	wrong := (rng.Intn(game.GridTiles) + 1) % game.GridTiles
	status, snap := doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": gameID, "tile": wrong})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, string(game.StateGameOver), snap["state"])

	status, _ = doJSON(t, c, http.MethodPost, ts.URL+"/scores", map[string]any{"gameId": gameID, "name": "Bob"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestSubmitRequiresGameOver(t *testing.T) {
	ts, c := newTestServer(t, false)

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/game/new", nil)
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)

	status, _ = doJSON(t, c, http.MethodPost, ts.URL+"/scores", map[string]any{"gameId": gameID, "name": "Eve"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestTopScoresEmptyBoard(t *testing.T) {
	ts, c := newTestServer(t, false)

	status, out := doJSON(t, c, http.MethodGet, ts.URL+"/scores/top", nil)
	require.Equal(t, http.StatusOK, status)
	top, ok := out["top"].([]any)
	require.True(t, ok)
	assert.Empty(t, top)
	assert.Equal(t, 0, num(out["best"]))
}

func TestStopInvalidatesSession(t *testing.T) {
	ts, c := newTestServer(t, true)

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/game/new", nil)
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)

	status, _ = doJSON(t, c, http.MethodPost, ts.URL+"/game/stop", map[string]any{"gameId": gameID})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, c, http.MethodGet, ts.URL+"/game/state?gameId="+gameID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSignupStatsAndHistory(t *testing.T) {
	ts, c := newTestServer(t, true)

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/auth/signup",
		map[string]any{"username": "alice_1", "password": "supersecret"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice_1", out["username"])

	status, out = doJSON(t, c, http.MethodGet, ts.URL+"/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice_1", out["username"])

	// Play one quick game to game over under this account.
	status, out = doJSON(t, c, http.MethodPost, ts.URL+"/game/new", map[string]any{"seed": 7})
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)
	waitForState(t, c, ts.URL, gameID, string(game.StateAwaitingInput))
	rng := mrand.New(mrand.NewSource(7))
	wrong := (rng.Intn(game.GridTiles) + 1) % game.GridTiles
	status, snap := doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": gameID, "tile": wrong})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, string(game.StateGameOver), snap["state"])

	status, out = doJSON(t, c, http.MethodGet, ts.URL+"/stats/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, num(out["gamesPlayed"]))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/games/mine", nil)
	require.NoError(t, err)
	res, err := c.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var rows []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, gameID, rows[0]["id"])
	assert.Equal(t, "game_over", rows[0]["status"])
}

func TestSignupValidation(t *testing.T) {
	ts, c := newTestServer(t, false)

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"short username", "ab", "supersecret", http.StatusBadRequest},
		{"bad characters", "al ice", "supersecret", http.StatusBadRequest},
		{"short password", "alice_1", "short", http.StatusBadRequest},
		{"ok", "alice_1", "supersecret", http.StatusOK},
		{"taken", "alice_1", "supersecret", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := doJSON(t, c, http.MethodPost, ts.URL+"/auth/signup",
				map[string]any{"username": tt.username, "password": tt.password})
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestLoggedInSubmissionUsesUsername(t *testing.T) {
	ts, c := newTestServer(t, true)

	status, _ := doJSON(t, c, http.MethodPost, ts.URL+"/auth/signup",
		map[string]any{"username": "carol_9", "password": "supersecret"})
	require.Equal(t, http.StatusOK, status)

	// Earn 60 points, then miss.
	const seed = 42
	rng := mrand.New(mrand.NewSource(seed))
	var seq []int
	draw := func() { seq = append(seq, rng.Intn(game.GridTiles)) }

	status, out := doJSON(t, c, http.MethodPost, ts.URL+"/game/new", map[string]any{"seed": seed})
	require.Equal(t, http.StatusOK, status)
	gameID := out["gameId"].(string)
	draw()
	for round := 1; round <= 3; round++ {
		waitForState(t, c, ts.URL, gameID, string(game.StateAwaitingInput))
		for _, tile := range seq {
			status, _ = doJSON(t, c, http.MethodPost, ts.URL+"/game/tap", map[string]any{"gameId": gameID, "tile": tile})
			require.Equal(t, http.StatusOK, status)
		}
		draw()
	}
	waitForState(t, c, ts.URL, gameID, string(game.StateAwaitingInput))
	status, snap := doJSON(t, c, http.MethodPost, ts.URL+"/game/tap",
		map[string]any{"gameId": gameID, "tile": (seq[0] + 1) % game.GridTiles})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, string(game.StateGameOver), snap["state"])

	// The provided name is ignored for logged-in players.
	status, out = doJSON(t, c, http.MethodPost, ts.URL+"/scores",
		map[string]any{"gameId": gameID, "name": "SomeoneElse"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "carol_9", out["name"])
}

func TestRootListsEndpoints(t *testing.T) {
	ts, c := newTestServer(t, false)
	status, out := doJSON(t, c, http.MethodGet, ts.URL+"/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "simon-go", out["service"])
}
