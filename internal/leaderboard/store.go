// internal/leaderboard/store.go
//
// SQL-backed leaderboard gateway.
// Responsibilities:
//   - Record submitted scores (append-only scores table).
//   - Maintain per-identity personal bests, replaced only when strictly
//     greater than the stored value (or when no record exists).
//   - Serve the ranked top-N, score descending with a stable tie-break.
//
// The store does not re-validate the save threshold; that is boundary
// policy enforced by the HTTP layer.

package leaderboard

import (
	"context"
	"database/sql"
	"time"
)

// Entry is one ranked leaderboard row.
type Entry struct {
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// DefaultLimit is the top-N size served when the caller does not specify one.
const DefaultLimit = 10

// Store wraps a *sql.DB with leaderboard queries.
type Store struct{ db *sql.DB }

// NewStore constructs a Store over an opened database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Submit records a score for ownerID under the given display name and
// updates the owner's personal best if the new score is strictly greater.
func (s *Store) Submit(ctx context.Context, ownerID, name string, score int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (owner_id, name, score, created_at) VALUES (?,?,?,?)`,
		ownerID, name, score, now,
	); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO personal_bests (owner_id, name, score, updated_at)
        VALUES (?,?,?,?)
        ON CONFLICT(owner_id) DO UPDATE SET
            name = excluded.name,
            score = excluded.score,
            updated_at = excluded.updated_at
        WHERE excluded.score > personal_bests.score`,
		ownerID, name, score, now,
	)
	return err
}

// Top returns at most limit entries ordered by score descending; ties break
// by submission time ascending (oldest first) so ordering is stable.
// A non-positive limit falls back to DefaultLimit.
func (s *Store) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT name, score, created_at
        FROM scores
        ORDER BY score DESC, created_at ASC, id ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.Name, &e.Score, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Best returns the owner's personal best, or 0 when none is recorded.
func (s *Store) Best(ctx context.Context, ownerID string) (int, error) {
	var best int
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM personal_bests WHERE owner_id=?`, ownerID,
	).Scan(&best)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return best, err
}
