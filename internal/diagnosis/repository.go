// Package diagnosis stores every result a user reached in PostgreSQL.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Channel names the surface a diagnosis was reached through.
const (
	ChannelBot    = "bot"
	ChannelWebApp = "webapp"
)

// Entry is one reached result.
type Entry struct {
	ID       int64
	QuizID   string
	ResultID string
	UserID   int64
	Channel  string
	// Tags is the full tag log of the session at arrival.
	Tags []string
	// Path is the history plus the result id, in visit order.
	Path      []string
	CreatedAt time.Time
}

// ResultCount is one row of CountByResult.
type ResultCount struct {
	ResultID string `db:"result_id"`
	Count    int64  `db:"count"`
}

// Repository reads and writes the diagnoses table.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const insertSQL = `INSERT INTO diagnoses (quiz_id, result_id, user_id, channel, tags, path, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

// Record inserts e and returns its id. A zero CreatedAt is set to now.
func (r *Repository) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	tags, path := e.Tags, e.Path
	if tags == nil {
		tags = []string{}
	}
	if path == nil {
		path = []string{}
	}
	var id int64
	err := r.db.QueryRowxContext(ctx, insertSQL,
		e.QuizID, e.ResultID, e.UserID, e.Channel, pq.Array(tags), pq.Array(path), e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("diagnosis: insert: %w", err)
	}
	return id, nil
}

const countSQL = `SELECT result_id, COUNT(*) AS count
FROM diagnoses
WHERE quiz_id = $1
GROUP BY result_id
ORDER BY count DESC, result_id`

// CountByResult returns how often each result of quizID was reached, most
// frequent first.
func (r *Repository) CountByResult(ctx context.Context, quizID string) ([]ResultCount, error) {
	var out []ResultCount
	if err := r.db.SelectContext(ctx, &out, countSQL, quizID); err != nil {
		return nil, fmt.Errorf("diagnosis: count: %w", err)
	}
	return out, nil
}

type entryRow struct {
	ID        int64          `db:"id"`
	QuizID    string         `db:"quiz_id"`
	ResultID  string         `db:"result_id"`
	UserID    int64          `db:"user_id"`
	Channel   string         `db:"channel"`
	Tags      pq.StringArray `db:"tags"`
	Path      pq.StringArray `db:"path"`
	CreatedAt time.Time      `db:"created_at"`
}

const recentSQL = `SELECT id, quiz_id, result_id, user_id, channel, tags, path, created_at
FROM diagnoses
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

// RecentByUser returns the latest diagnoses of userID, newest first.
func (r *Repository) RecentByUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, recentSQL, userID, limit); err != nil {
		return nil, fmt.Errorf("diagnosis: recent: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{
			ID:        row.ID,
			QuizID:    row.QuizID,
			ResultID:  row.ResultID,
			UserID:    row.UserID,
			Channel:   row.Channel,
			Tags:      []string(row.Tags),
			Path:      []string(row.Path),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}
