// Package session persists quiz progress between requests. The bot keys
// sessions by chat, the HTTP API by a generated session id.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
)

// ErrNotFound is returned by Load for unknown or expired keys.
var ErrNotFound = errors.New("session: not found")

// Record is the stored form of one quiz session.
type Record struct {
	QuizID string     `json:"quiz_id"`
	State  quiz.State `json:"state"`
	// UserID is the Telegram user that owns the session; 0 means anonymous.
	UserID    int64     `json:"user_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.State.History = append([]string{}, r.State.History...)
	out.State.Tags = append([]string{}, r.State.Tags...)
	return out
}

// Store persists records. Implementations must be safe for concurrent use
// and must not share slices with callers.
type Store interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, rec Record) error
	Delete(ctx context.Context, key string) error
}
