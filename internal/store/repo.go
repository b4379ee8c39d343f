package store

import (
	"context"
	"errors"
	"time"

	"github.com/quitpal/notifier/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for settings and the notification schedule.
type Repo interface {
	// Install identity: a stable per-install user id, written once.
	GetInstallID(ctx context.Context) (string, error)
	SetInstallID(ctx context.Context, userID string) error

	SaveSettings(ctx context.Context, s domain.Settings) error
	GetSettings(ctx context.Context, userID string) (domain.Settings, error)

	// SaveScheduled upserts by notification id.
	SaveScheduled(ctx context.Context, n domain.Notification) error
	// ClearScheduled removes every record for the user. Must complete before
	// a regenerated schedule is written.
	ClearScheduled(ctx context.Context, userID string) error
	// ListDue returns unsent records with scheduled_at <= now, ascending,
	// capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	// MarkSent is monotonic: sent stays sent.
	MarkSent(ctx context.Context, id string, at time.Time) error

	Stats(ctx context.Context, userID string) (domain.Stats, error)

	Close() error
}
