// Package service is the programmatic surface the host application drives:
// init on launch, regeneration on preference changes, stats for the UI.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quitpal/notifier/internal/domain"
	"github.com/quitpal/notifier/internal/store"
)

// Dispatcher is what the facade needs from the push provider client.
type Dispatcher interface {
	SendNow(ctx context.Context, userID, message string, data map[string]string) error
	ScheduleAt(ctx context.Context, userID, message string, data map[string]string, at time.Time) error
	SetUserProperties(ctx context.Context, userID string, props map[string]string)
	Available() bool
}

// Notifier wires the catalog, store and dispatcher into the operations the
// host application calls.
type Notifier struct {
	repo        store.Repo
	cat         *domain.Catalog
	push        Dispatcher
	log         *zap.Logger
	defaultLang string
	defaultTZ   string

	now func() time.Time
}

// New creates the facade. Defaults apply to first-launch settings.
func New(repo store.Repo, cat *domain.Catalog, push Dispatcher, log *zap.Logger, defaultLang, defaultTZ string) *Notifier {
	return &Notifier{
		repo:        repo,
		cat:         cat,
		push:        push,
		log:         log,
		defaultLang: defaultLang,
		defaultTZ:   defaultTZ,
		now:         time.Now,
	}
}

// Initialize ensures a stable install user id and settings row exist,
// creating defaults on first launch, and returns the current settings.
func (n *Notifier) Initialize(ctx context.Context) (domain.Settings, error) {
	id, err := n.repo.GetInstallID(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		id = uuid.NewString()
		if err := n.repo.SetInstallID(ctx, id); err != nil {
			return domain.Settings{}, fmt.Errorf("persist install id: %w", err)
		}
		n.log.Info("new install", zap.String("user_id", id))
	case err != nil:
		return domain.Settings{}, fmt.Errorf("load install id: %w", err)
	}

	s, err := n.repo.GetSettings(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s = domain.DefaultSettings(id, n.defaultLang, n.defaultTZ, n.now())
		if err := n.repo.SaveSettings(ctx, s); err != nil {
			return domain.Settings{}, fmt.Errorf("save default settings: %w", err)
		}
	case err != nil:
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// ScheduleUserNotifications persists settings and regenerates the user's
// schedule from scratch. Store failures propagate to the caller; provider
// failures never do.
func (n *Notifier) ScheduleUserNotifications(ctx context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	now := n.now().UTC()
	s.UpdatedAt = now

	if err := n.repo.SaveSettings(ctx, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	// The old schedule must be fully gone before new records land, or stale
	// records from a previous generation could deliver alongside new ones.
	if err := n.repo.ClearScheduled(ctx, s.UserID); err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}
	if !s.Enabled {
		n.log.Info("notifications disabled, schedule cleared", zap.String("user_id", s.UserID))
		return nil
	}

	if !n.push.Available() {
		n.log.Debug("push provider unavailable, store-side scheduling only")
	}

	batch := domain.BuildSchedule(n.cat, s, now)
	for _, rec := range batch {
		if err := n.repo.SaveScheduled(ctx, rec); err != nil {
			return fmt.Errorf("save scheduled %s: %w", rec.ID, err)
		}
		// Provider-side scheduling is a redundant delivery path that works
		// while the process is down. Best effort only.
		data := map[string]string{"template_id": rec.TemplateID, "category": string(rec.Category)}
		if err := n.push.ScheduleAt(ctx, rec.UserID, rec.Message, data, rec.ScheduledAt); err != nil {
			n.log.Warn("provider-side scheduling failed",
				zap.Error(err), zap.String("id", rec.ID))
		}
	}

	n.push.SetUserProperties(ctx, s.UserID, map[string]string{
		"language":   s.Language,
		"timezone":   s.Timezone,
		"buddy_id":   s.BuddyID,
		"buddy_name": n.buddyName(s),
	})

	n.log.Info("schedule generated",
		zap.String("user_id", s.UserID),
		zap.Int("count", len(batch)),
	)
	return nil
}

// OnStartDateChanged resets the quit anchor (e.g. after a relapse) and
// regenerates the schedule.
func (n *Notifier) OnStartDateChanged(ctx context.Context, userID string, start time.Time) error {
	s, err := n.repo.GetSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.StartDate = start.UTC()
	return n.ScheduleUserNotifications(ctx, s)
}

// OnPreferencesChanged regenerates the schedule under new preferences.
func (n *Notifier) OnPreferencesChanged(ctx context.Context, s domain.Settings) error {
	return n.ScheduleUserNotifications(ctx, s)
}

// GetUserStats summarizes the user's schedule.
func (n *Notifier) GetUserStats(ctx context.Context, userID string) (domain.Stats, error) {
	return n.repo.Stats(ctx, userID)
}

// SendTestNotification delivers the welcome message immediately so the user
// can verify their device setup.
func (n *Notifier) SendTestNotification(ctx context.Context, userID string) error {
	s, err := n.repo.GetSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	tpl, ok := n.cat.Special(domain.WelcomeTemplateID)
	if !ok {
		return errors.New("welcome template missing from catalog")
	}
	msg := domain.Render(tpl, s.Language, n.buddyName(s), s.Gender)
	return n.push.SendNow(ctx, userID, msg, map[string]string{"test": "true"})
}

// NotificationsEnabled reports the user's master switch.
func (n *Notifier) NotificationsEnabled(ctx context.Context, userID string) (bool, error) {
	s, err := n.repo.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.Enabled, nil
}

func (n *Notifier) buddyName(s domain.Settings) string {
	if name, ok := n.cat.BuddyName(s.BuddyID, s.Language); ok {
		return name
	}
	return s.BuddyName
}
