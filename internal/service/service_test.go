package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quitpal/notifier/internal/domain"
	"github.com/quitpal/notifier/internal/store"
)

type memRepo struct {
	installID        string
	settings         map[string]domain.Settings
	records          map[string]domain.Notification
	saveScheduledErr error
	clearErr         error
}

func newMemRepo() *memRepo {
	return &memRepo{
		settings: make(map[string]domain.Settings),
		records:  make(map[string]domain.Notification),
	}
}

func (m *memRepo) GetInstallID(context.Context) (string, error) {
	if m.installID == "" {
		return "", store.ErrNotFound
	}
	return m.installID, nil
}

func (m *memRepo) SetInstallID(_ context.Context, id string) error {
	if m.installID == "" {
		m.installID = id
	}
	return nil
}

func (m *memRepo) SaveSettings(_ context.Context, s domain.Settings) error {
	m.settings[s.UserID] = s
	return nil
}

func (m *memRepo) GetSettings(_ context.Context, userID string) (domain.Settings, error) {
	s, ok := m.settings[userID]
	if !ok {
		return domain.Settings{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) SaveScheduled(_ context.Context, n domain.Notification) error {
	if m.saveScheduledErr != nil {
		return m.saveScheduledErr
	}
	m.records[n.ID] = n
	return nil
}

func (m *memRepo) ClearScheduled(_ context.Context, userID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	for id, n := range m.records {
		if n.UserID == userID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memRepo) ListDue(context.Context, time.Time, int) ([]domain.Notification, error) {
	return nil, nil
}

func (m *memRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	n := m.records[id]
	n.Sent = true
	n.SentAt = &at
	m.records[id] = n
	return nil
}

func (m *memRepo) Stats(_ context.Context, userID string) (domain.Stats, error) {
	var st domain.Stats
	for _, n := range m.records {
		if n.UserID != userID {
			continue
		}
		st.Total++
		if n.Sent {
			st.Sent++
		}
	}
	st.Pending = st.Total - st.Sent
	return st, nil
}

func (m *memRepo) Close() error { return nil }

type stubDispatcher struct {
	sent      []string
	scheduled []string
	props     map[string]string
	schedErr  error
}

func (d *stubDispatcher) SendNow(_ context.Context, _, message string, _ map[string]string) error {
	d.sent = append(d.sent, message)
	return nil
}

func (d *stubDispatcher) ScheduleAt(_ context.Context, userID, _ string, data map[string]string, _ time.Time) error {
	if d.schedErr != nil {
		return d.schedErr
	}
	d.scheduled = append(d.scheduled, domain.NotificationID(userID, data["template_id"]))
	return nil
}

func (d *stubDispatcher) SetUserProperties(_ context.Context, _ string, props map[string]string) {
	d.props = props
}

func (d *stubDispatcher) Available() bool { return true }

func newTestNotifier(t *testing.T, repo store.Repo, disp Dispatcher) *Notifier {
	t.Helper()
	cat, err := domain.LoadCatalog()
	require.NoError(t, err)
	n := New(repo, cat, disp, zap.NewNop(), "en", "UTC")
	n.now = func() time.Time {
		return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	}
	return n
}

func enabledSettings(userID string, start time.Time) domain.Settings {
	return domain.Settings{
		UserID:      userID,
		Language:    "en",
		BuddyName:   "Smokey",
		StartDate:   start,
		MorningTime: "08:00",
		EveningTime: "21:00",
		Timezone:    "UTC",
		Enabled:     true,
	}
}

func TestInitialize_FirstLaunch(t *testing.T) {
	repo := newMemRepo()
	svc := newTestNotifier(t, repo, &stubDispatcher{})
	ctx := context.Background()

	s, err := svc.Initialize(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(s.UserID)
	require.NoError(t, err, "install id must be a uuid")
	assert.True(t, s.Enabled)
	assert.Equal(t, "en", s.Language)

	// Second launch reuses the same identity and settings.
	again, err := svc.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, again.UserID)
}

func TestSchedule_RegenerationClearsStale(t *testing.T) {
	repo := newMemRepo()
	disp := &stubDispatcher{}
	svc := newTestNotifier(t, repo, disp)
	ctx := context.Background()

	// A leftover record from a previous, different generation.
	repo.records["u1_stale"] = domain.Notification{ID: "u1_stale", UserID: "u1"}

	s := enabledSettings("u1", time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, svc.ScheduleUserNotifications(ctx, s))

	_, stale := repo.records["u1_stale"]
	assert.False(t, stale, "stale record must be cleared")
	assert.NotEmpty(t, repo.records)
	for id := range repo.records {
		assert.True(t, strings.HasPrefix(id, "u1_"), "unexpected record %s", id)
	}
	// Every persisted record also got a provider-side backup schedule.
	assert.Len(t, disp.scheduled, len(repo.records))
	assert.Equal(t, "UTC", disp.props["timezone"])
}

func TestSchedule_DisabledClearsAndStops(t *testing.T) {
	repo := newMemRepo()
	disp := &stubDispatcher{}
	svc := newTestNotifier(t, repo, disp)
	ctx := context.Background()

	repo.records["u1_old"] = domain.Notification{ID: "u1_old", UserID: "u1"}

	s := enabledSettings("u1", time.Now().UTC())
	s.Enabled = false
	require.NoError(t, svc.ScheduleUserNotifications(ctx, s))

	assert.Empty(t, repo.records)
	assert.Empty(t, disp.scheduled)
}

func TestSchedule_InvalidSettings(t *testing.T) {
	repo := newMemRepo()
	svc := newTestNotifier(t, repo, &stubDispatcher{})

	s := enabledSettings("u1", time.Now().UTC())
	s.Timezone = "Nowhere/Land"
	err := svc.ScheduleUserNotifications(context.Background(), s)
	require.Error(t, err)
	assert.Empty(t, repo.settings, "invalid settings must not be persisted")
}

func TestSchedule_StoreErrorPropagates(t *testing.T) {
	repo := newMemRepo()
	repo.saveScheduledErr = errors.New("disk full")
	svc := newTestNotifier(t, repo, &stubDispatcher{})

	s := enabledSettings("u1", time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	err := svc.ScheduleUserNotifications(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSchedule_ProviderFailureIsNonFatal(t *testing.T) {
	repo := newMemRepo()
	disp := &stubDispatcher{schedErr: errors.New("provider down")}
	svc := newTestNotifier(t, repo, disp)

	s := enabledSettings("u1", time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, svc.ScheduleUserNotifications(context.Background(), s))
	assert.NotEmpty(t, repo.records, "store path must proceed despite provider failure")
}

func TestSendTestNotification(t *testing.T) {
	repo := newMemRepo()
	disp := &stubDispatcher{}
	svc := newTestNotifier(t, repo, disp)
	ctx := context.Background()

	s := enabledSettings("u1", time.Now().UTC())
	s.Language = "ru"
	s.BuddyID = "llama"
	repo.settings["u1"] = s

	require.NoError(t, svc.SendTestNotification(ctx, "u1"))
	require.Len(t, disp.sent, 1)
	assert.Contains(t, disp.sent[0], "Лама Лу")
	assert.NotContains(t, disp.sent[0], "{{buddy_name}}")
}

func TestOnStartDateChanged(t *testing.T) {
	repo := newMemRepo()
	svc := newTestNotifier(t, repo, &stubDispatcher{})
	ctx := context.Background()

	s := enabledSettings("u1", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	repo.settings["u1"] = s

	relapse := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.OnStartDateChanged(ctx, "u1", relapse))

	got, err := repo.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, relapse, got.StartDate)
	assert.NotEmpty(t, repo.records, "schedule regenerated from new anchor")

	require.ErrorIs(t, svc.OnStartDateChanged(ctx, "ghost", relapse), store.ErrNotFound)
}

func TestNotificationsEnabled(t *testing.T) {
	repo := newMemRepo()
	svc := newTestNotifier(t, repo, &stubDispatcher{})
	ctx := context.Background()

	_, err := svc.NotificationsEnabled(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	s := enabledSettings("u1", time.Now().UTC())
	repo.settings["u1"] = s
	enabled, err := svc.NotificationsEnabled(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, enabled)
}
