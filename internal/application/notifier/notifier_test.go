package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/growmaster/internal/domain"
)

// mockRepository implements Repository for testing
type mockRepository struct {
	listRemindableFunc       func(ctx context.Context, now time.Time, lead, dedup time.Duration) ([]domain.ScheduledTask, error)
	listOverdueFunc          func(ctx context.Context, now time.Time, dedup time.Duration) ([]domain.ScheduledTask, error)
	listActiveGardensFunc    func(ctx context.Context) ([]*domain.Garden, error)
	applyStageTransitionFunc func(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) error
	listLowStockFunc         func(ctx context.Context) ([]domain.InventoryItem, error)
	settingsFunc             func(ctx context.Context) (map[string]string, error)
	listHistoryFunc          func(ctx context.Context, limit int) ([]domain.NotificationRecord, error)

	mu      sync.Mutex
	records []domain.NotificationRecord
}

func (m *mockRepository) ListRemindableTasks(ctx context.Context, now time.Time, lead, dedup time.Duration) ([]domain.ScheduledTask, error) {
	if m.listRemindableFunc != nil {
		return m.listRemindableFunc(ctx, now, lead, dedup)
	}
	return nil, nil
}

func (m *mockRepository) ListOverdueTasks(ctx context.Context, now time.Time, dedup time.Duration) ([]domain.ScheduledTask, error) {
	if m.listOverdueFunc != nil {
		return m.listOverdueFunc(ctx, now, dedup)
	}
	return nil, nil
}

func (m *mockRepository) ListActiveGardens(ctx context.Context) ([]*domain.Garden, error) {
	if m.listActiveGardensFunc != nil {
		return m.listActiveGardensFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepository) ApplyStageTransition(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) error {
	if m.applyStageTransitionFunc != nil {
		if err := m.applyStageTransitionFunc(ctx, gardenID, stage, at, record); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *mockRepository) ListLowStockItems(ctx context.Context) ([]domain.InventoryItem, error) {
	if m.listLowStockFunc != nil {
		return m.listLowStockFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepository) NotificationSettings(ctx context.Context) (map[string]string, error) {
	if m.settingsFunc != nil {
		return m.settingsFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepository) CreateNotificationRecord(ctx context.Context, record *domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *mockRepository) ListNotificationHistory(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	if m.listHistoryFunc != nil {
		return m.listHistoryFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockRepository) recorded() []domain.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.NotificationRecord(nil), m.records...)
}

func (m *mockRepository) recordedOfType(kind domain.NotificationType) []domain.NotificationRecord {
	var out []domain.NotificationRecord
	for _, r := range m.recorded() {
		if r.Type == kind {
			out = append(out, r)
		}
	}
	return out
}

// mockTransport records deliveries.
type mockTransport struct {
	showFunc func(ctx context.Context, title, body string, duration time.Duration) error

	mu    sync.Mutex
	shown []string
}

func (m *mockTransport) Show(ctx context.Context, title, body string, duration time.Duration) error {
	if m.showFunc != nil {
		if err := m.showFunc(ctx, title, body, duration); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, title)
	return nil
}

func (m *mockTransport) shownTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.shown...)
}

// neverQuiet returns settings with an empty quiet-hours interval so tests
// asserting on delivery do not depend on the wall-clock hour they run at.
func neverQuiet(ctx context.Context) (map[string]string, error) {
	return map[string]string{
		"notification_quiet_hours_start": "3",
		"notification_quiet_hours_end":   "3",
	}, nil
}

func pendingIn(id string, due time.Time) domain.ScheduledTask {
	return domain.ScheduledTask{
		Task: domain.Task{
			ID:       id,
			GardenID: "g1",
			Title:    "Feed plants",
			Type:     domain.TaskFeeding,
			Priority: domain.PriorityHigh,
			DueDate:  due,
		},
		GardenName: "Tent A",
	}
}

func TestCycleStageTransition(t *testing.T) {
	// A garden planted exactly at the seedling threshold still marked
	// germination must advance and emit one milestone.
	garden := &domain.Garden{
		ID:            "g1",
		Name:          "Tent A",
		GrowingMethod: domain.MethodHydroponic,
		PlantedDate:   time.Now().Add(-domain.SeedlingStartDay * 24 * time.Hour),
		CurrentStage:  domain.StageGermination,
		IsActive:      true,
	}

	var gotStage domain.GrowthStage
	repo := &mockRepository{
		settingsFunc: neverQuiet,
		listActiveGardensFunc: func(ctx context.Context) ([]*domain.Garden, error) {
			return []*domain.Garden{garden}, nil
		},
		applyStageTransitionFunc: func(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) error {
			assert.Equal(t, "g1", gardenID)
			assert.WithinDuration(t, time.Now(), at, time.Minute)
			gotStage = stage
			return nil
		},
	}
	transport := &mockTransport{}
	n := New(repo, transport)

	require.NoError(t, n.RunCycleOnce(context.Background()))

	assert.Equal(t, domain.StageSeedling, gotStage)
	milestones := repo.recordedOfType(domain.NotifyGrowthMilestone)
	require.Len(t, milestones, 1)
	assert.Contains(t, milestones[0].Message, "seedling")
	assert.Contains(t, transport.shownTitles(), "Growth Milestone")
}

func TestCycleStageTransitionSkipsCuring(t *testing.T) {
	garden := &domain.Garden{
		ID:           "g1",
		Name:         "Tent A",
		PlantedDate:  time.Now().Add(-200 * 24 * time.Hour),
		CurrentStage: domain.StageCuring,
		IsActive:     true,
	}
	repo := &mockRepository{
		listActiveGardensFunc: func(ctx context.Context) ([]*domain.Garden, error) {
			return []*domain.Garden{garden}, nil
		},
	}
	n := New(repo, &mockTransport{})

	require.NoError(t, n.RunCycleOnce(context.Background()))
	assert.Empty(t, repo.recordedOfType(domain.NotifyGrowthMilestone))
}

func TestCycleStageTransitionAtomicFailureSuppressesNotification(t *testing.T) {
	garden := &domain.Garden{
		ID:           "g1",
		Name:         "Tent A",
		PlantedDate:  time.Now().Add(-10 * 24 * time.Hour),
		CurrentStage: domain.StageGermination,
		IsActive:     true,
	}
	repo := &mockRepository{
		listActiveGardensFunc: func(ctx context.Context) ([]*domain.Garden, error) {
			return []*domain.Garden{garden}, nil
		},
		applyStageTransitionFunc: func(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) error {
			return errors.New("serialization failure")
		},
	}
	transport := &mockTransport{}
	n := New(repo, transport)

	require.NoError(t, n.RunCycleOnce(context.Background()))
	assert.Empty(t, transport.shownTitles())
}

func TestOverduePriorityEscalation(t *testing.T) {
	tests := []struct {
		late time.Duration
		want domain.Priority
	}{
		{30 * time.Minute, domain.PriorityMedium},
		{2*time.Hour - time.Minute, domain.PriorityMedium},
		{2 * time.Hour, domain.PriorityHigh},
		{11 * time.Hour, domain.PriorityHigh},
		{12 * time.Hour, domain.PriorityCritical},
		{13 * time.Hour, domain.PriorityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.late.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, overduePriority(tt.late))
		})
	}
}

func TestCycleOverdueNotification(t *testing.T) {
	repo := &mockRepository{
		settingsFunc: neverQuiet,
		listOverdueFunc: func(ctx context.Context, now time.Time, dedup time.Duration) ([]domain.ScheduledTask, error) {
			assert.Equal(t, overdueDedupWindow, dedup)
			return []domain.ScheduledTask{pendingIn("t1", now.Add(-13 * time.Hour))}, nil
		},
	}
	transport := &mockTransport{}
	n := New(repo, transport)

	require.NoError(t, n.RunCycleOnce(context.Background()))

	overdue := repo.recordedOfType(domain.NotifyTaskOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, domain.PriorityCritical, overdue[0].Priority)
	require.NotNil(t, overdue[0].TaskID)
	assert.Equal(t, "t1", *overdue[0].TaskID)
	assert.Contains(t, transport.shownTitles(), "Overdue Task")
}

func TestCycleReminderPriorityMapping(t *testing.T) {
	repo := &mockRepository{
		listRemindableFunc: func(ctx context.Context, now time.Time, lead, dedup time.Duration) ([]domain.ScheduledTask, error) {
			assert.Equal(t, 30*time.Minute, lead)
			assert.Equal(t, reminderDedupWindow, dedup)

			high := pendingIn("high", now.Add(20*time.Minute))
			critical := pendingIn("critical", now.Add(25*time.Minute))
			critical.Priority = domain.PriorityCritical
			return []domain.ScheduledTask{high, critical}, nil
		},
	}
	n := New(repo, &mockTransport{})

	require.NoError(t, n.RunCycleOnce(context.Background()))

	reminders := repo.recordedOfType(domain.NotifyTaskReminder)
	require.Len(t, reminders, 2)

	byTask := map[string]domain.Priority{}
	for _, r := range reminders {
		byTask[*r.TaskID] = r.Priority
	}
	assert.Equal(t, domain.PriorityMedium, byTask["high"])
	assert.Equal(t, domain.PriorityLow, byTask["critical"])
}

func TestCycleLowStock(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: "i1", Name: "CalMag", CurrentQuantity: 2, MinimumThreshold: 5},
		{ID: "i2", Name: "pH Down", CurrentQuantity: 0, MinimumThreshold: 5},
	}
	repo := &mockRepository{
		listLowStockFunc: func(ctx context.Context) ([]domain.InventoryItem, error) {
			return items, nil
		},
	}
	transport := &mockTransport{}
	n := New(repo, transport)

	require.NoError(t, n.RunCycleOnce(context.Background()))

	alerts := repo.recordedOfType(domain.NotifyResourceAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.PriorityHigh, alerts[0].Priority)
	assert.Contains(t, alerts[0].Message, "CalMag")
}

func TestCyclePreferenceGating(t *testing.T) {
	var remindersScanned, overdueScanned bool
	repo := &mockRepository{
		settingsFunc: func(ctx context.Context) (map[string]string, error) {
			return map[string]string{
				"notification_task_reminders": "false",
				"notification_overdue_alerts": "true",
			}, nil
		},
		listRemindableFunc: func(ctx context.Context, now time.Time, lead, dedup time.Duration) ([]domain.ScheduledTask, error) {
			remindersScanned = true
			return nil, nil
		},
		listOverdueFunc: func(ctx context.Context, now time.Time, dedup time.Duration) ([]domain.ScheduledTask, error) {
			overdueScanned = true
			return nil, nil
		},
	}
	n := New(repo, &mockTransport{})

	require.NoError(t, n.RunCycleOnce(context.Background()))
	assert.False(t, remindersScanned)
	assert.True(t, overdueScanned)
}

func TestCycleDisabledSkipsEverything(t *testing.T) {
	var scanned bool
	repo := &mockRepository{
		settingsFunc: func(ctx context.Context) (map[string]string, error) {
			return map[string]string{"notification_enabled": "false"}, nil
		},
		listOverdueFunc: func(ctx context.Context, now time.Time, dedup time.Duration) ([]domain.ScheduledTask, error) {
			scanned = true
			return nil, nil
		},
	}
	n := New(repo, &mockTransport{})

	require.NoError(t, n.RunCycleOnce(context.Background()))
	assert.False(t, scanned)
}

func TestDrainCapsDeliveriesPerCycle(t *testing.T) {
	transport := &mockTransport{}
	n := New(&mockRepository{}, transport)

	for i := range 7 {
		rec, err := newRecord(domain.NotifySystemAlert, fmt.Sprintf("n%d", i), "body", domain.PriorityLow, nil, nil)
		require.NoError(t, err)
		n.enqueue(event{record: rec})
	}

	prefs := domain.DefaultNotificationPreferences()
	n.drainQueue(context.Background(), time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), prefs)

	assert.Len(t, transport.shownTitles(), maxDrainPerCycle)
	assert.Equal(t, 2, n.QueueDepth())
}

func TestDrainHoldsDelayedEventsDuringQuietHours(t *testing.T) {
	transport := &mockTransport{}
	n := New(&mockRepository{}, transport)

	delayed, err := newRecord(domain.NotifyTaskReminder, "delayed", "body", domain.PriorityLow, nil, nil)
	require.NoError(t, err)
	immediate, err := newRecord(domain.NotifySystemAlert, "immediate", "body", domain.PriorityLow, nil, nil)
	require.NoError(t, err)
	n.enqueue(event{record: delayed, delayed: true})
	n.enqueue(event{record: immediate})

	prefs := domain.DefaultNotificationPreferences() // quiet 22:00 to 07:00
	quietNow := time.Date(2026, 8, 24, 23, 30, 0, 0, time.UTC)
	n.drainQueue(context.Background(), quietNow, prefs)

	assert.Equal(t, []string{"immediate"}, transport.shownTitles())
	assert.Equal(t, 1, n.QueueDepth())

	// Morning drain releases the held event.
	morning := time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC)
	n.drainQueue(context.Background(), morning, prefs)
	assert.Equal(t, []string{"immediate", "delayed"}, transport.shownTitles())
	assert.Equal(t, 0, n.QueueDepth())
}

func TestTransportFailureFallsBackToLog(t *testing.T) {
	transport := &mockTransport{
		showFunc: func(ctx context.Context, title, body string, duration time.Duration) error {
			return errors.New("dbus unavailable")
		},
	}
	repo := &mockRepository{
		listOverdueFunc: func(ctx context.Context, now time.Time, dedup time.Duration) ([]domain.ScheduledTask, error) {
			return []domain.ScheduledTask{pendingIn("t1", now.Add(-3 * time.Hour))}, nil
		},
	}
	n := New(repo, transport)

	require.NoError(t, n.RunCycleOnce(context.Background()))
	// Delivery degraded but the history record still exists.
	assert.Len(t, repo.recordedOfType(domain.NotifyTaskOverdue), 1)
}

func TestSendManual(t *testing.T) {
	repo := &mockRepository{}
	transport := &mockTransport{
		showFunc: func(ctx context.Context, title, body string, duration time.Duration) error {
			assert.Equal(t, 15*time.Second, duration)
			return nil
		},
	}
	n := New(repo, transport)

	// Force a non-quiet window so delivery is immediate.
	repo.settingsFunc = neverQuiet

	require.NoError(t, n.SendManual(context.Background(), "Pump failure", "Reservoir pump is offline", domain.PriorityHigh))

	records := repo.recordedOfType(domain.NotifySystemAlert)
	require.Len(t, records, 1)
	assert.Equal(t, "Pump failure", records[0].Title)
	assert.Equal(t, []string{"Pump failure"}, transport.shownTitles())
}

func TestDisplayDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, displayDuration(domain.PriorityLow))
	assert.Equal(t, 10*time.Second, displayDuration(domain.PriorityMedium))
	assert.Equal(t, 15*time.Second, displayDuration(domain.PriorityHigh))
	assert.Equal(t, 20*time.Second, displayDuration(domain.PriorityCritical))
}

func TestStartStopsOnContextCancel(t *testing.T) {
	n := New(&mockRepository{}, &mockTransport{}, WithScanInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- n.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestPreferencesFrom(t *testing.T) {
	t.Run("defaults on empty", func(t *testing.T) {
		prefs := preferencesFrom(nil)
		assert.Equal(t, domain.DefaultNotificationPreferences(), prefs)
	})

	t.Run("overrides applied", func(t *testing.T) {
		prefs := preferencesFrom(map[string]string{
			"notification_enabled":               "true",
			"notification_sound_enabled":         "false",
			"notification_reminder_lead_minutes": "45",
			"notification_quiet_hours_start":     "23",
			"notification_quiet_hours_end":       "6",
		})
		assert.True(t, prefs.Enabled)
		assert.False(t, prefs.SoundEnabled)
		assert.Equal(t, 45*time.Minute, prefs.ReminderLead)
		assert.Equal(t, 23, prefs.QuietHoursStart)
		assert.Equal(t, 6, prefs.QuietHoursEnd)
	})

	t.Run("malformed values keep defaults", func(t *testing.T) {
		prefs := preferencesFrom(map[string]string{
			"notification_reminder_lead_minutes": "soon",
			"notification_quiet_hours_start":     "25",
			"notification_enabled":               "maybe",
		})
		assert.Equal(t, domain.DefaultNotificationPreferences(), prefs)
	})
}

func TestQuietHoursBoundaries(t *testing.T) {
	prefs := domain.DefaultNotificationPreferences() // 22 to 7

	day := func(hour, minute int) time.Time {
		return time.Date(2026, 8, 24, hour, minute, 0, 0, time.UTC)
	}
	assert.True(t, prefs.QuietAt(day(22, 0)))
	assert.True(t, prefs.QuietAt(day(6, 59)))
	assert.False(t, prefs.QuietAt(day(7, 0)))
	assert.False(t, prefs.QuietAt(day(21, 59)))
}
