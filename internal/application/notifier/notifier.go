// Package notifier runs the background notification worker: a single
// goroutine that scans for due reminders, overdue tasks, growth-stage
// milestones, and low inventory on a fixed cadence, queues the resulting
// events, and delivers them through a pluggable transport.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/growmaster/internal/domain"
	"github.com/rezkam/growmaster/internal/retry"
)

const (
	// reminderDedupWindow suppresses repeat reminders for the same task.
	reminderDedupWindow = 24 * time.Hour
	// overdueDedupWindow suppresses repeat overdue alerts for the same task.
	overdueDedupWindow = 4 * time.Hour
	// maxDrainPerCycle bounds deliveries per cycle so one noisy scan cannot
	// flood the desktop.
	maxDrainPerCycle = 5
)

// event is one queued delivery. Its history record is already persisted;
// only the user-visible display is pending.
type event struct {
	record domain.NotificationRecord
	// delayed marks events enqueued during quiet hours. They wait in the
	// queue until quiet hours end.
	delayed bool
}

// Notifier is the background notification worker. Exactly one instance
// must run per process so the de-duplication windows stay accurate.
type Notifier struct {
	repo         Repository
	transport    Transport
	scanInterval time.Duration
	cycleTimeout time.Duration

	mu    sync.Mutex
	queue []event
}

// Option is a functional option for configuring Notifier.
type Option func(*Notifier)

// WithScanInterval sets how often the worker runs a scan cycle.
func WithScanInterval(d time.Duration) Option {
	return func(n *Notifier) {
		n.scanInterval = d
	}
}

// WithCycleTimeout bounds one full scan cycle. Shutdown waits for the
// in-flight cycle, so this also bounds how long stopping can take.
func WithCycleTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		n.cycleTimeout = d
	}
}

// New creates a new Notifier delivering through the given transport.
func New(repo Repository, transport Transport, opts ...Option) *Notifier {
	n := &Notifier{
		repo:         repo,
		transport:    transport,
		scanInterval: time.Minute,
		cycleTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Start runs the scan loop until the context is cancelled. The in-flight
// cycle completes before Start returns, so shutdown is bounded by the
// cycle timeout.
func (n *Notifier) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "notification worker started", "interval", n.scanInterval)

	n.runCycle()

	ticker := time.NewTicker(n.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.runCycle()
		case <-ctx.Done():
			slog.InfoContext(ctx, "notification worker stopped")
			return nil
		}
	}
}

// runCycle wraps RunCycleOnce with the cycle timeout. The cycle context
// is detached from the loop context so cancellation never abandons a
// half-scanned cycle.
func (n *Notifier) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), n.cycleTimeout)
	defer cancel()

	if err := n.RunCycleOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "notification cycle failed", "error", err)
	}
}

// RunCycleOnce executes a single scan cycle: preferences are re-read,
// each enabled scan runs, and up to maxDrainPerCycle queued events are
// delivered. A failing scan is logged and the others still run.
func (n *Notifier) RunCycleOnce(ctx context.Context) error {
	now := time.Now()
	prefs := n.loadPreferences(ctx)
	if !prefs.Enabled {
		return nil
	}

	if prefs.TaskReminders {
		n.scanReminders(ctx, now, prefs)
	}
	if prefs.OverdueAlerts {
		n.scanOverdue(ctx, now, prefs)
	}
	if prefs.GrowthMilestones {
		n.scanMilestones(ctx, now, prefs)
	}
	if prefs.ResourceAlerts {
		n.scanLowStock(ctx, now, prefs)
	}

	n.drainQueue(ctx, now, prefs)
	return nil
}

// SendManual persists and delivers a user-initiated notification. During
// quiet hours the display is deferred to the queue; the history record is
// written either way.
func (n *Notifier) SendManual(ctx context.Context, title, body string, priority domain.Priority) error {
	record, err := newRecord(domain.NotifySystemAlert, title, body, priority, nil, nil)
	if err != nil {
		return err
	}
	if err := n.persistRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	prefs := n.loadPreferences(ctx)
	if prefs.QuietAt(time.Now()) {
		n.enqueue(event{record: record, delayed: true})
		return nil
	}

	n.deliver(ctx, event{record: record})
	return nil
}

// History returns the most recent notification records, newest first.
func (n *Notifier) History(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	return retry.Once(ctx, "list_notification_history", func(ctx context.Context) ([]domain.NotificationRecord, error) {
		return n.repo.ListNotificationHistory(ctx, limit)
	})
}

// QueueDepth reports how many events are waiting for delivery.
func (n *Notifier) QueueDepth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

func (n *Notifier) loadPreferences(ctx context.Context) domain.NotificationPreferences {
	settings, err := retry.Once(ctx, "notification_settings", func(ctx context.Context) (map[string]string, error) {
		return n.repo.NotificationSettings(ctx)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to load notification settings, using defaults", "error", err)
		return domain.DefaultNotificationPreferences()
	}
	return preferencesFrom(settings)
}

func (n *Notifier) scanReminders(ctx context.Context, now time.Time, prefs domain.NotificationPreferences) {
	tasks, err := retry.Once(ctx, "list_remindable_tasks", func(ctx context.Context) ([]domain.ScheduledTask, error) {
		return n.repo.ListRemindableTasks(ctx, now, prefs.ReminderLead, reminderDedupWindow)
	})
	if err != nil {
		slog.ErrorContext(ctx, "reminder scan failed", "error", err)
		return
	}

	for _, task := range tasks {
		priority := domain.PriorityLow
		if task.Priority == domain.PriorityHigh {
			priority = domain.PriorityMedium
		}

		minutes := int(task.DueDate.Sub(now).Minutes())
		body := fmt.Sprintf("%q for %s is due in %d minutes", task.Title, task.GardenName, minutes)
		n.notifyTask(ctx, now, prefs, domain.NotifyTaskReminder, "Task Reminder", body, priority, task)
	}
}

func (n *Notifier) scanOverdue(ctx context.Context, now time.Time, prefs domain.NotificationPreferences) {
	tasks, err := retry.Once(ctx, "list_overdue_tasks", func(ctx context.Context) ([]domain.ScheduledTask, error) {
		return n.repo.ListOverdueTasks(ctx, now, overdueDedupWindow)
	})
	if err != nil {
		slog.ErrorContext(ctx, "overdue scan failed", "error", err)
		return
	}

	for _, task := range tasks {
		late := now.Sub(task.DueDate)
		body := fmt.Sprintf("%q for %s is %s overdue", task.Title, task.GardenName, late.Round(time.Minute))
		n.notifyTask(ctx, now, prefs, domain.NotifyTaskOverdue, "Overdue Task", body, overduePriority(late), task)
	}
}

// overduePriority escalates with lateness.
func overduePriority(late time.Duration) domain.Priority {
	switch {
	case late < 2*time.Hour:
		return domain.PriorityMedium
	case late < 12*time.Hour:
		return domain.PriorityHigh
	default:
		return domain.PriorityCritical
	}
}

func (n *Notifier) notifyTask(ctx context.Context, now time.Time, prefs domain.NotificationPreferences, kind domain.NotificationType, title, body string, priority domain.Priority, task domain.ScheduledTask) {
	record, err := newRecord(kind, title, body, priority, &task.Task.ID, &task.GardenID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build notification", "task_id", task.Task.ID, "error", err)
		return
	}
	if err := n.persistRecord(ctx, record); err != nil {
		slog.ErrorContext(ctx, "failed to record notification, skipping delivery",
			"task_id", task.Task.ID,
			"type", kind,
			"error", err)
		return
	}
	n.enqueue(event{record: record, delayed: prefs.QuietAt(now)})
}

// scanMilestones compares each active garden's stored stage with the stage
// its age implies and applies the transition. The garden update and the
// milestone record land in one transaction.
func (n *Notifier) scanMilestones(ctx context.Context, now time.Time, prefs domain.NotificationPreferences) {
	gardens, err := retry.Once(ctx, "list_active_gardens", func(ctx context.Context) ([]*domain.Garden, error) {
		return n.repo.ListActiveGardens(ctx)
	})
	if err != nil {
		slog.ErrorContext(ctx, "milestone scan failed", "error", err)
		return
	}

	for _, garden := range gardens {
		// Curing is entered by explicit user action only; age never moves
		// a garden out of it.
		if garden.CurrentStage == domain.StageCuring {
			continue
		}

		expected := domain.StageForAge(domain.AgeDays(garden.PlantedDate, now))
		if expected == garden.CurrentStage {
			continue
		}

		body := fmt.Sprintf("%s has entered the %s stage", garden.Name, expected)
		record, err := newRecord(domain.NotifyGrowthMilestone, "Growth Milestone", body, domain.PriorityMedium, nil, &garden.ID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to build milestone notification", "garden_id", garden.ID, "error", err)
			continue
		}

		if err := n.repo.ApplyStageTransition(ctx, garden.ID, expected, now, &record); err != nil {
			slog.ErrorContext(ctx, "stage transition failed",
				"garden_id", garden.ID,
				"stage", expected,
				"error", err)
			continue
		}

		slog.InfoContext(ctx, "garden stage advanced",
			"garden_id", garden.ID,
			"from", garden.CurrentStage,
			"to", expected)
		n.enqueue(event{record: record, delayed: prefs.QuietAt(now)})
	}
}

func (n *Notifier) scanLowStock(ctx context.Context, now time.Time, prefs domain.NotificationPreferences) {
	items, err := retry.Once(ctx, "list_low_stock_items", func(ctx context.Context) ([]domain.InventoryItem, error) {
		return n.repo.ListLowStockItems(ctx)
	})
	if err != nil {
		slog.ErrorContext(ctx, "low stock scan failed", "error", err)
		return
	}

	for _, item := range items {
		if !item.LowStock() {
			continue
		}
		body := fmt.Sprintf("%s is running low (%.1f remaining, threshold %.1f)", item.Name, item.CurrentQuantity, item.MinimumThreshold)
		record, err := newRecord(domain.NotifyResourceAlert, "Low Stock Alert", body, domain.PriorityHigh, nil, nil)
		if err != nil {
			slog.ErrorContext(ctx, "failed to build stock notification", "item", item.Name, "error", err)
			continue
		}
		if err := n.persistRecord(ctx, record); err != nil {
			slog.ErrorContext(ctx, "failed to record stock notification", "item", item.Name, "error", err)
			continue
		}
		n.enqueue(event{record: record, delayed: prefs.QuietAt(now)})
	}
}

// drainQueue delivers up to maxDrainPerCycle queued events. Delayed events
// still inside quiet hours go back to the end of the queue.
func (n *Notifier) drainQueue(ctx context.Context, now time.Time, prefs domain.NotificationPreferences) {
	var requeue []event
	for i := 0; i < maxDrainPerCycle; i++ {
		e, ok := n.dequeue()
		if !ok {
			break
		}
		if e.delayed && prefs.QuietAt(now) {
			requeue = append(requeue, e)
			continue
		}
		n.deliver(ctx, e)
	}

	for _, e := range requeue {
		n.enqueue(e)
	}
}

// deliver shows one event through the transport, falling back to the log
// transport on failure. The history record was persisted at enqueue time.
func (n *Notifier) deliver(ctx context.Context, e event) {
	duration := displayDuration(e.record.Priority)
	if err := n.transport.Show(ctx, e.record.Title, e.record.Message, duration); err != nil {
		slog.ErrorContext(ctx, "notification transport failed, using log fallback",
			"title", e.record.Title,
			"error", err)
		_ = LogTransport{}.Show(ctx, e.record.Title, e.record.Message, duration)
	}
}

func (n *Notifier) persistRecord(ctx context.Context, record domain.NotificationRecord) error {
	_, err := retry.Once(ctx, "create_notification_record", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, n.repo.CreateNotificationRecord(ctx, &record)
	})
	return err
}

func (n *Notifier) enqueue(e event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, e)
}

func (n *Notifier) dequeue() (event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) == 0 {
		return event{}, false
	}
	e := n.queue[0]
	n.queue = n.queue[1:]
	return e, true
}

func newRecord(kind domain.NotificationType, title, message string, priority domain.Priority, taskID, gardenID *string) (domain.NotificationRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.NotificationRecord{}, fmt.Errorf("failed to generate notification ID: %w", err)
	}
	return domain.NotificationRecord{
		ID:       id.String(),
		Type:     kind,
		Title:    title,
		Message:  message,
		Priority: priority,
		TaskID:   taskID,
		GardenID: gardenID,
		SentDate: time.Now(),
	}, nil
}
