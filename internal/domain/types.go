package domain

import "time"

// Garden is one growing space with its own plant cohort and stage history.
type Garden struct {
	ID             string
	Name           string
	GrowingMethod  GrowingMethod
	PlantType      string
	PlantedDate    time.Time
	CurrentStage   GrowthStage
	StageStartDate time.Time
	Location       *string // nil = no physical location recorded
	IsActive       bool
	CreatedDate    time.Time
}

// Task is an actionable, dated, prioritised unit of work owned by a garden.
type Task struct {
	ID                string
	GardenID          string
	PlantID           *string
	Title             string
	Description       string
	Type              TaskType
	Priority          Priority
	DueDate           time.Time
	EstimatedDuration int // minutes
	IsCompleted       bool
	CompletedDate     *time.Time
	RecurrencePattern *string
	AutoGenerated     bool
	CreatedDate       time.Time
}

// Complete marks the task done at the given time.
// Keeps the completion flag and completion date consistent.
func (t *Task) Complete(at time.Time) {
	t.IsCompleted = true
	t.CompletedDate = &at
}

// ScheduledTask is a pending task joined with the garden attributes the
// coordinator needs: name for reporting, location and method for batching.
type ScheduledTask struct {
	Task
	GardenName     string
	GardenLocation *string
	GrowingMethod  GrowingMethod
}

// InventoryItem is a stock-tracked supply. Read-only to the scheduling engine.
type InventoryItem struct {
	ID               string
	Name             string
	CurrentQuantity  float64
	MinimumThreshold float64
}

// LowStock reports whether the item is below its threshold but not exhausted.
// Out-of-stock items are excluded: restocking zero-quantity items is handled
// by the shopping workflow, not by alerts.
func (i InventoryItem) LowStock() bool {
	return i.CurrentQuantity > 0 && i.CurrentQuantity <= i.MinimumThreshold
}

// NotificationRecord is a persisted delivery used to suppress duplicates.
type NotificationRecord struct {
	ID       string
	Type     NotificationType
	Title    string
	Message  string
	Priority Priority
	TaskID   *string
	GardenID *string
	SentDate time.Time
}

// NotificationPreferences controls which scans run and when delivery is allowed.
type NotificationPreferences struct {
	Enabled          bool
	TaskReminders    bool
	OverdueAlerts    bool
	SystemAlerts     bool
	GrowthMilestones bool
	ResourceAlerts   bool
	SoundEnabled     bool
	ReminderLead     time.Duration
	QuietHoursStart  int // hour of day, 0-23
	QuietHoursEnd    int // hour of day, 0-23; start > end wraps midnight
}

// DefaultNotificationPreferences returns the preferences used when settings
// are absent: everything on, 30 minute lead, quiet from 22:00 to 07:00.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:          true,
		TaskReminders:    true,
		OverdueAlerts:    true,
		SystemAlerts:     true,
		GrowthMilestones: true,
		ResourceAlerts:   true,
		SoundEnabled:     true,
		ReminderLead:     30 * time.Minute,
		QuietHoursStart:  22,
		QuietHoursEnd:    7,
	}
}

// QuietAt reports whether the given time falls inside quiet hours.
// The interval is [start, end) on hour-of-day and wraps midnight when
// start > end, so {start: 22, end: 7} makes 22:00 and 06:59 quiet but
// 07:00 deliverable.
func (p NotificationPreferences) QuietAt(t time.Time) bool {
	hour := t.Hour()
	if p.QuietHoursStart == p.QuietHoursEnd {
		return false
	}
	if p.QuietHoursStart > p.QuietHoursEnd {
		return hour >= p.QuietHoursStart || hour < p.QuietHoursEnd
	}
	return hour >= p.QuietHoursStart && hour < p.QuietHoursEnd
}
