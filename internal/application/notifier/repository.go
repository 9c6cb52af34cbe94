package notifier

import (
	"context"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// Repository defines the storage operations the notifier depends on.
// De-duplication windows are enforced in the queries themselves so the
// scan loop never races its own history writes.
type Repository interface {
	// ListRemindableTasks retrieves pending tasks due within (now, now+lead]
	// that have no task-reminder record newer than now minus dedupWindow.
	ListRemindableTasks(ctx context.Context, now time.Time, lead, dedupWindow time.Duration) ([]domain.ScheduledTask, error)

	// ListOverdueTasks retrieves pending tasks due before now that have no
	// task-overdue record newer than now minus dedupWindow.
	ListOverdueTasks(ctx context.Context, now time.Time, dedupWindow time.Duration) ([]domain.ScheduledTask, error)

	// ListActiveGardens retrieves all gardens with the active flag set.
	ListActiveGardens(ctx context.Context) ([]*domain.Garden, error)

	// ApplyStageTransition updates the garden's current stage and stage
	// start date and writes the milestone notification record in a single
	// transaction. Either both changes land or neither does.
	ApplyStageTransition(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) error

	// ListLowStockItems retrieves inventory items whose quantity is above
	// zero but at or below their minimum threshold.
	ListLowStockItems(ctx context.Context) ([]domain.InventoryItem, error)

	// NotificationSettings retrieves the notification_-prefixed user
	// settings as a raw key to value map.
	NotificationSettings(ctx context.Context) (map[string]string, error)

	// CreateNotificationRecord persists one notification to history.
	CreateNotificationRecord(ctx context.Context, record *domain.NotificationRecord) error

	// ListNotificationHistory retrieves the most recent notifications,
	// newest first, up to limit.
	ListNotificationHistory(ctx context.Context, limit int) ([]domain.NotificationRecord, error)
}
