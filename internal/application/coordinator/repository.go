package coordinator

import (
	"context"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// Repository defines the storage operations the daily coordinator depends on.
// Coordination is read-only: plans are built in memory and never written back.
type Repository interface {
	// ListPendingTasksForDate retrieves incomplete tasks due within
	// [date, date+24h) joined to their active gardens, ordered by priority
	// descending then due date ascending.
	ListPendingTasksForDate(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error)
}
