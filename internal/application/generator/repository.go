package generator

import (
	"context"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// Repository defines the storage operations the task generator depends on.
type Repository interface {
	// FindGarden retrieves a garden by ID.
	// Returns domain.ErrGardenNotFound if the garden doesn't exist.
	FindGarden(ctx context.Context, id string) (*domain.Garden, error)

	// ListActiveGardens retrieves all gardens with the active flag set.
	ListActiveGardens(ctx context.Context) ([]*domain.Garden, error)

	// CreateTask persists a new task.
	CreateTask(ctx context.Context, task *domain.Task) error

	// LastTaskCreatedNamed returns the creation time of the most recent task
	// for the garden whose title contains templateName, or nil if none exists.
	// Drives the frequency window for recurring templates.
	LastTaskCreatedNamed(ctx context.Context, gardenID, templateName string) (*time.Time, error)

	// TaskExistsWithTitle reports whether any task for the garden has exactly
	// the given title. Drives one-shot template idempotency.
	TaskExistsWithTitle(ctx context.Context, gardenID, title string) (bool, error)
}
