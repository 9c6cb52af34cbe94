// Package generator synthesises growth-stage-appropriate tasks for a
// garden from the template catalogue, enforcing frequency and one-shot
// idempotency so repeated invocations never duplicate work.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/growmaster/internal/domain"
	"github.com/rezkam/growmaster/internal/retry"
	"github.com/rezkam/growmaster/internal/templates"
)

// Generator creates tasks for gardens based on their growth stage, age,
// and growing method. Generation is serialised per garden so concurrent
// invocations cannot double-create tasks.
type Generator struct {
	repo Repository
	lib  *templates.Library

	// Per-garden locks. Entries are never removed; the garden population
	// of a personal grow operation is small.
	locks sync.Map // garden id -> *sync.Mutex
}

// New creates a Generator backed by the given repository and catalogue.
func New(repo Repository, lib *templates.Library) *Generator {
	return &Generator{repo: repo, lib: lib}
}

// Generate creates the tasks that should exist right now for one garden.
// An unknown or inactive garden yields an empty result without error.
// Per-template failures are isolated: the returned slice holds every task
// that was created, and the error joins whatever write failures occurred.
func (g *Generator) Generate(ctx context.Context, gardenID string) ([]domain.Task, error) {
	lock := g.gardenLock(gardenID)
	lock.Lock()
	defer lock.Unlock()

	garden, err := retry.Once(ctx, "find_garden", func(ctx context.Context) (*domain.Garden, error) {
		return g.repo.FindGarden(ctx, gardenID)
	})
	if errors.Is(err, domain.ErrGardenNotFound) {
		slog.WarnContext(ctx, "generation requested for unknown garden", "garden_id", gardenID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load garden: %w", err)
	}
	if !garden.IsActive {
		return nil, nil
	}

	now := time.Now()
	age := domain.AgeDays(garden.PlantedDate, now)
	stage := domain.StageForAge(age)
	daysInStage := domain.DaysInStage(age)

	var created []domain.Task
	var writeErrs []error

	for _, tpl := range g.lib.ForMethod(garden.GrowingMethod) {
		if ctx.Err() != nil {
			// Partial progress is fine: idempotency rules prevent
			// duplication on retry.
			return created, errors.Join(append(writeErrs, ctx.Err())...)
		}

		eligible, err := g.eligible(ctx, tpl, garden, stage, daysInStage, now)
		if err != nil {
			slog.ErrorContext(ctx, "template eligibility check failed, skipping",
				"garden_id", garden.ID,
				"template", tpl.Name,
				"error", err)
			continue
		}
		if !eligible {
			continue
		}

		task, err := newTask(tpl, garden, now)
		if err != nil {
			slog.ErrorContext(ctx, "task synthesis failed, skipping template",
				"garden_id", garden.ID,
				"template", tpl.Name,
				"error", err)
			continue
		}

		if err := g.repo.CreateTask(ctx, &task); err != nil {
			slog.ErrorContext(ctx, "failed to persist generated task",
				"garden_id", garden.ID,
				"title", task.Title,
				"error", err)
			writeErrs = append(writeErrs, fmt.Errorf("create %q: %w", task.Title, err))
			continue
		}

		created = append(created, task)
	}

	slog.InfoContext(ctx, "task generation completed",
		"garden_id", garden.ID,
		"stage", stage,
		"days_in_stage", daysInStage,
		"created", len(created))

	return created, errors.Join(writeErrs...)
}

// GenerateAll runs Generate for every active garden and returns the total
// number of tasks created. Failures for individual gardens are logged and
// do not stop the sweep.
func (g *Generator) GenerateAll(ctx context.Context) (int, error) {
	gardens, err := retry.Once(ctx, "list_active_gardens", func(ctx context.Context) ([]*domain.Garden, error) {
		return g.repo.ListActiveGardens(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list active gardens: %w", err)
	}

	total := 0
	for _, garden := range gardens {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		created, err := g.Generate(ctx, garden.ID)
		total += len(created)
		if err != nil {
			slog.ErrorContext(ctx, "generation failed for garden",
				"garden_id", garden.ID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "bulk task generation completed", "gardens", len(gardens), "created", total)
	return total, nil
}

func (g *Generator) gardenLock(gardenID string) *sync.Mutex {
	v, _ := g.locks.LoadOrStore(gardenID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// eligible applies the four-part template test: stage match, stage-offset
// reached, frequency window clear (recurring), no existing task with the
// computed title (one-shot).
func (g *Generator) eligible(ctx context.Context, tpl templates.Template, garden *domain.Garden, stage domain.GrowthStage, daysInStage int, now time.Time) (bool, error) {
	if tpl.Stage != stage {
		return false, nil
	}
	if daysInStage < tpl.DaysFromStageStart {
		return false, nil
	}

	if tpl.FrequencyDays > 0 {
		last, err := retry.Once(ctx, "last_task_named", func(ctx context.Context) (*time.Time, error) {
			return g.repo.LastTaskCreatedNamed(ctx, garden.ID, tpl.Name)
		})
		if err != nil {
			return false, err
		}
		if last != nil {
			daysSince := int(now.Sub(*last).Hours() / 24)
			if daysSince < tpl.FrequencyDays {
				return false, nil
			}
		}
		return true, nil
	}

	exists, err := retry.Once(ctx, "task_title_exists", func(ctx context.Context) (bool, error) {
		return g.repo.TaskExistsWithTitle(ctx, garden.ID, TaskTitle(tpl.Name, garden.Name))
	})
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// TaskTitle computes the title for a generated task. One-shot idempotency
// keys on this exact string.
func TaskTitle(templateName, gardenName string) string {
	return templateName + " — " + gardenName
}

func newTask(tpl templates.Template, garden *domain.Garden, now time.Time) (domain.Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Task{}, fmt.Errorf("failed to generate task ID: %w", err)
	}

	var b strings.Builder
	b.WriteString(tpl.Description)
	b.WriteString("\n\nInstructions: ")
	b.WriteString(tpl.Instructions)
	b.WriteString("\n")
	if len(tpl.RequiredMaterials) > 0 {
		b.WriteString("Required materials: ")
		b.WriteString(strings.Join(tpl.RequiredMaterials, ", "))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Estimated duration: %d minutes", tpl.Duration)

	return domain.Task{
		ID:                id.String(),
		GardenID:          garden.ID,
		Title:             TaskTitle(tpl.Name, garden.Name),
		Description:       b.String(),
		Type:              tpl.Type,
		Priority:          tpl.Priority,
		DueDate:           now.Add(24 * time.Hour),
		EstimatedDuration: tpl.Duration,
		AutoGenerated:     true,
		CreatedDate:       now,
	}, nil
}
