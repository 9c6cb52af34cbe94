package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rezkam/growmaster/internal/domain"
)

const scheduledTaskColumns = `t.id, t.garden_id, t.plant_id, t.title, t.description,
	t.task_type, t.priority, t.due_date, t.estimated_duration, t.is_completed,
	t.completed_date, t.recurrence_pattern, t.auto_generated, t.created_date,
	g.name, g.location, g.growing_method`

// priorityRank orders rows critical > high > medium > low without a
// dedicated enum table.
const priorityRank = `CASE t.priority
	WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END`

// CreateTask persists a new task.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	taskID, err := uuid.Parse(task.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	gardenID, err := uuid.Parse(task.GardenID)
	if err != nil {
		return fmt.Errorf("%w: garden: %w", domain.ErrInvalidID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO tasks (id, garden_id, plant_id, title, description, task_type,
			priority, due_date, estimated_duration, is_completed, completed_date,
			recurrence_pattern, auto_generated, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		taskID, gardenID, task.PlantID, task.Title, task.Description, task.Type,
		task.Priority, task.DueDate, task.EstimatedDuration, task.IsCompleted,
		task.CompletedDate, task.RecurrencePattern, task.AutoGenerated, task.CreatedDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create task: %w", err))
	}
	return nil
}

// CompleteTask marks a task done at the given time.
// Returns domain.ErrTaskNotFound if the task doesn't exist.
func (s *Store) CompleteTask(ctx context.Context, id string, at time.Time) error {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET is_completed = TRUE, completed_date = $2 WHERE id = $1`,
		taskID, at)
	if err != nil {
		return classify(fmt.Errorf("failed to complete task: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return nil
}

// LastTaskCreatedNamed returns the creation time of the newest task for
// the garden whose title contains templateName, or nil if none exists.
// Containment, not prefix: manually created tasks embedding a template
// name mid-title also count against the frequency window.
func (s *Store) LastTaskCreatedNamed(ctx context.Context, gardenID, templateName string) (*time.Time, error) {
	id, err := uuid.Parse(gardenID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	var created time.Time
	err = s.db.QueryRow(ctx, `
		SELECT created_date FROM tasks
		WHERE garden_id = $1 AND title LIKE '%' || $2 || '%'
		ORDER BY created_date DESC LIMIT 1`,
		id, templateName).Scan(&created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to find last task: %w", err))
	}
	return &created, nil
}

// TaskExistsWithTitle reports whether any task for the garden has exactly
// the given title.
func (s *Store) TaskExistsWithTitle(ctx context.Context, gardenID, title string) (bool, error) {
	id, err := uuid.Parse(gardenID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	var exists bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM tasks WHERE garden_id = $1 AND title = $2)`,
		id, title).Scan(&exists)
	if err != nil {
		return false, classify(fmt.Errorf("failed to check task title: %w", err))
	}
	return exists, nil
}

// ListPendingTasksForDate retrieves incomplete tasks of active gardens due
// within [date, date+24h), highest priority first, then earliest due.
func (s *Store) ListPendingTasksForDate(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduledTaskColumns+`
		FROM tasks t JOIN gardens g ON g.id = t.garden_id
		WHERE NOT t.is_completed AND g.is_active
			AND t.due_date >= $1 AND t.due_date < $2
		ORDER BY `+priorityRank+` DESC, t.due_date, t.id`,
		date, date.Add(24*time.Hour))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list pending tasks: %w", err))
	}
	defer rows.Close()
	return collectScheduledTasks(rows)
}

// ListRemindableTasks retrieves pending tasks due within (now, now+lead]
// with no task-reminder notification newer than the dedup window.
func (s *Store) ListRemindableTasks(ctx context.Context, now time.Time, lead, dedupWindow time.Duration) ([]domain.ScheduledTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduledTaskColumns+`
		FROM tasks t JOIN gardens g ON g.id = t.garden_id
		WHERE NOT t.is_completed AND g.is_active
			AND t.due_date > $1 AND t.due_date <= $2
			AND NOT EXISTS (
				SELECT 1 FROM notification_history nh
				WHERE nh.task_id = t.id
					AND nh.notification_type = 'task_reminder'
					AND nh.sent_date > $3)
		ORDER BY t.due_date, t.id`,
		now, now.Add(lead), now.Add(-dedupWindow))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list remindable tasks: %w", err))
	}
	defer rows.Close()
	return collectScheduledTasks(rows)
}

// ListOverdueTasks retrieves pending tasks past due with no task-overdue
// notification newer than the dedup window.
func (s *Store) ListOverdueTasks(ctx context.Context, now time.Time, dedupWindow time.Duration) ([]domain.ScheduledTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduledTaskColumns+`
		FROM tasks t JOIN gardens g ON g.id = t.garden_id
		WHERE NOT t.is_completed AND g.is_active
			AND t.due_date < $1
			AND NOT EXISTS (
				SELECT 1 FROM notification_history nh
				WHERE nh.task_id = t.id
					AND nh.notification_type = 'task_overdue'
					AND nh.sent_date > $2)
		ORDER BY t.due_date, t.id`,
		now, now.Add(-dedupWindow))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list overdue tasks: %w", err))
	}
	defer rows.Close()
	return collectScheduledTasks(rows)
}

func collectScheduledTasks(rows pgx.Rows) ([]domain.ScheduledTask, error) {
	var tasks []domain.ScheduledTask
	for rows.Next() {
		var (
			task     domain.ScheduledTask
			id       uuid.UUID
			gardenID uuid.UUID
		)
		err := rows.Scan(&id, &gardenID, &task.PlantID, &task.Title, &task.Description,
			&task.Type, &task.Priority, &task.DueDate, &task.EstimatedDuration,
			&task.IsCompleted, &task.CompletedDate, &task.RecurrencePattern,
			&task.AutoGenerated, &task.CreatedDate,
			&task.GardenName, &task.GardenLocation, &task.GrowingMethod)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Task.ID = id.String()
		task.GardenID = gardenID.String()
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to read tasks: %w", err))
	}
	return tasks, nil
}
