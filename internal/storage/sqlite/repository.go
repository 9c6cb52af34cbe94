package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/growmaster/internal/domain"
)

const gardenColumns = `id, name, growing_method, plant_type, planted_date,
	current_stage, stage_start_date, location, is_active, created_date`

const scheduledTaskColumns = `t.id, t.garden_id, t.plant_id, t.title, t.description,
	t.task_type, t.priority, t.due_date, t.estimated_duration, t.is_completed,
	t.completed_date, t.recurrence_pattern, t.auto_generated, t.created_date,
	g.name, g.location, g.growing_method`

const priorityRank = `CASE t.priority
	WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END`

// CreateGarden persists a new garden, filling in ID, stage, and timestamps
// left unset by the caller.
func (s *Store) CreateGarden(ctx context.Context, garden *domain.Garden) error {
	if garden.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate garden ID: %w", err)
		}
		garden.ID = id.String()
	}

	now := time.Now().UTC()
	if garden.PlantedDate.IsZero() {
		garden.PlantedDate = now
	}
	if garden.CurrentStage == "" {
		garden.CurrentStage = domain.StageGermination
	}
	if garden.StageStartDate.IsZero() {
		garden.StageStartDate = garden.PlantedDate
	}
	if garden.CreatedDate.IsZero() {
		garden.CreatedDate = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gardens (id, name, growing_method, plant_type, planted_date,
			current_stage, stage_start_date, location, is_active, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		garden.ID, garden.Name, string(garden.GrowingMethod), garden.PlantType,
		garden.PlantedDate, string(garden.CurrentStage), garden.StageStartDate,
		garden.Location, garden.IsActive, garden.CreatedDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create garden: %w", err))
	}
	return nil
}

// FindGarden retrieves a garden by ID.
// Returns domain.ErrGardenNotFound if the garden doesn't exist.
func (s *Store) FindGarden(ctx context.Context, id string) (*domain.Garden, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gardenColumns+` FROM gardens WHERE id = ?`, id)
	garden, err := scanGarden(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGardenNotFound, id)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to find garden: %w", err))
	}
	return garden, nil
}

// ListActiveGardens retrieves all gardens with the active flag set.
func (s *Store) ListActiveGardens(ctx context.Context) ([]*domain.Garden, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gardenColumns+` FROM gardens
		WHERE is_active ORDER BY created_date, id`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list gardens: %w", err))
	}
	defer rows.Close()

	var gardens []*domain.Garden
	for rows.Next() {
		garden, err := scanGarden(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan garden: %w", err)
		}
		gardens = append(gardens, garden)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list gardens: %w", err))
	}
	return gardens, nil
}

// DeleteGarden removes a garden; its tasks go with it via FK cascade.
func (s *Store) DeleteGarden(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gardens WHERE id = ?`, id)
	if err != nil {
		return classify(fmt.Errorf("failed to delete garden: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrGardenNotFound, id)
	}
	return nil
}

// ApplyStageTransition updates the garden's stage and writes the milestone
// notification in one transaction.
func (s *Store) ApplyStageTransition(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "rollback failed",
					"original_error", err,
					"rollback_error", rbErr)
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE gardens SET current_stage = ?, stage_start_date = ? WHERE id = ?`,
		string(stage), at, gardenID)
	if err != nil {
		return classify(fmt.Errorf("failed to update garden stage: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrGardenNotFound, gardenID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_history (id, notification_type, title, message,
			priority, task_id, garden_id, sent_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.Type), record.Title, record.Message,
		string(record.Priority), record.TaskID, record.GardenID, record.SentDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create milestone record: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit stage transition: %w", err))
	}
	return nil
}

// CreateTask persists a new task.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, garden_id, plant_id, title, description, task_type,
			priority, due_date, estimated_duration, is_completed, completed_date,
			recurrence_pattern, auto_generated, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.GardenID, task.PlantID, task.Title, task.Description,
		string(task.Type), string(task.Priority), task.DueDate, task.EstimatedDuration,
		task.IsCompleted, task.CompletedDate, task.RecurrencePattern,
		task.AutoGenerated, task.CreatedDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create task: %w", err))
	}
	return nil
}

// CompleteTask marks a task done at the given time.
// Returns domain.ErrTaskNotFound if the task doesn't exist.
func (s *Store) CompleteTask(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET is_completed = 1, completed_date = ? WHERE id = ?`, at, id)
	if err != nil {
		return classify(fmt.Errorf("failed to complete task: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return nil
}

// LastTaskCreatedNamed returns the creation time of the newest task for
// the garden whose title contains templateName, or nil if none exists.
// Containment, not prefix: manually created tasks embedding a template
// name mid-title also count against the frequency window.
func (s *Store) LastTaskCreatedNamed(ctx context.Context, gardenID, templateName string) (*time.Time, error) {
	var created time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_date FROM tasks
		WHERE garden_id = ? AND title LIKE '%' || ? || '%'
		ORDER BY created_date DESC LIMIT 1`,
		gardenID, templateName).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
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
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tasks WHERE garden_id = ? AND title = ?)`,
		gardenID, title).Scan(&exists)
	if err != nil {
		return false, classify(fmt.Errorf("failed to check task title: %w", err))
	}
	return exists, nil
}

// ListPendingTasksForDate retrieves incomplete tasks of active gardens due
// within [date, date+24h), highest priority first, then earliest due.
func (s *Store) ListPendingTasksForDate(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledTaskColumns+`
		FROM tasks t JOIN gardens g ON g.id = t.garden_id
		WHERE t.is_completed = 0 AND g.is_active
			AND t.due_date >= ? AND t.due_date < ?
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledTaskColumns+`
		FROM tasks t JOIN gardens g ON g.id = t.garden_id
		WHERE t.is_completed = 0 AND g.is_active
			AND t.due_date > ? AND t.due_date <= ?
			AND NOT EXISTS (
				SELECT 1 FROM notification_history nh
				WHERE nh.task_id = t.id
					AND nh.notification_type = 'task_reminder'
					AND nh.sent_date > ?)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledTaskColumns+`
		FROM tasks t JOIN gardens g ON g.id = t.garden_id
		WHERE t.is_completed = 0 AND g.is_active
			AND t.due_date < ?
			AND NOT EXISTS (
				SELECT 1 FROM notification_history nh
				WHERE nh.task_id = t.id
					AND nh.notification_type = 'task_overdue'
					AND nh.sent_date > ?)
		ORDER BY t.due_date, t.id`,
		now, now.Add(-dedupWindow))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list overdue tasks: %w", err))
	}
	defer rows.Close()
	return collectScheduledTasks(rows)
}

// CreateNotificationRecord persists one notification to history.
func (s *Store) CreateNotificationRecord(ctx context.Context, record *domain.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_history (id, notification_type, title, message,
			priority, task_id, garden_id, sent_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.Type), record.Title, record.Message,
		string(record.Priority), record.TaskID, record.GardenID, record.SentDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create notification record: %w", err))
	}
	return nil
}

// ListNotificationHistory retrieves the most recent notifications, newest
// first, up to limit.
func (s *Store) ListNotificationHistory(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, notification_type, title, message, priority, task_id, garden_id, sent_date
		FROM notification_history
		ORDER BY sent_date DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list notification history: %w", err))
	}
	defer rows.Close()

	var records []domain.NotificationRecord
	for rows.Next() {
		var record domain.NotificationRecord
		err := rows.Scan(&record.ID, &record.Type, &record.Title, &record.Message,
			&record.Priority, &record.TaskID, &record.GardenID, &record.SentDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to read notification history: %w", err))
	}
	return records, nil
}

// NotificationSettings retrieves the notification_-prefixed user settings.
func (s *Store) NotificationSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM user_settings WHERE key LIKE 'notification_%'`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load settings: %w", err))
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to read settings: %w", err))
	}
	return settings, nil
}

// SetSetting stores one user setting, overwriting any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty setting key", domain.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return classify(fmt.Errorf("failed to set setting: %w", err))
	}
	return nil
}

// ListLowStockItems retrieves inventory items above zero but at or below
// their minimum threshold.
func (s *Store) ListLowStockItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, current_quantity, minimum_threshold
		FROM inventory_items
		WHERE current_quantity > 0 AND current_quantity <= minimum_threshold
		ORDER BY name`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list low stock items: %w", err))
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.Name, &item.CurrentQuantity, &item.MinimumThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to read inventory: %w", err))
	}
	return items, nil
}

// UpsertInventoryItem creates or updates a stock-tracked supply.
func (s *Store) UpsertInventoryItem(ctx context.Context, item *domain.InventoryItem) error {
	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate item ID: %w", err)
		}
		item.ID = id.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, current_quantity, minimum_threshold)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			current_quantity = excluded.current_quantity,
			minimum_threshold = excluded.minimum_threshold`,
		item.ID, item.Name, item.CurrentQuantity, item.MinimumThreshold)
	if err != nil {
		return classify(fmt.Errorf("failed to upsert inventory item: %w", err))
	}
	return nil
}

// scanner matches both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanGarden(row scanner) (*domain.Garden, error) {
	var garden domain.Garden
	err := row.Scan(&garden.ID, &garden.Name, &garden.GrowingMethod, &garden.PlantType,
		&garden.PlantedDate, &garden.CurrentStage, &garden.StageStartDate,
		&garden.Location, &garden.IsActive, &garden.CreatedDate)
	if err != nil {
		return nil, err
	}
	return &garden, nil
}

func collectScheduledTasks(rows *sql.Rows) ([]domain.ScheduledTask, error) {
	var tasks []domain.ScheduledTask
	for rows.Next() {
		var task domain.ScheduledTask
		err := rows.Scan(&task.Task.ID, &task.GardenID, &task.PlantID, &task.Title,
			&task.Description, &task.Type, &task.Priority, &task.DueDate,
			&task.EstimatedDuration, &task.IsCompleted, &task.CompletedDate,
			&task.RecurrencePattern, &task.AutoGenerated, &task.CreatedDate,
			&task.GardenName, &task.GardenLocation, &task.GrowingMethod)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to read tasks: %w", err))
	}
	return tasks, nil
}
