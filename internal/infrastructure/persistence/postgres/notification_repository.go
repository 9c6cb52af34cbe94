package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rezkam/growmaster/internal/domain"
)

// CreateNotificationRecord persists one notification to history.
func (s *Store) CreateNotificationRecord(ctx context.Context, record *domain.NotificationRecord) error {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	taskID, err := parseOptionalUUID(record.TaskID)
	if err != nil {
		return fmt.Errorf("%w: task: %w", domain.ErrInvalidID, err)
	}
	gardenID, err := parseOptionalUUID(record.GardenID)
	if err != nil {
		return fmt.Errorf("%w: garden: %w", domain.ErrInvalidID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notification_history (id, notification_type, title, message,
			priority, task_id, garden_id, sent_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, record.Type, record.Title, record.Message, record.Priority,
		taskID, gardenID, record.SentDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create notification record: %w", err))
	}
	return nil
}

// ListNotificationHistory retrieves the most recent notifications, newest
// first, up to limit.
func (s *Store) ListNotificationHistory(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, notification_type, title, message, priority, task_id, garden_id, sent_date
		FROM notification_history
		ORDER BY sent_date DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list notification history: %w", err))
	}
	defer rows.Close()

	var records []domain.NotificationRecord
	for rows.Next() {
		var (
			record   domain.NotificationRecord
			id       uuid.UUID
			taskID   *uuid.UUID
			gardenID *uuid.UUID
		)
		err := rows.Scan(&id, &record.Type, &record.Title, &record.Message,
			&record.Priority, &taskID, &gardenID, &record.SentDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		record.ID = id.String()
		record.TaskID = uuidString(taskID)
		record.GardenID = uuidString(gardenID)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to read notification history: %w", err))
	}
	return records, nil
}

// NotificationSettings retrieves the notification_-prefixed user settings.
func (s *Store) NotificationSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `
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

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return classify(fmt.Errorf("failed to set setting: %w", err))
	}
	return nil
}

// ListLowStockItems retrieves inventory items above zero but at or below
// their minimum threshold.
func (s *Store) ListLowStockItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.Query(ctx, `
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
		var (
			item domain.InventoryItem
			id   uuid.UUID
		)
		if err := rows.Scan(&id, &item.Name, &item.CurrentQuantity, &item.MinimumThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		item.ID = id.String()
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
	id, err := uuid.Parse(item.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO inventory_items (id, name, current_quantity, minimum_threshold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			current_quantity = EXCLUDED.current_quantity,
			minimum_threshold = EXCLUDED.minimum_threshold`,
		id, item.Name, item.CurrentQuantity, item.MinimumThreshold)
	if err != nil {
		return classify(fmt.Errorf("failed to upsert inventory item: %w", err))
	}
	return nil
}

func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
