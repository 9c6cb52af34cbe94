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

const gardenColumns = `id, name, growing_method, plant_type, planted_date,
	current_stage, stage_start_date, location, is_active, created_date`

// CreateGarden persists a new garden. Missing ID, stage, and timestamps
// are filled in here so callers can pass a sparsely populated struct.
func (s *Store) CreateGarden(ctx context.Context, garden *domain.Garden) error {
	if garden.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate garden ID: %w", err)
		}
		garden.ID = id.String()
	}
	gardenID, err := uuid.Parse(garden.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
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

	_, err = s.db.Exec(ctx, `
		INSERT INTO gardens (id, name, growing_method, plant_type, planted_date,
			current_stage, stage_start_date, location, is_active, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		gardenID, garden.Name, garden.GrowingMethod, garden.PlantType,
		garden.PlantedDate, garden.CurrentStage, garden.StageStartDate,
		garden.Location, garden.IsActive, garden.CreatedDate)
	if err != nil {
		return classify(fmt.Errorf("failed to create garden: %w", err))
	}
	return nil
}

// FindGarden retrieves a garden by ID.
// Returns domain.ErrGardenNotFound if the garden doesn't exist.
func (s *Store) FindGarden(ctx context.Context, id string) (*domain.Garden, error) {
	gardenID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	row := s.db.QueryRow(ctx, `SELECT `+gardenColumns+` FROM gardens WHERE id = $1`, gardenID)
	garden, err := scanGarden(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGardenNotFound, id)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to find garden: %w", err))
	}
	return garden, nil
}

// ListActiveGardens retrieves all gardens with the active flag set,
// oldest first.
func (s *Store) ListActiveGardens(ctx context.Context) ([]*domain.Garden, error) {
	rows, err := s.db.Query(ctx, `
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
	gardenID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM gardens WHERE id = $1`, gardenID)
	if err != nil {
		return classify(fmt.Errorf("failed to delete garden: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrGardenNotFound, id)
	}
	return nil
}

// ApplyStageTransition updates the garden's stage and writes the
// milestone notification in one transaction.
func (s *Store) ApplyStageTransition(ctx context.Context, gardenID string, stage domain.GrowthStage, at time.Time, record *domain.NotificationRecord) error {
	id, err := uuid.Parse(gardenID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	return s.executeInTransaction(ctx, "apply_stage_transition", func(txStore *Store) error {
		tag, err := txStore.db.Exec(ctx, `
			UPDATE gardens SET current_stage = $2, stage_start_date = $3
			WHERE id = $1`,
			id, stage, at)
		if err != nil {
			return classify(fmt.Errorf("failed to update garden stage: %w", err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", domain.ErrGardenNotFound, gardenID)
		}
		return txStore.CreateNotificationRecord(ctx, record)
	})
}

// scanGarden reads one garden row. Works for both QueryRow and Rows.
func scanGarden(row pgx.Row) (*domain.Garden, error) {
	var (
		garden domain.Garden
		id     uuid.UUID
	)
	err := row.Scan(&id, &garden.Name, &garden.GrowingMethod, &garden.PlantType,
		&garden.PlantedDate, &garden.CurrentStage, &garden.StageStartDate,
		&garden.Location, &garden.IsActive, &garden.CreatedDate)
	if err != nil {
		return nil, err
	}
	garden.ID = id.String()
	return &garden, nil
}
