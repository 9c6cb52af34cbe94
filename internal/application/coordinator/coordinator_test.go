package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/growmaster/internal/domain"
)

// mockRepository implements Repository for testing
type mockRepository struct {
	listPendingFunc func(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error)
}

func (m *mockRepository) ListPendingTasksForDate(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error) {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx, date)
	}
	return nil, nil
}

func fixedRepo(tasks []domain.ScheduledTask) *mockRepository {
	return &mockRepository{
		listPendingFunc: func(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error) {
			return tasks, nil
		},
	}
}

var testDay = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 24, hour, minute, 0, 0, time.UTC)
}

func pendingTask(id, gardenID string, taskType domain.TaskType, priority domain.Priority, due time.Time, duration int, location *string) domain.ScheduledTask {
	return domain.ScheduledTask{
		Task: domain.Task{
			ID:                id,
			GardenID:          gardenID,
			Title:             id,
			Type:              taskType,
			Priority:          priority,
			DueDate:           due,
			EstimatedDuration: duration,
		},
		GardenName:     "Garden " + gardenID,
		GardenLocation: location,
	}
}

func findTask(t *testing.T, result Result, id string) domain.ScheduledTask {
	t.Helper()
	for _, b := range result.Batches {
		for _, task := range b.Tasks {
			if task.ID == id {
				return task
			}
		}
	}
	t.Fatalf("task %s not found in plan", id)
	return domain.ScheduledTask{}
}

func TestCoordinateEmptyDay(t *testing.T) {
	coord := New(fixedRepo(nil))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Empty(t, result.Batches)
	assert.Empty(t, result.Conflicts)
	assert.Empty(t, result.SharingOpportunities)
	assert.Zero(t, result.TimeSavings)
	assert.Zero(t, result.Efficiency)
}

func TestCoordinateBatchesCompatibleFeedings(t *testing.T) {
	// Three feeding tasks across two unplaced gardens, due within an hour
	// of each other, collapse into a single batch.
	tasks := []domain.ScheduledTask{
		pendingTask("t1", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 20, nil),
		pendingTask("t2", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 30), 20, nil),
		pendingTask("t3", "g2", domain.TaskFeeding, domain.PriorityHigh, at(10, 0), 20, nil),
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, result.Batches, 1)

	batch := result.Batches[0]
	assert.Len(t, batch.Tasks, 3)
	assert.Equal(t, at(9, 0), batch.OptimalStart)
	assert.Equal(t, 60*time.Minute, batch.TotalDuration)
	assert.GreaterOrEqual(t, batch.Efficiency, 85.0)
	assert.Subset(t, batch.SharedResources, []domain.ResourceType{
		domain.ResourceNutrients,
		domain.ResourceWater,
		domain.ResourceEquipment,
		domain.ResourceTime,
	})
	assert.ElementsMatch(t, []string{"g1", "g2"}, batch.GardenIDs)
}

func TestCoordinateResolvesResourceConflict(t *testing.T) {
	// Two simultaneous feedings contend for nutrients. The medium-priority
	// task slips by the pair's 30-minute flexibility so the claims no
	// longer overlap.
	tasks := []domain.ScheduledTask{
		pendingTask("high", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 30, nil),
		pendingTask("med", "g2", domain.TaskFeeding, domain.PriorityMedium, at(9, 0), 30, nil),
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	require.NotEmpty(t, result.Conflicts)

	high := findTask(t, result, "high")
	med := findTask(t, result, "med")
	assert.Equal(t, at(9, 0), high.DueDate)
	assert.Equal(t, at(9, 30), med.DueDate)

	highEnd := high.DueDate.Add(time.Duration(high.EstimatedDuration) * time.Minute)
	assert.False(t, highEnd.After(med.DueDate), "nutrient claims still overlap after resolution")
}

func TestCoordinateSpaceConflictShiftsLaterTask(t *testing.T) {
	locA, locB := "tent-a", "tent-b"
	tasks := []domain.ScheduledTask{
		pendingTask("first", "g1", domain.TaskPruning, domain.PriorityHigh, at(9, 0), 30, &locA),
		pendingTask("second", "g2", domain.TaskTraining, domain.PriorityHigh, at(9, 35), 30, &locB),
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)

	var spaceConflicts []Conflict
	for _, c := range result.Conflicts {
		if c.Resource == domain.ResourceSpace {
			spaceConflicts = append(spaceConflicts, c)
		}
	}
	require.Len(t, spaceConflicts, 1)

	// Gap between 09:30 and 09:35 is under the travel buffer, so the later
	// task moves out by 15 minutes.
	assert.Equal(t, at(9, 50), findTask(t, result, "second").DueDate)
	assert.Equal(t, at(9, 0), findTask(t, result, "first").DueDate)
}

func TestCoordinateBatchCap(t *testing.T) {
	var tasks []domain.ScheduledTask
	for i := range 6 {
		tasks = append(tasks, pendingTask(
			fmt.Sprintf("t%d", i), "g1", domain.TaskMonitoring,
			domain.PriorityMedium, at(9, 10*i), 5, nil))
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, result.Batches, 2)
	assert.Len(t, result.Batches[0].Tasks, 5)
	assert.Len(t, result.Batches[1].Tasks, 1)
}

func TestCoordinateSchedulesFromEight(t *testing.T) {
	locA, locB := "tent-a", "tent-b"
	tasks := []domain.ScheduledTask{
		pendingTask("a", "g1", domain.TaskFeeding, domain.PriorityCritical, at(9, 0), 30, &locA),
		pendingTask("b", "g2", domain.TaskWatering, domain.PriorityLow, at(12, 0), 10, &locB),
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, result.Batches, 2)

	first, second := result.Batches[0], result.Batches[1]
	assert.Equal(t, at(8, 0), first.ScheduledStart)
	assert.Equal(t, first.End().Add(batchBuffer), second.ScheduledStart)

	// The critical feeding batch outranks the low watering batch.
	assert.Equal(t, "a", first.Tasks[0].ID)
}

func TestCoordinateSharingOpportunities(t *testing.T) {
	// Different locations force two batches. Their schedule slots sit 15
	// minutes apart, inside the sharing window, and both consume the same
	// feeding resources.
	locA, locB := "tent-a", "tent-b"
	tasks := []domain.ScheduledTask{
		pendingTask("a", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 30, &locA),
		pendingTask("b", "g2", domain.TaskFeeding, domain.PriorityMedium, at(10, 30), 30, &locB),
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, result.Batches, 2)
	require.Len(t, result.SharingOpportunities, 1)

	opp := result.SharingOpportunities[0]
	assert.Equal(t, 0, opp.FirstBatch)
	assert.Equal(t, 1, opp.SecondBatch)
	assert.Len(t, opp.SharedResources, 4)
	// Savings formula caps at 30 minutes; 4 shared resources give 20.
	assert.Equal(t, 20*time.Minute, opp.PotentialSaving)
}

func TestCoordinateTimeSavings(t *testing.T) {
	tasks := []domain.ScheduledTask{
		pendingTask("t1", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 10, nil),
		pendingTask("t2", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 20), 10, nil),
		pendingTask("t3", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 40), 10, nil),
	}
	coord := New(fixedRepo(tasks))

	result, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, result.Batches, 1)
	// 3 tasks in 1 batch: 5*3 - 10*1 = 5 minutes saved.
	assert.Equal(t, 5*time.Minute, result.TimeSavings)
}

func TestCoordinateDeterministic(t *testing.T) {
	locA := "tent-a"
	tasks := []domain.ScheduledTask{
		pendingTask("t1", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 30, &locA),
		pendingTask("t2", "g2", domain.TaskMonitoring, domain.PriorityHigh, at(9, 0), 15, &locA),
		pendingTask("t3", "g1", domain.TaskPruning, domain.PriorityMedium, at(10, 0), 20, &locA),
		pendingTask("t4", "g2", domain.TaskWatering, domain.PriorityLow, at(11, 0), 10, nil),
	}
	coord := New(fixedRepo(tasks))

	first, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	second, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCoordinateReadFailureFailsCall(t *testing.T) {
	readErr := errors.New("connection refused")
	coord := New(&mockRepository{
		listPendingFunc: func(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error) {
			return nil, readErr
		},
	})

	_, err := coord.Coordinate(context.Background(), testDay)
	require.ErrorIs(t, err, readErr)
}

func TestCoordinateRetriesTransientRead(t *testing.T) {
	calls := 0
	coord := New(&mockRepository{
		listPendingFunc: func(ctx context.Context, date time.Time) ([]domain.ScheduledTask, error) {
			calls++
			if calls == 1 {
				return nil, domain.Transient(errors.New("deadlock detected"))
			}
			return nil, nil
		},
	})

	_, err := coord.Coordinate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRequirementsFor(t *testing.T) {
	tests := []struct {
		taskType domain.TaskType
		want     []domain.ResourceType
	}{
		{domain.TaskFeeding, []domain.ResourceType{domain.ResourceNutrients, domain.ResourceWater, domain.ResourceEquipment, domain.ResourceTime}},
		{domain.TaskWatering, []domain.ResourceType{domain.ResourceWater, domain.ResourceTime}},
		{domain.TaskPruning, []domain.ResourceType{domain.ResourceEquipment, domain.ResourceTime}},
		{domain.TaskMonitoring, []domain.ResourceType{domain.ResourceEquipment, domain.ResourceTime}},
		{domain.TaskGeneral, []domain.ResourceType{domain.ResourceTime}},
		{domain.TaskHarvesting, []domain.ResourceType{domain.ResourceTime}},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			task := pendingTask("t", "g", tt.taskType, domain.PriorityMedium, at(9, 0), 45, nil)
			assert.Equal(t, tt.want, requirementTypes(task))

			for _, req := range requirementsFor(task) {
				if req.Type == domain.ResourceTime {
					assert.Equal(t, 45.0, req.Quantity)
				}
			}
		})
	}
}

func TestCompatibilityScore(t *testing.T) {
	seed := pendingTask("seed", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 30, nil)

	t.Run("same garden and time beats distant sibling", func(t *testing.T) {
		near := pendingTask("near", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 30, nil)
		far := pendingTask("far", "g2", domain.TaskFeeding, domain.PriorityHigh, at(10, 30), 30, nil)
		assert.Greater(t, compatibilityScore(seed, near), compatibilityScore(seed, far))
	})

	t.Run("type pair bonus", func(t *testing.T) {
		assert.Equal(t, 3.0, typePairBonus(domain.TaskFeeding, domain.TaskMonitoring))
		assert.Equal(t, 3.0, typePairBonus(domain.TaskMonitoring, domain.TaskFeeding))
		assert.Equal(t, 0.0, typePairBonus(domain.TaskFeeding, domain.TaskWatering))
		assert.Equal(t, 4.0, typePairBonus(domain.TaskPruning, domain.TaskTraining))
		assert.Equal(t, 2.0, typePairBonus(domain.TaskWatering, domain.TaskMonitoring))
	})
}

func TestBatchEfficiency(t *testing.T) {
	// 3 tasks, 4 shared resources, single garden, under 120 minutes:
	// 50 + 30 + 20 + 15 = 115, clamped to 100.
	assert.Equal(t, 100.0, batchEfficiency(3, 4, 1, 90*time.Minute))
	// Long multi-garden batch pays the duration penalty:
	// 50 + 10 + 5 - (180-120)*0.1 = 59.
	assert.InDelta(t, 59.0, batchEfficiency(1, 1, 2, 180*time.Minute), 0.001)
}

func TestResourceUtilization(t *testing.T) {
	tasks := []domain.ScheduledTask{
		pendingTask("t1", "g1", domain.TaskFeeding, domain.PriorityHigh, at(9, 0), 30, nil),
		pendingTask("t2", "g2", domain.TaskFeeding, domain.PriorityHigh, at(10, 0), 30, nil),
		pendingTask("t3", "g1", domain.TaskWatering, domain.PriorityMedium, at(11, 0), 20, nil),
	}
	coord := New(fixedRepo(tasks))

	utils, err := coord.ResourceUtilization(context.Background(), testDay)
	require.NoError(t, err)

	byResource := make(map[domain.ResourceType]Utilization)
	for _, u := range utils {
		byResource[u.Resource] = u
	}

	assert.Equal(t, 4.0, byResource[domain.ResourceNutrients].Used)
	assert.Equal(t, 25.0, byResource[domain.ResourceWater].Used)
	assert.Equal(t, 2.0, byResource[domain.ResourceEquipment].Used)
	assert.Equal(t, 80.0, byResource[domain.ResourceTime].Used)

	assert.InDelta(t, 4.0, byResource[domain.ResourceNutrients].Percent, 0.001)
	assert.InDelta(t, 5.0, byResource[domain.ResourceWater].Percent, 0.001)
	assert.InDelta(t, 80.0/480.0*100, byResource[domain.ResourceTime].Percent, 0.001)
}
