// Package coordinator plans one day of garden work: it analyses resource
// needs for every pending task, resolves contention, groups compatible
// tasks into batches, and lays the batches out on the clock. The plan is
// a pure read of the store; nothing is written back.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
	"github.com/rezkam/growmaster/internal/retry"
)

const (
	// workdayStartHour is the wall-clock hour the first batch is slotted at.
	workdayStartHour = 8
	// batchBuffer separates consecutive batches on the schedule.
	batchBuffer = 15 * time.Minute
	// sharingWindow is the largest gap between batches that still allows
	// resource sharing between them.
	sharingWindow = 60 * time.Minute
)

// SharingOpportunity flags two adjacent batches that could pool resources.
type SharingOpportunity struct {
	FirstBatch      int // indexes into Result.Batches
	SecondBatch     int
	SharedResources []domain.ResourceType
	PotentialSaving time.Duration
}

// Result is the full coordination plan for one day.
type Result struct {
	Date                 time.Time
	Batches              []Batch
	Conflicts            []Conflict
	SharingOpportunities []SharingOpportunity
	TimeSavings          time.Duration
	Efficiency           float64 // mean of batch efficiencies, 0..100
}

// Utilization reports projected consumption of one resource against its
// daily capacity.
type Utilization struct {
	Resource domain.ResourceType
	Used     float64
	Capacity float64
	Percent  float64
}

// Daily capacities for utilization reporting. Time is minutes of labour,
// nutrients and water are litres, equipment is concurrent units.
const (
	capacityTimeMinutes = 480
	capacityNutrients   = 100
	capacityWater       = 500
	capacityEquipment   = 10
)

// Coordinator builds daily execution plans from pending tasks.
// Stateless across invocations and safe for concurrent use.
type Coordinator struct {
	repo Repository
}

// New creates a Coordinator backed by the given repository.
func New(repo Repository) *Coordinator {
	return &Coordinator{repo: repo}
}

// Coordinate plans the given date. A day with no pending tasks yields a
// zero-valued result. Any store read failure fails the whole call: a plan
// built from partial data would be worse than no plan.
func (c *Coordinator) Coordinate(ctx context.Context, date time.Time) (Result, error) {
	tasks, err := retry.Once(ctx, "list_pending_tasks", func(ctx context.Context) ([]domain.ScheduledTask, error) {
		return c.repo.ListPendingTasksForDate(ctx, date)
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to load pending tasks: %w", err)
	}

	result := Result{Date: date}
	if len(tasks) == 0 {
		return result, nil
	}

	conflicts := detectResourceConflicts(tasks)
	conflicts = append(conflicts, detectSpaceConflicts(tasks)...)
	result.Conflicts = conflicts

	resolved := resolveConflicts(tasks, conflicts)
	result.Batches = buildBatches(resolved)

	scheduleBatches(result.Batches, date)
	result.SharingOpportunities = findSharingOpportunities(result.Batches)

	result.TimeSavings = timeSavings(len(tasks), len(result.Batches))
	result.Efficiency = meanEfficiency(result.Batches)

	slog.InfoContext(ctx, "coordination plan built",
		"date", date.Format(time.DateOnly),
		"tasks", len(tasks),
		"batches", len(result.Batches),
		"conflicts", len(conflicts),
		"efficiency", result.Efficiency)

	return result, nil
}

// scheduleBatches orders batches by combined efficiency and urgency, then
// assigns start slots from 08:00 with a buffer between batches.
func scheduleBatches(batches []Batch, date time.Time) {
	sort.SliceStable(batches, func(a, b int) bool {
		sa, sb := combinedScore(batches[a]), combinedScore(batches[b])
		if sa != sb {
			return sa > sb
		}
		return batches[a].OptimalStart.Before(batches[b].OptimalStart)
	})

	y, m, d := date.Date()
	slot := time.Date(y, m, d, workdayStartHour, 0, 0, 0, date.Location())
	for i := range batches {
		batches[i].ScheduledStart = slot
		slot = slot.Add(batches[i].TotalDuration + batchBuffer)
	}
}

func combinedScore(b Batch) float64 {
	var urgency float64
	for _, task := range b.Tasks {
		urgency += task.Priority.UrgencyWeight()
	}
	urgency /= float64(len(b.Tasks))
	return 0.6*b.Efficiency + 0.4*urgency
}

// findSharingOpportunities looks at each batch pair on the schedule and
// flags those close enough in time to pool their shared resources.
func findSharingOpportunities(batches []Batch) []SharingOpportunity {
	var opps []SharingOpportunity
	for i := 0; i < len(batches); i++ {
		for j := i + 1; j < len(batches); j++ {
			gap := batches[j].ScheduledStart.Sub(batches[i].End())
			if gap < 0 || gap > sharingWindow {
				continue
			}
			shared := sharedBetween(batches[i], batches[j])
			if len(shared) == 0 {
				continue
			}
			saving := time.Duration(len(shared)) * 5 * time.Minute
			opps = append(opps, SharingOpportunity{
				FirstBatch:      i,
				SecondBatch:     j,
				SharedResources: shared,
				PotentialSaving: min(saving, 30*time.Minute),
			})
		}
	}
	return opps
}

func sharedBetween(a, b Batch) []domain.ResourceType {
	set := make(map[domain.ResourceType]bool, len(a.SharedResources))
	for _, r := range a.SharedResources {
		set[r] = true
	}
	var shared []domain.ResourceType
	for _, r := range b.SharedResources {
		if set[r] {
			shared = append(shared, r)
		}
	}
	return shared
}

// timeSavings estimates minutes saved by batching versus running each task
// with its own setup and teardown.
func timeSavings(taskCount, batchCount int) time.Duration {
	saved := 5*taskCount - 10*batchCount
	if saved < 0 {
		saved = 0
	}
	return time.Duration(saved) * time.Minute
}

func meanEfficiency(batches []Batch) float64 {
	if len(batches) == 0 {
		return 0
	}
	var sum float64
	for _, b := range batches {
		sum += b.Efficiency
	}
	return sum / float64(len(batches))
}

// ResourceUtilization projects the date's pending workload onto the daily
// resource capacities. Resources with no capacity defined report zero
// capacity and a zero percentage.
func (c *Coordinator) ResourceUtilization(ctx context.Context, date time.Time) ([]Utilization, error) {
	tasks, err := retry.Once(ctx, "list_pending_tasks", func(ctx context.Context) ([]domain.ScheduledTask, error) {
		return c.repo.ListPendingTasksForDate(ctx, date)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load pending tasks: %w", err)
	}

	used := make(map[domain.ResourceType]float64)
	for _, task := range tasks {
		for _, req := range requirementsFor(task) {
			used[req.Type] += req.Quantity
		}
	}

	capacities := []Utilization{
		{Resource: domain.ResourceTime, Capacity: capacityTimeMinutes},
		{Resource: domain.ResourceNutrients, Capacity: capacityNutrients},
		{Resource: domain.ResourceWater, Capacity: capacityWater},
		{Resource: domain.ResourceEquipment, Capacity: capacityEquipment},
	}
	for i := range capacities {
		capacities[i].Used = used[capacities[i].Resource]
		if capacities[i].Capacity > 0 {
			capacities[i].Percent = math.Min(100, capacities[i].Used/capacities[i].Capacity*100)
		}
	}
	return capacities, nil
}
