package coordinator

import (
	"math"
	"sort"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

const (
	// maxBatchSize caps a batch at the seed plus its four best companions.
	maxBatchSize = 5
	// batchWindow is how far a candidate's due time may sit from the seed's.
	batchWindow = 120 * time.Minute
)

// Batch is a group of compatible tasks planned for back-to-back execution.
type Batch struct {
	Tasks           []domain.ScheduledTask
	TotalDuration   time.Duration
	SharedResources []domain.ResourceType
	OptimalStart    time.Time // earliest due time in the batch
	ScheduledStart  time.Time // wall-clock slot assigned by execution ordering
	Efficiency      float64   // 0..100
	GardenIDs       []string
}

// End returns when the batch finishes if started at its scheduled slot.
func (b Batch) End() time.Time {
	return b.ScheduledStart.Add(b.TotalDuration)
}

// buildBatches greedily groups tasks: the highest-priority remaining task
// seeds a batch and pulls in its best-scoring compatible companions.
func buildBatches(tasks []domain.ScheduledTask) []Batch {
	pool := make([]domain.ScheduledTask, len(tasks))
	copy(pool, tasks)

	var batches []Batch
	for len(pool) > 0 {
		sortPool(pool)
		seed := pool[0]
		members := []domain.ScheduledTask{seed}

		type scored struct {
			task  domain.ScheduledTask
			score float64
		}
		var candidates []scored
		for _, candidate := range pool[1:] {
			if !batchable(seed, candidate) {
				continue
			}
			candidates = append(candidates, scored{candidate, compatibilityScore(seed, candidate)})
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			if candidates[a].score != candidates[b].score {
				return candidates[a].score > candidates[b].score
			}
			if !candidates[a].task.DueDate.Equal(candidates[b].task.DueDate) {
				return candidates[a].task.DueDate.Before(candidates[b].task.DueDate)
			}
			return candidates[a].task.ID < candidates[b].task.ID
		})

		for _, c := range candidates {
			if len(members) >= maxBatchSize {
				break
			}
			members = append(members, c.task)
		}

		batches = append(batches, newBatch(members))
		pool = remove(pool, members)
	}
	return batches
}

func sortPool(pool []domain.ScheduledTask) {
	sort.SliceStable(pool, func(a, b int) bool {
		ra, rb := pool[a].Priority.Rank(), pool[b].Priority.Rank()
		if ra != rb {
			return ra > rb
		}
		if !pool[a].DueDate.Equal(pool[b].DueDate) {
			return pool[a].DueDate.Before(pool[b].DueDate)
		}
		return pool[a].ID < pool[b].ID
	})
}

// batchable reports whether candidate can join seed's batch: colocated
// (or seed unplaced), at least one shared resource tag, due within the
// batching window.
func batchable(seed, candidate domain.ScheduledTask) bool {
	if seed.GardenLocation != nil &&
		(candidate.GardenLocation == nil || *candidate.GardenLocation != *seed.GardenLocation) {
		return false
	}
	if countShared(seed, candidate) == 0 {
		return false
	}
	delta := candidate.DueDate.Sub(seed.DueDate)
	if delta < 0 {
		delta = -delta
	}
	return delta <= batchWindow
}

func countShared(a, b domain.ScheduledTask) int {
	set := make(map[domain.ResourceType]bool)
	for _, r := range requirementTypes(a) {
		set[r] = true
	}
	n := 0
	for _, r := range requirementTypes(b) {
		if set[r] {
			n++
		}
	}
	return n
}

func sameLocation(a, b domain.ScheduledTask) bool {
	if a.GardenLocation == nil || b.GardenLocation == nil {
		return a.GardenLocation == b.GardenLocation
	}
	return *a.GardenLocation == *b.GardenLocation
}

// compatibilityScore rates how well a candidate pairs with the seed.
func compatibilityScore(seed, candidate domain.ScheduledTask) float64 {
	var score float64
	if candidate.GardenID == seed.GardenID {
		score += 10
	}
	if sameLocation(seed, candidate) {
		score += 5
	}
	score += 2 * float64(countShared(seed, candidate))

	deltaMin := math.Abs(candidate.DueDate.Sub(seed.DueDate).Minutes())
	score += math.Max(0, (60-deltaMin)*0.1)

	score += typePairBonus(seed.Type, candidate.Type)
	return score
}

func newBatch(members []domain.ScheduledTask) Batch {
	b := Batch{Tasks: members, OptimalStart: members[0].DueDate}

	sharedSeen := make(map[domain.ResourceType]bool)
	gardenSeen := make(map[string]bool)
	for _, task := range members {
		b.TotalDuration += time.Duration(task.EstimatedDuration) * time.Minute
		if task.DueDate.Before(b.OptimalStart) {
			b.OptimalStart = task.DueDate
		}
		for _, r := range requirementTypes(task) {
			if !sharedSeen[r] {
				sharedSeen[r] = true
				b.SharedResources = append(b.SharedResources, r)
			}
		}
		if !gardenSeen[task.GardenID] {
			gardenSeen[task.GardenID] = true
			b.GardenIDs = append(b.GardenIDs, task.GardenID)
		}
	}

	b.Efficiency = batchEfficiency(len(members), len(b.SharedResources), len(b.GardenIDs), b.TotalDuration)
	return b
}

// batchEfficiency scores a batch 0..100: more tasks and more shared
// resources raise it, spanning gardens and running long lower it.
func batchEfficiency(taskCount, sharedCount, gardenCount int, total time.Duration) float64 {
	score := 50.0
	score += 10 * float64(taskCount)
	score += 5 * float64(sharedCount)
	if gardenCount == 1 {
		score += 15
	}
	if over := total.Minutes() - 120; over > 0 {
		score -= over * 0.1
	}
	return math.Max(0, math.Min(100, score))
}

func remove(pool, members []domain.ScheduledTask) []domain.ScheduledTask {
	taken := make(map[string]bool, len(members))
	for _, m := range members {
		taken[m.ID] = true
	}
	kept := pool[:0]
	for _, task := range pool {
		if !taken[task.ID] {
			kept = append(kept, task)
		}
	}
	return kept
}
