package coordinator

import (
	"sort"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// travelBuffer is the minimum gap required between physical-presence tasks
// at different locations.
const travelBuffer = 15 * time.Minute

// Conflict records two tasks contending for the same resource or for the
// grower's physical presence.
type Conflict struct {
	Resource     domain.ResourceType // ResourceSpace for presence conflicts
	FirstTaskID  string
	SecondTaskID string
	Overlap      time.Duration
	Flexibility  time.Duration // minimum slip available to resolve the pair
}

// occupation is one task's claim on a resource for a span of time.
type occupation struct {
	taskIdx     int
	start, end  time.Time
	flexibility time.Duration
}

func taskEnd(t domain.ScheduledTask) time.Time {
	return t.DueDate.Add(time.Duration(t.EstimatedDuration) * time.Minute)
}

// scanOrder is the fixed resource iteration order. Map iteration is
// randomised in Go, and conflict resolution must be deterministic.
var scanOrder = []domain.ResourceType{
	domain.ResourceNutrients,
	domain.ResourceWater,
	domain.ResourceEquipment,
	domain.ResourceLighting,
	domain.ResourceTime,
}

// detectResourceConflicts scans each resource's occupations in start-time
// order and reports adjacent overlaps.
func detectResourceConflicts(tasks []domain.ScheduledTask) []Conflict {
	byResource := make(map[domain.ResourceType][]occupation)
	for i, task := range tasks {
		for _, req := range requirementsFor(task) {
			byResource[req.Type] = append(byResource[req.Type], occupation{
				taskIdx:     i,
				start:       task.DueDate,
				end:         taskEnd(task),
				flexibility: req.Flexibility,
			})
		}
	}

	var conflicts []Conflict
	for _, resource := range scanOrder {
		occs := byResource[resource]
		sort.SliceStable(occs, func(a, b int) bool {
			if !occs[a].start.Equal(occs[b].start) {
				return occs[a].start.Before(occs[b].start)
			}
			return tasks[occs[a].taskIdx].ID < tasks[occs[b].taskIdx].ID
		})

		for i := 0; i+1 < len(occs); i++ {
			a, b := occs[i], occs[i+1]
			if !a.end.After(b.start) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Resource:     resource,
				FirstTaskID:  tasks[a.taskIdx].ID,
				SecondTaskID: tasks[b.taskIdx].ID,
				Overlap:      a.end.Sub(b.start),
				Flexibility:  min(a.flexibility, b.flexibility),
			})
		}
	}
	return conflicts
}

func physicalPresence(t domain.TaskType) bool {
	switch t {
	case domain.TaskPruning, domain.TaskTraining, domain.TaskHarvesting, domain.TaskMaintenance:
		return true
	}
	return false
}

// detectSpaceConflicts finds physical-presence task pairs at different
// locations scheduled too close together to allow travel between them.
func detectSpaceConflicts(tasks []domain.ScheduledTask) []Conflict {
	var present []int
	for i, task := range tasks {
		if physicalPresence(task.Type) && task.GardenLocation != nil {
			present = append(present, i)
		}
	}

	var conflicts []Conflict
	for x := 0; x < len(present); x++ {
		for y := x + 1; y < len(present); y++ {
			a, b := tasks[present[x]], tasks[present[y]]
			if *a.GardenLocation == *b.GardenLocation {
				continue
			}
			// Order the pair chronologically before measuring the gap.
			if b.DueDate.Before(a.DueDate) {
				a, b = b, a
			}
			if gap := b.DueDate.Sub(taskEnd(a)); gap < travelBuffer {
				conflicts = append(conflicts, Conflict{
					Resource:     domain.ResourceSpace,
					FirstTaskID:  a.ID,
					SecondTaskID: b.ID,
					Overlap:      travelBuffer - gap,
					Flexibility:  travelBuffer,
				})
			}
		}
	}
	return conflicts
}

// resolveConflicts applies conflict resolution to an in-memory copy of the
// task list. Store state is never touched. For each conflict, if the pair
// still overlaps after earlier shifts, the losing task slips forward:
// the lower-priority task by the pair's flexibility for resource conflicts,
// the later task by the travel buffer for space conflicts.
func resolveConflicts(tasks []domain.ScheduledTask, conflicts []Conflict) []domain.ScheduledTask {
	resolved := make([]domain.ScheduledTask, len(tasks))
	copy(resolved, tasks)

	byID := make(map[string]int, len(resolved))
	for i, task := range resolved {
		byID[task.ID] = i
	}

	for _, c := range conflicts {
		ai, aok := byID[c.FirstTaskID]
		bi, bok := byID[c.SecondTaskID]
		if !aok || !bok || c.Flexibility <= 0 {
			continue
		}
		a, b := &resolved[ai], &resolved[bi]

		if c.Resource == domain.ResourceSpace {
			later := b
			if a.DueDate.After(b.DueDate) {
				later = a
			}
			later.DueDate = later.DueDate.Add(travelBuffer)
			continue
		}

		first, second := a, b
		if second.DueDate.Before(first.DueDate) {
			first, second = second, first
		}
		if !taskEnd(*first).After(second.DueDate) {
			continue // earlier shifts already cleared this pair
		}

		loser := lowerPriority(a, b)
		loser.DueDate = loser.DueDate.Add(c.Flexibility)
	}
	return resolved
}

// lowerPriority picks which of the pair slips. Ties break on due date then
// task ID so resolution stays deterministic.
func lowerPriority(a, b *domain.ScheduledTask) *domain.ScheduledTask {
	ra, rb := a.Priority.Rank(), b.Priority.Rank()
	switch {
	case ra < rb:
		return a
	case rb < ra:
		return b
	case a.DueDate.After(b.DueDate):
		return a
	case b.DueDate.After(a.DueDate):
		return b
	case a.ID > b.ID:
		return a
	default:
		return b
	}
}
