package coordinator

import (
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// ResourceRequirement is one resource a task consumes while it runs.
// Flexibility is how far the task can slip when that resource is contended.
type ResourceRequirement struct {
	Type        domain.ResourceType
	Quantity    float64
	Flexibility time.Duration
}

// requirementsFor maps a task type to its default resource requirements.
// Kept as the single dispatch point so requirement analysis, conflict
// flexibility, and utilization reporting can never diverge.
func requirementsFor(task domain.ScheduledTask) []ResourceRequirement {
	duration := float64(task.EstimatedDuration)

	switch task.Type {
	case domain.TaskFeeding:
		return []ResourceRequirement{
			{Type: domain.ResourceNutrients, Quantity: 2, Flexibility: 30 * time.Minute},
			{Type: domain.ResourceWater, Quantity: 10},
			{Type: domain.ResourceEquipment, Quantity: 1},
			{Type: domain.ResourceTime, Quantity: duration, Flexibility: 30 * time.Minute},
		}
	case domain.TaskWatering:
		return []ResourceRequirement{
			{Type: domain.ResourceWater, Quantity: 5},
			{Type: domain.ResourceTime, Quantity: duration, Flexibility: 60 * time.Minute},
		}
	case domain.TaskPruning:
		return []ResourceRequirement{
			{Type: domain.ResourceEquipment, Quantity: 1},
			{Type: domain.ResourceTime, Quantity: duration, Flexibility: 120 * time.Minute},
		}
	case domain.TaskMonitoring:
		return []ResourceRequirement{
			{Type: domain.ResourceEquipment, Quantity: 1},
			{Type: domain.ResourceTime, Quantity: duration, Flexibility: 180 * time.Minute},
		}
	default:
		return []ResourceRequirement{
			{Type: domain.ResourceTime, Quantity: duration, Flexibility: 60 * time.Minute},
		}
	}
}

// requirementTypes returns the distinct resource tags of a task's
// requirements, preserving requirement order.
func requirementTypes(task domain.ScheduledTask) []domain.ResourceType {
	reqs := requirementsFor(task)
	types := make([]domain.ResourceType, 0, len(reqs))
	seen := make(map[domain.ResourceType]bool, len(reqs))
	for _, r := range reqs {
		if !seen[r.Type] {
			seen[r.Type] = true
			types = append(types, r.Type)
		}
	}
	return types
}

// typePairBonus returns the fixed compatibility bonus for batching two
// task types together. Order-insensitive.
func typePairBonus(a, b domain.TaskType) float64 {
	pair := func(x, y domain.TaskType) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	switch {
	case pair(domain.TaskFeeding, domain.TaskMonitoring):
		return 3
	case pair(domain.TaskPruning, domain.TaskTraining):
		return 4
	case pair(domain.TaskWatering, domain.TaskMonitoring):
		return 2
	default:
		return 0
	}
}
