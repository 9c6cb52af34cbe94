package domain

import (
	"fmt"
	"strings"
)

// NewGrowingMethod validates and creates a GrowingMethod.
func NewGrowingMethod(s string) (GrowingMethod, error) {
	method := GrowingMethod(strings.ToLower(strings.TrimSpace(s)))

	switch method {
	case MethodSoil, MethodHydroponic, MethodAeroponic, MethodCoco,
		MethodSoilless, MethodGreenhouse, MethodOutdoor, MethodMixed:
		return method, nil
	default:
		return "", fmt.Errorf("%w: growing method %q", ErrInvalidInput, s)
	}
}

// NewGrowthStage validates and creates a GrowthStage.
func NewGrowthStage(s string) (GrowthStage, error) {
	stage := GrowthStage(strings.ToLower(strings.TrimSpace(s)))

	switch stage {
	case StageGermination, StageSeedling, StageVegetative,
		StageFlowering, StageHarvest, StageCuring:
		return stage, nil
	default:
		return "", fmt.Errorf("%w: growth stage %q", ErrInvalidInput, s)
	}
}

// NewTaskType validates and creates a TaskType.
// Empty input defaults to TaskGeneral.
func NewTaskType(s string) (TaskType, error) {
	if s == "" {
		return TaskGeneral, nil
	}

	taskType := TaskType(strings.ToLower(s))

	switch taskType {
	case TaskWatering, TaskFeeding, TaskMonitoring, TaskPruning,
		TaskTraining, TaskHarvesting, TaskMaintenance, TaskEnvironmental,
		TaskTransplanting, TaskInspection, TaskLighting, TaskGeneral:
		return taskType, nil
	default:
		return "", fmt.Errorf("%w: task type %q", ErrInvalidInput, s)
	}
}

// NewPriority validates and creates a Priority.
// Empty input defaults to PriorityMedium.
func NewPriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}

	priority := Priority(strings.ToLower(s))

	switch priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return priority, nil
	default:
		return "", fmt.Errorf("%w: priority %q", ErrInvalidInput, s)
	}
}

// Rank orders priorities for scheduling decisions: critical > high > medium > low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// UrgencyWeight is the urgency contribution used when ordering batches.
func (p Priority) UrgencyWeight() float64 {
	switch p {
	case PriorityCritical:
		return 100
	case PriorityHigh:
		return 75
	case PriorityMedium:
		return 50
	default:
		return 25
	}
}
