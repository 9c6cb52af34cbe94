package domain

// GrowthStage represents a phase of the plant lifecycle.
// Value object - immutable string enum.
type GrowthStage string

const (
	StageGermination GrowthStage = "germination"
	StageSeedling    GrowthStage = "seedling"
	StageVegetative  GrowthStage = "vegetative"
	StageFlowering   GrowthStage = "flowering"
	StageHarvest     GrowthStage = "harvest"
	StageCuring      GrowthStage = "curing"
)

// GrowingMethod selects the template catalogue for a garden.
// Value object - immutable string enum.
type GrowingMethod string

const (
	MethodSoil       GrowingMethod = "soil"
	MethodHydroponic GrowingMethod = "hydroponic"
	MethodAeroponic  GrowingMethod = "aeroponic"
	MethodCoco       GrowingMethod = "coco"
	MethodSoilless   GrowingMethod = "soilless"
	MethodGreenhouse GrowingMethod = "greenhouse"
	MethodOutdoor    GrowingMethod = "outdoor"
	MethodMixed      GrowingMethod = "mixed"
)

// TaskType classifies a task for requirement analysis and batching.
// Value object - immutable string enum.
type TaskType string

const (
	TaskWatering      TaskType = "watering"
	TaskFeeding       TaskType = "feeding"
	TaskMonitoring    TaskType = "monitoring"
	TaskPruning       TaskType = "pruning"
	TaskTraining      TaskType = "training"
	TaskHarvesting    TaskType = "harvesting"
	TaskMaintenance   TaskType = "maintenance"
	TaskEnvironmental TaskType = "environmental"
	TaskTransplanting TaskType = "transplanting"
	TaskInspection    TaskType = "inspection"
	TaskLighting      TaskType = "lighting"
	TaskGeneral       TaskType = "general"
)

// Priority is shared by tasks and notifications.
// Value object - immutable string enum.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ResourceType tags a shareable resource in the coordination plan.
type ResourceType string

const (
	ResourceNutrients ResourceType = "nutrients"
	ResourceWater     ResourceType = "water"
	ResourceEquipment ResourceType = "equipment"
	ResourceLighting  ResourceType = "lighting"
	ResourceTime      ResourceType = "time"
	ResourceSpace     ResourceType = "space"
)

// NotificationType classifies a notification event.
type NotificationType string

const (
	NotifyTaskReminder    NotificationType = "task_reminder"
	NotifyTaskOverdue     NotificationType = "task_overdue"
	NotifySystemAlert     NotificationType = "system_alert"
	NotifyGrowthMilestone NotificationType = "growth_milestone"
	NotifyResourceAlert   NotificationType = "resource_alert"
	NotifyHarvestReady    NotificationType = "harvest_ready"
)
