package domain

import "time"

// Growth stage thresholds in days since planting. These are part of the
// scheduling contract: the generator and the notifier both derive stages
// from this single table so milestone detection and task eligibility can
// never disagree.
const (
	SeedlingStartDay   = 7
	VegetativeStartDay = 21
	FloweringStartDay  = 56
	HarvestStartDay    = 112
)

// StageForAge maps days-since-planting to the expected growth stage.
// Curing is never age-derived; it is only entered by explicit user action.
func StageForAge(days int) GrowthStage {
	switch {
	case days < SeedlingStartDay:
		return StageGermination
	case days < VegetativeStartDay:
		return StageSeedling
	case days < FloweringStartDay:
		return StageVegetative
	case days < HarvestStartDay:
		return StageFlowering
	default:
		return StageHarvest
	}
}

// StageStartDay returns the day-since-planting at which the stage begins.
func StageStartDay(stage GrowthStage) int {
	switch stage {
	case StageSeedling:
		return SeedlingStartDay
	case StageVegetative:
		return VegetativeStartDay
	case StageFlowering:
		return FloweringStartDay
	case StageHarvest, StageCuring:
		return HarvestStartDay
	default:
		return 0
	}
}

// AgeDays returns whole days elapsed between planting and now.
func AgeDays(planted, now time.Time) int {
	return int(now.Sub(planted).Hours() / 24)
}

// DaysInStage returns how many days the garden has spent in its
// age-derived stage.
func DaysInStage(ageDays int) int {
	return ageDays - StageStartDay(StageForAge(ageDays))
}
