package templates

import "github.com/rezkam/growmaster/internal/domain"

// Reference catalogue. The template set is part of observable behaviour:
// names feed idempotency checks and titles, so edits here change what the
// generator produces for every garden.

func hydroponicTemplates() []Template {
	return []Template{
		// Germination
		{
			Name:               "Check Seed Germination",
			Description:        "Monitor seeds for germination progress",
			Type:               domain.TaskMonitoring,
			Stage:              domain.StageGermination,
			DaysFromStageStart: 1,
			FrequencyDays:      1,
			Priority:           domain.PriorityHigh,
			Duration:           5,
			RequiredMaterials:  []string{"Magnifying glass"},
			Instructions:       "Check for root emergence and remove ungerminated seeds after 7 days",
		},
		{
			Name:               "Maintain Germination Environment",
			Description:        "Ensure proper temperature and humidity for germination",
			Type:               domain.TaskEnvironmental,
			Stage:              domain.StageGermination,
			DaysFromStageStart: 0,
			FrequencyDays:      1,
			Priority:           domain.PriorityCritical,
			Duration:           10,
			RequiredMaterials:  []string{"Thermometer", "Humidity gauge"},
			Instructions:       "Maintain 75-80°F temperature and 80-90% humidity",
		},

		// Seedling
		{
			Name:               "First Nutrient Solution",
			Description:        "Introduce diluted nutrient solution for seedlings",
			Type:               domain.TaskFeeding,
			Stage:              domain.StageSeedling,
			DaysFromStageStart: 3,
			FrequencyDays:      7,
			Priority:           domain.PriorityHigh,
			Duration:           15,
			RequiredMaterials:  []string{"Nutrient solution", "EC meter", "pH meter"},
			Instructions:       "Use 25% strength nutrient solution, EC 0.8-1.2, pH 5.5-6.5",
		},
		{
			Name:               "Transplant to Growing System",
			Description:        "Move seedlings to main hydroponic system",
			Type:               domain.TaskMaintenance,
			Stage:              domain.StageSeedling,
			DaysFromStageStart: 14,
			FrequencyDays:      0,
			Priority:           domain.PriorityCritical,
			Duration:           30,
			RequiredMaterials:  []string{"Net pots", "Growing medium", "Support clips"},
			Instructions:       "Carefully transplant when 2-3 true leaves are present",
		},

		// Vegetative
		{
			Name:               "Weekly Nutrient Solution Change",
			Description:        "Replace nutrient solution for optimal growth",
			Type:               domain.TaskFeeding,
			Stage:              domain.StageVegetative,
			DaysFromStageStart: 0,
			FrequencyDays:      7,
			Priority:           domain.PriorityCritical,
			Duration:           45,
			RequiredMaterials:  []string{"Fresh nutrients", "pH adjuster", "Clean water"},
			Instructions:       "Full solution change, EC 1.2-1.6, pH 5.5-6.5",
		},
		{
			Name:               "Prune Lower Leaves",
			Description:        "Remove lower yellowing leaves to focus energy",
			Type:               domain.TaskPruning,
			Stage:              domain.StageVegetative,
			DaysFromStageStart: 14,
			FrequencyDays:      14,
			Priority:           domain.PriorityMedium,
			Duration:           20,
			RequiredMaterials:  []string{"Clean scissors", "Sanitizer"},
			Instructions:       "Remove yellowing lower leaves and any dead growth",
		},
		{
			Name:               "LST (Low Stress Training)",
			Description:        "Bend and tie branches to optimize light exposure",
			Type:               domain.TaskTraining,
			Stage:              domain.StageVegetative,
			DaysFromStageStart: 21,
			FrequencyDays:      7,
			Priority:           domain.PriorityMedium,
			Duration:           25,
			RequiredMaterials:  []string{"Soft ties", "Clips"},
			Instructions:       "Gently bend branches to create even canopy",
		},

		// Flowering
		{
			Name:               "Switch to Flowering Nutrients",
			Description:        "Change to flowering-specific nutrient formula",
			Type:               domain.TaskFeeding,
			Stage:              domain.StageFlowering,
			DaysFromStageStart: 0,
			FrequencyDays:      0,
			Priority:           domain.PriorityCritical,
			Duration:           30,
			RequiredMaterials:  []string{"Flowering nutrients", "pH adjuster"},
			Instructions:       "Switch to high P-K flowering formula, reduce nitrogen",
		},
		{
			Name:               "Monitor Flower Development",
			Description:        "Check flowering progress and identify issues",
			Type:               domain.TaskMonitoring,
			Stage:              domain.StageFlowering,
			DaysFromStageStart: 7,
			FrequencyDays:      3,
			Priority:           domain.PriorityHigh,
			Duration:           15,
			RequiredMaterials:  []string{"Magnifying glass", "Notebook"},
			Instructions:       "Check for pistil development, pollen sacs, or hermaphrodites",
		},
		{
			Name:               "Defoliation for Light Penetration",
			Description:        "Remove fan leaves blocking bud sites",
			Type:               domain.TaskPruning,
			Stage:              domain.StageFlowering,
			DaysFromStageStart: 21,
			FrequencyDays:      0,
			Priority:           domain.PriorityMedium,
			Duration:           45,
			RequiredMaterials:  []string{"Clean scissors", "Sanitizer"},
			Instructions:       "Remove large fan leaves blocking light to lower bud sites",
		},

		// Harvest
		{
			Name:               "Check Trichome Development",
			Description:        "Monitor trichomes for harvest readiness",
			Type:               domain.TaskMonitoring,
			Stage:              domain.StageHarvest,
			DaysFromStageStart: 0,
			FrequencyDays:      2,
			Priority:           domain.PriorityCritical,
			Duration:           10,
			RequiredMaterials:  []string{"60x magnifying glass", "Jeweler's loupe"},
			Instructions:       "Look for milky white trichomes with some amber",
		},
		{
			Name:               "Harvest Plants",
			Description:        "Cut and prepare plants for drying",
			Type:               domain.TaskHarvesting,
			Stage:              domain.StageHarvest,
			DaysFromStageStart: 7,
			FrequencyDays:      0,
			Priority:           domain.PriorityCritical,
			Duration:           120,
			RequiredMaterials:  []string{"Sharp scissors", "Gloves", "Drying racks"},
			Instructions:       "Cut at base, trim fan leaves, hang to dry in controlled environment",
		},
	}
}

func soilTemplates() []Template {
	return []Template{
		{
			Name:               "Water Check - Soil",
			Description:        "Check soil moisture and water if needed",
			Type:               domain.TaskWatering,
			Stage:              domain.StageVegetative,
			DaysFromStageStart: 0,
			FrequencyDays:      2,
			Priority:           domain.PriorityHigh,
			Duration:           10,
			RequiredMaterials:  []string{"Watering can", "Moisture meter"},
			Instructions:       "Water when top inch of soil is dry",
		},
	}
}

func aeroponicTemplates() []Template {
	return []Template{
		{
			Name:               "Check Spray Nozzles",
			Description:        "Ensure all spray nozzles are functioning",
			Type:               domain.TaskMaintenance,
			Stage:              domain.StageVegetative,
			DaysFromStageStart: 0,
			FrequencyDays:      3,
			Priority:           domain.PriorityCritical,
			Duration:           15,
			RequiredMaterials:  []string{"Cleaning tools", "Replacement nozzles"},
			Instructions:       "Clean or replace any clogged nozzles",
		},
	}
}
