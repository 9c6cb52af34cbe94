// Package templates holds the compiled-in task template catalogue.
// Templates are grouped by growing method and ordered; the generator
// observes them in catalogue order, so reordering changes behaviour.
package templates

import (
	"fmt"

	"github.com/rezkam/growmaster/internal/domain"
)

// Template is a parameterised recipe for synthesising a task.
type Template struct {
	Name               string
	Description        string
	Type               domain.TaskType
	Stage              domain.GrowthStage
	DaysFromStageStart int
	FrequencyDays      int // 0 = at most once per garden per stage occurrence
	Priority           domain.Priority
	Duration           int // minutes
	RequiredMaterials  []string
	Instructions       string
}

// Library is the immutable template catalogue. Safe for concurrent use
// after construction.
type Library struct {
	byMethod map[domain.GrowingMethod][]Template
}

// New builds the catalogue and validates it. The hydroponic set is the
// fallback for unknown methods, so its absence is a construction error.
func New() (*Library, error) {
	lib := &Library{
		byMethod: map[domain.GrowingMethod][]Template{
			domain.MethodHydroponic: hydroponicTemplates(),
			domain.MethodSoil:       soilTemplates(),
			domain.MethodAeroponic:  aeroponicTemplates(),
		},
	}

	if err := lib.validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

// ForMethod returns the ordered template set for a growing method.
// Unknown methods resolve to the hydroponic catalogue.
func (l *Library) ForMethod(method domain.GrowingMethod) []Template {
	if ts, ok := l.byMethod[method]; ok {
		return ts
	}
	return l.byMethod[domain.MethodHydroponic]
}

func (l *Library) validate() error {
	if len(l.byMethod[domain.MethodHydroponic]) == 0 {
		return fmt.Errorf("template catalogue missing hydroponic fallback set")
	}

	for method, ts := range l.byMethod {
		for _, t := range ts {
			if t.Name == "" {
				return fmt.Errorf("template catalogue: unnamed template under method %q", method)
			}
			if t.Duration <= 0 {
				return fmt.Errorf("template %q: non-positive duration %d", t.Name, t.Duration)
			}
			if t.FrequencyDays < 0 {
				return fmt.Errorf("template %q: negative frequency %d", t.Name, t.FrequencyDays)
			}
			if t.DaysFromStageStart < 0 {
				return fmt.Errorf("template %q: negative stage offset %d", t.Name, t.DaysFromStageStart)
			}
			if _, err := domain.NewGrowthStage(string(t.Stage)); err != nil {
				return fmt.Errorf("template %q: %w", t.Name, err)
			}
		}
	}
	return nil
}
