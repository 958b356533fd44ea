// Package filtering narrows the technology catalog before it is scored.
package filtering

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/catalog"
)

// Filter represents a single filtering step applied to technologies.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(c *catalog.Catalog) error
	Apply(techs []catalog.Technology) ([]catalog.Technology, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns a copy of c
// holding only the technologies that passed every enabled step. Questions are
// shared with c.
func Run(c *catalog.Catalog, steps []Filter, logger *zap.Logger) (*catalog.Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(c); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	techs := append([]catalog.Technology(nil), c.Technologies...)
	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(techs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		techs = next
	}

	return &catalog.Catalog{Technologies: techs, Questions: c.Questions}, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the technologies for which pred is true and the ids of the dropped ones.
func keep(techs []catalog.Technology, pred func(catalog.Technology) bool) ([]catalog.Technology, []string) {
	out := techs[:0:0]
	var dropped []string
	for _, t := range techs {
		if pred(t) {
			out = append(out, t)
			continue
		}
		dropped = append(dropped, t.ID)
	}
	return out, dropped
}
