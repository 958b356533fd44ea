package scoring

import (
	"sort"

	"github.com/spigell/stack-advisor/internal/catalog"
)

// DefaultTop is the number of technologies recommended per category.
const DefaultTop = 2

// Weights are the multipliers applied to each axis weight.
type Weights struct {
	ProjectType float64 `mapstructure:"project-type" json:"projectType"`
	Scale       float64 `mapstructure:"scale" json:"scale"`
	Experience  float64 `mapstructure:"experience" json:"experience"`
	Priority    float64 `mapstructure:"priority" json:"priority"`
	Features    float64 `mapstructure:"features" json:"features"`
}

// DefaultWeights doubles project type and gives priority one and a half.
var DefaultWeights = Weights{
	ProjectType: 2,
	Scale:       1,
	Experience:  1,
	Priority:    1.5,
	Features:    1,
}

func (w Weights) For(axis catalog.Axis) float64 {
	switch axis {
	case catalog.ProjectType:
		return w.ProjectType
	case catalog.Scale:
		return w.Scale
	case catalog.Experience:
		return w.Experience
	case catalog.Priority:
		return w.Priority
	case catalog.Features:
		return w.Features
	default:
		return 0
	}
}

// Answers maps an axis to the single selected answer value.
type Answers map[catalog.Axis]string

// Recommendations holds the ranked technologies per category.
type Recommendations map[catalog.Category][]catalog.Technology

// Scored is a technology with its computed score.
type Scored struct {
	Technology catalog.Technology
	Score      float64
}

type Engine struct {
	weights Weights
	top     int
}

// New creates an engine. A non-positive top falls back to DefaultTop.
func New(weights Weights, top int) *Engine {
	if top <= 0 {
		top = DefaultTop
	}
	return &Engine{weights: weights, top: top}
}

// Default returns an engine with the default weights and limit.
func Default() *Engine {
	return New(DefaultWeights, DefaultTop)
}

// Score computes the weighted sum of the answered axes for tech.
func (e *Engine) Score(tech catalog.Technology, answers Answers) float64 {
	var score float64
	for _, axis := range catalog.Axes {
		value, ok := answers[axis]
		if !ok || value == "" {
			continue
		}
		score += float64(tech.Scores.Weight(axis, value)) * e.weights.For(axis)
	}
	return score
}

// Rank returns every technology of every category, each category sorted by
// descending score. Equal scores keep catalog order.
func (e *Engine) Rank(c *catalog.Catalog, answers Answers) map[catalog.Category][]Scored {
	ranked := make(map[catalog.Category][]Scored, len(catalog.Categories))
	for _, category := range catalog.Categories {
		ranked[category] = []Scored{}
	}

	if c == nil {
		return ranked
	}

	for _, tech := range c.Technologies {
		ranked[tech.Category] = append(ranked[tech.Category], Scored{
			Technology: tech,
			Score:      e.Score(tech, answers),
		})
	}

	for _, entries := range ranked {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Score > entries[j].Score
		})
	}

	return ranked
}

// Top returns the best scored technologies per category, at most the
// engine limit each.
func (e *Engine) Top(c *catalog.Catalog, answers Answers) map[catalog.Category][]Scored {
	ranked := e.Rank(c, answers)
	for category, entries := range ranked {
		ranked[category] = entries[:min(e.top, len(entries))]
	}
	return ranked
}

// Compute returns the top technologies per category. Every known category is
// present in the result, possibly with no entries.
func (e *Engine) Compute(c *catalog.Catalog, answers Answers) Recommendations {
	top := e.Top(c, answers)
	result := make(Recommendations, len(top))
	for category, entries := range top {
		techs := make([]catalog.Technology, 0, len(entries))
		for _, entry := range entries {
			techs = append(techs, entry.Technology)
		}
		result[category] = techs
	}
	return result
}

// Compute ranks c with the default engine.
func Compute(c *catalog.Catalog, answers Answers) Recommendations {
	return Default().Compute(c, answers)
}
