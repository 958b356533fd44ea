package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Category string

const (
	Frontend Category = "frontend"
	Backend  Category = "backend"
	Database Category = "database"
	Hosting  Category = "hosting"
)

// Categories lists every category in display order.
var Categories = []Category{Frontend, Backend, Database, Hosting}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Axis is one of the questionnaire dimensions used for scoring.
type Axis string

const (
	ProjectType Axis = "projectType"
	Scale       Axis = "scale"
	Experience  Axis = "experience"
	Priority    Axis = "priority"
	Features    Axis = "features"
)

// Axes lists every axis in questionnaire order.
var Axes = []Axis{ProjectType, Scale, Experience, Priority, Features}

const (
	MinWeight = 1
	MaxWeight = 10
)

// Scores maps an axis to answer values and their weights.
// A missing axis or answer value means zero contribution.
type Scores map[Axis]map[string]int

// Weight returns the weight of value on the given axis, or 0 when unknown.
func (s Scores) Weight(axis Axis, value string) int {
	return s[axis][value]
}

type Technology struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
	Logo        string   `yaml:"logo" json:"logo,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Pros        []string `yaml:"pros" json:"pros,omitempty"`
	Cons        []string `yaml:"cons" json:"cons,omitempty"`
	LearnMore   string   `yaml:"learnMore" json:"learnMore,omitempty"`
	Scores      Scores   `yaml:"scores" json:"-"`
}

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon" json:"icon,omitempty"`
}

type Question struct {
	ID          Axis     `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Options     []Option `yaml:"options" json:"options"`
}

// HasOption reports whether value is one of the question options.
func (q Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Catalog is the static knowledge base. It is not modified after loading.
type Catalog struct {
	Technologies []Technology `yaml:"technologies"`
	Questions    []Question   `yaml:"questions"`
}

// ByCategory returns the technologies of category c in catalog order.
func (c *Catalog) ByCategory(category Category) []Technology {
	var out []Technology
	for _, tech := range c.Technologies {
		if tech.Category == category {
			out = append(out, tech)
		}
	}
	return out
}

func (c *Catalog) Question(axis Axis) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == axis {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks ids, categories and score ranges.
func (c *Catalog) Validate() error {
	if len(c.Technologies) == 0 {
		return errors.New("catalog has no technologies")
	}

	seen := make(map[string]struct{}, len(c.Technologies))
	for i, tech := range c.Technologies {
		id := strings.TrimSpace(tech.ID)
		if id == "" {
			return fmt.Errorf("technology #%d: id is required", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("technology %q: duplicate id", id)
		}
		seen[id] = struct{}{}

		if !tech.Category.Valid() {
			return fmt.Errorf("technology %q: unknown category %q", id, tech.Category)
		}

		for axis, values := range tech.Scores {
			for value, weight := range values {
				if weight < MinWeight || weight > MaxWeight {
					return fmt.Errorf("technology %q: %s.%s weight %d is out of range [%d,%d]",
						id, axis, value, weight, MinWeight, MaxWeight)
				}
			}
		}
	}

	for _, q := range c.Questions {
		if len(q.Options) == 0 {
			return fmt.Errorf("question %q has no options", q.ID)
		}
	}

	return nil
}

//go:embed catalog.yaml
var defaultCatalog []byte

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultCatalog)
})

// Default returns the built-in catalog. It panics if the embedded data is invalid.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Load reads a catalog file. When the file has no questions the built-in
// questionnaire is used.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %q: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %q: %w", path, err)
	}

	if len(c.Questions) == 0 {
		c.Questions = Default().Questions
	}

	return c, nil
}
