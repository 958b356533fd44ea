package filtering

import (
	"fmt"
	"strings"

	"github.com/spigell/stack-advisor/internal/catalog"
)

type categoriesFilter struct {
	categories map[catalog.Category]struct{}
	enabled    bool
	reason     string
}

// NewCategories creates a filter that keeps only technologies of the given categories.
func NewCategories(categories []string) Filter {
	set := make(map[catalog.Category]struct{}, len(categories))
	for _, c := range categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			set[catalog.Category(c)] = struct{}{}
		}
	}
	return &categoriesFilter{categories: set, enabled: len(set) > 0, reason: "all categories requested"}
}

func (f *categoriesFilter) Name() string { return "categories" }

func (f *categoriesFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *categoriesFilter) IsEnabled() bool { return f.enabled }

func (f *categoriesFilter) Validate(*catalog.Catalog) error {
	for c := range f.categories {
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", c)
		}
	}
	return nil
}

func (f *categoriesFilter) Apply(techs []catalog.Technology) ([]catalog.Technology, Step, error) {
	out, dropped := keep(techs, func(t catalog.Technology) bool {
		_, ok := f.categories[t.Category]
		return ok
	})
	return out, Step{Initial: len(techs), Dropped: len(dropped), Left: len(out)}, nil
}
