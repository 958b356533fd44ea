package filtering

import (
	"fmt"
	"strings"

	"github.com/spigell/stack-advisor/internal/catalog"
)

type excludeFilter struct {
	ids     map[string]struct{}
	enabled bool
	reason  string
}

// NewExclude creates a filter that removes technologies by id.
func NewExclude(ids []string) Filter {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return &excludeFilter{ids: set, enabled: len(set) > 0, reason: "no technologies excluded"}
}

func (f *excludeFilter) Name() string { return "exclude" }

func (f *excludeFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *excludeFilter) IsEnabled() bool { return f.enabled }

// Validate rejects ids that are not in the catalog, which are most likely typos.
func (f *excludeFilter) Validate(c *catalog.Catalog) error {
	known := make(map[string]struct{}, len(c.Technologies))
	for _, t := range c.Technologies {
		known[t.ID] = struct{}{}
	}

	var unknown []string
	for id := range f.ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown technologies: %s", strings.Join(sorted(unknown), ", "))
	}
	return nil
}

func (f *excludeFilter) Apply(techs []catalog.Technology) ([]catalog.Technology, Step, error) {
	out, dropped := keep(techs, func(t catalog.Technology) bool {
		_, excluded := f.ids[t.ID]
		return !excluded
	})
	return out, Step{Initial: len(techs), Dropped: len(dropped), Left: len(out)}, nil
}

func (f *excludeFilter) Status() Status {
	ids := make([]string, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}

	status := Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Details: map[string]string{"ids": strings.Join(sorted(ids), ",")},
	}
	if !f.enabled {
		status.Reason = f.reason
	}
	return status
}
