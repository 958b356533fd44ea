package filtering

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/spigell/stack-advisor/internal/catalog"
)

// ExcludeList is the content of an exclude file.
type ExcludeList struct {
	Technologies []string `yaml:"technologies"`
}

// ReadExcludeFile reads a YAML exclude file. A missing or empty file is an empty list.
func ReadExcludeFile(path string) (*ExcludeList, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludeList{}, nil
	}
	if err != nil {
		return nil, err
	}

	var list ExcludeList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding exclude file %q: %w", path, err)
	}
	return &list, nil
}

type excludeFileFilter struct {
	path    string
	enabled bool
	reason  string
}

// NewExcludeFile creates a filter that removes technologies listed in an exclude file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: path, enabled: path != "", reason: "exclude file is not set"}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return f.enabled }

func (f *excludeFileFilter) Validate(*catalog.Catalog) error { return nil }

func (f *excludeFileFilter) Apply(techs []catalog.Technology) ([]catalog.Technology, Step, error) {
	list, err := ReadExcludeFile(f.path)
	if err != nil {
		return techs, Step{}, fmt.Errorf("getting excluded technologies from file: %w", err)
	}

	out, _, err := NewExclude(list.Technologies).Apply(techs)
	if err != nil {
		return techs, Step{}, err
	}
	return out, Step{Initial: len(techs), Dropped: len(techs) - len(out), Left: len(out)}, nil
}

func (f *excludeFileFilter) Status() Status {
	status := Status{Name: f.Name(), Enabled: f.enabled, Details: map[string]string{"path": f.path}}
	if !f.enabled {
		status.Reason = f.reason
	}
	return status
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
