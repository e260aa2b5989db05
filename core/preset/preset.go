// Package preset holds the catalog of project templates offered per course.
package preset

import (
	"bytes"
	_ "embed"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/timeline"
)

var (
	//go:embed presets.yaml
	defaultCatalog []byte

	ErrCourseNotFound = errors.New("no presets for this course")
	ErrPresetNotFound = errors.New("preset not found")

	loadDefault sync.Once
	defCatalog  Catalog
	defErr      error
)

type (
	Preset struct {
		Title       string   `yaml:"title" json:"title" validate:"notblank"`
		Description string   `yaml:"description" json:"description"`
		Phases      []string `yaml:"phases" json:"phases" validate:"min=1,dive,notblank"`
	}

	// Catalog maps an upper-cased course code to its presets, in catalog order.
	Catalog map[string][]Preset
)

// PhaseDescription is the description given to a phase materialized from a preset.
func PhaseDescription(phase, title string) string {
	return phase + " phase for " + title
}

// Load parses a YAML catalog and validates every preset.
func Load(r io.Reader) (Catalog, error) {
	raw := make(map[string][]Preset)
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding presets")
	}

	cat := make(Catalog, len(raw))
	for code, presets := range raw {
		code = core.CleanString(strings.ToUpper(code))
		for i := range presets {
			if err := core.Validate.Struct(presets[i]); err != nil {
				return nil, errors.Wrapf(err, "preset %d of %s", i, code)
			}
		}
		cat[code] = presets
	}
	return cat, nil
}

// Default is the catalog shipped with the binary.
func Default() (Catalog, error) {
	loadDefault.Do(func() {
		defCatalog, defErr = Load(bytes.NewReader(defaultCatalog))
	})
	return defCatalog, defErr
}

// Courses returns the sorted course codes of the catalog.
func (c Catalog) Courses() []string {
	codes := make([]string, 0, len(c))
	for code := range c {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (c Catalog) ForCourse(code string) ([]Preset, error) {
	presets, ok := c[core.CleanString(strings.ToUpper(code))]
	if !ok {
		return nil, ErrCourseNotFound
	}
	return presets, nil
}

// Find looks a preset up by its case-insensitive title.
func (c Catalog) Find(code, title string) (Preset, error) {
	presets, err := c.ForCourse(code)
	if err != nil {
		return Preset{}, err
	}
	title = core.CleanString(title, true)
	for _, p := range presets {
		if strings.ToLower(p.Title) == title {
			return p, nil
		}
	}
	return Preset{}, ErrPresetNotFound
}

// Apply materializes the preset from `start`, giving each phase its default description.
func (p Preset) Apply(durationDays int, start time.Time, policy timeline.BufferPolicy) (timeline.PresetResult, error) {
	res, err := timeline.ApplyPreset(p.Phases, durationDays, start, policy)
	if err != nil {
		return res, err
	}
	for i := range res.Phases {
		res.Phases[i].Description = PhaseDescription(res.Phases[i].Name, p.Title)
	}
	return res, nil
}
