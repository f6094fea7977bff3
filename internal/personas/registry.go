// Package personas provides the immutable persona registry.
//
// Persona definitions are loaded once, validated wholesale, and never
// mutated afterwards. A "reload" builds a brand-new Registry and swaps it
// atomically via Handle; concurrent readers never observe a half-updated
// registry.
package personas

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aristath/council/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// FormativeMemory is one experience that shapes a persona's judgment.
type FormativeMemory struct {
	Context   string `yaml:"context"`
	Decision  string `yaml:"decision"`
	Reasoning string `yaml:"reasoning"`
	Outcome   string `yaml:"outcome"`
	Lesson    string `yaml:"lesson"`
}

// Definition is a complete persona: a named strategic evaluator with a
// philosophy, formative memories, trigger patterns, blind spots, and a
// decision framework. Immutable once loaded.
type Definition struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	Era               string            `yaml:"era"`
	Philosophy        string            `yaml:"philosophy"`
	Memories          []FormativeMemory `yaml:"memories"`
	TriggerPatterns   []string          `yaml:"trigger_patterns"`
	BlindSpots        []string          `yaml:"blind_spots"`
	DecisionFramework []string          `yaml:"decision_framework"`
}

// Registry is an immutable, process-lifetime store of persona definitions.
// Iteration order is load order, which is the canonical tie-break order for
// everything downstream.
type Registry struct {
	order []string
	byID  map[string]*Definition
}

// Load builds a Registry from every *.yaml file in dir. Any invalid or
// duplicate definition rejects the whole load.
func Load(dir string) (*Registry, error) {
	return LoadFS(os.DirFS(dir))
}

// Default builds a Registry from the embedded default council.
func Default() (*Registry, error) {
	sub, err := fs.Sub(defaultsFS, "defaults")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS builds a Registry from every *.yaml file in fsys. Files are read
// in sorted name order so load order is deterministic.
func LoadFS(fsys fs.FS) (*Registry, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("globbing persona files: %w", err)
	}
	more, err := fs.Glob(fsys, "*.yml")
	if err != nil {
		return nil, fmt.Errorf("globbing persona files: %w", err)
	}
	names = append(names, more...)
	sort.Strings(names)

	if len(names) == 0 {
		return nil, &domain.ValidationError{Source: "persona", Problems: []string{"no persona definition files found"}}
	}

	reg := &Registry{byID: make(map[string]*Definition, len(names))}
	var problems []string

	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading persona file %s: %w", name, err)
		}

		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if errs := validate(&def); len(errs) > 0 {
			for _, e := range errs {
				problems = append(problems, fmt.Sprintf("%s: %s", name, e))
			}
			continue
		}

		if _, exists := reg.byID[def.ID]; exists {
			problems = append(problems, fmt.Sprintf("%s: duplicate persona id %q", name, def.ID))
			continue
		}

		reg.byID[def.ID] = &def
		reg.order = append(reg.order, def.ID)
	}

	if len(problems) > 0 {
		return nil, &domain.ValidationError{Source: "persona", Problems: problems}
	}

	return reg, nil
}

// validate returns the list of problems with a definition, empty if valid.
func validate(def *Definition) []string {
	var errs []string

	if strings.TrimSpace(def.ID) == "" {
		errs = append(errs, "missing id")
	}
	if strings.TrimSpace(def.Name) == "" {
		errs = append(errs, "missing name")
	}
	if strings.TrimSpace(def.Philosophy) == "" {
		errs = append(errs, "missing philosophy")
	}
	if len(def.Memories) == 0 {
		errs = append(errs, "at least one formative memory is required")
	}
	for i, m := range def.Memories {
		if strings.TrimSpace(m.Context) == "" ||
			strings.TrimSpace(m.Decision) == "" ||
			strings.TrimSpace(m.Reasoning) == "" ||
			strings.TrimSpace(m.Outcome) == "" ||
			strings.TrimSpace(m.Lesson) == "" {
			errs = append(errs, fmt.Sprintf("memory %d is missing required fields", i))
		}
	}
	if len(def.TriggerPatterns) == 0 {
		errs = append(errs, "at least one trigger pattern is required")
	}
	if len(def.BlindSpots) == 0 {
		errs = append(errs, "at least one blind spot is required")
	}
	if len(def.DecisionFramework) == 0 {
		errs = append(errs, "a decision framework is required")
	}

	return errs
}

// Get returns the definition for id. The returned definition is shared and
// must be treated as read-only.
func (r *Registry) Get(id string) (*Definition, error) {
	def, ok := r.byID[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "persona", ID: id}
	}
	return def, nil
}

// ListIDs returns all persona ids in registration order.
func (r *Registry) ListIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of registered personas.
func (r *Registry) Len() int {
	return len(r.order)
}

// Handle is a versioned pointer to the active Registry. Readers call
// Current; a reload builds a fresh Registry and calls Swap. There is no
// partial mutation: the swap is the only write.
type Handle struct {
	ptr atomic.Pointer[Registry]
}

// NewHandle creates a Handle serving reg.
func NewHandle(reg *Registry) *Handle {
	h := &Handle{}
	h.ptr.Store(reg)
	return h
}

// Current returns the active registry snapshot.
func (h *Handle) Current() *Registry {
	return h.ptr.Load()
}

// Swap atomically replaces the active registry.
func (h *Handle) Swap(reg *Registry) {
	h.ptr.Store(reg)
}
