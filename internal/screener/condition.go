// Package screener provides the rule-based pre-filter that decides which
// assets justify a full council evaluation.
package screener

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/council/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsFS embed.FS

// Condition is one trigger rule: a predicate expression over named asset
// metrics, the personas it concerns, and an urgency tier. Static
// configuration, loaded once, read-only.
type Condition struct {
	ID                 string
	Expr               string
	Priority           domain.Priority
	RelevantPersonaIDs []string

	preds []comparison
}

// comparison is one "metric op value" clause of a parsed expression.
type comparison struct {
	metric string
	op     string
	value  float64
}

func (c comparison) eval(v float64) bool {
	switch c.op {
	case "<":
		return v < c.value
	case "<=":
		return v <= c.value
	case ">":
		return v > c.value
	case ">=":
		return v >= c.value
	case "==":
		return v == c.value
	}
	return false
}

type conditionYAML struct {
	ID               string   `yaml:"id"`
	Expr             string   `yaml:"expr"`
	Priority         string   `yaml:"priority"`
	RelevantPersonas []string `yaml:"relevant_personas"`
}

type conditionsFile struct {
	Conditions []conditionYAML `yaml:"conditions"`
}

// LoadConditions reads a trigger condition table from a YAML file.
func LoadConditions(path string) ([]Condition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trigger conditions: %w", err)
	}
	return parseConditions(data)
}

// DefaultConditions returns the embedded default trigger table.
func DefaultConditions() ([]Condition, error) {
	data, err := defaultsFS.ReadFile("defaults.yaml")
	if err != nil {
		return nil, err
	}
	return parseConditions(data)
}

func parseConditions(data []byte) ([]Condition, error) {
	var file conditionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &domain.ValidationError{Source: "trigger", Problems: []string{err.Error()}}
	}

	var problems []string
	seen := make(map[string]bool, len(file.Conditions))
	conditions := make([]Condition, 0, len(file.Conditions))

	for i, cy := range file.Conditions {
		label := cy.ID
		if label == "" {
			label = fmt.Sprintf("condition %d", i)
		}

		if strings.TrimSpace(cy.ID) == "" {
			problems = append(problems, fmt.Sprintf("%s: missing id", label))
		}
		if seen[cy.ID] {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", label))
		}
		seen[cy.ID] = true

		priority := domain.Priority(cy.Priority)
		if !priority.Valid() {
			problems = append(problems, fmt.Sprintf("%s: invalid priority %q", label, cy.Priority))
		}
		if len(cy.RelevantPersonas) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no relevant personas", label))
		}

		preds, err := parseExpr(cy.Expr)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", label, err))
		}

		conditions = append(conditions, Condition{
			ID:                 cy.ID,
			Expr:               cy.Expr,
			Priority:           priority,
			RelevantPersonaIDs: cy.RelevantPersonas,
			preds:              preds,
		})
	}

	if len(conditions) == 0 {
		problems = append(problems, "no trigger conditions defined")
	}
	if len(problems) > 0 {
		return nil, &domain.ValidationError{Source: "trigger", Problems: problems}
	}

	return conditions, nil
}

// parseExpr parses a predicate expression of the form
// "metric op number && metric op number && ...".
func parseExpr(expr string) ([]comparison, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	clauses := strings.Split(expr, "&&")
	preds := make([]comparison, 0, len(clauses))

	for _, clause := range clauses {
		fields := strings.Fields(clause)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed clause %q (want: metric op number)", strings.TrimSpace(clause))
		}

		metric, op, raw := fields[0], fields[1], fields[2]
		switch op {
		case "<", "<=", ">", ">=", "==":
		default:
			return nil, fmt.Errorf("unknown operator %q in clause %q", op, strings.TrimSpace(clause))
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric threshold %q in clause %q", raw, strings.TrimSpace(clause))
		}

		preds = append(preds, comparison{metric: metric, op: op, value: value})
	}

	return preds, nil
}

// matches reports whether every clause holds for the given metrics. A clause
// referencing an absent metric does not hold.
func (c *Condition) matches(metrics map[string]float64) bool {
	for _, p := range c.preds {
		v, ok := metrics[p.metric]
		if !ok || !p.eval(v) {
			return false
		}
	}
	return true
}
