package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEnrichmentUnavailable signals that the market enrichment collaborator
// could not supply context for a symbol. Callers treat this as "no extra
// context", never as a fatal condition.
var ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

// ValidationError reports malformed persona or trigger configuration.
// Fatal at load time, never partial: a registry or condition table with a
// single invalid entry is rejected wholesale.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %s", e.Source, strings.Join(e.Problems, "; "))
}

// NotFoundError reports a reference to an unknown persona id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvokeError is returned by reasoning collaborator adapters. It classifies
// the failure so the orchestrator can record the kind without inspecting
// transport details.
type InvokeError struct {
	Kind FailureKind
	Err  error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("reasoning invoke failed (%s): %v", e.Kind, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// CouncilEvaluationFailedError is raised when every persona unit of an
// evaluation failed. It carries the full per-persona failure list.
type CouncilEvaluationFailedError struct {
	Symbol   string
	Failures []PersonaFailure
}

func (e *CouncilEvaluationFailedError) Error() string {
	return fmt.Sprintf("council evaluation of %s failed: all %d personas failed", e.Symbol, len(e.Failures))
}
