// Package council runs the multi-persona evaluation: one isolated unit of
// work per persona, fan-out bounded, partial failure tolerated, results
// aggregated into an OpinionSet in registration order.
package council

import "context"

// InvokeRequest carries one reasoning collaborator call.
type InvokeRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Reasoner is the external reasoning collaborator boundary. Implementations
// return raw reply text or a *domain.InvokeError classifying the failure as
// rate-limited, timeout, or service error. The council treats the reply as
// opaque text; it owns only prompt assembly and reply parsing.
type Reasoner interface {
	Invoke(ctx context.Context, req InvokeRequest) (string, error)
}
