package council

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aristath/council/internal/domain"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// opinionPayload is the reply schema a persona is asked to produce.
type opinionPayload struct {
	Position               string   `json:"position"`
	Conviction             string   `json:"conviction"`
	Reasoning              string   `json:"reasoning"`
	KeyFactors             []string `json:"key_factors"`
	Risks                  []string `json:"risks"`
	BlindSpotsAcknowledged []string `json:"blind_spots_acknowledged"`
}

var opinionSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"position", "conviction", "reasoning"},
	Properties: map[string]*jsonschema.Schema{
		"position": {
			Type: "string",
			Enum: []any{"bullish", "bearish", "neutral", "avoid"},
		},
		"conviction": {
			Type: "string",
			Enum: []any{"high", "medium", "low"},
		},
		"reasoning": {Type: "string"},
		"key_factors": {
			Type:  "array",
			Items: &jsonschema.Schema{Type: "string"},
		},
		"risks": {
			Type:  "array",
			Items: &jsonschema.Schema{Type: "string"},
		},
		"blind_spots_acknowledged": {
			Type:  "array",
			Items: &jsonschema.Schema{Type: "string"},
		},
	},
}

var resolveOpinionSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return opinionSchema.Resolve(nil)
})

// parseOpinion turns a raw model reply into a validated opinion payload.
// The pipeline is: extract the JSON body (models love markdown fences),
// repair minor syntax damage, then validate strictly against the schema.
func parseOpinion(raw string) (*opinionPayload, error) {
	body := ExtractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		fixed, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return nil, fmt.Errorf("unparseable JSON: %w", err)
		}
		body = fixed
		if err := json.Unmarshal([]byte(body), &instance); err != nil {
			return nil, fmt.Errorf("unparseable JSON after repair: %w", err)
		}
	}

	resolved, err := resolveOpinionSchema()
	if err != nil {
		return nil, fmt.Errorf("resolving opinion schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("reply violates opinion schema: %w", err)
	}

	var payload opinionPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decoding opinion: %w", err)
	}

	// Schema enums guarantee these are valid; the checks guard against
	// schema drift.
	if !domain.Position(payload.Position).Valid() {
		return nil, fmt.Errorf("invalid position %q", payload.Position)
	}
	if !domain.Conviction(payload.Conviction).Valid() {
		return nil, fmt.Errorf("invalid conviction %q", payload.Conviction)
	}

	return &payload, nil
}

// ExtractJSON pulls the JSON body out of a reply that may wrap it in
// markdown fences or surrounding prose.
func ExtractJSON(raw string) string {
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		rest := raw[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+len("```"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(raw[start : end+1])
	}

	return ""
}
