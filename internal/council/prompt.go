package council

import (
	"fmt"
	"strings"

	"github.com/aristath/council/internal/personas"
)

// buildSystemPrompt renders the persona's identity: the compressed
// experiential narrative that shapes how it interprets market signals.
// Deterministic: the same definition always yields the same prompt.
func buildSystemPrompt(def *personas.Definition) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, analyzing markets through your distinct investment philosophy.\n\n", def.Name)

	sb.WriteString("## Your Investment Philosophy\n")
	sb.WriteString(strings.TrimSpace(def.Philosophy))
	sb.WriteString("\n\n")

	if def.Era != "" {
		sb.WriteString("## Your Era and Context\n")
		sb.WriteString(def.Era)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Formative Experiences That Shape Your Judgment\n")
	sb.WriteString("These memories define how you interpret market signals:\n\n")
	for _, m := range def.Memories {
		fmt.Fprintf(&sb, "**Memory: %s**\n", m.Context)
		fmt.Fprintf(&sb, "Decision: %s\n", m.Decision)
		fmt.Fprintf(&sb, "Reasoning: %s\n", m.Reasoning)
		fmt.Fprintf(&sb, "Outcome: %s\n", m.Outcome)
		fmt.Fprintf(&sb, "Lesson: %s\n\n", m.Lesson)
	}

	sb.WriteString("## What Triggers Your Interest\n")
	for _, t := range def.TriggerPatterns {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	sb.WriteString("\n")

	sb.WriteString("## Your Known Blind Spots\n")
	sb.WriteString("Be honest about these limitations in your analysis:\n")
	for _, b := range def.BlindSpots {
		fmt.Fprintf(&sb, "- %s\n", b)
	}
	sb.WriteString("\n")

	sb.WriteString("## Your Decision Framework\n")
	sb.WriteString("Questions you always ask:\n")
	for i, q := range def.DecisionFramework {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	sb.WriteString("\n")

	sb.WriteString("## Analysis Guidelines\n")
	sb.WriteString("1. Analyze through YOUR lens - not a generic analyst's view\n")
	sb.WriteString("2. Reference your past experiences when relevant\n")
	sb.WriteString("3. Acknowledge your blind spots honestly\n")
	sb.WriteString("4. Be specific about conviction level and reasoning\n")
	sb.WriteString("5. Disagree with conventional wisdom when your philosophy demands it\n\n")

	fmt.Fprintf(&sb, "You are NOT trying to be balanced or diplomatic. You are %s, with strong convictions shaped by decades of experience.", def.Name)

	return sb.String()
}

// buildUserPrompt renders the analysis request with the expected reply
// schema.
func buildUserPrompt(symbol, contextText string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Analyze %s from your perspective.", symbol)
	if contextText != "" {
		fmt.Fprintf(&sb, "\n\nAdditional Context:\n%s", contextText)
	}

	sb.WriteString(`

Provide your analysis in the following JSON format:
{
    "position": "bullish" | "bearish" | "neutral" | "avoid",
    "conviction": "high" | "medium" | "low",
    "reasoning": "Your strategic reasoning (2-4 sentences explaining WHY based on your philosophy)",
    "key_factors": ["Factor 1", "Factor 2", "Factor 3"],
    "risks": ["Risk 1", "Risk 2"],
    "blind_spots_acknowledged": ["Blind spot that might affect this analysis"]
}

Be authentic to your investment philosophy. If you would pass on this opportunity, say so clearly.`)

	return sb.String()
}

// strictRetryInstruction is appended to the user prompt on the single parse
// retry. No prose, no fences, structured output only.
const strictRetryInstruction = `

IMPORTANT: Your previous reply could not be parsed. Respond with ONLY the JSON object described above. No markdown fences, no commentary, no text before or after the JSON.`
