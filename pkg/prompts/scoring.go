// Package prompts builds the LLM prompts used by the evaluation service.
package prompts

import (
	"fmt"
	"strings"

	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// ScoringSystem is the system message for proposal scoring. It pins the output
// to a single JSON object so the response can be parsed mechanically.
const ScoringSystem = `You are a grant review assistant for an open-source funding program.
Score funding proposals on feasibility and value for money.
Respond with a single JSON object: {"score": <0.0-1.0>, "decision": "approve"|"borderline"|"reject", "rationale": "<one or two sentences>"}.
Do not include any other text.`

// BuildScoring renders the user prompt for one proposal.
func BuildScoring(sp *models.SponsoredProject, milestones []models.Milestone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", sp.Name)
	fmt.Fprintf(&b, "Repository: %s\n", sp.RepositoryURL)
	fmt.Fprintf(&b, "Requested budget: %s\n", sp.Budget)
	if sp.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", sp.Description)
	}
	if len(milestones) > 0 {
		b.WriteString("Milestones:\n")
		for _, m := range milestones {
			fmt.Fprintf(&b, "  %d. %s (%s)\n", m.Position+1, m.Name, m.Amount)
		}
	}
	return b.String()
}
