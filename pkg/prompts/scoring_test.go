package prompts

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sub0-labs/funding-oracle/pkg/models"
)

func TestBuildScoring(t *testing.T) {
	sp := &models.SponsoredProject{
		ProjectID:     "proj-1",
		Name:          "Indexer",
		RepositoryURL: "https://github.com/example/indexer",
		Description:   "A chain indexer.",
		Budget:        decimal.NewFromInt(5000),
	}
	milestones := []models.Milestone{
		{Name: "MVP", Amount: decimal.NewFromInt(2000), Position: 0},
		{Name: "GA", Amount: decimal.NewFromInt(3000), Position: 1},
	}

	prompt := BuildScoring(sp, milestones)

	for _, want := range []string{
		"Project: Indexer",
		"Repository: https://github.com/example/indexer",
		"Requested budget: 5000",
		"Description: A chain indexer.",
		"1. MVP (2000)",
		"2. GA (3000)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildScoringOmitsEmptySections(t *testing.T) {
	sp := &models.SponsoredProject{
		Name:   "Bare",
		Budget: decimal.NewFromInt(100),
	}

	prompt := BuildScoring(sp, nil)

	if strings.Contains(prompt, "Description:") {
		t.Error("prompt should omit empty description")
	}
	if strings.Contains(prompt, "Milestones:") {
		t.Error("prompt should omit empty milestone plan")
	}
}
