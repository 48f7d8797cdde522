package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
)

// Milestone is a payout tranche for a project. Milestones are created in a
// batch alongside the project and are immutable afterwards. Position records
// submission order; it matters for display, not for correctness.
type Milestone struct {
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Position    int             `json:"position"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks a single milestone before persistence.
func (m *Milestone) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: milestone name is required", apperrors.ErrValidation)
	}
	if !m.Amount.IsPositive() {
		return fmt.Errorf("%w: milestone %q amount must be positive, got %s",
			apperrors.ErrValidation, m.Name, m.Amount)
	}
	return nil
}

// MilestoneSum returns the total of all milestone amounts. The sum is expected
// to equal the project budget, but a mismatch is tolerated and only logged.
func MilestoneSum(milestones []Milestone) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range milestones {
		sum = sum.Add(m.Amount)
	}
	return sum
}
