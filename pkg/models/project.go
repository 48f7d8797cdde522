// Package models contains domain types for funding-oracle.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
)

// Project is the immutable record created at submission time. It is never
// mutated or deleted by the normal flow; lifecycle state lives on the
// SponsoredProject aggregate.
type Project struct {
	ProjectID     string          `json:"project_id"`
	Name          string          `json:"name"`
	RepositoryURL string          `json:"repository_url"`
	Description   string          `json:"description,omitempty"`
	Budget        decimal.Decimal `json:"budget"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks the fields that must hold before anything is persisted.
func (p *Project) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", apperrors.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if !p.Budget.IsPositive() {
		return fmt.Errorf("%w: budget must be positive, got %s", apperrors.ErrValidation, p.Budget)
	}
	return nil
}
