package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
)

// Status is the authoritative lifecycle state of a sponsored project. Only
// moderation moves a project into approved or rejected; the AI decision is
// advisory and lives in a separate Decision field.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// ParseStatus validates a status string from the wire.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusSubmitted, StatusApproved, StatusRejected:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, s)
}

// Terminal reports whether no further transitions are accepted from this
// status. Only rejection is terminal; approval remains escrow-eligible.
func (s Status) Terminal() bool {
	return s == StatusRejected
}

// Decision is the AI scoring service's suggested disposition. It is recorded
// on the aggregate for display but never gates a status transition.
type Decision string

const (
	DecisionApprove    Decision = "approve"
	DecisionReject     Decision = "reject"
	DecisionBorderline Decision = "borderline"
)

// ParseDecision validates an advisory decision string from the wire.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject, DecisionBorderline:
		return Decision(s), nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", apperrors.ErrValidation, s)
}

// DefaultChain is the target chain for escrow contracts.
const DefaultChain = "asset_hub"

// SponsoredProject is the mutable lifecycle aggregate, exactly one per
// project_id. EntityKey is the opaque identifier assigned by the chain-state
// store at creation; it never changes for the lifetime of the aggregate.
type SponsoredProject struct {
	ID              uuid.UUID       `json:"id"`
	ProjectID       string          `json:"project_id"`
	Name            string          `json:"name"`
	RepositoryURL   string          `json:"repository_url"`
	Description     string          `json:"description,omitempty"`
	Budget          decimal.Decimal `json:"budget"`
	AIScore         float64         `json:"ai_score"`
	AIDecision      Decision        `json:"ai_decision,omitempty"`
	Rationale       string          `json:"rationale,omitempty"`
	Status          Status          `json:"status"`
	ContractAddress *string         `json:"contract_address"`
	Chain           string          `json:"chain"`
	EntityKey       string          `json:"entity_key"`
	TxHash          string          `json:"tx_hash,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Deployed reports whether the escrow contract address has been set.
func (sp *SponsoredProject) Deployed() bool {
	return sp.ContractAddress != nil && *sp.ContractAddress != ""
}

// Evaluation is the AI scoring result for a project. Producing one never
// mutates the aggregate; applying it is a separate RecordEvaluation step.
type Evaluation struct {
	Score     float64  `json:"ai_score"`
	Decision  Decision `json:"decision"`
	Rationale string   `json:"rationale"`
}

// Validate checks the score range and decision vocabulary.
func (e *Evaluation) Validate() error {
	if e.Score < 0 || e.Score > 1 {
		return fmt.Errorf("%w: ai_score must be in [0,1], got %v", apperrors.ErrValidation, e.Score)
	}
	if _, err := ParseDecision(string(e.Decision)); err != nil {
		return err
	}
	return nil
}
