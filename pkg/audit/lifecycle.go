// Package audit provides decision audit logging for the funding lifecycle.
// Events are logged in structured JSON format so a log pipeline can reconstruct
// who or what moved a project through its states.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// EventType categorizes lifecycle events for filtering and alerting.
type EventType string

const (
	// EventSubmitted is logged when a new project enters the pipeline.
	EventSubmitted EventType = "project_submitted"
	// EventEvaluated is logged when an advisory score is recorded.
	EventEvaluated EventType = "project_evaluated"
	// EventModerated is logged for every authoritative human decision.
	EventModerated EventType = "moderation_decision"
	// EventEscrowDeployed is logged when the escrow contract is instantiated.
	EventEscrowDeployed EventType = "escrow_deployed"
)

// Event is an auditable lifecycle event with the context a reviewer needs to
// reconstruct the decision trail.
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	EventType       EventType `json:"event_type"`
	ProjectID       string    `json:"project_id"`
	Status          string    `json:"status,omitempty"`
	Decision        string    `json:"decision,omitempty"`
	AIScore         float64   `json:"ai_score,omitempty"`
	ContractAddress string    `json:"contract_address,omitempty"`
	EntityKey       string    `json:"entity_key,omitempty"`
}

// Auditor logs lifecycle events under a dedicated logger namespace so the
// decision trail can be filtered out of the general service logs.
type Auditor struct {
	logger *zap.Logger
}

// NewAuditor creates a lifecycle auditor.
func NewAuditor(logger *zap.Logger) *Auditor {
	return &Auditor{logger: logger.Named("lifecycle_audit")}
}

// Record logs one lifecycle event at INFO level.
func (a *Auditor) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// Marshaling known types never fails.
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Lifecycle event",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("project_id", event.ProjectID),
		zap.String("status", event.Status),
	)
}
