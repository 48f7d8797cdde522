package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/arkiv"
	"github.com/sub0-labs/funding-oracle/pkg/audit"
	"github.com/sub0-labs/funding-oracle/pkg/escrow"
	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/repositories"
)

// entityType is the queryable type attribute on chain-state entities.
const entityType = "sponsored_project"

// Submission is the input to Submit: the project plus its milestone plan.
type Submission struct {
	Project    models.Project
	Milestones []models.Milestone
}

// SponsoredPatch is a partial update to an aggregate. Every field routes
// through the same guarded transition as the dedicated operation; there are
// no raw field writes.
type SponsoredPatch struct {
	Status          *models.Status   `json:"status,omitempty"`
	AIScore         *float64         `json:"ai_score,omitempty"`
	AIDecision      *models.Decision `json:"ai_decision,omitempty"`
	Rationale       *string          `json:"rationale,omitempty"`
	ContractAddress *string          `json:"contract_address,omitempty"`
}

// EscrowInfo is the read-only deployment view of an aggregate.
type EscrowInfo struct {
	ProjectID       string        `json:"project_id"`
	Status          models.Status `json:"status"`
	Deployed        bool          `json:"deployed"`
	ContractAddress *string       `json:"contract_address"`
	Chain           string        `json:"chain"`
	TotalRaw        string        `json:"total_amount,omitempty"`
}

// LifecycleService is the orchestrator contract consumed by the HTTP layer.
// Use this interface for dependency injection to enable mocking in tests.
type LifecycleService interface {
	Submit(ctx context.Context, sub *Submission) (*models.SponsoredProject, error)
	Evaluate(ctx context.Context, projectID string) (*models.Evaluation, error)
	RecordEvaluation(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	Moderate(ctx context.Context, projectID string, decision models.Decision) (*models.SponsoredProject, error)
	DeployEscrow(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SponsoredProject, error)
	GetByProjectID(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	List(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error)
	Projects(ctx context.Context) ([]models.Project, error)
	Milestones(ctx context.Context, projectID string) ([]models.Milestone, error)
	PendingCount(ctx context.Context) (int, error)
	EscrowInfo(ctx context.Context, projectID string) (*EscrowInfo, error)
	UpdateSponsored(ctx context.Context, id uuid.UUID, patch *SponsoredPatch) (*models.SponsoredProject, error)
}

// Orchestrator drives the funding lifecycle over the sponsored project
// aggregate. The database row is the source of truth; the chain-state mirror
// is updated best-effort after every accepted transition and never consulted
// for decisions.
type Orchestrator struct {
	sponsored  repositories.SponsoredProjectRepository
	projects   repositories.ProjectRepository
	milestones repositories.MilestoneRepository
	chainState arkiv.Client
	evaluation *EvaluationService
	escrow     *EscrowService
	auditor    *audit.Auditor
	logger     *zap.Logger

	// deployMu serializes deployment per project so at most one deployer
	// invocation runs for a given project in this process.
	deployMu sync.Mutex
	deploys  map[string]*sync.Mutex
}

// Ensure Orchestrator implements LifecycleService at compile time.
var _ LifecycleService = (*Orchestrator)(nil)

// NewOrchestrator wires the lifecycle services together.
func NewOrchestrator(
	sponsored repositories.SponsoredProjectRepository,
	projects repositories.ProjectRepository,
	milestones repositories.MilestoneRepository,
	chainState arkiv.Client,
	evaluation *EvaluationService,
	escrowSvc *EscrowService,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		sponsored:  sponsored,
		projects:   projects,
		milestones: milestones,
		chainState: chainState,
		evaluation: evaluation,
		escrow:     escrowSvc,
		auditor:    audit.NewAuditor(logger),
		logger:     logger.Named("orchestrator"),
		deploys:    make(map[string]*sync.Mutex),
	}
}

// Submit registers a new project. The chain-state entity is created first so
// its immutable key can be stored on the aggregate; the project, milestones,
// and aggregate then land in one database transaction. A failed transaction
// leaves at most an unreferenced chain entity behind, never a partial project.
func (o *Orchestrator) Submit(ctx context.Context, sub *Submission) (*models.SponsoredProject, error) {
	if err := sub.Project.Validate(); err != nil {
		return nil, err
	}
	for i := range sub.Milestones {
		if err := sub.Milestones[i].Validate(); err != nil {
			return nil, err
		}
	}

	if existing, err := o.sponsored.GetByProjectID(ctx, sub.Project.ProjectID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateProject, sub.Project.ProjectID)
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if len(sub.Milestones) > 0 {
		sum := models.MilestoneSum(sub.Milestones)
		if !sum.Equal(sub.Project.Budget) {
			o.logger.Warn("Milestone amounts do not sum to budget",
				zap.String("project_id", sub.Project.ProjectID),
				zap.String("budget", sub.Project.Budget.String()),
				zap.String("milestone_sum", sum.String()))
		}
	}

	sp := &models.SponsoredProject{
		ProjectID:     sub.Project.ProjectID,
		Name:          sub.Project.Name,
		RepositoryURL: sub.Project.RepositoryURL,
		Description:   sub.Project.Description,
		Budget:        sub.Project.Budget,
		Status:        models.StatusSubmitted,
		Chain:         models.DefaultChain,
	}

	payload, err := json.Marshal(sp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode aggregate: %w", err)
	}

	created, err := o.chainState.CreateEntity(ctx, payload, o.entityAttributes(sp))
	if err != nil {
		return nil, fmt.Errorf("%w: chain-state create failed: %v", apperrors.ErrCollaboratorUnavailable, err)
	}
	sp.EntityKey = created.EntityKey
	sp.TxHash = created.TxHash

	if err := o.sponsored.CreateSubmission(ctx, &sub.Project, sub.Milestones, sp); err != nil {
		return nil, err
	}

	o.logger.Info("Project submitted",
		zap.String("project_id", sp.ProjectID),
		zap.String("entity_key", sp.EntityKey),
		zap.String("budget", sp.Budget.String()))
	o.auditor.Record(audit.Event{
		EventType: audit.EventSubmitted,
		ProjectID: sp.ProjectID,
		Status:    string(sp.Status),
		EntityKey: sp.EntityKey,
	})
	return sp, nil
}

// Evaluate scores a project without touching its state.
func (o *Orchestrator) Evaluate(ctx context.Context, projectID string) (*models.Evaluation, error) {
	sp, err := o.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	milestones, err := o.milestones.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return o.evaluation.Evaluate(ctx, sp, milestones)
}

// RecordEvaluation scores a project and persists the advisory result onto the
// aggregate. The status is never changed; only moderation does that. Terminal
// aggregates reject the write.
func (o *Orchestrator) RecordEvaluation(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	sp, err := o.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if sp.Status.Terminal() {
		return nil, fmt.Errorf("%w: project %s is %s", apperrors.ErrTerminalState, projectID, sp.Status)
	}

	milestones, err := o.milestones.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	eval, err := o.evaluation.Evaluate(ctx, sp, milestones)
	if err != nil {
		return nil, err
	}

	updated, err := o.sponsored.UpdateEvaluation(ctx, projectID, eval.Score, eval.Decision, eval.Rationale)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The guard missed: the aggregate was rejected between the read
			// and the write, or deleted out of band.
			return nil, o.refineGuardMiss(ctx, projectID, err)
		}
		return nil, err
	}

	o.mirrorToChain(ctx, updated)
	o.auditor.Record(audit.Event{
		EventType: audit.EventEvaluated,
		ProjectID: updated.ProjectID,
		Status:    string(updated.Status),
		Decision:  string(updated.AIDecision),
		AIScore:   updated.AIScore,
	})
	return updated, nil
}

// Moderate applies a human decision. Approval of an already approved project
// is idempotent; any transition out of rejected fails with ErrTerminalState;
// rejecting an approved project fails with ErrIllegalTransition.
func (o *Orchestrator) Moderate(ctx context.Context, projectID string, decision models.Decision) (*models.SponsoredProject, error) {
	var target models.Status
	switch decision {
	case models.DecisionApprove:
		target = models.StatusApproved
	case models.DecisionReject:
		target = models.StatusRejected
	default:
		return nil, fmt.Errorf("%w: moderation decision must be approve or reject, got %q",
			apperrors.ErrValidation, decision)
	}

	updated, err := o.sponsored.TransitionStatus(ctx, projectID, models.StatusSubmitted, target)
	if err == nil {
		o.logger.Info("Moderation applied",
			zap.String("project_id", projectID),
			zap.String("status", string(updated.Status)))
		o.mirrorToChain(ctx, updated)
		o.auditor.Record(audit.Event{
			EventType: audit.EventModerated,
			ProjectID: projectID,
			Status:    string(updated.Status),
			Decision:  string(decision),
		})
		return updated, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// The guard missed. The aggregate is absent or already out of submitted;
	// both states are sticky, so a fresh read classifies the failure.
	sp, getErr := o.sponsored.GetByProjectID(ctx, projectID)
	if getErr != nil {
		return nil, getErr
	}

	switch sp.Status {
	case models.StatusApproved:
		if target == models.StatusApproved {
			// Idempotent re-approval.
			return sp, nil
		}
		return nil, fmt.Errorf("%w: cannot reject an approved project", apperrors.ErrIllegalTransition)
	case models.StatusRejected:
		return nil, fmt.Errorf("%w: project %s is rejected", apperrors.ErrTerminalState, projectID)
	}
	return nil, fmt.Errorf("%w: project %s is %s", apperrors.ErrConflict, projectID, sp.Status)
}

// DeployEscrow deploys the escrow contract for an approved project exactly
// once. A per-project mutex keeps concurrent callers from invoking the
// deployer twice; the guarded contract_address write is the authoritative
// check across processes.
func (o *Orchestrator) DeployEscrow(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	mu := o.deployLock(projectID)
	mu.Lock()
	defer mu.Unlock()

	sp, err := o.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if sp.Deployed() {
		return nil, fmt.Errorf("%w: contract %s", apperrors.ErrAlreadyDeployed, *sp.ContractAddress)
	}
	if sp.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: project %s is %s", apperrors.ErrNotApproved, projectID, sp.Status)
	}

	milestones, err := o.milestones.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	result, err := o.escrow.Launch(ctx, sp, milestones)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrCollaboratorTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCollaboratorUnavailable, err)
	}

	updated, err := o.sponsored.SetContractAddress(ctx, projectID, result.ContractAddress)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, o.refineGuardMiss(ctx, projectID, err)
		}
		return nil, err
	}

	o.mirrorToChain(ctx, updated)
	o.auditor.Record(audit.Event{
		EventType:       audit.EventEscrowDeployed,
		ProjectID:       updated.ProjectID,
		Status:          string(updated.Status),
		ContractAddress: result.ContractAddress,
		EntityKey:       updated.EntityKey,
	})
	return updated, nil
}

// Get retrieves an aggregate by its store id.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*models.SponsoredProject, error) {
	return o.sponsored.Get(ctx, id)
}

// GetByProjectID retrieves an aggregate by its project id.
func (o *Orchestrator) GetByProjectID(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	return o.sponsored.GetByProjectID(ctx, projectID)
}

// List returns aggregates, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error) {
	return o.sponsored.List(ctx, status)
}

// Projects returns the immutable submission records in submission order.
func (o *Orchestrator) Projects(ctx context.Context) ([]models.Project, error) {
	return o.projects.List(ctx)
}

// Milestones returns the submitted milestone plan for a project. The project
// record is the existence check since milestones belong to it.
func (o *Orchestrator) Milestones(ctx context.Context, projectID string) ([]models.Milestone, error) {
	if _, err := o.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return o.milestones.ListByProject(ctx, projectID)
}

// PendingCount reports how many projects await moderation, computed fresh on
// every call.
func (o *Orchestrator) PendingCount(ctx context.Context) (int, error) {
	return o.sponsored.CountByStatus(ctx, models.StatusSubmitted)
}

// EscrowInfo returns the deployment view of a project.
func (o *Orchestrator) EscrowInfo(ctx context.Context, projectID string) (*EscrowInfo, error) {
	sp, err := o.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	info := &EscrowInfo{
		ProjectID:       sp.ProjectID,
		Status:          sp.Status,
		Deployed:        sp.Deployed(),
		ContractAddress: sp.ContractAddress,
		Chain:           sp.Chain,
	}
	if sp.Deployed() {
		info.TotalRaw = escrow.ToPlanck(sp.Budget)
	}
	return info, nil
}

// UpdateSponsored applies a partial update by store id. Each present field is
// funneled through the corresponding guarded transition, so a patch can never
// bypass the state machine.
func (o *Orchestrator) UpdateSponsored(ctx context.Context, id uuid.UUID, patch *SponsoredPatch) (*models.SponsoredProject, error) {
	sp, err := o.sponsored.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current := sp

	if patch.AIScore != nil || patch.AIDecision != nil || patch.Rationale != nil {
		eval := models.Evaluation{
			Score:     current.AIScore,
			Decision:  current.AIDecision,
			Rationale: current.Rationale,
		}
		if patch.AIScore != nil {
			eval.Score = *patch.AIScore
		}
		if patch.AIDecision != nil {
			eval.Decision = *patch.AIDecision
		}
		if patch.Rationale != nil {
			eval.Rationale = *patch.Rationale
		}
		if eval.Decision == "" {
			eval.Decision = models.DecisionBorderline
		}
		if err := eval.Validate(); err != nil {
			return nil, err
		}

		current, err = o.sponsored.UpdateEvaluation(ctx, current.ProjectID, eval.Score, eval.Decision, eval.Rationale)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, o.refineGuardMiss(ctx, sp.ProjectID, err)
			}
			return nil, err
		}
	}

	if patch.Status != nil && *patch.Status != current.Status {
		var decision models.Decision
		switch *patch.Status {
		case models.StatusApproved:
			decision = models.DecisionApprove
		case models.StatusRejected:
			decision = models.DecisionReject
		default:
			return nil, fmt.Errorf("%w: cannot move project %s back to %s",
				apperrors.ErrIllegalTransition, current.ProjectID, *patch.Status)
		}
		current, err = o.Moderate(ctx, current.ProjectID, decision)
		if err != nil {
			return nil, err
		}
	}

	if patch.ContractAddress != nil {
		current, err = o.sponsored.SetContractAddress(ctx, current.ProjectID, *patch.ContractAddress)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, o.refineGuardMiss(ctx, sp.ProjectID, err)
			}
			return nil, err
		}
	}

	o.mirrorToChain(ctx, current)
	return current, nil
}

// refineGuardMiss classifies a zero-row conditional update. The states that
// cause a miss are sticky, so reading after the fact is race-free.
func (o *Orchestrator) refineGuardMiss(ctx context.Context, projectID string, cause error) error {
	sp, err := o.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return err
	}
	if sp.Deployed() {
		return fmt.Errorf("%w: contract %s", apperrors.ErrAlreadyDeployed, *sp.ContractAddress)
	}
	if sp.Status.Terminal() {
		return fmt.Errorf("%w: project %s is %s", apperrors.ErrTerminalState, projectID, sp.Status)
	}
	if sp.Status != models.StatusApproved {
		return fmt.Errorf("%w: project %s is %s", apperrors.ErrNotApproved, projectID, sp.Status)
	}
	return cause
}

func (o *Orchestrator) deployLock(projectID string) *sync.Mutex {
	o.deployMu.Lock()
	defer o.deployMu.Unlock()
	mu, ok := o.deploys[projectID]
	if !ok {
		mu = &sync.Mutex{}
		o.deploys[projectID] = mu
	}
	return mu
}

// mirrorToChain pushes the current aggregate to the chain-state store. The
// mirror is best-effort: a failed update is logged and the accepted
// transition stands.
func (o *Orchestrator) mirrorToChain(ctx context.Context, sp *models.SponsoredProject) {
	payload, err := json.Marshal(sp)
	if err != nil {
		o.logger.Error("Failed to encode aggregate for chain mirror",
			zap.String("project_id", sp.ProjectID), zap.Error(err))
		return
	}

	txHash, err := o.chainState.UpdateEntity(ctx, sp.EntityKey, payload, o.entityAttributes(sp))
	if err != nil {
		o.logger.Warn("Chain-state mirror update failed",
			zap.String("project_id", sp.ProjectID),
			zap.String("entity_key", sp.EntityKey),
			zap.Error(err))
		return
	}

	o.logger.Debug("Chain-state mirror updated",
		zap.String("project_id", sp.ProjectID),
		zap.String("tx_hash", txHash))
}

func (o *Orchestrator) entityAttributes(sp *models.SponsoredProject) arkiv.Attributes {
	attrs := arkiv.Attributes{
		"type":      entityType,
		"projectId": sp.ProjectID,
		"status":    string(sp.Status),
		"aiScore":   strconv.FormatFloat(sp.AIScore, 'f', -1, 64),
		"chain":     sp.Chain,
	}
	if sp.Deployed() {
		attrs["contractAddress"] = *sp.ContractAddress
	}
	return attrs
}
