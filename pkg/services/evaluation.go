// Package services implements the funding lifecycle: submission, AI scoring,
// moderation, and escrow deployment over the sponsored project aggregate.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/jsonutil"
	"github.com/sub0-labs/funding-oracle/pkg/llm"
	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/prompts"
)

// Scoring thresholds on the advisory score.
const (
	approveThreshold    = 0.75
	borderlineThreshold = 0.5
)

// EvaluationService produces advisory evaluations for submitted projects.
// Scoring never mutates the aggregate; persisting a result is the
// orchestrator's RecordEvaluation step.
//
// An LLM client is optional. Without one, or when the provider fails with a
// non-retryable error, scoring falls back to a deterministic heuristic so
// evaluation stays available.
type EvaluationService struct {
	client  llm.LLMClient
	timeout time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewEvaluationService creates an evaluation service. client may be nil. A
// zero timeout leaves the caller's context deadline in charge.
func NewEvaluationService(client llm.LLMClient, timeout time.Duration, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("evaluation"),
	}
}

// Evaluate scores a project. Concurrent evaluations of the same project
// collapse into one upstream call and share its result.
func (s *EvaluationService) Evaluate(ctx context.Context, sp *models.SponsoredProject, milestones []models.Milestone) (*models.Evaluation, error) {
	v, err, shared := s.group.Do(sp.ProjectID, func() (any, error) {
		return s.evaluate(ctx, sp, milestones)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Shared in-flight evaluation", zap.String("project_id", sp.ProjectID))
	}
	return v.(*models.Evaluation), nil
}

func (s *EvaluationService) evaluate(ctx context.Context, sp *models.SponsoredProject, milestones []models.Milestone) (*models.Evaluation, error) {
	if s.client == nil {
		return s.heuristic(sp, milestones), nil
	}

	eval, err := s.evaluateWithLLM(ctx, sp, milestones)
	if err == nil {
		return eval, nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCollaboratorTimeout, err)
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) && llmErr.IsRetryable() {
		// Transient provider failure. Surface it so the caller can retry
		// instead of silently degrading to the heuristic.
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCollaboratorUnavailable, err)
	}

	s.logger.Warn("LLM evaluation failed, using heuristic",
		zap.String("project_id", sp.ProjectID),
		zap.Error(err))
	return s.heuristic(sp, milestones), nil
}

func (s *EvaluationService) evaluateWithLLM(ctx context.Context, sp *models.SponsoredProject, milestones []models.Milestone) (*models.Evaluation, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	prompt := prompts.BuildScoring(sp, milestones)

	response, err := s.client.GenerateResponse(ctx, prompt, prompts.ScoringSystem, 0.2)
	if err != nil {
		return nil, err
	}

	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "no JSON in completion", false, err)
	}

	var parsed struct {
		Score     json.RawMessage `json:"score"`
		Decision  json.RawMessage `json:"decision"`
		Rationale json.RawMessage `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "malformed scoring JSON", false, err)
	}

	score, err := jsonutil.FlexibleFloatValue(parsed.Score)
	if err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "unparseable score", false, err)
	}

	decision, err := models.ParseDecision(jsonutil.FlexibleStringValue(parsed.Decision))
	if err != nil {
		// Model ignored the vocabulary; derive the decision from the score.
		decision = decisionForScore(score)
	}

	eval := &models.Evaluation{
		Score:     score,
		Decision:  decision,
		Rationale: strings.TrimSpace(jsonutil.FlexibleStringValue(parsed.Rationale)),
	}
	if err := eval.Validate(); err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "scoring JSON out of range", false, err)
	}

	s.logger.Info("Project evaluated",
		zap.String("project_id", sp.ProjectID),
		zap.Float64("score", eval.Score),
		zap.String("decision", string(eval.Decision)))
	return eval, nil
}

// heuristic scores a project from its budget and milestone count alone.
// Smaller asks score higher, and a milestone plan adds up to 0.2.
func (s *EvaluationService) heuristic(sp *models.SponsoredProject, milestones []models.Milestone) *models.Evaluation {
	budget, _ := sp.Budget.Float64()

	base := 1.2 - budget/10000
	base = max(0.1, min(1.0, base))

	bonus := min(0.2, 0.05*float64(len(milestones)))

	score := min(1.0, base+bonus)
	decision := decisionForScore(score)

	s.logger.Info("Project evaluated heuristically",
		zap.String("project_id", sp.ProjectID),
		zap.Float64("score", score),
		zap.String("decision", string(decision)))

	return &models.Evaluation{
		Score:     score,
		Decision:  decision,
		Rationale: heuristicRationale(sp.Budget, len(milestones), decision),
	}
}

func decisionForScore(score float64) models.Decision {
	switch {
	case score >= approveThreshold:
		return models.DecisionApprove
	case score >= borderlineThreshold:
		return models.DecisionBorderline
	}
	return models.DecisionReject
}

func heuristicRationale(budget decimal.Decimal, milestoneCount int, decision models.Decision) string {
	switch decision {
	case models.DecisionApprove:
		return fmt.Sprintf("Budget of %s with %d milestones looks proportionate.", budget, milestoneCount)
	case models.DecisionBorderline:
		return fmt.Sprintf("Budget of %s is on the high side for %d milestones; needs reviewer judgement.", budget, milestoneCount)
	}
	return fmt.Sprintf("Budget of %s is too large relative to the milestone plan.", budget)
}
