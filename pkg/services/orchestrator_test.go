package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/arkiv"
	"github.com/sub0-labs/funding-oracle/pkg/escrow"
	"github.com/sub0-labs/funding-oracle/pkg/models"
)

type orchestratorFixture struct {
	orch     *Orchestrator
	repo     *fakeSponsoredRepo
	chain    *arkiv.MockClient
	deployer *escrow.MockDeployer
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	logger := zap.NewNop()
	repo := newFakeSponsoredRepo()
	chain := arkiv.NewMockClient()
	deployer := escrow.NewMockDeployer()

	orch := NewOrchestrator(
		repo,
		&fakeProjectRepo{repo: repo},
		&fakeMilestoneRepo{repo: repo},
		chain,
		NewEvaluationService(nil, 0, logger),
		NewEscrowService(deployer, "", 0, logger),
		logger,
	)
	return &orchestratorFixture{orch: orch, repo: repo, chain: chain, deployer: deployer}
}

func testSubmission(projectID string) *Submission {
	return &Submission{
		Project: models.Project{
			ProjectID:     projectID,
			Name:          "Test Project",
			RepositoryURL: "https://github.com/example/test",
			Budget:        decimal.NewFromInt(5000),
		},
		Milestones: []models.Milestone{
			{Name: "Design", Amount: decimal.NewFromInt(2500)},
			{Name: "Delivery", Amount: decimal.NewFromInt(2500)},
		},
	}
}

func (f *orchestratorFixture) submit(t *testing.T, projectID string) *models.SponsoredProject {
	t.Helper()
	sp, err := f.orch.Submit(context.Background(), testSubmission(projectID))
	require.NoError(t, err)
	return sp
}

func (f *orchestratorFixture) approve(t *testing.T, projectID string) *models.SponsoredProject {
	t.Helper()
	sp, err := f.orch.Moderate(context.Background(), projectID, models.DecisionApprove)
	require.NoError(t, err)
	return sp
}

func TestSubmit(t *testing.T) {
	f := newOrchestratorFixture(t)

	sp := f.submit(t, "proj-1")

	assert.Equal(t, models.StatusSubmitted, sp.Status)
	assert.Equal(t, models.DefaultChain, sp.Chain)
	assert.NotEmpty(t, sp.EntityKey)
	assert.NotEmpty(t, sp.TxHash)
	assert.Nil(t, sp.ContractAddress)
	assert.Equal(t, 1, f.chain.CreateEntityCalls)
}

func TestSubmitDuplicateProjectID(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	_, err := f.orch.Submit(context.Background(), testSubmission("proj-1"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateProject)
}

func TestSubmitValidation(t *testing.T) {
	f := newOrchestratorFixture(t)

	sub := testSubmission("proj-1")
	sub.Project.Budget = decimal.Zero
	_, err := f.orch.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Nothing was written anywhere.
	assert.Equal(t, 0, f.chain.CreateEntityCalls)
	_, err = f.orch.GetByProjectID(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubmitChainStateDown(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.chain.CreateEntityErr = errors.New("node unreachable")

	_, err := f.orch.Submit(context.Background(), testSubmission("proj-1"))
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)

	// No partial project row behind a failed submission.
	_, err = f.orch.GetByProjectID(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubmitStoreFailureLeavesNoProject(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.repo.createErr = errors.New("connection reset")

	_, err := f.orch.Submit(context.Background(), testSubmission("proj-1"))
	require.Error(t, err)

	// The chain entity was minted but no project exists; the orphaned
	// entity is harmless.
	assert.Equal(t, 1, f.chain.CreateEntityCalls)
	_, err = f.orch.GetByProjectID(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestModerateApprove(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	sp := f.approve(t, "proj-1")
	assert.Equal(t, models.StatusApproved, sp.Status)
}

func TestModerateApproveIdempotent(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	first := f.approve(t, "proj-1")

	second, err := f.orch.Moderate(context.Background(), "proj-1", models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, second.Status)
	assert.Equal(t, first.EntityKey, second.EntityKey)
}

func TestModerateRejectApproved(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	_, err := f.orch.Moderate(context.Background(), "proj-1", models.DecisionReject)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
}

func TestModerateRejectedIsTerminal(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	_, err := f.orch.Moderate(context.Background(), "proj-1", models.DecisionReject)
	require.NoError(t, err)

	for _, decision := range []models.Decision{models.DecisionApprove, models.DecisionReject} {
		_, err := f.orch.Moderate(context.Background(), "proj-1", decision)
		assert.ErrorIs(t, err, apperrors.ErrTerminalState)
	}
}

func TestModerateUnknownProject(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orch.Moderate(context.Background(), "ghost", models.DecisionApprove)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestModerateBorderlineRejected(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	_, err := f.orch.Moderate(context.Background(), "proj-1", models.DecisionBorderline)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestConcurrentModeration(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	const workers = 8
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision := models.DecisionApprove
			if i%2 == 1 {
				decision = models.DecisionReject
			}
			_, results[i] = f.orch.Moderate(context.Background(), "proj-1", decision)
		}()
	}
	wg.Wait()

	// Exactly one decision won; the aggregate settled in a single state and
	// every losing caller got a lifecycle error, not a second transition.
	sp, err := f.orch.GetByProjectID(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Contains(t, []models.Status{models.StatusApproved, models.StatusRejected}, sp.Status)

	for _, err := range results {
		if err == nil {
			continue
		}
		assert.True(t,
			errors.Is(err, apperrors.ErrTerminalState) || errors.Is(err, apperrors.ErrIllegalTransition),
			"unexpected error: %v", err)
	}
}

func TestRecordEvaluation(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	sp, err := f.orch.RecordEvaluation(context.Background(), "proj-1")
	require.NoError(t, err)

	// Evaluation is advisory: the score lands but the status is untouched.
	assert.Equal(t, models.StatusSubmitted, sp.Status)
	assert.Greater(t, sp.AIScore, 0.0)
	assert.NotEmpty(t, sp.AIDecision)
	assert.NotEmpty(t, sp.Rationale)
}

func TestRecordEvaluationTerminal(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	_, err := f.orch.Moderate(context.Background(), "proj-1", models.DecisionReject)
	require.NoError(t, err)

	_, err = f.orch.RecordEvaluation(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrTerminalState)
}

func TestRecordEvaluationAfterApproval(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	sp, err := f.orch.RecordEvaluation(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sp.Status)
}

func TestDeployEscrow(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	sp, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	require.NoError(t, err)

	require.NotNil(t, sp.ContractAddress)
	assert.NotEmpty(t, *sp.ContractAddress)
	assert.Equal(t, models.StatusApproved, sp.Status)
	assert.Equal(t, int64(1), f.deployer.DeployCalls.Load())
}

func TestDeployEscrowNotApproved(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	_, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrNotApproved)
	assert.Equal(t, int64(0), f.deployer.DeployCalls.Load())
}

func TestDeployEscrowTwice(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	_, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	require.NoError(t, err)

	_, err = f.orch.DeployEscrow(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDeployed)
	assert.Equal(t, int64(1), f.deployer.DeployCalls.Load())
}

func TestDeployEscrowConcurrent(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	const workers = 16
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.orch.DeployEscrow(context.Background(), "proj-1")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrAlreadyDeployed)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.deployer.DeployCalls.Load(), "deployer must be invoked exactly once")
}

func TestDeployEscrowDeployerDown(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	f.deployer.DeployFunc = func(ctx context.Context, req *escrow.DeployRequest) (*escrow.DeployResult, error) {
		return nil, errors.New("deployer unreachable")
	}

	_, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)

	// The failure is not sticky: once the deployer recovers, deployment
	// succeeds.
	f.deployer.DeployFunc = nil
	sp, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.True(t, sp.Deployed())
}

func TestDeployEscrowRequestShape(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.approve(t, "proj-1")

	var captured *escrow.DeployRequest
	f.deployer.DeployFunc = func(ctx context.Context, req *escrow.DeployRequest) (*escrow.DeployResult, error) {
		captured = req
		return &escrow.DeployResult{ContractAddress: "0xabc"}, nil
	}

	_, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, captured)

	// 5000 units at 10^12 planck each.
	assert.Equal(t, "5000000000000000", captured.TotalRaw)
	assert.Equal(t, models.DefaultChain, captured.Chain)
	require.Len(t, captured.Tranches, 2)
	assert.Equal(t, "Design", captured.Tranches[0].Name)
	assert.Equal(t, "2500000000000000", captured.Tranches[0].AmountRaw)
	assert.Equal(t, 50, captured.Tranches[0].Percentage)
}

func TestEntityKeyStableAcrossLifecycle(t *testing.T) {
	f := newOrchestratorFixture(t)
	submitted := f.submit(t, "proj-1")

	evaluated, err := f.orch.RecordEvaluation(context.Background(), "proj-1")
	require.NoError(t, err)
	approved := f.approve(t, "proj-1")
	deployed, err := f.orch.DeployEscrow(context.Background(), "proj-1")
	require.NoError(t, err)

	assert.Equal(t, submitted.EntityKey, evaluated.EntityKey)
	assert.Equal(t, submitted.EntityKey, approved.EntityKey)
	assert.Equal(t, submitted.EntityKey, deployed.EntityKey)

	// Every accepted transition mirrored to the same entity.
	ent, err := f.chain.GetEntity(context.Background(), submitted.EntityKey)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusApproved), ent.Attributes["status"])
	assert.Equal(t, *deployed.ContractAddress, ent.Attributes["contractAddress"])
}

func TestMirrorFailureDoesNotBlockTransition(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.chain.UpdateEntityErr = errors.New("node flapping")

	sp, err := f.orch.Moderate(context.Background(), "proj-1", models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sp.Status)
}

func TestListAndPendingCount(t *testing.T) {
	f := newOrchestratorFixture(t)
	for i := range 3 {
		f.submit(t, fmt.Sprintf("proj-%d", i))
	}
	f.approve(t, "proj-0")

	pending, err := f.orch.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	approved := models.StatusApproved
	list, err := f.orch.List(context.Background(), &approved)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "proj-0", list[0].ProjectID)

	all, err := f.orch.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEscrowInfo(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	info, err := f.orch.EscrowInfo(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.False(t, info.Deployed)
	assert.Nil(t, info.ContractAddress)

	f.approve(t, "proj-1")
	_, err = f.orch.DeployEscrow(context.Background(), "proj-1")
	require.NoError(t, err)

	info, err = f.orch.EscrowInfo(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.True(t, info.Deployed)
	require.NotNil(t, info.ContractAddress)
	assert.Equal(t, "5000000000000000", info.TotalRaw)
}

func TestProjects(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")
	f.submit(t, "proj-2")

	projects, err := f.orch.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	ids := []string{projects[0].ProjectID, projects[1].ProjectID}
	assert.ElementsMatch(t, []string{"proj-1", "proj-2"}, ids)
}

func TestMilestonesUnknownProject(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.submit(t, "proj-1")

	_, err := f.orch.Milestones(context.Background(), "proj-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	milestones, err := f.orch.Milestones(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Len(t, milestones, 2)
}
