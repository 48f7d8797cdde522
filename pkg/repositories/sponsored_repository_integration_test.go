//go:build integration

package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/testhelpers"
)

func seedSubmission(t *testing.T, repo SponsoredProjectRepository, projectID string) *models.SponsoredProject {
	t.Helper()

	project := &models.Project{
		ProjectID:     projectID,
		Name:          "Integration Test Project",
		RepositoryURL: "https://github.com/example/test",
		Budget:        decimal.NewFromInt(5000),
	}
	milestones := []models.Milestone{
		{Name: "Design", Amount: decimal.NewFromInt(2500)},
		{Name: "Delivery", Amount: decimal.NewFromInt(2500)},
	}
	sp := &models.SponsoredProject{
		ProjectID:     projectID,
		Name:          project.Name,
		RepositoryURL: project.RepositoryURL,
		Budget:        project.Budget,
		Status:        models.StatusSubmitted,
		Chain:         models.DefaultChain,
		EntityKey:     "0x" + projectID,
	}

	require.NoError(t, repo.CreateSubmission(context.Background(), project, milestones, sp))
	return sp
}

func TestCreateSubmissionRoundTrip(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)
	ctx := context.Background()

	created := seedSubmission(t, repo, "it-proj-1")
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := repo.GetByProjectID(ctx, "it-proj-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.True(t, got.Budget.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "0xit-proj-1", got.EntityKey)
	assert.Nil(t, got.ContractAddress)

	byID, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ProjectID, byID.ProjectID)

	milestones, err := NewMilestoneRepository(tdb.DB).ListByProject(ctx, "it-proj-1")
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, "Design", milestones[0].Name)
	assert.Equal(t, 0, milestones[0].Position)
}

func TestProjectRepositoryReads(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	sponsored := NewSponsoredProjectRepository(tdb.DB)
	projects := NewProjectRepository(tdb.DB)
	ctx := context.Background()

	seedSubmission(t, sponsored, "it-proj-1")
	seedSubmission(t, sponsored, "it-proj-2")

	p, err := projects.Get(ctx, "it-proj-1")
	require.NoError(t, err)
	assert.Equal(t, "Integration Test Project", p.Name)
	assert.True(t, p.Budget.Equal(decimal.NewFromInt(5000)))

	_, err = projects.Get(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	all, err := projects.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateSubmissionDuplicate(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)

	seedSubmission(t, repo, "it-proj-1")

	project := &models.Project{
		ProjectID: "it-proj-1",
		Name:      "Duplicate",
		Budget:    decimal.NewFromInt(1),
	}
	sp := &models.SponsoredProject{
		ProjectID: "it-proj-1",
		Name:      "Duplicate",
		Budget:    project.Budget,
		Status:    models.StatusSubmitted,
		Chain:     models.DefaultChain,
	}
	err := repo.CreateSubmission(context.Background(), project, nil, sp)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateProject)
}

func TestGetMissing(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)

	_, err := repo.GetByProjectID(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListAndCount(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)
	ctx := context.Background()

	for i := range 3 {
		seedSubmission(t, repo, fmt.Sprintf("it-proj-%d", i))
	}
	_, err := repo.TransitionStatus(ctx, "it-proj-0", models.StatusSubmitted, models.StatusApproved)
	require.NoError(t, err)

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	approved := models.StatusApproved
	filtered, err := repo.List(ctx, &approved)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "it-proj-0", filtered[0].ProjectID)

	count, err := repo.CountByStatus(ctx, models.StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTransitionStatusGuard(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)
	ctx := context.Background()

	seedSubmission(t, repo, "it-proj-1")

	sp, err := repo.TransitionStatus(ctx, "it-proj-1", models.StatusSubmitted, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sp.Status)

	// The from-state no longer matches; the guard must miss.
	_, err = repo.TransitionStatus(ctx, "it-proj-1", models.StatusSubmitted, models.StatusRejected)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateEvaluationGuard(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)
	ctx := context.Background()

	seedSubmission(t, repo, "it-proj-1")

	sp, err := repo.UpdateEvaluation(ctx, "it-proj-1", 0.8, models.DecisionApprove, "solid plan")
	require.NoError(t, err)
	assert.Equal(t, 0.8, sp.AIScore)
	assert.Equal(t, models.StatusSubmitted, sp.Status, "evaluation must not change status")

	_, err = repo.TransitionStatus(ctx, "it-proj-1", models.StatusSubmitted, models.StatusRejected)
	require.NoError(t, err)

	_, err = repo.UpdateEvaluation(ctx, "it-proj-1", 0.9, models.DecisionApprove, "again")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "terminal aggregates must reject evaluation writes")
}

func TestSetContractAddressOnce(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)
	ctx := context.Background()

	seedSubmission(t, repo, "it-proj-1")

	// Not approved yet: the guard misses.
	_, err := repo.SetContractAddress(ctx, "it-proj-1", "0xfirst")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.TransitionStatus(ctx, "it-proj-1", models.StatusSubmitted, models.StatusApproved)
	require.NoError(t, err)

	sp, err := repo.SetContractAddress(ctx, "it-proj-1", "0xfirst")
	require.NoError(t, err)
	require.NotNil(t, sp.ContractAddress)
	assert.Equal(t, "0xfirst", *sp.ContractAddress)

	_, err = repo.SetContractAddress(ctx, "it-proj-1", "0xsecond")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "address must be written exactly once")

	got, err := repo.GetByProjectID(ctx, "it-proj-1")
	require.NoError(t, err)
	assert.Equal(t, "0xfirst", *got.ContractAddress)
}

func TestSetContractAddressConcurrent(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.TruncateAll(t)
	repo := NewSponsoredProjectRepository(tdb.DB)
	ctx := context.Background()

	seedSubmission(t, repo, "it-proj-1")
	_, err := repo.TransitionStatus(ctx, "it-proj-1", models.StatusSubmitted, models.StatusApproved)
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = repo.SetContractAddress(ctx, "it-proj-1", fmt.Sprintf("0xaddr%d", i))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent writer must win")
}
