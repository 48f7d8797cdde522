package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/services"
)

// mockLifecycle is a function-field mock of services.LifecycleService.
// Unset fields panic, which surfaces unexpected calls as test failures.
type mockLifecycle struct {
	SubmitFunc           func(ctx context.Context, sub *services.Submission) (*models.SponsoredProject, error)
	EvaluateFunc         func(ctx context.Context, projectID string) (*models.Evaluation, error)
	RecordEvaluationFunc func(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	ModerateFunc         func(ctx context.Context, projectID string, decision models.Decision) (*models.SponsoredProject, error)
	DeployEscrowFunc     func(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	GetFunc              func(ctx context.Context, id uuid.UUID) (*models.SponsoredProject, error)
	GetByProjectIDFunc   func(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	ListFunc             func(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error)
	ProjectsFunc         func(ctx context.Context) ([]models.Project, error)
	MilestonesFunc       func(ctx context.Context, projectID string) ([]models.Milestone, error)
	PendingCountFunc     func(ctx context.Context) (int, error)
	EscrowInfoFunc       func(ctx context.Context, projectID string) (*services.EscrowInfo, error)
	UpdateSponsoredFunc  func(ctx context.Context, id uuid.UUID, patch *services.SponsoredPatch) (*models.SponsoredProject, error)
}

var _ services.LifecycleService = (*mockLifecycle)(nil)

func (m *mockLifecycle) Submit(ctx context.Context, sub *services.Submission) (*models.SponsoredProject, error) {
	return m.SubmitFunc(ctx, sub)
}

func (m *mockLifecycle) Evaluate(ctx context.Context, projectID string) (*models.Evaluation, error) {
	return m.EvaluateFunc(ctx, projectID)
}

func (m *mockLifecycle) RecordEvaluation(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	return m.RecordEvaluationFunc(ctx, projectID)
}

func (m *mockLifecycle) Moderate(ctx context.Context, projectID string, decision models.Decision) (*models.SponsoredProject, error) {
	return m.ModerateFunc(ctx, projectID, decision)
}

func (m *mockLifecycle) DeployEscrow(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	return m.DeployEscrowFunc(ctx, projectID)
}

func (m *mockLifecycle) Get(ctx context.Context, id uuid.UUID) (*models.SponsoredProject, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockLifecycle) GetByProjectID(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	return m.GetByProjectIDFunc(ctx, projectID)
}

func (m *mockLifecycle) List(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error) {
	return m.ListFunc(ctx, status)
}

func (m *mockLifecycle) Projects(ctx context.Context) ([]models.Project, error) {
	return m.ProjectsFunc(ctx)
}

func (m *mockLifecycle) Milestones(ctx context.Context, projectID string) ([]models.Milestone, error) {
	return m.MilestonesFunc(ctx, projectID)
}

func (m *mockLifecycle) PendingCount(ctx context.Context) (int, error) {
	return m.PendingCountFunc(ctx)
}

func (m *mockLifecycle) EscrowInfo(ctx context.Context, projectID string) (*services.EscrowInfo, error) {
	return m.EscrowInfoFunc(ctx, projectID)
}

func (m *mockLifecycle) UpdateSponsored(ctx context.Context, id uuid.UUID, patch *services.SponsoredPatch) (*models.SponsoredProject, error) {
	return m.UpdateSponsoredFunc(ctx, id, patch)
}

// mockInsights is a function-field mock of services.Insights.
type mockInsights struct {
	QueryProjectFunc     func(ctx context.Context, projectID, question string) (string, error)
	SummarizeProjectFunc func(ctx context.Context, projectID string) (*services.ProjectSummary, error)
	AnalyzeProjectsFunc  func(ctx context.Context, analysisType string) (*services.PortfolioAnalysis, error)
	GenerateReportFunc   func(ctx context.Context, projectID, reportType string) (*services.ProjectReport, error)
}

var _ services.Insights = (*mockInsights)(nil)

func (m *mockInsights) QueryProject(ctx context.Context, projectID, question string) (string, error) {
	return m.QueryProjectFunc(ctx, projectID, question)
}

func (m *mockInsights) SummarizeProject(ctx context.Context, projectID string) (*services.ProjectSummary, error) {
	return m.SummarizeProjectFunc(ctx, projectID)
}

func (m *mockInsights) AnalyzeProjects(ctx context.Context, analysisType string) (*services.PortfolioAnalysis, error) {
	return m.AnalyzeProjectsFunc(ctx, analysisType)
}

func (m *mockInsights) GenerateReport(ctx context.Context, projectID, reportType string) (*services.ProjectReport, error) {
	return m.GenerateReportFunc(ctx, projectID, reportType)
}
