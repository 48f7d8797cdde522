package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/llm"
	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/prompts"
)

// insightsTemperature leaves room for narrative output; scoring stays strict.
const insightsTemperature = 0.7

// ProjectSummary is a generated summary of one project.
type ProjectSummary struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	Summary     string `json:"summary"`
}

// PortfolioAnalysis is a generated analysis across all recorded projects.
type PortfolioAnalysis struct {
	AnalysisType string `json:"analysis_type"`
	ProjectCount int    `json:"projects_count"`
	Analysis     string `json:"analysis"`
}

// ProjectReport is a generated report for one project.
type ProjectReport struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	ReportType  string `json:"report_type"`
	Report      string `json:"report"`
}

// Insights is the read-only AI surface over recorded aggregates. Nothing here
// ever mutates project state.
type Insights interface {
	QueryProject(ctx context.Context, projectID, question string) (string, error)
	SummarizeProject(ctx context.Context, projectID string) (*ProjectSummary, error)
	AnalyzeProjects(ctx context.Context, analysisType string) (*PortfolioAnalysis, error)
	GenerateReport(ctx context.Context, projectID, reportType string) (*ProjectReport, error)
}

// InsightsService answers questions, summaries, analyses, and reports over
// the sponsored project aggregates. It requires a configured LLM client;
// unlike scoring there is no heuristic to fall back to.
type InsightsService struct {
	sponsored sponsoredReader
	client    llm.LLMClient
	timeout   time.Duration
	logger    *zap.Logger
}

// sponsoredReader is the slice of the repository the insights service needs.
type sponsoredReader interface {
	GetByProjectID(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	List(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error)
}

var _ Insights = (*InsightsService)(nil)

// NewInsightsService creates an insights service. client may be nil, in which
// case every call reports the collaborator as unavailable.
func NewInsightsService(sponsored sponsoredReader, client llm.LLMClient, timeout time.Duration, logger *zap.Logger) *InsightsService {
	return &InsightsService{
		sponsored: sponsored,
		client:    client,
		timeout:   timeout,
		logger:    logger.Named("insights"),
	}
}

// QueryProject answers a free-form question about one project.
func (s *InsightsService) QueryProject(ctx context.Context, projectID, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is required", apperrors.ErrValidation)
	}
	sp, err := s.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return "", err
	}

	answer, err := s.generate(ctx, question, prompts.BuildQuerySystem(sp))
	if err != nil {
		return "", err
	}

	s.logger.Info("Project query answered",
		zap.String("project_id", projectID),
		zap.Int("question_len", len(question)))
	return answer, nil
}

// SummarizeProject generates a short summary of one project.
func (s *InsightsService) SummarizeProject(ctx context.Context, projectID string) (*ProjectSummary, error) {
	sp, err := s.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	summary, err := s.generate(ctx, prompts.SummaryRequest, prompts.BuildSummarySystem(sp))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project summary generated", zap.String("project_id", projectID))
	return &ProjectSummary{
		ProjectID:   sp.ProjectID,
		ProjectName: sp.Name,
		Summary:     summary,
	}, nil
}

// AnalyzeProjects analyzes every recorded project. Unknown analysis types fall
// back to a general analysis.
func (s *InsightsService) AnalyzeProjects(ctx context.Context, analysisType string) (*PortfolioAnalysis, error) {
	projects, err := s.sponsored.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: no projects to analyze", apperrors.ErrNotFound)
	}

	analysisType = prompts.NormalizeAnalysisType(analysisType)
	analysis, err := s.generate(ctx, prompts.AnalysisRequest, prompts.BuildAnalysisSystem(projects, analysisType))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Portfolio analysis generated",
		zap.String("analysis_type", analysisType),
		zap.Int("projects", len(projects)))
	return &PortfolioAnalysis{
		AnalysisType: analysisType,
		ProjectCount: len(projects),
		Analysis:     analysis,
	}, nil
}

// GenerateReport writes a report for one project. Unknown report types fall
// back to the detailed report.
func (s *InsightsService) GenerateReport(ctx context.Context, projectID, reportType string) (*ProjectReport, error) {
	sp, err := s.sponsored.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reportType = prompts.NormalizeReportType(reportType)
	report, err := s.generate(ctx, prompts.ReportRequest(reportType), prompts.BuildReportSystem(sp, reportType))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project report generated",
		zap.String("project_id", projectID),
		zap.String("report_type", reportType))
	return &ProjectReport{
		ProjectID:   sp.ProjectID,
		ProjectName: sp.Name,
		ReportType:  reportType,
		Report:      report,
	}, nil
}

func (s *InsightsService) generate(ctx context.Context, userPrompt, systemPrompt string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: no AI endpoint configured", apperrors.ErrCollaboratorUnavailable)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.client.GenerateResponse(ctx, userPrompt, systemPrompt, insightsTemperature)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", apperrors.ErrCollaboratorTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrCollaboratorUnavailable, err)
	}
	return strings.TrimSpace(out), nil
}
