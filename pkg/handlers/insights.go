package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/services"
)

// InsightsHandler exposes the AI question and reporting surface. Every route
// here is read-only against the lifecycle.
type InsightsHandler struct {
	insights services.Insights
	logger   *zap.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(insights services.Insights, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{insights: insights, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *InsightsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ai/query-project", h.Query)
	mux.HandleFunc("GET /api/v1/ai/summarize-project/{projectID}", h.Summarize)
	mux.HandleFunc("POST /api/v1/ai/analyze-projects", h.Analyze)
	mux.HandleFunc("GET /api/v1/ai/generate-report/{projectID}", h.Report)
}

// Query handles POST /api/v1/ai/query-project?project_id=...&question=...
func (h *InsightsHandler) Query(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_project_id", "project_id query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	question := r.URL.Query().Get("question")

	answer, err := h.insights.QueryProject(r.Context(), projectID, question)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{
		"project_id": projectID,
		"question":   question,
		"answer":     answer,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Summarize handles GET /api/v1/ai/summarize-project/{projectID}.
func (h *InsightsHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.insights.SummarizeProject(r.Context(), r.PathValue("projectID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Analyze handles POST /api/v1/ai/analyze-projects?analysis_type=...
func (h *InsightsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.insights.AnalyzeProjects(r.Context(), r.URL.Query().Get("analysis_type"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, analysis); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Report handles GET /api/v1/ai/generate-report/{projectID}?report_type=...
func (h *InsightsHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.insights.GenerateReport(r.Context(), r.PathValue("projectID"), r.URL.Query().Get("report_type"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
