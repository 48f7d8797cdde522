package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/services"
)

// EvaluationHandler exposes AI scoring.
type EvaluationHandler struct {
	lifecycle services.LifecycleService
	logger    *zap.Logger
}

// NewEvaluationHandler creates a new evaluation handler.
func NewEvaluationHandler(lifecycle services.LifecycleService, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{lifecycle: lifecycle, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *EvaluationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/arkiv/evaluate", h.Evaluate)
}

// Evaluate handles POST /api/v1/arkiv/evaluate?project_id=...
// Scores the project and records the advisory result on the aggregate. The
// status is never changed by this endpoint.
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_project_id", "project_id query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sp, err := h.lifecycle.RecordEvaluation(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"project_id": sp.ProjectID,
		"ai_score":   sp.AIScore,
		"decision":   sp.AIDecision,
		"rationale":  sp.Rationale,
		"status":     sp.Status,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ModerateRequest is the human decision payload.
type ModerateRequest struct {
	ProjectID string `json:"project_id"`
	Decision  string `json:"decision"`
}

// ModerationHandler exposes the authoritative human decision.
type ModerationHandler struct {
	lifecycle services.LifecycleService
	logger    *zap.Logger
}

// NewModerationHandler creates a new moderation handler.
func NewModerationHandler(lifecycle services.LifecycleService, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{lifecycle: lifecycle, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *ModerationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/arkiv/moderate", h.Moderate)
}

// Moderate handles POST /api/v1/arkiv/moderate.
func (h *ModerationHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req ModerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.ProjectID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_project_id", "project_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	sp, err := h.lifecycle.Moderate(r.Context(), req.ProjectID, decision)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, sp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// EscrowHandler exposes escrow deployment and its read-only view.
type EscrowHandler struct {
	lifecycle services.LifecycleService
	logger    *zap.Logger
}

// NewEscrowHandler creates a new escrow handler.
func NewEscrowHandler(lifecycle services.LifecycleService, logger *zap.Logger) *EscrowHandler {
	return &EscrowHandler{lifecycle: lifecycle, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *EscrowHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/arkiv/escrow/deploy-escrow", h.Deploy)
	mux.HandleFunc("GET /api/v1/arkiv/escrow/escrow-info/{projectID}", h.Info)
}

// Deploy handles POST /api/v1/arkiv/escrow/deploy-escrow?project_id=...
func (h *EscrowHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_project_id", "project_id query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sp, err := h.lifecycle.DeployEscrow(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, sp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Info handles GET /api/v1/arkiv/escrow/escrow-info/{projectID}.
func (h *EscrowHandler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.lifecycle.EscrowInfo(r.Context(), r.PathValue("projectID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, info); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
