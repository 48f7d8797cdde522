package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/models"
	"github.com/sub0-labs/funding-oracle/pkg/services"
)

// SubmitRequest is the submission payload: a project plus its milestone plan.
type SubmitRequest struct {
	ProjectID     string             `json:"project_id"`
	Name          string             `json:"name"`
	RepositoryURL string             `json:"repository_url"`
	Description   string             `json:"description"`
	Budget        decimal.Decimal    `json:"budget"`
	Milestones    []MilestoneRequest `json:"milestones"`
}

// MilestoneRequest is one payout tranche in a submission.
type MilestoneRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// SponsoredHandler handles project submission and aggregate reads.
type SponsoredHandler struct {
	lifecycle services.LifecycleService
	logger    *zap.Logger
}

// NewSponsoredHandler creates a new sponsored projects handler.
func NewSponsoredHandler(lifecycle services.LifecycleService, logger *zap.Logger) *SponsoredHandler {
	return &SponsoredHandler{lifecycle: lifecycle, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *SponsoredHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/arkiv/projects", h.Submit)
	mux.HandleFunc("GET /api/v1/arkiv/projects", h.ListProjects)
	mux.HandleFunc("GET /api/v1/arkiv/projects/{projectID}", h.GetByProjectID)
	mux.HandleFunc("GET /api/v1/arkiv/projects/{projectID}/milestones", h.Milestones)

	mux.HandleFunc("GET /api/v1/arkiv/sponsored", h.List)
	mux.HandleFunc("GET /api/v1/arkiv/sponsored/pending-count", h.PendingCount)
	mux.HandleFunc("GET /api/v1/arkiv/sponsored/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/arkiv/sponsored/{id}", h.Update)
}

// Submit handles POST /api/v1/arkiv/projects.
func (h *SponsoredHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sub := &services.Submission{
		Project: models.Project{
			ProjectID:     req.ProjectID,
			Name:          req.Name,
			RepositoryURL: req.RepositoryURL,
			Description:   req.Description,
			Budget:        req.Budget,
		},
	}
	for _, m := range req.Milestones {
		sub.Milestones = append(sub.Milestones, models.Milestone{
			Name:        m.Name,
			Description: m.Description,
			Amount:      m.Amount,
		})
	}

	sp, err := h.lifecycle.Submit(r.Context(), sub)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, sp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/arkiv/sponsored with an optional status filter.
func (h *SponsoredHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		status = &parsed
	}

	list, err := h.lifecycle.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []models.SponsoredProject{}
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"projects": list,
		"count":    len(list),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListProjects handles GET /api/v1/arkiv/projects, serving the immutable
// submission records rather than the lifecycle aggregates.
func (h *SponsoredHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.lifecycle.Projects(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"count":    len(projects),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetByProjectID handles GET /api/v1/arkiv/projects/{projectID}.
func (h *SponsoredHandler) GetByProjectID(w http.ResponseWriter, r *http.Request) {
	sp, err := h.lifecycle.GetByProjectID(r.Context(), r.PathValue("projectID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, sp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Milestones handles GET /api/v1/arkiv/projects/{projectID}/milestones.
func (h *SponsoredHandler) Milestones(w http.ResponseWriter, r *http.Request) {
	milestones, err := h.lifecycle.Milestones(r.Context(), r.PathValue("projectID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if milestones == nil {
		milestones = []models.Milestone{}
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"milestones": milestones,
		"count":      len(milestones),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/arkiv/sponsored/{id}.
func (h *SponsoredHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid sponsored project id"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sp, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, sp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// PendingCount handles GET /api/v1/arkiv/sponsored/pending-count.
func (h *SponsoredHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.lifecycle.PendingCount(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]int{"pending": count}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/v1/arkiv/sponsored/{id}.
func (h *SponsoredHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid sponsored project id"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var patch services.SponsoredPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sp, err := h.lifecycle.UpdateSponsored(r.Context(), id, &patch)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, sp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
