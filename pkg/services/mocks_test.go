package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// fakeSponsoredRepo is an in-memory SponsoredProjectRepository. Its guarded
// updates check-and-set under one mutex, matching the single-statement
// semantics of the real store.
type fakeSponsoredRepo struct {
	mu         sync.Mutex
	byProject  map[string]*models.SponsoredProject
	projects   map[string]*models.Project
	milestones map[string][]models.Milestone

	createErr error
}

func newFakeSponsoredRepo() *fakeSponsoredRepo {
	return &fakeSponsoredRepo{
		byProject:  make(map[string]*models.SponsoredProject),
		projects:   make(map[string]*models.Project),
		milestones: make(map[string][]models.Milestone),
	}
}

func (f *fakeSponsoredRepo) CreateSubmission(_ context.Context, project *models.Project, milestones []models.Milestone, sp *models.SponsoredProject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byProject[project.ProjectID]; ok {
		return apperrors.ErrDuplicateProject
	}
	if sp.ID == uuid.Nil {
		sp.ID = uuid.New()
	}
	cp := *sp
	f.byProject[sp.ProjectID] = &cp
	pcp := *project
	f.projects[project.ProjectID] = &pcp
	f.milestones[sp.ProjectID] = append([]models.Milestone(nil), milestones...)
	return nil
}

func (f *fakeSponsoredRepo) Get(_ context.Context, id uuid.UUID) (*models.SponsoredProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sp := range f.byProject {
		if sp.ID == id {
			cp := *sp
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeSponsoredRepo) GetByProjectID(_ context.Context, projectID string) (*models.SponsoredProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.byProject[projectID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (f *fakeSponsoredRepo) List(_ context.Context, status *models.Status) ([]models.SponsoredProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SponsoredProject
	for _, sp := range f.byProject {
		if status == nil || sp.Status == *status {
			out = append(out, *sp)
		}
	}
	return out, nil
}

func (f *fakeSponsoredRepo) CountByStatus(_ context.Context, status models.Status) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, sp := range f.byProject {
		if sp.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeSponsoredRepo) UpdateEvaluation(_ context.Context, projectID string, score float64, decision models.Decision, rationale string) (*models.SponsoredProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.byProject[projectID]
	if !ok || sp.Status == models.StatusRejected {
		return nil, apperrors.ErrNotFound
	}
	sp.AIScore = score
	sp.AIDecision = decision
	sp.Rationale = rationale
	cp := *sp
	return &cp, nil
}

func (f *fakeSponsoredRepo) TransitionStatus(_ context.Context, projectID string, from, to models.Status) (*models.SponsoredProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.byProject[projectID]
	if !ok || sp.Status != from {
		return nil, apperrors.ErrNotFound
	}
	sp.Status = to
	cp := *sp
	return &cp, nil
}

func (f *fakeSponsoredRepo) SetContractAddress(_ context.Context, projectID, contractAddress string) (*models.SponsoredProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.byProject[projectID]
	if !ok || sp.Status != models.StatusApproved || sp.ContractAddress != nil {
		return nil, apperrors.ErrNotFound
	}
	sp.ContractAddress = &contractAddress
	cp := *sp
	return &cp, nil
}

// fakeProjectRepo serves the project records written by the sponsored repo's
// CreateSubmission, mirroring the shared tables of the real store.
type fakeProjectRepo struct {
	repo *fakeSponsoredRepo
}

func (f *fakeProjectRepo) Get(_ context.Context, projectID string) (*models.Project, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	p, ok := f.repo.projects[projectID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjectRepo) List(_ context.Context) ([]models.Project, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	var projects []models.Project
	for _, p := range f.repo.projects {
		projects = append(projects, *p)
	}
	return projects, nil
}

// fakeMilestoneRepo serves the milestone plans recorded by the sponsored repo.
type fakeMilestoneRepo struct {
	repo *fakeSponsoredRepo
}

func (f *fakeMilestoneRepo) ListByProject(_ context.Context, projectID string) ([]models.Milestone, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	return append([]models.Milestone(nil), f.repo.milestones[projectID]...), nil
}
