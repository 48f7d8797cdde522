package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/database"
	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// SponsoredProjectRepository owns the mutable lifecycle aggregate. All writes
// go through guarded single-statement updates so that concurrent mutations of
// the same aggregate serialize on the database row; the affected-row check is
// the linearization point for every transition.
//
// Guarded methods return apperrors.ErrNotFound when no row matched the guard;
// the orchestrator disambiguates (missing vs terminal vs already-deployed)
// with a follow-up read, which is safe because the states that cause a guard
// miss are sticky.
type SponsoredProjectRepository interface {
	// CreateSubmission persists the project, its milestones, and the
	// aggregate as a single transaction. Either everything is written or
	// nothing is.
	CreateSubmission(ctx context.Context, project *models.Project, milestones []models.Milestone, sp *models.SponsoredProject) error

	Get(ctx context.Context, id uuid.UUID) (*models.SponsoredProject, error)
	GetByProjectID(ctx context.Context, projectID string) (*models.SponsoredProject, error)
	List(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error)
	CountByStatus(ctx context.Context, status models.Status) (int, error)

	// UpdateEvaluation overwrites the advisory score fields unless the
	// aggregate is in a terminal state.
	UpdateEvaluation(ctx context.Context, projectID string, score float64, decision models.Decision, rationale string) (*models.SponsoredProject, error)

	// TransitionStatus moves the aggregate from one status to another.
	TransitionStatus(ctx context.Context, projectID string, from, to models.Status) (*models.SponsoredProject, error)

	// SetContractAddress records the escrow contract exactly once: the
	// update only matches while the aggregate is approved and the address
	// is still null.
	SetContractAddress(ctx context.Context, projectID, contractAddress string) (*models.SponsoredProject, error)
}

// sponsoredRepository implements SponsoredProjectRepository using PostgreSQL.
type sponsoredRepository struct {
	db *database.DB
}

// NewSponsoredProjectRepository creates a new sponsored project repository.
func NewSponsoredProjectRepository(db *database.DB) SponsoredProjectRepository {
	return &sponsoredRepository{db: db}
}

const sponsoredColumns = `id, project_id, name, repository_url, description, budget,
	ai_score, ai_decision, rationale, status, contract_address, chain,
	entity_key, tx_hash, created_at, updated_at`

func scanSponsored(row pgx.Row) (*models.SponsoredProject, error) {
	var sp models.SponsoredProject
	err := row.Scan(
		&sp.ID,
		&sp.ProjectID,
		&sp.Name,
		&sp.RepositoryURL,
		&sp.Description,
		&sp.Budget,
		&sp.AIScore,
		&sp.AIDecision,
		&sp.Rationale,
		&sp.Status,
		&sp.ContractAddress,
		&sp.Chain,
		&sp.EntityKey,
		&sp.TxHash,
		&sp.CreatedAt,
		&sp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan sponsored project: %w", err)
	}
	return &sp, nil
}

// CreateSubmission inserts the project, milestones, and aggregate atomically.
func (r *sponsoredRepository) CreateSubmission(ctx context.Context, project *models.Project, milestones []models.Milestone, sp *models.SponsoredProject) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	project.CreatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO projects (project_id, name, repository_url, description, budget, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		project.ProjectID,
		project.Name,
		project.RepositoryURL,
		project.Description,
		project.Budget,
		project.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateProject
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	for i := range milestones {
		m := &milestones[i]
		m.ProjectID = project.ProjectID
		m.Position = i
		m.CreatedAt = now

		_, err = tx.Exec(ctx, `
			INSERT INTO milestones (project_id, name, description, amount, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ProjectID, m.Name, m.Description, m.Amount, m.Position, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create milestone %q: %w", m.Name, err)
		}
	}

	if sp.ID == uuid.Nil {
		sp.ID = uuid.New()
	}
	sp.CreatedAt = now
	sp.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO sponsored_projects (`+sponsoredColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sp.ID,
		sp.ProjectID,
		sp.Name,
		sp.RepositoryURL,
		sp.Description,
		sp.Budget,
		sp.AIScore,
		sp.AIDecision,
		sp.Rationale,
		sp.Status,
		sp.ContractAddress,
		sp.Chain,
		sp.EntityKey,
		sp.TxHash,
		sp.CreatedAt,
		sp.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateProject
		}
		return fmt.Errorf("failed to create sponsored project: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}

// Get retrieves an aggregate by its store-assigned id.
func (r *sponsoredRepository) Get(ctx context.Context, id uuid.UUID) (*models.SponsoredProject, error) {
	query := `SELECT ` + sponsoredColumns + ` FROM sponsored_projects WHERE id = $1`
	return scanSponsored(r.db.QueryRow(ctx, query, id))
}

// GetByProjectID retrieves an aggregate by its project id.
func (r *sponsoredRepository) GetByProjectID(ctx context.Context, projectID string) (*models.SponsoredProject, error) {
	query := `SELECT ` + sponsoredColumns + ` FROM sponsored_projects WHERE project_id = $1`
	return scanSponsored(r.db.QueryRow(ctx, query, projectID))
}

// List returns aggregates, optionally filtered by status, newest first.
func (r *sponsoredRepository) List(ctx context.Context, status *models.Status) ([]models.SponsoredProject, error) {
	query := `SELECT ` + sponsoredColumns + ` FROM sponsored_projects`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sponsored projects: %w", err)
	}
	defer rows.Close()

	var results []models.SponsoredProject
	for rows.Next() {
		sp, err := scanSponsored(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *sp)
	}
	return results, rows.Err()
}

// CountByStatus is a derived read computed on demand, never cached.
func (r *sponsoredRepository) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM sponsored_projects WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sponsored projects: %w", err)
	}
	return count, nil
}

// UpdateEvaluation overwrites ai_score and the advisory fields in one
// statement. The guard keeps terminal aggregates untouched.
func (r *sponsoredRepository) UpdateEvaluation(ctx context.Context, projectID string, score float64, decision models.Decision, rationale string) (*models.SponsoredProject, error) {
	query := `
		UPDATE sponsored_projects
		SET ai_score = $2, ai_decision = $3, rationale = $4, updated_at = now()
		WHERE project_id = $1 AND status <> 'rejected'
		RETURNING ` + sponsoredColumns

	return scanSponsored(r.db.QueryRow(ctx, query, projectID, score, decision, rationale))
}

// TransitionStatus performs a guarded status move in one statement.
func (r *sponsoredRepository) TransitionStatus(ctx context.Context, projectID string, from, to models.Status) (*models.SponsoredProject, error) {
	query := `
		UPDATE sponsored_projects
		SET status = $3, updated_at = now()
		WHERE project_id = $1 AND status = $2
		RETURNING ` + sponsoredColumns

	return scanSponsored(r.db.QueryRow(ctx, query, projectID, from, to))
}

// SetContractAddress records the deployed contract. The null check in the
// guard makes this the exactly-once linearization point for deployment.
func (r *sponsoredRepository) SetContractAddress(ctx context.Context, projectID, contractAddress string) (*models.SponsoredProject, error) {
	query := `
		UPDATE sponsored_projects
		SET contract_address = $2, updated_at = now()
		WHERE project_id = $1 AND status = 'approved' AND contract_address IS NULL
		RETURNING ` + sponsoredColumns

	return scanSponsored(r.db.QueryRow(ctx, query, projectID, contractAddress))
}
