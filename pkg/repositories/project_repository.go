// Package repositories implements PostgreSQL data access for funding-oracle.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
	"github.com/sub0-labs/funding-oracle/pkg/database"
	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ProjectRepository defines read access to immutable project records.
// Projects are only ever written as part of a submission (see
// SponsoredProjectRepository.CreateSubmission).
type ProjectRepository interface {
	Get(ctx context.Context, projectID string) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `project_id, name, repository_url, description, budget, created_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ProjectID,
		&p.Name,
		&p.RepositoryURL,
		&p.Description,
		&p.Budget,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &p, nil
}

// Get retrieves a project by its caller-assigned id.
func (r *projectRepository) Get(ctx context.Context, projectID string) (*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE project_id = $1`

	return scanProject(r.db.QueryRow(ctx, query, projectID))
}

// List returns all projects in submission order.
func (r *projectRepository) List(ctx context.Context) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}
