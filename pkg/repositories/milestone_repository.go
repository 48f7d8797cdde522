package repositories

import (
	"context"
	"fmt"

	"github.com/sub0-labs/funding-oracle/pkg/database"
	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// MilestoneRepository defines read access to the append-only milestone list.
// Milestones are written in a batch during submission and never mutated.
type MilestoneRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]models.Milestone, error)
}

// milestoneRepository implements MilestoneRepository using PostgreSQL.
type milestoneRepository struct {
	db *database.DB
}

// NewMilestoneRepository creates a new milestone repository.
func NewMilestoneRepository(db *database.DB) MilestoneRepository {
	return &milestoneRepository{db: db}
}

// ListByProject returns a project's milestones in submission order.
// An unknown project yields an empty list, matching the store contract.
func (r *milestoneRepository) ListByProject(ctx context.Context, projectID string) ([]models.Milestone, error) {
	query := `
		SELECT project_id, name, description, amount, position, created_at
		FROM milestones
		WHERE project_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []models.Milestone
	for rows.Next() {
		var m models.Milestone
		if err := rows.Scan(
			&m.ProjectID,
			&m.Name,
			&m.Description,
			&m.Amount,
			&m.Position,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}
