package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"omex-backend/internal/models"
)

type PlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

func (r *PlanRepo) Create(ctx context.Context, p *models.PlanRecord) error {
	p.ID = uuid.New()

	query := `INSERT INTO study_plans (id, user_id, filename, mindmap_data, study_plan_data)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.Filename, p.MindmapData, p.StudyPlanData,
	).Scan(&p.CreatedAt)
}

func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PlanRecord, error) {
	p := &models.PlanRecord{}
	query := `SELECT id, user_id, filename, mindmap_data, study_plan_data, created_at
		FROM study_plans WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Filename, &p.MindmapData, &p.StudyPlanData, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PlanRepo) ListByUser(ctx context.Context, userID int64) ([]*models.PlanRecord, error) {
	query := `SELECT id, user_id, filename, mindmap_data, study_plan_data, created_at
		FROM study_plans WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.PlanRecord
	for rows.Next() {
		p := &models.PlanRecord{}
		err := rows.Scan(&p.ID, &p.UserID, &p.Filename, &p.MindmapData, &p.StudyPlanData, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}
