package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

type PipelineRepository struct {
	db *pgxpool.Pool
}

func NewPipelineRepository(db *pgxpool.Pool) *PipelineRepository {
	return &PipelineRepository{db: db}
}

const dealColumns = `deal_id, client_id, name, contact_email, stage, call_score, engagement, budget_fit, recency,
	score, predicted_tier, snoozed_until, created_at, updated_at`

func scanDeal(row pgx.Row) (domain.Deal, error) {
	var item domain.Deal
	err := row.Scan(
		&item.ID,
		&item.ClientID,
		&item.Name,
		&item.ContactEmail,
		&item.Stage,
		&item.CallScore,
		&item.Engagement,
		&item.BudgetFit,
		&item.Recency,
		&item.Score,
		&item.PredictedTier,
		&item.SnoozedUntil,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

func (r *PipelineRepository) Create(ctx context.Context, deal domain.Deal) (domain.Deal, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO pipeline_deals(client_id, name, contact_email, stage, call_score, engagement, budget_fit, recency, score, predicted_tier)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING deal_id, created_at, updated_at
	`, deal.ClientID, deal.Name, deal.ContactEmail, deal.Stage, deal.CallScore, deal.Engagement,
		deal.BudgetFit, deal.Recency, deal.Score, deal.PredictedTier,
	).Scan(&deal.ID, &deal.CreatedAt, &deal.UpdatedAt)
	return deal, err
}

func (r *PipelineRepository) GetByID(ctx context.Context, dealID string) (domain.Deal, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+dealColumns+`
		FROM pipeline_deals
		WHERE deal_id = $1
	`, dealID)
	return scanDeal(row)
}

// ListActive excludes deals snoozed into the future.
func (r *PipelineRepository) ListActive(ctx context.Context, limit, offset int) ([]domain.Deal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+dealColumns+`
		FROM pipeline_deals
		WHERE snoozed_until IS NULL OR snoozed_until <= NOW()
		ORDER BY score DESC, updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Deal, 0)
	for rows.Next() {
		item, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PipelineRepository) UpdateScoring(ctx context.Context, deal domain.Deal) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE pipeline_deals
		SET stage = $2, call_score = $3, engagement = $4, budget_fit = $5, recency = $6,
		    score = $7, predicted_tier = $8, updated_at = NOW()
		WHERE deal_id = $1
	`, deal.ID, deal.Stage, deal.CallScore, deal.Engagement, deal.BudgetFit, deal.Recency, deal.Score, deal.PredictedTier)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PipelineRepository) SetSnoozedUntil(ctx context.Context, dealID string, until *time.Time) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE pipeline_deals
		SET snoozed_until = $2, updated_at = NOW()
		WHERE deal_id = $1
	`, dealID, until)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
