package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

type AlertRepository struct {
	db *pgxpool.Pool
}

func NewAlertRepository(db *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	if alert.Metadata == nil {
		alert.Metadata = map[string]any{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO alerts(severity, category, message, metadata, source, client_id)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING alert_id, created_at
	`, alert.Severity, alert.Category, alert.Message, alert.Metadata, alert.Source, alert.ClientID,
	).Scan(&alert.ID, &alert.CreatedAt)
	return alert, err
}

func (r *AlertRepository) ListRecent(ctx context.Context, limit int) ([]domain.Alert, error) {
	rows, err := r.db.Query(ctx, `
		SELECT alert_id, severity, category, message, metadata, source, client_id, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Alert, 0)
	for rows.Next() {
		var item domain.Alert
		if err := rows.Scan(&item.ID, &item.Severity, &item.Category, &item.Message, &item.Metadata, &item.Source, &item.ClientID, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
