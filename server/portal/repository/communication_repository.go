package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

type CommunicationRepository struct {
	db *pgxpool.Pool
}

func NewCommunicationRepository(db *pgxpool.Pool) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

func (r *CommunicationRepository) Create(ctx context.Context, rec domain.CommunicationRecord) (domain.CommunicationRecord, error) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO client_communications(
			client_id, comm_type, title, subject, body, status, metadata,
			highlight_type, recipient_email, opened_at, clicked_at, sent_at, created_by
		)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING communication_id, created_at
	`, rec.ClientID, rec.Type, rec.Title, rec.Subject, rec.Body, rec.Status, rec.Metadata,
		rec.HighlightType, rec.RecipientEmail, rec.OpenedAt, rec.ClickedAt, rec.SentAt, rec.CreatedBy,
	).Scan(&rec.ID, &rec.CreatedAt)
	return rec, err
}

// ListByClient returns a client's records ordered by send time descending
// with unsent records last, then by creation time descending.
func (r *CommunicationRepository) ListByClient(ctx context.Context, clientID string, commType *string, limit, offset int) ([]domain.CommunicationRecord, error) {
	base := `
		SELECT communication_id, client_id, comm_type, title, subject, body, status, metadata,
		       highlight_type, recipient_email, opened_at, clicked_at, sent_at, created_by, created_at
		FROM client_communications
		WHERE client_id = $1`
	args := []any{clientID}

	if commType != nil {
		base += ` AND comm_type = $2
		ORDER BY sent_at DESC NULLS LAST, created_at DESC
		LIMIT $3 OFFSET $4`
		args = append(args, *commType, limit, offset)
	} else {
		base += `
		ORDER BY sent_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CommunicationRecord, 0)
	for rows.Next() {
		var rec domain.CommunicationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ClientID,
			&rec.Type,
			&rec.Title,
			&rec.Subject,
			&rec.Body,
			&rec.Status,
			&rec.Metadata,
			&rec.HighlightType,
			&rec.RecipientEmail,
			&rec.OpenedAt,
			&rec.ClickedAt,
			&rec.SentAt,
			&rec.CreatedBy,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *CommunicationRepository) UpdateStatus(ctx context.Context, communicationID string, status domain.CommunicationStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE client_communications
		SET status = $2,
		    opened_at = CASE WHEN $2 = 'opened' THEN NOW() ELSE opened_at END,
		    clicked_at = CASE WHEN $2 = 'clicked' THEN NOW() ELSE clicked_at END
		WHERE communication_id = $1
	`, communicationID, status)
	return err
}
