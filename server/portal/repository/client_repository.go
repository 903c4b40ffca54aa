package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

var ErrNotFound = errors.New("not found")

type ClientRepository struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `client_id, name, contact_email, highlevel_contact_id, stripe_customer_id, status, created_at, updated_at`

func (r *ClientRepository) scanClient(row pgx.Row) (domain.Client, error) {
	var item domain.Client
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.ContactEmail,
		&item.HighLevelContactID,
		&item.StripeCustomerID,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

func (r *ClientRepository) Create(ctx context.Context, client domain.Client) (domain.Client, error) {
	if client.Status == "" {
		client.Status = "active"
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO clients(name, contact_email, highlevel_contact_id, stripe_customer_id, status)
		VALUES($1, $2, $3, $4, $5)
		RETURNING client_id, created_at, updated_at
	`, client.Name, client.ContactEmail, client.HighLevelContactID, client.StripeCustomerID, client.Status,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	return client, err
}

func (r *ClientRepository) GetByID(ctx context.Context, clientID string) (domain.Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE client_id = $1
	`, clientID)
	return r.scanClient(row)
}

func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Client, 0)
	for rows.Next() {
		item, err := r.scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ClientRepository) Update(ctx context.Context, client domain.Client) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE clients
		SET name = $2, contact_email = $3, stripe_customer_id = $4, status = $5, updated_at = NOW()
		WHERE client_id = $1
	`, client.ID, client.Name, client.ContactEmail, client.StripeCustomerID, client.Status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHighLevelContactID caches a resolved CRM contact id on the client.
// The value derives deterministically from the contact email, so an
// overwrite from a concurrent resolution is harmless.
func (r *ClientRepository) SetHighLevelContactID(ctx context.Context, clientID, contactID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE clients
		SET highlevel_contact_id = $2, updated_at = NOW()
		WHERE client_id = $1
	`, clientID, contactID)
	return err
}
