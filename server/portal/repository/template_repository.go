package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

type TemplateRepository struct {
	db *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, t domain.EmailTemplate) (domain.EmailTemplate, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO email_templates(name, subject, body)
		VALUES($1, $2, $3)
		RETURNING template_id, created_at, updated_at
	`, t.Name, t.Subject, t.Body).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *TemplateRepository) GetByID(ctx context.Context, templateID string) (domain.EmailTemplate, error) {
	var item domain.EmailTemplate
	err := r.db.QueryRow(ctx, `
		SELECT template_id, name, subject, body, created_at, updated_at
		FROM email_templates
		WHERE template_id = $1
	`, templateID).Scan(&item.ID, &item.Name, &item.Subject, &item.Body, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (domain.EmailTemplate, error) {
	var item domain.EmailTemplate
	err := r.db.QueryRow(ctx, `
		SELECT template_id, name, subject, body, created_at, updated_at
		FROM email_templates
		WHERE name = $1
	`, name).Scan(&item.ID, &item.Name, &item.Subject, &item.Body, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

func (r *TemplateRepository) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT template_id, name, subject, body, created_at, updated_at
		FROM email_templates
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.EmailTemplate, 0)
	for rows.Next() {
		var item domain.EmailTemplate
		if err := rows.Scan(&item.ID, &item.Name, &item.Subject, &item.Body, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *TemplateRepository) Update(ctx context.Context, t domain.EmailTemplate) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE email_templates
		SET name = $2, subject = $3, body = $4, updated_at = NOW()
		WHERE template_id = $1
	`, t.ID, t.Name, t.Subject, t.Body)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, templateID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM email_templates WHERE template_id = $1`, templateID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
