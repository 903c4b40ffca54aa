package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

// SubscriptionRepository stores Stripe subscription references per
// client. Billing amounts and proration live in Stripe, not here.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s domain.Subscription) (domain.Subscription, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO subscriptions(client_id, stripe_subscription_id, stripe_price_id, status, current_period_end)
		VALUES($1, $2, $3, $4, $5)
		RETURNING subscription_id, created_at, updated_at
	`, s.ClientID, s.StripeSubscriptionID, s.StripePriceID, s.Status, s.CurrentPeriodEnd,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SubscriptionRepository) ListByClient(ctx context.Context, clientID string) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT subscription_id, client_id, stripe_subscription_id, stripe_price_id, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE client_id = $1
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Subscription, 0)
	for rows.Next() {
		var item domain.Subscription
		if err := rows.Scan(&item.ID, &item.ClientID, &item.StripeSubscriptionID, &item.StripePriceID, &item.Status, &item.CurrentPeriodEnd, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, subscriptionID, status string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, updated_at = NOW()
		WHERE subscription_id = $1
	`, subscriptionID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
