package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/metrics"
)

const (
	eventProcessing = "processing"
	eventProcessed  = "processed"
)

// BillingRepository implements billing.Repository
type BillingRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewBillingRepository creates a new billing repository
func NewBillingRepository(db *sql.DB, dialect Dialect) billing.Repository {
	return &BillingRepository{db: db, dialect: dialect}
}

// ClaimEvent inserts the event id as processing. A conflicting row is only
// taken over while it is still processing and older than staleBefore, which
// covers a worker that died mid-event.
func (r *BillingRepository) ClaimEvent(ctx context.Context, eventID, eventType string, now, staleBefore time.Time) (bool, error) {
	defer metrics.RecordDBQuery("claim", "billing_events", time.Now())

	query := r.dialect.Rebind(`
		INSERT INTO billing_events (event_id, event_type, status, received_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET received_at = excluded.received_at
		WHERE billing_events.status = ? AND billing_events.received_at < ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		eventID, eventType, eventProcessing, now.Unix(),
		eventProcessing, staleBefore.Unix(),
	)
	if err != nil {
		return false, errors.DatabaseError("Failed to claim billing event", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to claim billing event", err)
	}
	return n == 1, nil
}

// MarkEventProcessed finalises a claim
func (r *BillingRepository) MarkEventProcessed(ctx context.Context, eventID string, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE billing_events SET status = ?, processed_at = ? WHERE event_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, eventProcessed, at.Unix(), eventID); err != nil {
		return errors.DatabaseError("Failed to mark billing event processed", err)
	}
	return nil
}

// ReleaseEvent removes an unfinished claim
func (r *BillingRepository) ReleaseEvent(ctx context.Context, eventID string) error {
	query := r.dialect.Rebind(`DELETE FROM billing_events WHERE event_id = ? AND status = ?`)
	if _, err := r.db.ExecContext(ctx, query, eventID, eventProcessing); err != nil {
		return errors.DatabaseError("Failed to release billing event", err)
	}
	return nil
}

// PruneEvents deletes processed events older than before. Claims still in
// processing are left for ClaimEvent's takeover.
func (r *BillingRepository) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	defer metrics.RecordDBQuery("prune", "billing_events", time.Now())

	query := r.dialect.Rebind(`DELETE FROM billing_events WHERE status = ? AND processed_at < ?`)
	result, err := r.db.ExecContext(ctx, query, eventProcessed, before.Unix())
	if err != nil {
		return 0, errors.DatabaseError("Failed to prune billing events", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.DatabaseError("Failed to prune billing events", err)
	}
	return n, nil
}

// UpsertSubscription inserts or updates by external subscription id
func (r *BillingRepository) UpsertSubscription(ctx context.Context, s *billing.Subscription) error {
	defer metrics.RecordDBQuery("upsert", "subscriptions", time.Now())

	now := time.Now()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := r.dialect.Rebind(`
		INSERT INTO subscriptions (id, account_id, external_subscription_id, price_id, status,
			current_period_start, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_subscription_id) DO UPDATE SET
			account_id = excluded.account_id,
			price_id = excluded.price_id,
			status = excluded.status,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`)

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.AccountID, s.ExternalSubscriptionID, s.PriceID, s.Status,
		s.CurrentPeriodStart.Unix(), s.CurrentPeriodEnd.Unix(), s.CreatedAt.Unix(), now.Unix(),
	)
	if err != nil {
		return errors.DatabaseError("Failed to save subscription", err)
	}
	return nil
}

// GetSubscriptionByExternalID retrieves a subscription by provider id
func (r *BillingRepository) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*billing.Subscription, error) {
	query := r.dialect.Rebind(`
		SELECT id, account_id, external_subscription_id, price_id, status,
			current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions WHERE external_subscription_id = ?
	`)

	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, externalID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("Subscription")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get subscription", err)
	}
	return s, nil
}

// UpdateSubscriptionPeriod moves the billing window
func (r *BillingRepository) UpdateSubscriptionPeriod(ctx context.Context, externalID string, start, end time.Time, status string) error {
	query := r.dialect.Rebind(`
		UPDATE subscriptions
		SET current_period_start = ?, current_period_end = ?, status = ?, updated_at = ?
		WHERE external_subscription_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, start.Unix(), end.Unix(), status, nowUnix(), externalID)
	if err != nil {
		return errors.DatabaseError("Failed to update subscription period", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFound("Subscription")
	}
	return nil
}

// SetSubscriptionStatus updates the status of a subscription
func (r *BillingRepository) SetSubscriptionStatus(ctx context.Context, externalID, status string) error {
	query := r.dialect.Rebind(`UPDATE subscriptions SET status = ?, updated_at = ? WHERE external_subscription_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, status, nowUnix(), externalID); err != nil {
		return errors.DatabaseError("Failed to update subscription status", err)
	}
	return nil
}

// ListSubscriptions lists an account's subscriptions, newest first
func (r *BillingRepository) ListSubscriptions(ctx context.Context, accountID string) ([]*billing.Subscription, error) {
	query := r.dialect.Rebind(`
		SELECT id, account_id, external_subscription_id, price_id, status,
			current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions WHERE account_id = ? ORDER BY created_at DESC
	`)

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list subscriptions", err)
	}
	defer rows.Close()

	var out []*billing.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan subscription", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list subscriptions", err)
	}
	return out, nil
}

func scanSubscription(row rowScanner) (*billing.Subscription, error) {
	var s billing.Subscription
	var start, end, createdAt, updatedAt int64
	if err := row.Scan(&s.ID, &s.AccountID, &s.ExternalSubscriptionID, &s.PriceID, &s.Status,
		&start, &end, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.CurrentPeriodStart = time.Unix(start, 0)
	s.CurrentPeriodEnd = time.Unix(end, 0)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return &s, nil
}
