package billing

import (
	"context"
	"time"
)

// Repository defines billing persistence
type Repository interface {
	// ClaimEvent records an event id as being processed. It returns false when
	// the id is already processed or currently claimed; a claim older than
	// staleBefore is taken over.
	ClaimEvent(ctx context.Context, eventID, eventType string, now, staleBefore time.Time) (bool, error)

	// MarkEventProcessed finalises a claim
	MarkEventProcessed(ctx context.Context, eventID string, at time.Time) error

	// ReleaseEvent drops a claim so a provider retry can process the event
	ReleaseEvent(ctx context.Context, eventID string) error

	// PruneEvents deletes processed events finished before the cutoff
	PruneEvents(ctx context.Context, before time.Time) (int64, error)

	// UpsertSubscription inserts or updates by external subscription id
	UpsertSubscription(ctx context.Context, sub *Subscription) error

	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error)

	// UpdateSubscriptionPeriod moves the billing window and sets status
	UpdateSubscriptionPeriod(ctx context.Context, externalID string, start, end time.Time, status string) error

	// SetSubscriptionStatus updates status by external id
	SetSubscriptionStatus(ctx context.Context, externalID, status string) error

	ListSubscriptions(ctx context.Context, accountID string) ([]*Subscription, error)
}
