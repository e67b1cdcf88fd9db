// Package ratelimit implements fixed-window limits on the shared kv store, so
// limits hold across API replicas.
package ratelimit

import (
	"context"
	"time"

	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
)

// Rule is a named limit of Limit hits per Window. A zero Limit disables it.
type Rule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// Limiter checks rules against the kv store
type Limiter struct {
	store kv.Store
	log   *logger.Logger
}

// New creates a limiter
func New(store kv.Store, log *logger.Logger) *Limiter {
	return &Limiter{store: store, log: log}
}

// Allow records a hit for id under rule and reports whether it is within the
// limit. Store failures allow the request: an unavailable limiter must not lock
// users out.
func (l *Limiter) Allow(ctx context.Context, rule Rule, id string) bool {
	if rule.Limit <= 0 {
		return true
	}

	n, err := l.store.Incr(ctx, "ratelimit:"+rule.Scope+":"+id, rule.Window)
	if err != nil {
		l.log.WithFields(map[string]interface{}{
			"scope": rule.Scope,
			"error": err.Error(),
		}).Warn("Rate limiter unavailable, allowing request")
		return true
	}

	if n > int64(rule.Limit) {
		metrics.RecordRateLimited(rule.Scope)
		return false
	}
	return true
}
