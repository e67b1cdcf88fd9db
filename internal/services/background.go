package services

import (
	"context"
	"sync"
	"time"

	"github.com/kybernus/license-api/internal/pkg/logger"
)

// Background runs fire-and-forget work (emails, last-validated updates) off the
// request path. Wait lets shutdown drain it.
type Background struct {
	wg      sync.WaitGroup
	logger  *logger.Logger
	timeout time.Duration
}

// NewBackground creates a runner whose tasks get their own context bounded by
// timeout
func NewBackground(log *logger.Logger, timeout time.Duration) *Background {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Background{logger: log, timeout: timeout}
}

// Go starts fn in a goroutine. Errors and panics are logged.
func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.WithFields(map[string]interface{}{
					"task":  name,
					"panic": r,
				}).Error("Background task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			b.logger.With("task", name).ErrorWithErr(err, "Background task failed")
		}
	}()
}

// Wait blocks until every started task returned or ctx is done
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
