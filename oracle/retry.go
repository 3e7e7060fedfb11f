package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
)

// Retrying retries a failed quote a bounded number of times with a fixed pause.
// It is meant for the quote step of the caller, not for the engine's redemption re-quote.
type Retrying struct {
	next     domain.RateOracle
	attempts int
	pause    time.Duration
}

func NewRetrying(next domain.RateOracle, attempts int, pause time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, pause: pause}
}

func (r *Retrying) Quote(ctx context.Context, fiatAmount decimal.Decimal) (entity.Quote, error) {
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 && r.pause > 0 {
			select {
			case <-ctx.Done():
				return entity.Quote{}, ctx.Err()
			case <-time.After(r.pause):
			}
		}
		q, err := r.next.Quote(ctx, fiatAmount)
		if err == nil {
			return q, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return entity.Quote{}, lastErr
}

var _ domain.RateOracle = (*Retrying)(nil)
