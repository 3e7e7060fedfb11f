package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxInFlight = 64
)

// Async sends through next in the background. Notify never blocks and never fails:
// delivery errors are logged and, when maxInFlight sends are pending, new ones are dropped.
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	slots   chan struct{}
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration, maxInFlight int, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{
		next:    next,
		timeout: timeout,
		logger:  logger,
		slots:   make(chan struct{}, maxInFlight),
	}
}

func (a *Async) Notify(ctx context.Context, address, message string) error {
	select {
	case a.slots <- struct{}{}:
	default:
		a.logger.Warn("notification dropped", slog.String("address", address))
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.slots }()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("notification panic", slog.Any("panic", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(sendCtx, address, message); err != nil {
			a.logger.Warn("notification failed", slog.String("address", address), slog.Any("error", err))
		}
	}()
	return nil
}

// Wait blocks until pending sends finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
