package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Defaults for PollWaiter fields left at zero.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollTimeout  = 5 * time.Minute
)

var errStillRefreshing = errors.New("workbook still refreshing")

// PollWaiter polls Workbook.Refreshing until it reports false.
type PollWaiter struct {
	// Settle is slept once before the first poll, giving the application
	// time to queue its refresh.
	Settle time.Duration
	// Interval between polls.
	Interval time.Duration
	// Timeout bounds the whole wait, settle excluded.
	Timeout time.Duration
}

// Wait blocks until wb stops refreshing, the timeout passes, or ctx ends.
func (p PollWaiter) Wait(ctx context.Context, wb Workbook) error {
	if err := sleep(ctx, p.Settle); err != nil {
		return err
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	b := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		busy, err := wb.Refreshing(ctx)
		if err != nil {
			return fmt.Errorf("failed to read refresh state: %w", err)
		}
		if busy {
			return retry.RetryableError(errStillRefreshing)
		}
		return nil
	})
	if errors.Is(err, errStillRefreshing) {
		return fmt.Errorf("refresh did not finish within %s", timeout)
	}
	return err
}

// FixedDelay waits a fixed duration regardless of workbook state. It suits
// backends that cannot report refresh progress.
type FixedDelay time.Duration

// Wait sleeps for d or until ctx ends.
func (d FixedDelay) Wait(ctx context.Context, _ Workbook) error {
	return sleep(ctx, time.Duration(d))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
