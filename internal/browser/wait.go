package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned when a condition does not hold in time.
var ErrWaitTimeout = errors.New("condition not met before timeout")

// Condition reports whether a page has reached some state. Errors are
// treated as "not yet" while waiting.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond every interval until it holds, timeout elapses or ctx
// is done. It checks once immediately.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %v", ErrWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// DocumentReady holds once the page's document has finished loading.
func DocumentReady(p Page) Condition {
	return func(ctx context.Context) (bool, error) {
		state, err := p.ReadyState(ctx)
		if err != nil {
			return false, err
		}
		return state == "complete", nil
	}
}

// URLChanged holds once the page URL differs from prev.
func URLChanged(p Page, prev string) Condition {
	return func(ctx context.Context) (bool, error) {
		u, err := p.URL(ctx)
		if err != nil {
			return false, err
		}
		return u != prev, nil
	}
}

// ElementPresent holds once sel matches at least one element.
func ElementPresent(p Page, sel Selector) Condition {
	return func(ctx context.Context) (bool, error) {
		els, err := p.FindAll(ctx, sel)
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil
	}
}

// AllOf holds when every condition holds. Conditions are checked in order.
func AllOf(conds ...Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		for _, c := range conds {
			ok, err := c(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}
