// File: internal/dom/poller.go
package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy bounds one polling run. Every run is finite: the host may never
// render the expected element at all (permissions can hide whole fields), and
// an unbounded timer would outlive the page.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// NotFoundError reports that a selector matched nothing within the policy.
type NotFoundError struct {
	Selector string
	Attempts int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dom: %q matched nothing after %d attempts", e.Selector, e.Attempts)
}

// Poller repeatedly queries a selector set until it matches or the policy is
// exhausted. The selector may be a CSS selector group ("a, b"), which covers
// the multi-selector use without extra machinery.
type Poller struct {
	ev     Evaluator
	logger *zap.Logger
}

// NewPoller creates a Poller over the given evaluator.
func NewPoller(ev Evaluator, logger *zap.Logger) *Poller {
	return &Poller{ev: ev, logger: logger.Named("poller")}
}

// Await polls for the selector and returns the first non-zero match count.
// It returns *NotFoundError once MaxAttempts is exhausted, or the context
// error if cancelled mid-wait. The first query happens immediately; waits only
// separate attempts.
func (p *Poller) Await(ctx context.Context, selector string, policy Policy) (int, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		count, err := p.Count(ctx, selector)
		if err != nil {
			return 0, err
		}
		if count > 0 {
			if attempt > 1 {
				p.logger.Debug("Selector appeared after retries.",
					zap.String("selector", selector), zap.Int("attempt", attempt), zap.Int("count", count))
			}
			return count, nil
		}
		if attempt >= policy.MaxAttempts {
			return 0, &NotFoundError{Selector: selector, Attempts: attempt}
		}

		select {
		case <-time.After(policy.Interval):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Count returns how many elements currently match the selector.
func (p *Poller) Count(ctx context.Context, selector string) (int, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, sel)

	var count int
	if err := p.ev.Evaluate(ctx, script, &count); err != nil {
		return 0, fmt.Errorf("dom: count query failed: %w", err)
	}
	return count, nil
}
