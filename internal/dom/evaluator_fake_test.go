// File: internal/dom/evaluator_fake_test.go
package dom

import (
	"context"
	"encoding/json"
	"fmt"
)

// fakeEvaluator replays canned results and records every script it saw.
// Results are delivered through a JSON round-trip, matching how the real
// CDP transport hands values back.
type fakeEvaluator struct {
	results []any
	scripts []string
	err     error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, script string, res any) error {
	f.scripts = append(f.scripts, script)
	if f.err != nil {
		return f.err
	}
	if len(f.results) == 0 {
		return fmt.Errorf("fakeEvaluator: no result queued for script %q", script)
	}
	next := f.results[0]
	f.results = f.results[1:]

	if res == nil {
		return nil
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, res)
}

func (f *fakeEvaluator) queue(results ...any) { f.results = append(f.results, results...) }
