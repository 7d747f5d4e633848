// File: internal/dom/evaluator.go
//
// Package dom contains the widget's DOM primitives: a bounded readiness
// poller, the surface through which option controls are read and mutated, and
// the idempotent layout styler. Everything is expressed against the Evaluator
// contract so the browser transport stays swappable in tests.
package dom

import "context"

// Evaluator runs a JavaScript expression in the page and optionally
// unmarshals its result. internal/browser provides the CDP-backed
// implementation.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, res any) error
}
