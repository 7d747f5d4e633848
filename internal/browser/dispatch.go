// File: internal/browser/dispatch.go
package browser

import (
	"sync"

	"go.uber.org/zap"
)

// bindingDispatcher runs exposed-binding handlers away from the CDP event
// goroutine. chromedp delivers target events synchronously on the target's
// event loop, so a handler that sends CDP messages from inside the listener
// would wait on a response the blocked loop can never route. Every handler
// therefore runs on its own goroutine, tracked so Close can drain them.
type bindingDispatcher struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

func newBindingDispatcher(logger *zap.Logger) *bindingDispatcher {
	return &bindingDispatcher{logger: logger}
}

// Run invokes fn(payload) on a fresh goroutine with panic recovery.
func (d *bindingDispatcher) Run(name string, fn func(payload string), payload string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Panic in exposed binding handler.",
					zap.String("name", name), zap.Any("panic_reason", r))
			}
		}()
		fn(payload)
	}()
}

// Drain blocks until all in-flight handlers return.
func (d *bindingDispatcher) Drain() {
	d.wg.Wait()
}
