// File: internal/browser/context_utils.go
package browser

import "context"

// CombineContext derives a context cancelled when either input is. The session
// runs CDP actions under the session lifetime AND the caller's context; this
// joins the two.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
