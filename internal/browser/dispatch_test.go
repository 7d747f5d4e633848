// File: internal/browser/dispatch_test.go
package browser

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func currentGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	var id uint64
	fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

// Handlers must leave the caller's goroutine: chromedp delivers binding events
// on the target's event loop, and a handler evaluating scripts from there
// deadlocks the session.
func TestDispatcherRunsHandlerOffCallerGoroutine(t *testing.T) {
	d := newBindingDispatcher(zap.NewNop())

	callerID := currentGoroutineID()
	handlerID := make(chan uint64, 1)
	d.Run("owner_change", func(payload string) {
		handlerID <- currentGoroutineID()
	}, "42")

	select {
	case id := <-handlerID:
		assert.NotEqual(t, callerID, id)
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	d.Drain()
}

func TestDispatcherDrainWaitsForHandlers(t *testing.T) {
	d := newBindingDispatcher(zap.NewNop())

	gate := make(chan struct{})
	var done atomic.Int64
	d.Run("owner_change", func(string) {
		<-gate
		done.Add(1)
	}, "")

	assert.Zero(t, done.Load())
	close(gate)
	d.Drain()
	assert.Equal(t, int64(1), done.Load())
}

func TestDispatcherDeliversPayload(t *testing.T) {
	d := newBindingDispatcher(zap.NewNop())

	got := make(chan string, 1)
	d.Run("owner_change", func(payload string) { got <- payload }, "owner-7")
	d.Drain()
	require.Equal(t, "owner-7", <-got)
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	d := newBindingDispatcher(zap.NewNop())

	d.Run("owner_change", func(string) { panic("boom") }, "")
	// Drain returning at all proves the panic was contained.
	d.Drain()
}
