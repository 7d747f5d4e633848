// File: internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peltrault/formsync/internal/dom"
	"github.com/peltrault/formsync/internal/watch"
)

// Session must satisfy the consumer-side interfaces.
var (
	_ dom.Evaluator = (*Session)(nil)
	_ watch.Binder  = (*Session)(nil)
)

func TestCombineContextCancelsWithParent(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	secondary := context.Background()

	combined, cancel := CombineContext(parent, secondary)
	defer cancel()

	parentCancel()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context not cancelled with parent")
	}
	assert.ErrorIs(t, combined.Err(), context.Canceled)
}

func TestCombineContextCancelsWithSecondary(t *testing.T) {
	parent := context.Background()
	secondary, secondaryCancel := context.WithCancel(context.Background())

	combined, cancel := CombineContext(parent, secondary)
	defer cancel()

	secondaryCancel()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context not cancelled with secondary")
	}
}

func TestCombineContextDirectCancel(t *testing.T) {
	combined, cancel := CombineContext(context.Background(), context.Background())

	require.NoError(t, combined.Err())
	cancel()
	assert.ErrorIs(t, combined.Err(), context.Canceled)
}
