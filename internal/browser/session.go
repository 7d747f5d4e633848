// File: internal/browser/session.go
//
// Package browser owns the CDP attachment: allocating or attaching to a Chrome
// instance, navigating to the assignment form, evaluating scripts and exposing
// Go callbacks to the page. Everything above it talks to this package through
// small interfaces (dom.Evaluator, watch.Binder).
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peltrault/formsync/internal/config"
)

const defaultLaunchTimeout = 60 * time.Second

// Session is one attached browser tab. It implements dom.Evaluator and
// watch.Binder.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	// allocCancel tears down the allocator after the tab context.
	allocCancel context.CancelFunc

	// dispatch keeps binding handlers off the CDP event goroutine.
	dispatch *bindingDispatcher

	mu       sync.Mutex
	isClosed bool
}

// NewSession attaches to the browser described by cfg. With RemoteURL set it
// dials an already-running Chrome over the DevTools websocket; otherwise it
// launches a local instance. The parent context bounds the whole session.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	sessionLogger := logger.Named("browser").With(zap.String("session_id", sessionID))

	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if cfg.RemoteURL != "" {
		sessionLogger.Info("Attaching to remote browser.", zap.String("remote_url", cfg.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if cfg.NoSandbox {
			opts = append(opts, chromedp.NoSandbox)
		}
		sessionLogger.Info("Launching local browser.", zap.Bool("headless", cfg.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		dispatch:    newBindingDispatcher(sessionLogger),
		logger:      sessionLogger,
	}

	// Force target creation so the CDP connection fails here, not on first use.
	launchTimeout := cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}
	initCtx, initCancel := context.WithTimeout(tabCtx, launchTimeout)
	defer initCancel()
	if err := chromedp.Run(initCtx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Navigate loads the URL and waits for the document body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))
	err := s.runActions(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Evaluate runs a script in the current document, unmarshalling into res when
// res is non-nil. Implements dom.Evaluator.
func (s *Session) Evaluate(ctx context.Context, script string, res any) error {
	return s.runActions(ctx, chromedp.Evaluate(script, res))
}

// Expose registers a page-callable binding that forwards its single string
// payload to fn. Handlers run on their own goroutines and persist for the
// session lifetime; Close waits for in-flight handlers. Implements part of
// watch.Binder.
func (s *Session) Expose(ctx context.Context, name string, fn func(payload string)) error {
	if err := s.runActions(ctx, runtime.AddBinding(name)); err != nil {
		return fmt.Errorf("browser: add binding %q: %w", name, err)
	}

	chromedp.ListenTarget(s.ctx, func(ev any) {
		call, ok := ev.(*runtime.EventBindingCalled)
		if !ok || call.Name != name {
			return
		}
		// Bindings deliver one raw argument; tolerate both a bare string and a
		// JSON-encoded one.
		payload := call.Payload
		var decoded string
		if err := json.Unmarshal([]byte(call.Payload), &decoded); err == nil {
			payload = decoded
		}

		// ListenTarget callbacks run synchronously on the target's event
		// goroutine; a handler that evaluates scripts from here would deadlock
		// waiting on a response that goroutine must route.
		s.dispatch.Run(name, fn, payload)
	})
	return nil
}

// InjectPersistent installs a script evaluated on every new document in this
// session. Implements part of watch.Binder.
func (s *Session) InjectPersistent(ctx context.Context, script string) error {
	var scriptID page.ScriptIdentifier
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		scriptID, err = page.AddScriptToEvaluateOnNewDocument(script).Do(c)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("browser: inject persistent script: %w", err)
	}
	s.logger.Debug("Injected persistent script.", zap.String("script_id", string(scriptID)))
	return nil
}

// Close tears the session down. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	// Cancel first so handlers blocked in Evaluate abort, then wait them out.
	s.teardown()
	s.dispatch.Drain()
	return nil
}

func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// runActions executes CDP actions under both the session lifetime and the
// caller's context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}
