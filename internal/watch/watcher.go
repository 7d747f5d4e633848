// File: internal/watch/watcher.go
//
// Package watch keeps the widget live against an actively mutating page. It
// installs two page-side hooks: a change listener on the owner control and a
// MutationObserver under the document body, both reporting back over exposed
// bindings. Mutation bursts are debounced before resynchronizing.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/peltrault/formsync/internal/config"
)

const (
	ownerBinding    = "__formsync_ownerchange"
	mutationBinding = "__formsync_domchange"
	installedFlag   = "__formsync_watch_installed"
)

// Synchronizer is the slice of the controller the watcher drives.
type Synchronizer interface {
	SetOwner(ctx context.Context, owner string)
	Resync(ctx context.Context)
}

// Binder exposes page callbacks and injects scripts; the browser session
// implements it.
type Binder interface {
	Expose(ctx context.Context, name string, fn func(payload string)) error
	InjectPersistent(ctx context.Context, script string) error
	Evaluate(ctx context.Context, script string, res any) error
}

// Watcher wires the page-side hooks to the synchronizer.
type Watcher struct {
	binder   Binder
	sync     Synchronizer
	sel      config.SelectorsConfig
	debounce *Debouncer
	logger   *zap.Logger

	// ctx is set by Start and carries the watcher's lifetime into callbacks.
	ctx context.Context
}

// New builds a Watcher. Debounce bounds how often mutation bursts can force a
// resynchronization.
func New(binder Binder, sync Synchronizer, cfg config.WatcherConfig, sel config.SelectorsConfig, logger *zap.Logger) *Watcher {
	w := &Watcher{
		binder: binder,
		sync:   sync,
		sel:    sel,
		logger: logger.Named("watch"),
	}
	w.debounce = NewDebouncer(cfg.Debounce, w.fire)
	return w
}

// Start exposes the bindings and installs the page hooks, both on the current
// document and persistently for future navigations. The given context is held
// for the watcher's lifetime and used for callbacks arriving later.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx = ctx

	if err := w.binder.Expose(ctx, ownerBinding, w.onOwnerChange); err != nil {
		return fmt.Errorf("watch: expose owner binding: %w", err)
	}
	if err := w.binder.Expose(ctx, mutationBinding, w.onMutation); err != nil {
		return fmt.Errorf("watch: expose mutation binding: %w", err)
	}

	script := w.installScript()
	if err := w.binder.InjectPersistent(ctx, script); err != nil {
		return fmt.Errorf("watch: inject persistent hooks: %w", err)
	}
	if err := w.binder.Evaluate(ctx, script, nil); err != nil {
		return fmt.Errorf("watch: install hooks: %w", err)
	}

	w.logger.Info("Page hooks installed.",
		zap.String("owner_selector", w.sel.Owner),
		zap.String("container_selector", w.sel.OptionContainer))
	return nil
}

// Close cancels pending debounced work.
func (w *Watcher) Close() {
	w.debounce.Stop()
}

func (w *Watcher) onOwnerChange(payload string) {
	w.logger.Debug("Owner selection changed.", zap.String("owner_id", strings.TrimSpace(payload)))
	w.sync.SetOwner(w.ctx, payload)
}

func (w *Watcher) onMutation(string) {
	w.debounce.Trigger()
}

func (w *Watcher) fire() {
	w.logger.Debug("Container mutated; resynchronizing.")
	w.sync.Resync(w.ctx)
}

// installScript builds the idempotent page-side hook installer. The observer
// covers the whole body so a host re-render of the entire option fragment is
// still seen, but skips attribute mutations and anything inside the widget's
// own status node; otherwise the widget's feedback writes would loop back
// through the observer.
func (w *Watcher) installScript() string {
	return fmt.Sprintf(`(() => {
		const install = () => {
			if (window[%q]) { return; }
			window[%q] = true;
			const owner = document.querySelector(%s);
			if (owner) {
				owner.addEventListener('change', () => {
					window[%q](String(owner.value || ""));
				});
			}
			const observer = new MutationObserver((records) => {
				for (const r of records) {
					const el = r.target.nodeType === 1 ? r.target : r.target.parentElement;
					if (el && el.closest('.formsync-status')) { continue; }
					window[%q]("");
					return;
				}
			});
			observer.observe(document.body, { childList: true, subtree: true });
		};
		if (document.readyState === 'loading') {
			document.addEventListener('DOMContentLoaded', install);
		} else {
			install();
		}
	})()`,
		installedFlag, installedFlag,
		jsString(w.sel.Owner), ownerBinding,
		mutationBinding)
}

// jsString renders a Go string as a safe JS string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
