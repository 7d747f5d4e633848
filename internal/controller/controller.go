// File: internal/controller/controller.go
//
// Package controller owns the synchronization state machine between the owner
// selection and the dependent-option list. It is the only component that
// sequences DOM reads, lookups and DOM writes; everything below it is either
// pure (reconcile) or a thin transport (dom, lookup).
package controller

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/peltrault/formsync/internal/dom"
	"github.com/peltrault/formsync/internal/lookup"
	"github.com/peltrault/formsync/internal/reconcile"
)

// State is the controller's position in the synchronization cycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSynced
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Lookup is the slice of the lookup client the controller consumes.
type Lookup interface {
	AllowedOptions(ctx context.Context, ownerID string) ([]lookup.Option, error)
	AssignedRoles(ctx context.Context, ownerID string) ([]string, error)
}

// Surface is the slice of the DOM surface the controller consumes.
type Surface interface {
	OwnerValue(ctx context.Context) (string, error)
	OptionControls(ctx context.Context) ([]reconcile.Control, error)
	OptionCount(ctx context.Context) (int, error)
	AwaitOptions(ctx context.Context, policy dom.Policy) (int, error)
	ApplyDecisions(ctx context.Context, result reconcile.Result) error
	SetContainerVisible(ctx context.Context, visible bool) error
	SetFeedback(ctx context.Context, html string) error
	RoleValues(ctx context.Context) ([]string, error)
	CheckRoles(ctx context.Context, values []string) error
}

// Styler re-applies the layout contract after every DOM update.
type Styler interface {
	Apply(ctx context.Context) error
}

// Config carries the controller's tunables.
type Config struct {
	// Discovery bounds the wait for the option list to render.
	Discovery dom.Policy
	// AssignmentURL is linked from the empty-allowed-set feedback.
	AssignmentURL string
}

// Controller drives synchronization runs. All owner handles are fixed at
// construction; there is no ambient module state.
type Controller struct {
	lookup  Lookup
	surface Surface
	styler  Styler
	cfg     Config
	logger  *zap.Logger

	// seq tags every run. A run whose token no longer matches seq at a write
	// boundary is stale and discards itself; this is what makes rapid owner
	// changes last-write-wins even when responses arrive out of order.
	seq atomic.Uint64

	// applyMu serializes the DOM write phase of runs.
	applyMu sync.Mutex

	mu           sync.Mutex
	state        State
	owner        string
	checkedCount int

	enrichWG sync.WaitGroup
}

// New creates a Controller in the Idle state.
func New(lk Lookup, surface Surface, styler Styler, cfg Config, logger *zap.Logger) *Controller {
	return &Controller{
		lookup:  lk,
		surface: surface,
		styler:  styler,
		cfg:     cfg,
		logger:  logger.Named("controller"),
	}
}

// Snapshot returns the current state and the checked count of the last
// successful run.
func (c *Controller) Snapshot() (State, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.checkedCount
}

// SetOwner reacts to an owner-selection change. An empty value transitions to
// Idle without network traffic; anything else starts a synchronization run.
// Failures never escape: they surface as widget feedback or log entries.
func (c *Controller) SetOwner(ctx context.Context, owner string) {
	owner = strings.TrimSpace(owner)
	token := c.seq.Add(1)

	if owner == "" {
		c.toIdle(ctx, token)
		return
	}
	c.run(ctx, owner, token)
}

// Resync is the mutation watcher's defensive entry point: if the option list
// is rendered and an owner is selected, replay the load path; the layout
// contract is re-applied either way.
func (c *Controller) Resync(ctx context.Context) {
	owner, err := c.surface.OwnerValue(ctx)
	if err != nil {
		c.logger.Debug("Resync could not read owner value.", zap.Error(err))
		return
	}
	count, err := c.surface.OptionCount(ctx)
	if err != nil {
		c.logger.Debug("Resync could not count option controls.", zap.Error(err))
		return
	}

	if count > 0 && strings.TrimSpace(owner) != "" {
		c.SetOwner(ctx, owner)
		return
	}
	c.applyStyle(ctx)
}

// Drain waits for in-flight assigned-roles enrichments. Call before shutdown.
func (c *Controller) Drain() {
	c.enrichWG.Wait()
}

// stale reports whether a newer run has superseded this token.
func (c *Controller) stale(token uint64) bool {
	return c.seq.Load() != token
}

// toIdle disables everything and hides the container. No network, no styling
// (the container is hidden).
func (c *Controller) toIdle(ctx context.Context, token uint64) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.stale(token) {
		return
	}

	controls, err := c.surface.OptionControls(ctx)
	if err != nil {
		c.logger.Debug("Idle transition could not snapshot controls.", zap.Error(err))
	}
	if err := c.surface.ApplyDecisions(ctx, reconcile.DisableAll(controls)); err != nil {
		c.logger.Warn("Idle transition could not disable controls.", zap.Error(err))
	}
	if err := c.surface.SetContainerVisible(ctx, false); err != nil {
		c.logger.Debug("Idle transition could not hide container.", zap.Error(err))
	}

	c.mu.Lock()
	c.state = StateIdle
	c.owner = ""
	c.checkedCount = 0
	c.mu.Unlock()

	c.logger.Info("Owner cleared; dependent options disabled and hidden.")
}

// run executes one synchronization cycle for a non-empty owner.
func (c *Controller) run(ctx context.Context, owner string, token uint64) {
	c.mu.Lock()
	c.state = StateLoading
	c.owner = owner
	c.mu.Unlock()

	if err := c.surface.SetFeedback(ctx, feedbackLoading); err != nil {
		c.logger.Debug("Could not write loading feedback.", zap.Error(err))
	}

	// The fetch runs outside applyMu so overlapping runs race only on the
	// network, never on the DOM.
	options, lookupErr := c.lookup.AllowedOptions(ctx, owner)

	if c.stale(token) {
		c.logger.Debug("Discarding stale lookup response.",
			zap.String("owner_id", owner), zap.Uint64("token", token))
		return
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.stale(token) {
		return
	}

	if lookupErr != nil {
		c.enterError(ctx, owner, lookup.FailureMessage(lookupErr), lookupErr)
		return
	}

	ids := make([]string, 0, len(options))
	for _, opt := range options {
		ids = append(ids, opt.UUID)
	}
	allowed := reconcile.NewAllowedSet(ids)

	if err := c.surface.SetContainerVisible(ctx, true); err != nil {
		c.logger.Debug("Could not show option container.", zap.Error(err))
	}

	controls := c.discoverControls(ctx)

	result, err := reconcile.Reconcile(controls, allowed)
	if err != nil {
		// Non-empty allowed set but nothing rendered: fail loud, not silent.
		c.enterError(ctx, owner, feedbackControlsMissing, err)
		return
	}

	if err := c.surface.ApplyDecisions(ctx, result); err != nil {
		c.enterError(ctx, owner, lookup.FailureMessage(err), err)
		return
	}

	feedback := feedbackSynced(result.CheckedCount)
	if len(allowed) == 0 {
		feedback = feedbackEmpty(c.cfg.AssignmentURL)
	}
	if err := c.surface.SetFeedback(ctx, feedback); err != nil {
		c.logger.Debug("Could not write synced feedback.", zap.Error(err))
	}

	c.mu.Lock()
	c.state = StateSynced
	c.checkedCount = result.CheckedCount
	c.mu.Unlock()

	c.logger.Info("Dependent options synchronized.",
		zap.String("owner_id", owner),
		zap.Int("allowed", len(allowed)),
		zap.Int("checked", result.CheckedCount))

	// Best effort enrichment of the separate roles control; never blocks or
	// degrades the primary flow.
	c.enrichWG.Add(1)
	go c.enrichAssigned(ctx, owner, token)

	c.applyStyle(ctx)
}

// discoverControls waits for the option list under the discovery policy and
// snapshots it. A bounded miss returns an empty snapshot; the reconciler
// decides whether that is an error.
func (c *Controller) discoverControls(ctx context.Context) []reconcile.Control {
	if _, err := c.surface.AwaitOptions(ctx, c.cfg.Discovery); err != nil {
		c.logger.Warn("Dependent-option controls did not appear within the discovery bound.", zap.Error(err))
		return nil
	}
	controls, err := c.surface.OptionControls(ctx)
	if err != nil {
		c.logger.Warn("Could not snapshot option controls.", zap.Error(err))
		return nil
	}
	return controls
}

// enterError applies the safe default: every option disabled and unchecked,
// feedback explaining the failure. Recoverable by re-selecting an owner.
func (c *Controller) enterError(ctx context.Context, owner, feedback string, cause error) {
	c.logger.Error("Synchronization failed; applying safe default.",
		zap.String("owner_id", owner), zap.Error(cause))

	controls, err := c.surface.OptionControls(ctx)
	if err != nil {
		c.logger.Debug("Error path could not snapshot controls.", zap.Error(err))
	}
	if err := c.surface.ApplyDecisions(ctx, reconcile.DisableAll(controls)); err != nil {
		c.logger.Warn("Error path could not disable controls.", zap.Error(err))
	}
	if err := c.surface.SetFeedback(ctx, feedback); err != nil {
		c.logger.Debug("Error path could not write feedback.", zap.Error(err))
	}

	c.mu.Lock()
	c.state = StateError
	c.checkedCount = 0
	c.mu.Unlock()

	c.applyStyle(ctx)
}

// enrichAssigned pre-checks the secondary roles control from the assigned-set
// lookup. Failure here is logged and otherwise ignored.
func (c *Controller) enrichAssigned(ctx context.Context, owner string, token uint64) {
	defer c.enrichWG.Done()

	assigned, err := c.lookup.AssignedRoles(ctx, owner)
	if err != nil {
		c.logger.Warn("Assigned-roles lookup failed; skipping role pre-check.",
			zap.String("owner_id", owner), zap.Error(err))
		return
	}
	if len(assigned) == 0 || c.stale(token) {
		return
	}

	rendered, err := c.surface.RoleValues(ctx)
	if err != nil {
		c.logger.Debug("Could not snapshot role controls.", zap.Error(err))
		return
	}
	toCheck := reconcile.SecondaryChecks(rendered, assigned)
	if len(toCheck) == 0 {
		return
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.stale(token) {
		return
	}
	if err := c.surface.CheckRoles(ctx, toCheck); err != nil {
		c.logger.Debug("Could not pre-check assigned roles.", zap.Error(err))
	}
}

func (c *Controller) applyStyle(ctx context.Context) {
	if err := c.styler.Apply(ctx); err != nil {
		c.logger.Debug("Layout pass failed.", zap.Error(err))
	}
}
