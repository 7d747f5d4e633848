// File: internal/dom/surface.go
package dom

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/peltrault/formsync/internal/config"
	"github.com/peltrault/formsync/internal/reconcile"
)

// statusClass marks the feedback node the widget owns under each container.
const statusClass = "formsync-status"

// Surface reads and mutates the three DOM fragments the widget touches: the
// owner control, the dependent-option list and the secondary roles list. All
// handles are resolved from the selectors given at construction; nothing is
// re-derived ad hoc.
type Surface struct {
	ev     Evaluator
	sel    config.SelectorsConfig
	logger *zap.Logger
}

// NewSurface builds a Surface over the evaluator with fixed selectors.
func NewSurface(ev Evaluator, sel config.SelectorsConfig, logger *zap.Logger) *Surface {
	return &Surface{ev: ev, sel: sel, logger: logger.Named("surface")}
}

// OwnerValue returns the owner control's current value, empty when the control
// is absent or cleared.
func (s *Surface) OwnerValue(ctx context.Context) (string, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? String(el.value || "") : "";
	})()`, jsString(s.sel.Owner))

	var value string
	if err := s.ev.Evaluate(ctx, script, &value); err != nil {
		return "", fmt.Errorf("dom: read owner value: %w", err)
	}
	return value, nil
}

// OptionControls snapshots the rendered dependent-option checkboxes in
// document order.
func (s *Surface) OptionControls(ctx context.Context) ([]reconcile.Control, error) {
	script := fmt.Sprintf(`(() => {
		const root = document.querySelector(%s);
		if (!root) { return []; }
		return Array.from(root.querySelectorAll(%s)).map((el, i) => ({
			index: i,
			identifier: String(el.value || "")
		}));
	})()`, jsString(s.sel.OptionContainer), jsString(s.sel.OptionInputs))

	var controls []reconcile.Control
	if err := s.ev.Evaluate(ctx, script, &controls); err != nil {
		return nil, fmt.Errorf("dom: snapshot option controls: %w", err)
	}
	return controls, nil
}

// OptionCount reports how many dependent-option controls are currently
// rendered, container included in the match.
func (s *Surface) OptionCount(ctx context.Context) (int, error) {
	script := fmt.Sprintf(`(() => {
		const root = document.querySelector(%s);
		return root ? root.querySelectorAll(%s).length : 0;
	})()`, jsString(s.sel.OptionContainer), jsString(s.sel.OptionInputs))

	var count int
	if err := s.ev.Evaluate(ctx, script, &count); err != nil {
		return 0, fmt.Errorf("dom: count option controls: %w", err)
	}
	return count, nil
}

// AwaitOptions waits under the policy for at least one dependent-option
// control to render, returning the match count.
func (s *Surface) AwaitOptions(ctx context.Context, policy Policy) (int, error) {
	poller := NewPoller(s.ev, s.logger)
	return poller.Await(ctx, s.sel.OptionContainer+" "+s.sel.OptionInputs, policy)
}

// wireFlags is the compact flag encoding shipped into the page.
type wireFlags struct {
	E bool `json:"e"`
	C bool `json:"c"`
	V bool `json:"v"`
}

// ApplyDecisions writes a reconciliation result onto the page. Controls are
// matched by document index: the snapshot and the application iterate the same
// selector in document order, so duplicate value attributes keep independent
// flags. Hiding toggles the control's nearest label/list-item wrapper so the
// text disappears with the checkbox.
func (s *Surface) ApplyDecisions(ctx context.Context, result reconcile.Result) error {
	flags := make(map[int]wireFlags, len(result.Decisions))
	for _, d := range result.Decisions {
		flags[d.Control.Index] = wireFlags{E: d.Flags.Enabled, C: d.Flags.Checked, V: d.Flags.Visible}
	}
	payload, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("dom: encode decisions: %w", err)
	}

	script := fmt.Sprintf(`(() => {
		const flags = %s;
		const root = document.querySelector(%s);
		if (!root) { return 0; }
		let applied = 0;
		root.querySelectorAll(%s).forEach((el, i) => {
			const f = flags[i];
			if (!f) { return; }
			el.disabled = !f.e;
			el.checked = f.c;
			const item = el.closest('label, li') || el;
			item.style.display = f.v ? '' : 'none';
			applied++;
		});
		return applied;
	})()`, payload, jsString(s.sel.OptionContainer), jsString(s.sel.OptionInputs))

	var applied int
	if err := s.ev.Evaluate(ctx, script, &applied); err != nil {
		return fmt.Errorf("dom: apply decisions: %w", err)
	}
	s.logger.Debug("Applied reconciliation decisions.",
		zap.Int("decisions", len(result.Decisions)), zap.Int("applied", applied))
	return nil
}

// SetContainerVisible shows or hides the whole dependent-option container.
func (s *Surface) SetContainerVisible(ctx context.Context, visible bool) error {
	display := "none"
	if visible {
		display = ""
	}
	script := fmt.Sprintf(`(() => {
		const root = document.querySelector(%s);
		if (root) { root.style.display = %s; }
	})()`, jsString(s.sel.OptionContainer), jsString(display))
	return s.ev.Evaluate(ctx, script, nil)
}

// SetFeedback writes the status text under the option container, creating the
// status node on first use. The markup is widget-owned, so HTML is allowed
// (the empty-set message carries a link to the assignment screen).
func (s *Surface) SetFeedback(ctx context.Context, html string) error {
	script := fmt.Sprintf(`(() => {
		const root = document.querySelector(%s);
		if (!root) { return false; }
		let note = root.parentNode.querySelector('.%s');
		if (!note) {
			note = document.createElement('p');
			note.className = '%s';
			root.parentNode.insertBefore(note, root.nextSibling);
		}
		note.innerHTML = %s;
		return true;
	})()`, jsString(s.sel.OptionContainer), statusClass, statusClass, jsString(html))

	var ok bool
	if err := s.ev.Evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("dom: set feedback: %w", err)
	}
	if !ok {
		s.logger.Debug("Feedback container absent; message dropped.")
	}
	return nil
}

// RoleValues snapshots the value attributes of the secondary roles control.
func (s *Surface) RoleValues(ctx context.Context) ([]string, error) {
	script := fmt.Sprintf(`(() => {
		const root = document.querySelector(%s);
		if (!root) { return []; }
		return Array.from(root.querySelectorAll(%s)).map(el => String(el.value || ""));
	})()`, jsString(s.sel.RoleContainer), jsString(s.sel.RoleInputs))

	var values []string
	if err := s.ev.Evaluate(ctx, script, &values); err != nil {
		return nil, fmt.Errorf("dom: snapshot role values: %w", err)
	}
	return values, nil
}

// CheckRoles checks the secondary controls whose value is in the given list.
// Strictly additive: nothing is ever unchecked here.
func (s *Surface) CheckRoles(ctx context.Context, values []string) error {
	if len(values) == 0 {
		return nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("dom: encode role values: %w", err)
	}

	script := fmt.Sprintf(`(() => {
		const wanted = new Set(%s);
		const root = document.querySelector(%s);
		if (!root) { return 0; }
		let checked = 0;
		root.querySelectorAll(%s).forEach(el => {
			if (wanted.has(el.value)) { el.checked = true; checked++; }
		});
		return checked;
	})()`, payload, jsString(s.sel.RoleContainer), jsString(s.sel.RoleInputs))

	var checked int
	if err := s.ev.Evaluate(ctx, script, &checked); err != nil {
		return fmt.Errorf("dom: check roles: %w", err)
	}
	s.logger.Debug("Pre-checked assigned roles.", zap.Int("checked", checked))
	return nil
}

// jsString renders a Go string as a safe JS string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail.
		return `""`
	}
	return string(b)
}
