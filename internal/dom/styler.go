// File: internal/dom/styler.go
package dom

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Styler applies the fixed grid/list presentation to the dependent-option
// container. It is side-effect-only and idempotent: it reads structural DOM,
// never synchronization state, and assigns the same style values on every
// pass, so it is safe to invoke arbitrarily often.
type Styler struct {
	ev           Evaluator
	containerSel string
	logger       *zap.Logger
}

// NewStyler creates a Styler bound to the option container selector.
func NewStyler(ev Evaluator, containerSel string, logger *zap.Logger) *Styler {
	return &Styler{ev: ev, containerSel: containerSel, logger: logger.Named("styler")}
}

// Apply enforces the layout contract on the container and its items.
func (s *Styler) Apply(ctx context.Context) error {
	script := fmt.Sprintf(`(() => {
		const root = document.querySelector(%s);
		if (!root) { return false; }
		if (root.style.display === 'none') { return false; }
		root.style.display = 'grid';
		root.style.gridTemplateColumns = 'repeat(auto-fill, minmax(260px, 1fr))';
		root.style.gap = '4px 16px';
		root.style.listStyle = 'none';
		root.style.margin = '0';
		root.style.padding = '8px 0';
		root.querySelectorAll('li, label').forEach(item => {
			item.style.listStyle = 'none';
			item.style.whiteSpace = 'nowrap';
			item.style.overflow = 'hidden';
			item.style.textOverflow = 'ellipsis';
		});
		return true;
	})()`, jsString(s.containerSel))

	var ok bool
	if err := s.ev.Evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("dom: apply layout: %w", err)
	}
	if !ok {
		s.logger.Debug("Layout target absent; nothing styled.", zap.String("selector", s.containerSel))
	}
	return nil
}
