// File: internal/reconcile/reconcile.go
//
// Package reconcile applies a server-derived allowed set onto the statically
// rendered universe of dependent-option controls. It owns the decision logic
// only; reading controls from the page and applying the resulting flags is the
// caller's concern, which keeps every rule here a pure function.
package reconcile

import (
	"errors"
	"strings"
)

// ErrControlsNotFound reports that the allowed set is non-empty but no option
// controls exist on the page. The widget surfaces this loudly instead of
// silently no-opping.
var ErrControlsNotFound = errors.New("reconcile: no dependent option controls found")

// Control is one rendered dependent-option checkbox, identified by its raw
// value attribute. Index preserves document order for stable output.
type Control struct {
	Index      int
	Identifier string
}

// Flags is the mutable state of one control.
type Flags struct {
	Enabled bool
	Checked bool
	Visible bool
}

// Decision pairs a control with the flags it must end up with.
type Decision struct {
	Control Control
	Flags   Flags
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	CheckedCount int
	Decisions    []Decision
}

// NormalizeIdentifier canonicalizes an option identifier for membership tests:
// comparisons are case- and whitespace-insensitive.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewAllowedSet builds a normalized membership set from raw identifiers.
// Empty identifiers are dropped.
func NewAllowedSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		n := NormalizeIdentifier(id)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// Reconcile partitions the rendered controls against the allowed set.
//
// Members are enabled, made visible and checked. Checking every allowed option
// is deliberate: in this domain, presence in the allowed set is itself evidence
// of assignment. Non-members are disabled, unchecked and hidden.
//
// A non-empty allowed set with zero rendered controls is a page defect and
// returns ErrControlsNotFound.
func Reconcile(controls []Control, allowed map[string]struct{}) (Result, error) {
	if len(controls) == 0 && len(allowed) > 0 {
		return Result{}, ErrControlsNotFound
	}

	result := Result{Decisions: make([]Decision, 0, len(controls))}
	for _, ctrl := range controls {
		_, member := allowed[NormalizeIdentifier(ctrl.Identifier)]
		flags := Flags{Enabled: member, Checked: member, Visible: member}
		if member {
			result.CheckedCount++
		}
		result.Decisions = append(result.Decisions, Decision{Control: ctrl, Flags: flags})
	}
	return result, nil
}

// DisableAll is the safe default applied after a lookup failure or when the
// owner is cleared: every control disabled, unchecked and hidden.
func DisableAll(controls []Control) Result {
	result := Result{Decisions: make([]Decision, 0, len(controls))}
	for _, ctrl := range controls {
		result.Decisions = append(result.Decisions, Decision{Control: ctrl})
	}
	return result
}

// SecondaryChecks selects, from the rendered secondary control values, those
// present in the assigned set. Matching is exact, no normalization, and the
// pass is purely additive: callers check the returned values and touch nothing
// else.
func SecondaryChecks(rendered []string, assigned []string) []string {
	if len(rendered) == 0 || len(assigned) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(assigned))
	for _, id := range assigned {
		set[id] = struct{}{}
	}
	var out []string
	for _, v := range rendered {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
