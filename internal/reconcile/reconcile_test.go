// File: internal/reconcile/reconcile_test.go
package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controls(ids ...string) []Control {
	out := make([]Control, 0, len(ids))
	for i, id := range ids {
		out = append(out, Control{Index: i, Identifier: id})
	}
	return out
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "abc-1", NormalizeIdentifier(" ABC-1 "))
	assert.Equal(t, "abc-1", NormalizeIdentifier("abc-1"))
	assert.Equal(t, "", NormalizeIdentifier("   "))
}

func TestNewAllowedSet_NormalizesAndDropsEmpty(t *testing.T) {
	set := NewAllowedSet([]string{" ABC-1 ", "xyz", "", "  "})
	assert.Len(t, set, 2)
	_, ok := set["abc-1"]
	assert.True(t, ok)
	_, ok = set["xyz"]
	assert.True(t, ok)
}

func TestReconcile_MembershipIsCaseAndWhitespaceInsensitive(t *testing.T) {
	result, err := Reconcile(controls(" ABC-1 "), NewAllowedSet([]string{"abc-1"}))
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, 1, result.CheckedCount)
	assert.Equal(t, Flags{Enabled: true, Checked: true, Visible: true}, result.Decisions[0].Flags)
}

func TestReconcile_Partition(t *testing.T) {
	result, err := Reconcile(controls("a", "b", "c"), NewAllowedSet([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, 2, result.CheckedCount)

	want := []Decision{
		{Control: Control{Index: 0, Identifier: "a"}, Flags: Flags{Enabled: true, Checked: true, Visible: true}},
		{Control: Control{Index: 1, Identifier: "b"}, Flags: Flags{Enabled: true, Checked: true, Visible: true}},
		{Control: Control{Index: 2, Identifier: "c"}, Flags: Flags{}},
	}
	if diff := cmp.Diff(want, result.Decisions); diff != "" {
		t.Fatalf("decisions mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_EmptyAllowedSetHidesEverything(t *testing.T) {
	result, err := Reconcile(controls("a", "b"), NewAllowedSet(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, result.CheckedCount)
	for _, d := range result.Decisions {
		assert.Equal(t, Flags{}, d.Flags, "every option must end disabled, unchecked, hidden")
	}
}

func TestReconcile_NoControlsWithAllowedSetFailsLoud(t *testing.T) {
	result, err := Reconcile(nil, NewAllowedSet([]string{"a"}))
	require.ErrorIs(t, err, ErrControlsNotFound)
	assert.Zero(t, result.CheckedCount)
}

func TestReconcile_NoControlsNoAllowedSetIsFine(t *testing.T) {
	result, err := Reconcile(nil, NewAllowedSet(nil))
	require.NoError(t, err)
	assert.Zero(t, result.CheckedCount)
	assert.Empty(t, result.Decisions)
}

func TestReconcile_IsPure(t *testing.T) {
	cs := controls("a", "b", "c")
	allowed := NewAllowedSet([]string{"a", "b"})

	first, err := Reconcile(cs, allowed)
	require.NoError(t, err)
	second, err := Reconcile(cs, allowed)
	require.NoError(t, err)

	assert.Equal(t, first.CheckedCount, second.CheckedCount)
	assert.Equal(t, first.Decisions, second.Decisions)
}

func TestDisableAll(t *testing.T) {
	result := DisableAll(controls("a", "b"))
	require.Len(t, result.Decisions, 2)
	assert.Zero(t, result.CheckedCount)
	for _, d := range result.Decisions {
		// Checked is explicitly forced false as part of the safe default.
		assert.False(t, d.Flags.Checked)
		assert.False(t, d.Flags.Enabled)
		assert.False(t, d.Flags.Visible)
	}
}

func TestSecondaryChecks_ExactMatchOnly(t *testing.T) {
	got := SecondaryChecks([]string{"R-1", "r-2", "R-3"}, []string{"R-1", "R-2"})
	// "r-2" must not match "R-2": the secondary pass does not normalize.
	assert.Equal(t, []string{"R-1"}, got)
}

func TestSecondaryChecks_EmptyInputs(t *testing.T) {
	assert.Nil(t, SecondaryChecks(nil, []string{"R-1"}))
	assert.Nil(t, SecondaryChecks([]string{"R-1"}, nil))
}
