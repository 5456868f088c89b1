package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/zap"
)

func newTestLedger() (*Ledger, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Unix(1_700_000_000, 0))
	return NewLedger(clk, zap.NewNop()), clk
}

func strPtr(s string) *string { return &s }

func TestActivateCreatesActiveRecord(t *testing.T) {
	ledger, clk := newTestLedger()

	sub := ledger.Activate("a@x.com", strPtr("cus_1"), strPtr("sub_1"), "premium_monthly")
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", sub.ID.String())
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, Plan{Tier: TierPremium}, sub.Plan)
	assert.Equal(t, clk.Now(), sub.ActivatedAt)

	got, ok := ledger.GetByEmail("a@x.com")
	require.True(t, ok)
	assert.Equal(t, sub.ID, got.ID)
}

func TestActivateOverwritesExistingContact(t *testing.T) {
	ledger, _ := newTestLedger()

	first := ledger.Activate("a@x.com", nil, nil, "basic")
	second := ledger.Activate("a@x.com", nil, nil, "premium")

	assert.NotEqual(t, first.ID, second.ID, "reactivation is a logically new subscription")
	got, _ := ledger.GetByEmail("a@x.com")
	assert.Equal(t, Plan{Tier: TierPremium}, got.Plan)
}

func TestSetStatusTransitions(t *testing.T) {
	ledger, _ := newTestLedger()
	ledger.Activate("a@x.com", nil, nil, "basic")

	assert.True(t, ledger.SetStatus("a@x.com", StatusPastDue))
	got, _ := ledger.GetByEmail("a@x.com")
	assert.Equal(t, StatusPastDue, got.Status)

	// A recovered payment restores the active state.
	assert.True(t, ledger.SetStatus("a@x.com", StatusActive))
	got, _ = ledger.GetByEmail("a@x.com")
	assert.Equal(t, StatusActive, got.Status)
}

func TestSetStatusUnknownContact(t *testing.T) {
	ledger, _ := newTestLedger()
	assert.False(t, ledger.SetStatus("missing@x.com", StatusActive))
}

func TestCancelFollowsProviderEvents(t *testing.T) {
	ledger, _ := newTestLedger()
	ledger.Activate("a@x.com", nil, nil, "basic")

	assert.True(t, ledger.Cancel("a@x.com"))
	got, _ := ledger.GetByEmail("a@x.com")
	assert.Equal(t, StatusCanceled, got.Status)

	// Provider events remain authoritative after cancellation; a late
	// status update is applied, not suppressed.
	assert.True(t, ledger.SetStatus("a@x.com", StatusActive))
	got, _ = ledger.GetByEmail("a@x.com")
	assert.Equal(t, StatusActive, got.Status)
}

func TestPlanFromKey(t *testing.T) {
	cases := []struct {
		key  string
		want Plan
	}{
		{"basic", Plan{Tier: TierBasic}},
		{"basic_monthly", Plan{Tier: TierBasic}},
		{"basic_annual", Plan{Tier: TierBasic, Annual: true}},
		{"premium", Plan{Tier: TierPremium}},
		{"premium_monthly", Plan{Tier: TierPremium}},
		{"premium_annual", Plan{Tier: TierPremium, Annual: true}},
		{"enterprise", FreePlan},
		{"", FreePlan},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PlanFromKey(tc.key), "key %q", tc.key)
	}
	assert.True(t, FreePlan.IsFree())
	assert.False(t, Plan{Tier: TierBasic}.IsFree())
}
