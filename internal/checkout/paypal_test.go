package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/zap"
)

func TestPlanAmount(t *testing.T) {
	cases := []struct {
		plan   string
		amount string
		ok     bool
	}{
		{"basic", "9.00", true},
		{"premium", "29.00", true},
		{"enterprise", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		amount, ok := planAmount(tc.plan)
		assert.Equal(t, tc.ok, ok, "plan %q", tc.plan)
		assert.Equal(t, tc.amount, amount, "plan %q", tc.plan)
	}
}

func TestApproveLink(t *testing.T) {
	payload := map[string]any{
		"id": "ORDER-1",
		"links": []any{
			map[string]any{"rel": "self", "href": "https://api/orders/ORDER-1"},
			map[string]any{"rel": "approve", "href": "https://paypal.com/checkoutnow?token=ORDER-1"},
		},
	}
	assert.Equal(t, "https://paypal.com/checkoutnow?token=ORDER-1", approveLink(payload))

	assert.Empty(t, approveLink(map[string]any{"id": "ORDER-1"}))
	assert.Empty(t, approveLink(map[string]any{"links": []any{"garbage"}}))
}

func TestCaptureOrderRejectsEmptyID(t *testing.T) {
	c := NewPayPalClient(config.PayPalConfig{Mode: config.ModeSandbox}, nil, nil, zap.NewNop())
	_, err := c.CaptureOrder(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCreateOrderRejectsUnknownPlan(t *testing.T) {
	c := NewPayPalClient(config.PayPalConfig{Mode: config.ModeSandbox}, nil, nil, zap.NewNop())
	_, err := c.CreateOrder(context.Background(), "enterprise")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}
