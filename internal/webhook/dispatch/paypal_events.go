package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/veritasweb/payments/internal/audit"
	"github.com/veritasweb/payments/internal/subscriber"
	"github.com/veritasweb/payments/internal/webhook/domain"
	"go.uber.org/zap"
)

// captureView is the typed view of PAYMENT.CAPTURE.* resources.
type captureView struct {
	ID     *string      `json:"id"`
	Amount *moneyAmount `json:"amount"`
	Payer  *payerView   `json:"payer"`
}

type moneyAmount struct {
	Value        *string `json:"value"`
	CurrencyCode *string `json:"currency_code"`
}

type payerView struct {
	EmailAddress *string `json:"email_address"`
}

// billingSubView is the typed view of BILLING.SUBSCRIPTION.* resources.
type billingSubView struct {
	ID         *string         `json:"id"`
	PlanID     *string         `json:"plan_id"`
	Subscriber *subscriberView `json:"subscriber"`
}

type subscriberView struct {
	EmailAddress *string `json:"email_address"`
}

// paypalDisputeView is the typed view of CUSTOMER.DISPUTE.CREATED
// resources.
type paypalDisputeView struct {
	DisputeID     *string      `json:"dispute_id"`
	DisputeAmount *moneyAmount `json:"dispute_amount"`
}

func (v *captureView) amountCents() *int64 {
	if v.Amount == nil || v.Amount.Value == nil {
		return nil
	}
	major, err := strconv.ParseFloat(*v.Amount.Value, 64)
	if err != nil {
		return nil
	}
	cents := int64(major * 100)
	return &cents
}

func (v *captureView) payerEmail() string {
	if v.Payer != nil && v.Payer.EmailAddress != nil && *v.Payer.EmailAddress != "" {
		return *v.Payer.EmailAddress
	}
	return UnknownRef
}

func (v *billingSubView) email() string {
	if v.Subscriber != nil && v.Subscriber.EmailAddress != nil && *v.Subscriber.EmailAddress != "" {
		return *v.Subscriber.EmailAddress
	}
	return UnknownRef
}

func (r *Router) handleCaptureCompleted(ctx context.Context, n *domain.Notification) (string, error) {
	var capture captureView
	if err := json.Unmarshal(n.Object, &capture); err != nil {
		return "", fmt.Errorf("parse capture: %w", err)
	}
	email := capture.payerEmail()
	r.audit.Log(ctx, n.Provider, "payment.captured", email, capture.amountCents(), audit.SeverityInfo)
	return optString(capture.ID, UnknownRef), nil
}

func (r *Router) handleCaptureDenied(ctx context.Context, n *domain.Notification) (string, error) {
	var capture captureView
	if err := json.Unmarshal(n.Object, &capture); err != nil {
		return "", fmt.Errorf("parse capture: %w", err)
	}
	r.audit.Log(ctx, n.Provider, "payment.denied", "", nil, audit.SeverityInfo)
	return optString(capture.ID, UnknownRef), nil
}

func (r *Router) handleCaptureRefunded(ctx context.Context, n *domain.Notification) (string, error) {
	var capture captureView
	if err := json.Unmarshal(n.Object, &capture); err != nil {
		return "", fmt.Errorf("parse capture: %w", err)
	}
	r.audit.Log(ctx, n.Provider, "payment.refunded", "", capture.amountCents(), audit.SeverityInfo)
	return optString(capture.ID, UnknownRef), nil
}

func (r *Router) handleBillingSubCreated(ctx context.Context, n *domain.Notification) (string, error) {
	var view billingSubView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse billing subscription: %w", err)
	}
	r.log.Info("billing subscription created",
		zap.String("subscription_id", optString(view.ID, UnknownRef)),
		zap.String("plan_id", optString(view.PlanID, UnknownRef)),
		zap.String("subscriber", view.email()),
	)
	r.audit.Log(ctx, n.Provider, "subscription.created", view.email(), nil, audit.SeverityInfo)
	return optString(view.ID, UnknownRef), nil
}

func (r *Router) handleBillingSubActivated(ctx context.Context, n *domain.Notification) (string, error) {
	var view billingSubView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse billing subscription: %w", err)
	}
	r.subs.SetStatus(view.email(), subscriber.StatusActive)
	r.audit.Log(ctx, n.Provider, "subscription.activated", view.email(), nil, audit.SeverityInfo)
	return optString(view.ID, UnknownRef), nil
}

func (r *Router) handleBillingSubCancelled(ctx context.Context, n *domain.Notification) (string, error) {
	var view billingSubView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse billing subscription: %w", err)
	}
	r.subs.Cancel(view.email())
	r.audit.Log(ctx, n.Provider, "subscription.cancelled", view.email(), nil, audit.SeverityInfo)
	return optString(view.ID, UnknownRef), nil
}

func (r *Router) handleBillingSubSuspended(ctx context.Context, n *domain.Notification) (string, error) {
	var view billingSubView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse billing subscription: %w", err)
	}
	r.subs.SetStatus(view.email(), subscriber.StatusPastDue)
	r.audit.Log(ctx, n.Provider, "subscription.suspended", view.email(), nil, audit.SeverityInfo)
	return optString(view.ID, UnknownRef), nil
}

func (r *Router) handleBillingSubPaymentFailed(ctx context.Context, n *domain.Notification) (string, error) {
	var view billingSubView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse billing subscription: %w", err)
	}
	r.subs.SetStatus(view.email(), subscriber.StatusPastDue)
	r.audit.Log(ctx, n.Provider, "subscription.payment_failed", view.email(), nil, audit.SeverityInfo)
	return optString(view.ID, UnknownRef), nil
}

func (r *Router) handleCustomerDisputeCreated(ctx context.Context, n *domain.Notification) (string, error) {
	var dispute paypalDisputeView
	if err := json.Unmarshal(n.Object, &dispute); err != nil {
		return "", fmt.Errorf("parse dispute: %w", err)
	}
	disputeID := optString(dispute.DisputeID, UnknownRef)

	var cents *int64
	if dispute.DisputeAmount != nil && dispute.DisputeAmount.Value != nil {
		if major, err := strconv.ParseFloat(*dispute.DisputeAmount.Value, 64); err == nil {
			v := int64(major * 100)
			cents = &v
		}
	}

	// Requires manual review; subscriber state is untouched.
	r.log.Warn("dispute created, manual review required",
		zap.String("dispute_id", disputeID),
	)
	r.audit.Log(ctx, n.Provider, "dispute.created", "", cents, audit.SeverityHigh)
	return disputeID, nil
}
