package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veritasweb/payments/internal/audit"
	"github.com/veritasweb/payments/internal/subscriber"
	"github.com/veritasweb/payments/internal/webhook/domain"
	"go.uber.org/zap"
)

// Explicit defaults for permissive field extraction. A missing field
// never fails the whole request; it falls back to one of these.
const (
	// UnknownEmail stands in when no contact identity can be extracted.
	UnknownEmail = "unknown@veritas.website"
	// DefaultPlanKey is the cheapest tier, used when checkout metadata
	// carries no plan.
	DefaultPlanKey = "basic"
	// UnknownRef stands in for missing resource identifiers in audit
	// entries.
	UnknownRef = "unknown"
)

// Recognized notification types.
const (
	TypeCheckoutCompleted     = "checkout.session.completed"
	TypeInvoicePaid           = "invoice.paid"
	TypePaymentFailed         = "invoice.payment_failed"
	TypePaymentActionRequired = "invoice.payment_action_required"
	TypeSubscriptionUpdated   = "customer.subscription.updated"
	TypeSubscriptionDeleted   = "customer.subscription.deleted"
	TypeDisputeCreated        = "charge.dispute.created"

	TypeCaptureCompleted          = "PAYMENT.CAPTURE.COMPLETED"
	TypeCaptureDenied             = "PAYMENT.CAPTURE.DENIED"
	TypeCaptureRefunded           = "PAYMENT.CAPTURE.REFUNDED"
	TypeBillingSubCreated         = "BILLING.SUBSCRIPTION.CREATED"
	TypeBillingSubActivated       = "BILLING.SUBSCRIPTION.ACTIVATED"
	TypeBillingSubCancelled       = "BILLING.SUBSCRIPTION.CANCELLED"
	TypeBillingSubSuspended       = "BILLING.SUBSCRIPTION.SUSPENDED"
	TypeBillingSubPaymentFailed = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"
	TypeCustomerDisputeCreated  = "CUSTOMER.DISPUTE.CREATED"
)

const paymentStatusPaid = "paid"

// Dispatch refs for outcomes with no business effect.
const (
	refUnhandledEvent = "unhandled_event"
	refNoEffect       = "no_effect"
)

type handler func(ctx context.Context, n *domain.Notification) (string, error)

// Router maps a notification's declared type to a handler and
// orchestrates the Subscription Ledger and audit sink. Unknown types are
// a no-op success so unhandled event types never fail the pipeline.
type Router struct {
	subs     *subscriber.Ledger
	audit    *audit.Service
	log      *zap.Logger
	handlers map[string]handler
}

// NewRouter builds the router with the fixed handler set.
func NewRouter(subs *subscriber.Ledger, auditSvc *audit.Service, log *zap.Logger) *Router {
	r := &Router{
		subs:  subs,
		audit: auditSvc,
		log:   log.Named("webhook.dispatch"),
	}
	r.handlers = map[string]handler{
		TypeCheckoutCompleted:     r.handleCheckoutCompleted,
		TypeInvoicePaid:           r.handleInvoicePaid,
		TypePaymentFailed:         r.handlePaymentFailed,
		TypePaymentActionRequired: r.handlePaymentActionRequired,
		TypeSubscriptionUpdated:   r.handleSubscriptionUpdated,
		TypeSubscriptionDeleted:   r.handleSubscriptionDeleted,
		TypeDisputeCreated:        r.handleDisputeCreated,

		TypeCaptureCompleted:        r.handleCaptureCompleted,
		TypeCaptureDenied:           r.handleCaptureDenied,
		TypeCaptureRefunded:         r.handleCaptureRefunded,
		TypeBillingSubCreated:       r.handleBillingSubCreated,
		TypeBillingSubActivated:     r.handleBillingSubActivated,
		TypeBillingSubCancelled:     r.handleBillingSubCancelled,
		TypeBillingSubSuspended:     r.handleBillingSubSuspended,
		TypeBillingSubPaymentFailed: r.handleBillingSubPaymentFailed,
		TypeCustomerDisputeCreated:  r.handleCustomerDisputeCreated,
	}
	return r
}

// Dispatch routes the notification. The returned ref describes the
// business effect; a non-nil error is a business-logic failure recorded
// by the caller, never a transport rejection.
func (r *Router) Dispatch(ctx context.Context, n *domain.Notification) (string, error) {
	h, ok := r.handlers[n.Type]
	if !ok {
		r.log.Info("unhandled event type",
			zap.String("provider", n.Provider),
			zap.String("event_type", n.Type),
		)
		return refUnhandledEvent, nil
	}
	return h(ctx, n)
}

// checkoutSession is the typed view of a completed checkout payload.
type checkoutSession struct {
	ID              string            `json:"id"`
	Customer        *string           `json:"customer"`
	CustomerEmail   *string           `json:"customer_email"`
	CustomerDetails *customerDetails  `json:"customer_details"`
	Subscription    *string           `json:"subscription"`
	AmountTotal     *int64            `json:"amount_total"`
	Currency        *string           `json:"currency"`
	PaymentStatus   *string           `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
}

type customerDetails struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

// email prefers the nested customer details over the top-level field and
// never fails for a missing address.
func (s *checkoutSession) email() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != nil && *s.CustomerDetails.Email != "" {
		return *s.CustomerDetails.Email
	}
	if s.CustomerEmail != nil && *s.CustomerEmail != "" {
		return *s.CustomerEmail
	}
	return UnknownEmail
}

func (s *checkoutSession) planKey() string {
	if key, ok := s.Metadata["plan"]; ok && strings.TrimSpace(key) != "" {
		return key
	}
	return DefaultPlanKey
}

func (r *Router) handleCheckoutCompleted(ctx context.Context, n *domain.Notification) (string, error) {
	var session checkoutSession
	if err := json.Unmarshal(n.Object, &session); err != nil {
		return "", fmt.Errorf("parse checkout session: %w", err)
	}

	email := session.email()
	status := optString(session.PaymentStatus, "unpaid")
	if status != paymentStatusPaid {
		r.log.Warn("checkout completed without payment",
			zap.String("email", email),
			zap.String("payment_status", status),
		)
		return refNoEffect, nil
	}

	sub := r.subs.Activate(email, session.Customer, session.Subscription, session.planKey())
	r.audit.Log(ctx, n.Provider, "checkout.completed", email, session.AmountTotal, audit.SeverityInfo)
	return sub.ID.String(), nil
}

// invoiceView is the typed view of invoice.* payloads.
type invoiceView struct {
	ID            *string `json:"id"`
	CustomerEmail *string `json:"customer_email"`
	AmountPaid    *int64  `json:"amount_paid"`
	AttemptCount  *int64  `json:"attempt_count"`
}

func (r *Router) handleInvoicePaid(ctx context.Context, n *domain.Notification) (string, error) {
	var invoice invoiceView
	if err := json.Unmarshal(n.Object, &invoice); err != nil {
		return "", fmt.Errorf("parse invoice: %w", err)
	}
	email := optString(invoice.CustomerEmail, UnknownRef)

	// Keeps a recurring payer active even if a prior cycle had lapsed.
	r.subs.SetStatus(email, subscriber.StatusActive)
	r.audit.Log(ctx, n.Provider, "invoice.paid", email, invoice.AmountPaid, audit.SeverityInfo)
	return email, nil
}

func (r *Router) handlePaymentFailed(ctx context.Context, n *domain.Notification) (string, error) {
	var invoice invoiceView
	if err := json.Unmarshal(n.Object, &invoice); err != nil {
		return "", fmt.Errorf("parse invoice: %w", err)
	}
	email := optString(invoice.CustomerEmail, UnknownRef)

	r.subs.SetStatus(email, subscriber.StatusPastDue)
	r.audit.Log(ctx, n.Provider, "payment.failed", email, nil, audit.SeverityInfo)
	return email, nil
}

func (r *Router) handlePaymentActionRequired(ctx context.Context, n *domain.Notification) (string, error) {
	var invoice invoiceView
	if err := json.Unmarshal(n.Object, &invoice); err != nil {
		return "", fmt.Errorf("parse invoice: %w", err)
	}
	email := optString(invoice.CustomerEmail, UnknownRef)

	// 3D Secure / SCA challenge pending; no state change until the
	// follow-up invoice event arrives.
	r.audit.Log(ctx, n.Provider, "payment.action_required", email, nil, audit.SeverityInfo)
	return email, nil
}

// subscriptionView is the typed view of customer.subscription.* payloads.
type subscriptionView struct {
	ID            *string `json:"id"`
	CustomerEmail *string `json:"customer_email"`
	Status        *string `json:"status"`
}

// statusFromProvider maps the provider's status string to the internal
// enum. Unrecognized strings map to active, a deliberately optimistic
// default.
func statusFromProvider(raw string) subscriber.Status {
	switch raw {
	case "active":
		return subscriber.StatusActive
	case "past_due":
		return subscriber.StatusPastDue
	case "canceled":
		return subscriber.StatusCanceled
	case "unpaid":
		return subscriber.StatusUnpaid
	case "trialing":
		return subscriber.StatusTrialing
	case "incomplete":
		return subscriber.StatusIncompleteSetup
	default:
		return subscriber.StatusActive
	}
}

func (r *Router) handleSubscriptionUpdated(ctx context.Context, n *domain.Notification) (string, error) {
	var view subscriptionView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse subscription: %w", err)
	}
	if view.CustomerEmail == nil || *view.CustomerEmail == "" {
		return refNoEffect, nil
	}
	email := *view.CustomerEmail

	r.subs.SetStatus(email, statusFromProvider(optString(view.Status, "")))
	r.audit.Log(ctx, n.Provider, "subscription.updated", email, nil, audit.SeverityInfo)
	return email, nil
}

func (r *Router) handleSubscriptionDeleted(ctx context.Context, n *domain.Notification) (string, error) {
	var view subscriptionView
	if err := json.Unmarshal(n.Object, &view); err != nil {
		return "", fmt.Errorf("parse subscription: %w", err)
	}
	if view.CustomerEmail == nil || *view.CustomerEmail == "" {
		return refNoEffect, nil
	}
	email := *view.CustomerEmail

	r.subs.Cancel(email)
	r.audit.Log(ctx, n.Provider, "subscription.deleted", email, nil, audit.SeverityInfo)
	return email, nil
}

// disputeView is the typed view of charge.dispute.created payloads.
type disputeView struct {
	Charge *string `json:"charge"`
	Amount *int64  `json:"amount"`
}

func (r *Router) handleDisputeCreated(ctx context.Context, n *domain.Notification) (string, error) {
	var dispute disputeView
	if err := json.Unmarshal(n.Object, &dispute); err != nil {
		return "", fmt.Errorf("parse dispute: %w", err)
	}
	charge := optString(dispute.Charge, UnknownRef)

	// Requires manual review; subscriber state is untouched.
	r.log.Warn("dispute created, manual review required",
		zap.String("charge", charge),
		zap.Int64("amount_cents", optInt64(dispute.Amount, 0)),
	)
	r.audit.Log(ctx, n.Provider, "dispute.created", "", dispute.Amount, audit.SeverityHigh)
	return charge, nil
}

func optString(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func optInt64(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
