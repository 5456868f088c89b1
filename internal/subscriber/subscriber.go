package subscriber

import (
	"time"

	"github.com/google/uuid"
)

// Status is the subscription lifecycle state.
type Status string

const (
	StatusActive          Status = "active"
	StatusTrialing        Status = "trialing"
	StatusPastDue         Status = "past_due"
	StatusCanceled        Status = "canceled"
	StatusUnpaid          Status = "unpaid"
	StatusIncompleteSetup Status = "incomplete"
)

// Plan tier names.
const (
	TierBasic   = "basic"
	TierPremium = "premium"
)

// Plan is either the free plan or a named tier with a billing period.
type Plan struct {
	Tier   string
	Annual bool
}

// FreePlan is the zero-value plan for unrecognized plan keys.
var FreePlan = Plan{}

// IsFree reports whether the plan is the free tier.
func (p Plan) IsFree() bool {
	return p.Tier == ""
}

// PlanFromKey maps a checkout metadata plan key to a Plan. Unknown keys
// map to the free plan rather than failing activation.
func PlanFromKey(key string) Plan {
	switch key {
	case "basic", "basic_monthly":
		return Plan{Tier: TierBasic}
	case "basic_annual":
		return Plan{Tier: TierBasic, Annual: true}
	case "premium", "premium_monthly":
		return Plan{Tier: TierPremium}
	case "premium_annual":
		return Plan{Tier: TierPremium, Annual: true}
	default:
		return FreePlan
	}
}

// Subscriber is the internal record of a payer's plan and lifecycle
// status. Keyed by contact email: one contact holds one active plan at a
// time, a documented limitation of the reference model.
type Subscriber struct {
	ID              uuid.UUID
	Email           string
	CustomerRef     *string
	SubscriptionRef *string
	Plan            Plan
	Status          Status
	ActivatedAt     time.Time
	PeriodEnd       *time.Time
}
