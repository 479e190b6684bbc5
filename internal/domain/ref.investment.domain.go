package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentTier string

const (
	TierBasic       InvestmentTier = "BASIC"
	TierPremium     InvestmentTier = "PREMIUM"
	TierAgentCoupon InvestmentTier = "AGENT_COUPON"
)

type InvestmentStatus string

const (
	InvestmentPending   InvestmentStatus = "pending"
	InvestmentCompleted InvestmentStatus = "completed"
)

// Investment tracks a card-payment intent. PaymentReference is unique and is
// the idempotency key for webhook reconciliation: a row already completed means
// the notification was applied before.
type Investment struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Tier             InvestmentTier   `json:"tier"`
	PaymentReference string           `json:"payment_reference"`
	Status           InvestmentStatus `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
