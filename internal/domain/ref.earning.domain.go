package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type EarningType string

const (
	EarningReferralBonus  EarningType = "REFERRAL_BONUS"
	EarningGlobalPoolROI  EarningType = "GLOBAL_POOL_ROI"
	EarningOperationsCost EarningType = "OPERATIONS_COST"
	EarningPremiumROI     EarningType = "PREMIUM_ROI"
)

// MatrixLevelEarning returns the earning type for a matrix level (1..5),
// e.g. MATRIX_LEVEL_3.
func MatrixLevelEarning(level int) EarningType {
	return EarningType(fmt.Sprintf("MATRIX_LEVEL_%d", level))
}

// Earning is an immutable ledger entry. Rows are only ever created, by the
// earnings engine or a distribution job, never updated or deleted. Amounts are
// positive; the meaning is carried by Type.
type Earning struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         EarningType     `json:"type"`
	Description  string          `json:"description"`
	ReferrerID   *int64          `json:"referrer_id,omitempty"`
	SponsorID    *int64          `json:"sponsor_id,omitempty"`
	ActivationID *int64          `json:"activation_id,omitempty"`
	// PaymentReference links gateway-funded earnings (PREMIUM_ROI) to the
	// payment that produced them. Unique per (user_id, type, payment_reference)
	// so webhook redelivery cannot create a second credit.
	PaymentReference *string   `json:"payment_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
