package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "PENDING"
	WithdrawalApproved WithdrawalStatus = "APPROVED"
	WithdrawalPaid     WithdrawalStatus = "PAID"
	WithdrawalFailed   WithdrawalStatus = "FAILED"
	WithdrawalRejected WithdrawalStatus = "REJECTED"
)

// Withdrawal is a payout request to a bank account. Rows are created PENDING
// with no balance effect; balance moves only on status transitions (see
// BalanceEffect).
type Withdrawal struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	BankName         string           `json:"bank_name"`
	BankAccount      string           `json:"bank_account"`
	AccountName      string           `json:"account_name"`
	Status           WithdrawalStatus `json:"status"`
	PaymentReference *string          `json:"payment_reference,omitempty"`
	RejectionReason  *string          `json:"rejection_reason,omitempty"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Settled reports whether the status counts against the user's balance when
// recalculating from first principles.
func (s WithdrawalStatus) Settled() bool {
	return s == WithdrawalApproved || s == WithdrawalPaid
}

// BalanceDelta is the direction a user's balance moves on a status transition.
type BalanceDelta int

const (
	DeltaNone   BalanceDelta = 0
	DeltaDebit  BalanceDelta = -1
	DeltaCredit BalanceDelta = 1
)

// BalanceEffect returns the balance movement for an old -> new transition.
// The delta is keyed off the stored status so a redelivered gateway webhook
// reporting the same status applies nothing.
//
//	PENDING  -> APPROVED|PAID : debit, the only point funds leave the user
//	APPROVED|PAID -> FAILED   : credit, refund exactly once
//	anything else             : no movement
func BalanceEffect(old, next WithdrawalStatus) BalanceDelta {
	if old == next {
		return DeltaNone
	}
	if old == WithdrawalPending && next.Settled() {
		return DeltaDebit
	}
	if old.Settled() && next == WithdrawalFailed {
		return DeltaCredit
	}
	return DeltaNone
}
