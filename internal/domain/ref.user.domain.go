package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a member of the referral matrix. SponsorID is nil for roots, so the
// user table forms a forest. Balance is a cached value maintained by the
// ledger usecase; the authoritative figure is always derivable from earnings
// and settled withdrawals.
type User struct {
	ID                 int64           `json:"id"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Username           string          `json:"username"`
	PasswordHash       string          `json:"-"`
	BankName           *string         `json:"bank_name,omitempty"`
	BankAccount        *string         `json:"bank_account,omitempty"`
	SponsorID          *int64          `json:"sponsor_id,omitempty"`
	Balance            decimal.Decimal `json:"balance"`
	AgentCouponCredits int             `json:"agent_coupon_credits"`
	IsAgent            bool            `json:"is_agent"`
	IsAdmin            bool            `json:"is_admin"`
	IsPremium          bool            `json:"is_premium"`
	KYCVerified        bool            `json:"kyc_verified"`
	EmailVerified      bool            `json:"email_verified"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (u *User) DisplayName() string {
	name := u.FirstName + " " + u.LastName
	if name == " " {
		return u.Username
	}
	return name
}

// DownlineMember is a trimmed view of a user for matrix tree responses.
type DownlineMember struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	SponsorID   *int64 `json:"sponsor_id,omitempty"`
}
