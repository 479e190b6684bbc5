package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ParsePGErrorCode extracts the SQLSTATE from a pgx error, e.g. 23505 for
// unique_violation.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Users / registration
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrPhoneAlreadyInUse  = errors.New("phone already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSponsorNotFound    = errors.New("sponsor not found")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
)

// Activation / coupons
var (
	ErrInvalidCoupon     = errors.New("invalid coupon code")
	ErrCouponAlreadyUsed = errors.New("coupon has already been used")
)

// Balance / withdrawals
var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrKYCRequired             = errors.New("KYC verification required for withdrawals")
	ErrWithdrawalNotFound      = errors.New("withdrawal not found")
	ErrInvalidStatusTransition = errors.New("invalid withdrawal status transition")
)

// Payments / webhooks
var (
	ErrAlreadyProcessed     = errors.New("payment already processed")
	ErrAlreadyPremium       = errors.New("user is already premium")
	ErrAgentOnly            = errors.New("only agents can perform this operation")
	ErrPaymentNotSuccessful = errors.New("payment not successful")
	ErrSignatureInvalid     = errors.New("invalid webhook signature")
	ErrExternalService      = errors.New("external payment service failure")
	ErrUnknownBank          = errors.New("unknown bank name")
	ErrGatewayNotConfigured = errors.New("payment gateway credentials not configured")
	ErrReferenceMissing     = errors.New("payment reference missing")
)
