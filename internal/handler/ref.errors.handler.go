package handler

import (
	"errors"
	"net/http"

	"referral-service/internal/response"
	xerrors "referral-service/internal/xerrors"
)

// writeError maps usecase errors onto HTTP statuses. Unrecognized errors
// become opaque 500s so internals never leak into responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidRequest),
		errors.Is(err, xerrors.ErrReferenceMissing),
		errors.Is(err, xerrors.ErrPaymentNotSuccessful),
		errors.Is(err, xerrors.ErrInvalidToken),
		errors.Is(err, xerrors.ErrExpiredToken),
		errors.Is(err, xerrors.ErrInsufficientBalance),
		errors.Is(err, xerrors.ErrUnknownBank),
		errors.Is(err, xerrors.ErrAlreadyPremium),
		errors.Is(err, xerrors.ErrInvalidStatusTransition):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrInvalidCredentials),
		errors.Is(err, xerrors.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, xerrors.ErrKYCRequired),
		errors.Is(err, xerrors.ErrAgentOnly),
		errors.Is(err, xerrors.ErrForbidden),
		errors.Is(err, xerrors.ErrSignatureInvalid):
		response.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, xerrors.ErrUserNotFound),
		errors.Is(err, xerrors.ErrSponsorNotFound),
		errors.Is(err, xerrors.ErrWithdrawalNotFound),
		errors.Is(err, xerrors.ErrInvalidCoupon),
		errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrUserAlreadyExists),
		errors.Is(err, xerrors.ErrEmailAlreadyInUse),
		errors.Is(err, xerrors.ErrPhoneAlreadyInUse),
		errors.Is(err, xerrors.ErrCouponAlreadyUsed),
		errors.Is(err, xerrors.ErrAlreadyProcessed):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrExternalService),
		errors.Is(err, xerrors.ErrGatewayNotConfigured):
		response.Error(w, http.StatusBadGateway, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
	}
}
