package handler

import (
	"encoding/json"
	"net/http"

	"referral-service/internal/provider/flutterwave"
	"referral-service/internal/response"
	"referral-service/internal/usecase/admin"
	"referral-service/internal/usecase/distribution"
	"referral-service/internal/usecase/payment"
	"referral-service/internal/usecase/withdrawal"

	"github.com/shopspring/decimal"
)

func UpgradeAgentHandler(adminUC *admin.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID int64 `json:"userId"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == 0 {
			response.Error(w, http.StatusBadRequest, "Valid user ID is required")
			return
		}

		user, err := adminUC.UpgradeToAgent(r.Context(), body.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"message": "User upgraded to agent",
			"user":    user,
		})
	}
}

func CreditCouponsHandler(adminUC *admin.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID  int64 `json:"userId"`
			Credits int   `json:"credits"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == 0 {
			response.Error(w, http.StatusBadRequest, "Valid user ID is required")
			return
		}

		user, err := adminUC.CreditCoupons(r.Context(), body.UserID, body.Credits)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"message": "Coupon credits granted",
			"user":    user,
		})
	}
}

func ProcessWithdrawalHandler(withdrawalUC *withdrawal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			WithdrawalID int64 `json:"withdrawalId"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WithdrawalID == 0 {
			response.Error(w, http.StatusBadRequest, "Valid withdrawal ID is required")
			return
		}

		result, err := withdrawalUC.Process(r.Context(), body.WithdrawalID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

func RejectWithdrawalHandler(withdrawalUC *withdrawal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			WithdrawalID int64  `json:"withdrawalId"`
			Reason       string `json:"reason"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WithdrawalID == 0 {
			response.Error(w, http.StatusBadRequest, "Valid withdrawal ID is required")
			return
		}
		if body.Reason == "" {
			body.Reason = "Rejected by admin"
		}

		result, err := withdrawalUC.Reject(r.Context(), body.WithdrawalID, body.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

// VerifyWithdrawalHandler queries the bank gateway for its current verdict on
// a transfer and applies it. Used when the settlement webhook was lost.
func VerifyWithdrawalHandler(withdrawalUC *withdrawal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Reference string `json:"reference"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reference == "" {
			response.Error(w, http.StatusBadRequest, "Payment reference is required")
			return
		}

		result, err := withdrawalUC.ReconcileWithGateway(r.Context(), body.Reference)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

// VerifyPaymentHandler re-checks a card payment with the gateway and applies
// the verified outcome through the same reconciliation path webhooks use.
func VerifyPaymentHandler(paymentUC *payment.Service, fw *flutterwave.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Reference string `json:"reference"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reference == "" {
			response.Error(w, http.StatusBadRequest, "Payment reference is required")
			return
		}

		tx, err := fw.VerifyTransaction(r.Context(), body.Reference)
		if err != nil {
			writeError(w, err)
			return
		}

		amount, err := decimal.NewFromString(tx.Amount.String())
		if err != nil {
			amount = decimal.Zero
		}
		result, err := paymentUC.ApplyCardNotification(r.Context(), payment.Notification{
			Reference: body.Reference,
			Status:    tx.Status,
			Amount:    amount,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

func ReconcileBalancesHandler(distributionUC *distribution.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repaired, err := distributionUC.ReconcileBalances(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]int{
			"usersReconciled": repaired,
		})
	}
}

func DistributeGlobalPoolHandler(distributionUC *distribution.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := distributionUC.DistributeGlobalPoolROI(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, report)
	}
}

func DistributePremiumHandler(distributionUC *distribution.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := distributionUC.DistributePremiumROI(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, report)
	}
}
