package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"referral-service/internal/middleware"
	"referral-service/internal/response"
	"referral-service/internal/usecase/payment"

	"github.com/shopspring/decimal"
)

func InitializePremiumHandler(paymentUC *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		type requestBody struct {
			Amount json.Number `json:"amount"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		amount := decimal.Zero
		if body.Amount != "" {
			parsed, err := decimal.NewFromString(body.Amount.String())
			if err != nil {
				response.Error(w, http.StatusBadRequest, "Amount must be a number")
				return
			}
			amount = parsed
		}

		intent, err := paymentUC.InitializePremium(r.Context(), userID, amount)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, intent)
	}
}

func InitializeAgentCouponsHandler(paymentUC *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		type requestBody struct {
			Quantity int `json:"quantity"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Quantity < 1 {
			response.Error(w, http.StatusBadRequest, "Quantity must be at least 1")
			return
		}

		intent, err := paymentUC.InitializeAgentCoupons(r.Context(), userID, body.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, intent)
	}
}
