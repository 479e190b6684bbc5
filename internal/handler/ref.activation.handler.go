package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"referral-service/internal/middleware"
	"referral-service/internal/response"
	"referral-service/internal/usecase/activation"
)

func ActivateHandler(activationUC *activation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		type requestBody struct {
			CouponCode string `json:"couponCode"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		code := strings.TrimSpace(body.CouponCode)
		if code == "" {
			response.Error(w, http.StatusBadRequest, "Coupon code is required")
			return
		}

		result, err := activationUC.ActivateUser(r.Context(), userID, code)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"message": "Account activated successfully",
			"payouts": result.Payouts,
		})
	}
}
