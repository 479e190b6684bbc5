package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"referral-service/internal/middleware"
	"referral-service/internal/response"
	"referral-service/internal/usecase/agent"
)

func GenerateCouponsHandler(agentUC *agent.Service) http.HandlerFunc {
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
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		coupons, err := agentUC.GenerateCoupons(r.Context(), userID, body.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusCreated, map[string]interface{}{
			"message": fmt.Sprintf("%d coupon(s) generated successfully", len(coupons)),
			"coupons": coupons,
		})
	}
}

func MyCouponsHandler(agentUC *agent.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		coupons, err := agentUC.ListCoupons(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"coupons": coupons,
		})
	}
}
