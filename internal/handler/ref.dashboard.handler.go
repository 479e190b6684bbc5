package handler

import (
	"net/http"
	"sort"
	"strconv"

	"referral-service/internal/middleware"
	"referral-service/internal/provider/seerbit"
	"referral-service/internal/response"
	"referral-service/internal/usecase/dashboard"
)

func ProfileHandler(dashboardUC *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		profile, err := dashboardUC.Profile(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, profile)
	}
}

func StatsHandler(dashboardUC *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		stats, err := dashboardUC.Stats(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, stats)
	}
}

func MatrixTreeHandler(dashboardUC *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		tree, err := dashboardUC.MatrixTree(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"tree": tree,
		})
	}
}

func EarningsHandler(dashboardUC *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		earnings, err := dashboardUC.Earnings(r.Context(), userID, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"earnings": earnings,
		})
	}
}

func BanksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		banks := seerbit.Banks()
		sort.Strings(banks)
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"banks": banks,
		})
	}
}
