package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"referral-service/internal/middleware"
	"referral-service/internal/response"
	"referral-service/internal/usecase/ledger"
	"referral-service/internal/usecase/withdrawal"

	"github.com/shopspring/decimal"
)

func WithdrawHandler(withdrawalUC *withdrawal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		type requestBody struct {
			Amount      json.Number `json:"amount"`
			Currency    string      `json:"currency"`
			BankName    string      `json:"bankName"`
			BankAccount string      `json:"bankAccount"`
			AccountName string      `json:"accountName"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		amount, err := decimal.NewFromString(body.Amount.String())
		if err != nil || !amount.IsPositive() {
			response.Error(w, http.StatusBadRequest, "Amount must be a number greater than 0")
			return
		}

		result, err := withdrawalUC.Create(r.Context(), userID, withdrawal.CreateRequest{
			Amount:      amount,
			Currency:    body.Currency,
			BankName:    body.BankName,
			BankAccount: body.BankAccount,
			AccountName: body.AccountName,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusCreated, result)
	}
}

func BalanceHandler(ledgerUC *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		balance, err := ledgerUC.GetBalance(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{
			"balance": balance.String(),
		})
	}
}

func WithdrawalHistoryHandler(withdrawalUC *withdrawal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		withdrawals, total, err := withdrawalUC.History(r.Context(), userID, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"withdrawals": withdrawals,
			"total":       total,
		})
	}
}
