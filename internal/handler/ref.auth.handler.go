package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"referral-service/internal/response"
	"referral-service/internal/usecase/auth"
)

var (
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{6,15}$`)
	phoneRe    = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
	accountRe  = regexp.MustCompile(`^\d+$`)
	upperRe    = regexp.MustCompile(`[A-Z]`)
	lowerRe    = regexp.MustCompile(`[a-z]`)
	digitRe    = regexp.MustCompile(`\d`)
)

func RegisterHandler(authUC *auth.Service, devMode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			FirstName       string `json:"firstName"`
			LastName        string `json:"lastName"`
			Email           string `json:"email"`
			Phone           string `json:"phone"`
			Username        string `json:"username"`
			BankName        string `json:"bankName"`
			BankAccount     string `json:"bankAccount"`
			Sponsor         string `json:"sponsor"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirmPassword"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		fields := map[string]string{}
		if strings.TrimSpace(body.FirstName) == "" {
			fields["firstName"] = "First name is required"
		}
		if strings.TrimSpace(body.LastName) == "" {
			fields["lastName"] = "Last name is required"
		}
		if !emailRe.MatchString(body.Email) {
			fields["email"] = "Valid email is required"
		}
		if !phoneRe.MatchString(body.Phone) || strings.TrimSpace(body.Phone) == "" {
			fields["phone"] = "Valid phone number is required"
		}
		if !usernameRe.MatchString(body.Username) {
			fields["username"] = "Username must be 6-15 characters of letters, numbers, and underscores"
		}
		if body.BankAccount != "" && !accountRe.MatchString(body.BankAccount) {
			fields["bankAccount"] = "Bank account must contain only numbers"
		}
		if len(body.Password) < 8 || !upperRe.MatchString(body.Password) ||
			!lowerRe.MatchString(body.Password) || !digitRe.MatchString(body.Password) {
			fields["password"] = "Password must be at least 8 characters with an uppercase letter, a lowercase letter, and a number"
		}
		if body.Password != body.ConfirmPassword {
			fields["confirmPassword"] = "Passwords do not match"
		}
		if len(fields) > 0 {
			response.ValidationError(w, fields)
			return
		}

		result, err := authUC.Register(r.Context(), auth.RegisterRequest{
			FirstName:       strings.TrimSpace(body.FirstName),
			LastName:        strings.TrimSpace(body.LastName),
			Email:           strings.ToLower(strings.TrimSpace(body.Email)),
			Phone:           strings.TrimSpace(body.Phone),
			Username:        strings.TrimSpace(body.Username),
			BankName:        strings.TrimSpace(body.BankName),
			BankAccount:     strings.TrimSpace(body.BankAccount),
			Password:        body.Password,
			SponsorUsername: strings.TrimSpace(body.Sponsor),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		data := map[string]interface{}{
			"user": result.User,
		}
		// The token is surfaced directly only where there is no mail pipeline.
		if devMode {
			data["verificationToken"] = result.VerificationToken
		}
		response.JSON(w, http.StatusCreated, data)
	}
}

func LoginHandler(authUC *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Identifier == "" || body.Password == "" {
			response.Error(w, http.StatusBadRequest, "Email/username and password are required")
			return
		}

		token, user, err := authUC.Login(r.Context(), strings.TrimSpace(body.Identifier), body.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"user":  user,
		})
	}
}

func VerifyEmailHandler(authUC *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Token string `json:"token"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if strings.TrimSpace(body.Token) == "" {
			response.Error(w, http.StatusBadRequest, "Verification token is required")
			return
		}

		if err := authUC.VerifyEmail(r.Context(), strings.TrimSpace(body.Token)); err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{
			"message": "Email verified successfully",
		})
	}
}

func ResendVerificationHandler(authUC *auth.Service, devMode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Identifier string `json:"identifier"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if strings.TrimSpace(body.Identifier) == "" {
			response.Error(w, http.StatusBadRequest, "Email or username is required")
			return
		}

		token, err := authUC.ResendVerification(r.Context(), strings.TrimSpace(body.Identifier))
		if err != nil {
			writeError(w, err)
			return
		}

		data := map[string]interface{}{
			"message": "Verification token refreshed",
		}
		if devMode {
			data["verificationToken"] = token
		}
		response.JSON(w, http.StatusOK, data)
	}
}
