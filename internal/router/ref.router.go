package router

import (
	"net/http"

	"referral-service/internal/handler"
	"referral-service/internal/middleware"
	"referral-service/internal/provider/flutterwave"
	"referral-service/internal/provider/seerbit"
	"referral-service/internal/response"
	"referral-service/internal/usecase/activation"
	"referral-service/internal/usecase/admin"
	"referral-service/internal/usecase/agent"
	"referral-service/internal/usecase/auth"
	"referral-service/internal/usecase/dashboard"
	"referral-service/internal/usecase/distribution"
	"referral-service/internal/usecase/ledger"
	"referral-service/internal/usecase/payment"
	"referral-service/internal/usecase/withdrawal"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps bundles everything the route tree needs.
type Deps struct {
	Auth         *auth.Service
	Activation   *activation.Service
	Ledger       *ledger.Service
	Withdrawal   *withdrawal.Service
	Payment      *payment.Service
	Agent        *agent.Service
	Admin        *admin.Service
	Dashboard    *dashboard.Service
	Distribution *distribution.Service

	AuthMW      *middleware.AuthMiddleware
	Flutterwave *flutterwave.Client
	Seerbit     *seerbit.Client

	IsProduction bool
	DevMode      bool
	Logger       *zap.Logger
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"service": "referral-service"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handler.RegisterHandler(d.Auth, d.DevMode))
			r.Post("/login", handler.LoginHandler(d.Auth))
			r.Post("/verify-email", handler.VerifyEmailHandler(d.Auth))
			r.Post("/resend-verification", handler.ResendVerificationHandler(d.Auth, d.DevMode))
		})

		// Gateway callbacks authenticate by signature, not bearer token.
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/card", handler.CardWebhookHandler(d.Payment, d.Flutterwave, d.IsProduction, d.Logger))
			r.Post("/transfer", handler.TransferWebhookHandler(d.Withdrawal, d.Seerbit, d.Logger))
		})

		r.Get("/banks", handler.BanksHandler())

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(d.AuthMW.Require)

			r.Post("/activation", handler.ActivateHandler(d.Activation))

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/profile", handler.ProfileHandler(d.Dashboard))
				r.Get("/stats", handler.StatsHandler(d.Dashboard))
				r.Get("/earnings", handler.EarningsHandler(d.Dashboard))
			})
			r.Get("/matrix/tree", handler.MatrixTreeHandler(d.Dashboard))

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", handler.WithdrawHandler(d.Withdrawal))
				r.Get("/", handler.WithdrawalHistoryHandler(d.Withdrawal))
				r.Get("/balance", handler.BalanceHandler(d.Ledger))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/premium", handler.InitializePremiumHandler(d.Payment))
				r.Post("/agent-coupons", handler.InitializeAgentCouponsHandler(d.Payment))
			})

			r.Route("/agent", func(r chi.Router) {
				r.Use(middleware.RequireAgent)
				r.Post("/coupons", handler.GenerateCouponsHandler(d.Agent))
				r.Get("/coupons", handler.MyCouponsHandler(d.Agent))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/upgrade-agent", handler.UpgradeAgentHandler(d.Admin))
				r.Post("/agent/credit-coupons", handler.CreditCouponsHandler(d.Admin))
				r.Post("/withdrawals/process", handler.ProcessWithdrawalHandler(d.Withdrawal))
				r.Post("/withdrawals/reject", handler.RejectWithdrawalHandler(d.Withdrawal))
				r.Post("/withdrawals/verify", handler.VerifyWithdrawalHandler(d.Withdrawal))
				r.Post("/payments/verify", handler.VerifyPaymentHandler(d.Payment, d.Flutterwave))
				r.Post("/balances/reconcile", handler.ReconcileBalancesHandler(d.Distribution))
				r.Post("/distributions/global-pool", handler.DistributeGlobalPoolHandler(d.Distribution))
				r.Post("/distributions/premium", handler.DistributePremiumHandler(d.Distribution))
			})
		})
	})

	return r
}
