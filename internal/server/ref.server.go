package server

import (
	"context"
	"net/http"
	"time"

	"referral-service/internal/config"
	"referral-service/internal/jwtutil"
	"referral-service/internal/middleware"
	"referral-service/internal/provider/flutterwave"
	"referral-service/internal/provider/seerbit"
	"referral-service/internal/repository"
	"referral-service/internal/router"
	"referral-service/internal/usecase/activation"
	"referral-service/internal/usecase/admin"
	"referral-service/internal/usecase/agent"
	"referral-service/internal/usecase/auth"
	"referral-service/internal/usecase/dashboard"
	"referral-service/internal/usecase/distribution"
	"referral-service/internal/usecase/earnings"
	"referral-service/internal/usecase/ledger"
	"referral-service/internal/usecase/matrix"
	"referral-service/internal/usecase/payment"
	"referral-service/internal/usecase/withdrawal"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	db         *pgxpool.Pool
	redis      *redis.Client
	runner     *distribution.Runner
	runnerStop context.CancelFunc
	logger     *zap.Logger
}

func New(cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	db, err := config.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})

	users := repository.NewUserRepository(db)
	coupons := repository.NewCouponRepository(db)
	earningsRepo := repository.NewEarningRepository(db)
	investments := repository.NewInvestmentRepository(db)
	withdrawals := repository.NewWithdrawalRepository(db)

	tokens := jwtutil.NewManager(cfg.JWTSecret, "referral-service", 24*time.Hour)
	fw := flutterwave.NewClient(cfg.FlutterwaveBaseURL, cfg.FlutterwaveSecretKey, cfg.FlutterwaveSecretHash)
	sb := seerbit.NewClient(cfg.SeerbitBaseURL, cfg.SeerbitPublicKey, cfg.SeerbitSecretKey)

	resolver := matrix.NewResolver(users)
	ledgerUC := ledger.New(users, earningsRepo, withdrawals, redisClient, logger)
	engine := earnings.NewEngine(users, earningsRepo, ledgerUC, resolver, logger)
	activationUC := activation.New(users, coupons, engine, logger)
	authUC := auth.New(users, tokens, logger)
	withdrawalUC := withdrawal.New(users, withdrawals, ledgerUC, sb, withdrawal.Policy{
		RequireKYC:  cfg.IsProduction(),
		AutoProcess: !cfg.IsProduction(),
	}, logger)
	paymentUC := payment.New(users, investments, earningsRepo, ledgerUC, cfg.FlutterwavePublicKey, logger)
	agentUC := agent.New(users, coupons, logger)
	adminUC := admin.New(users, logger)
	dashboardUC := dashboard.New(users, earningsRepo, ledgerUC, resolver, redisClient, logger)
	distributionUC := distribution.New(users, earningsRepo, investments, ledgerUC, logger)

	authMW := middleware.NewAuthMiddleware(tokens, users)

	r := router.New(router.Deps{
		Auth:         authUC,
		Activation:   activationUC,
		Ledger:       ledgerUC,
		Withdrawal:   withdrawalUC,
		Payment:      paymentUC,
		Agent:        agentUC,
		Admin:        adminUC,
		Dashboard:    dashboardUC,
		Distribution: distributionUC,
		AuthMW:       authMW,
		Flutterwave:  fw,
		Seerbit:      sb,
		IsProduction: cfg.IsProduction(),
		DevMode:      !cfg.IsProduction(),
		Logger:       logger,
	})

	srv := &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		db:     db,
		redis:  redisClient,
		logger: logger,
	}

	if cfg.DistributionIntervalMin > 0 {
		srv.runner = distribution.NewRunner(distributionUC,
			time.Duration(cfg.DistributionIntervalMin)*time.Minute, logger)
	}

	return srv, nil
}

func (s *Server) ListenAndServe() error {
	if s.runner != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.runnerStop = cancel
		go s.runner.Start(ctx)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.runnerStop != nil {
		s.runnerStop()
	}
	defer func() {
		s.db.Close()
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("redis close failed", zap.Error(err))
		}
	}()
	return s.httpServer.Shutdown(ctx)
}
