package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	"referral-service/internal/usecase/ledger"
	"referral-service/internal/usecase/matrix"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	statsCacheTTL = 60 * time.Second
	// globalPoolThreshold is the direct-referral count that qualifies a user
	// for the global pool.
	globalPoolThreshold = 5
)

// Service assembles the read models behind the dashboard: profile, stats and
// the downline tree. Stats are cached in redis briefly; everything here is a
// derived view, so staleness is acceptable.
type Service struct {
	users       repository.UserRepository
	earnings    repository.EarningRepository
	ledger      *ledger.Service
	resolver    *matrix.Resolver
	redisClient *redis.Client
	logger      *zap.Logger
}

func New(
	users repository.UserRepository,
	earnings repository.EarningRepository,
	ledgerSvc *ledger.Service,
	resolver *matrix.Resolver,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		earnings:    earnings,
		ledger:      ledgerSvc,
		resolver:    resolver,
		redisClient: redisClient,
		logger:      logger,
	}
}

// BankDetails is the payout account summary shown on the profile.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IsSet         bool   `json:"is_set"`
}

// Profile is the authenticated user's account view. The username doubles as
// the referral code.
type Profile struct {
	ID                 int64       `json:"id"`
	Username           string      `json:"username"`
	FirstName          string      `json:"first_name"`
	LastName           string      `json:"last_name"`
	Email              string      `json:"email"`
	Phone              string      `json:"phone"`
	ReferralCode       string      `json:"referral_code"`
	BankDetails        BankDetails `json:"bank_details"`
	EmailVerified      bool        `json:"email_verified"`
	IsAgent            bool        `json:"is_agent"`
	IsPremium          bool        `json:"is_premium"`
	KYCVerified        bool        `json:"kyc_verified"`
	AgentCouponCredits int         `json:"agent_coupon_credits"`
	CreatedAt          time.Time   `json:"created_at"`
}

func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	bankName := ""
	if user.BankName != nil {
		bankName = *user.BankName
	}
	bankAccount := ""
	if user.BankAccount != nil {
		bankAccount = *user.BankAccount
	}

	return &Profile{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Phone:        user.Phone,
		ReferralCode: user.Username,
		BankDetails: BankDetails{
			BankName:      bankName,
			AccountName:   user.DisplayName(),
			AccountNumber: bankAccount,
			IsSet:         bankName != "" && bankAccount != "",
		},
		EmailVerified:      user.EmailVerified,
		IsAgent:            user.IsAgent,
		IsPremium:          user.IsPremium,
		KYCVerified:        user.KYCVerified,
		AgentCouponCredits: user.AgentCouponCredits,
		CreatedAt:          user.CreatedAt,
	}, nil
}

// Stats is the headline dashboard payload.
type Stats struct {
	Balance          decimal.Decimal            `json:"balance"`
	TotalEarnings    decimal.Decimal            `json:"total_earnings"`
	EarningsByType   map[string]decimal.Decimal `json:"earnings_by_type"`
	DirectReferrals  int                        `json:"direct_referrals"`
	TeamSize         int                        `json:"team_size"`
	UplineDepth      int                        `json:"upline_depth"`
	GlobalPoolStatus string                     `json:"global_pool_status"`
}

func statsKey(userID int64) string {
	return fmt.Sprintf("dashboard:stats:%d", userID)
}

func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, statsKey(userID)).Result(); err == nil {
			var stats Stats
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return &stats, nil
			}
		}
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	totalEarnings, err := s.earnings.SumByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	byType, err := s.earnings.SumByUserAndType(ctx, userID)
	if err != nil {
		return nil, err
	}
	directReferrals, err := s.users.CountBySponsor(ctx, userID)
	if err != nil {
		return nil, err
	}
	teamSize, err := s.teamSize(ctx, userID)
	if err != nil {
		return nil, err
	}
	upline, err := s.resolver.ResolveUpline(ctx, userID, matrix.MaxDepth)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]decimal.Decimal, len(byType))
	for typ, sum := range byType {
		breakdown[string(typ)] = sum
	}

	status := "Ineligible"
	if directReferrals >= globalPoolThreshold {
		status = "Eligible"
	}

	stats := &Stats{
		Balance:          balance,
		TotalEarnings:    totalEarnings,
		EarningsByType:   breakdown,
		DirectReferrals:  directReferrals,
		TeamSize:         teamSize,
		UplineDepth:      len(upline),
		GlobalPoolStatus: status,
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.redisClient.Set(ctx, statsKey(userID), data, statsCacheTTL).Err(); err != nil {
				s.logger.Warn("stats cache write failed", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
	}
	return stats, nil
}

// teamSize counts the whole downline breadth-first, one query per level.
func (s *Service) teamSize(ctx context.Context, userID int64) (int, error) {
	frontier := []int64{userID}
	total := 0
	for len(frontier) > 0 {
		members, err := s.users.ListDownline(ctx, frontier)
		if err != nil {
			return 0, err
		}
		if len(members) == 0 {
			break
		}
		total += len(members)
		frontier = frontier[:0]
		for _, m := range members {
			frontier = append(frontier, m.ID)
		}
	}
	return total, nil
}

// TreeNode is one member in the downline tree response.
type TreeNode struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Children    []TreeNode `json:"children,omitempty"`
}

// Tree is the root plus two levels of downline.
type Tree struct {
	Root   TreeNode   `json:"root"`
	Level1 []TreeNode `json:"level1"`
}

// MatrixTree returns the user's direct referrals and their referrals.
func (s *Service) MatrixTree(ctx context.Context, userID int64) (*Tree, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	level1, err := s.users.ListDownline(ctx, []int64{userID})
	if err != nil {
		return nil, err
	}

	level1IDs := make([]int64, 0, len(level1))
	for _, m := range level1 {
		level1IDs = append(level1IDs, m.ID)
	}

	childrenBySponsor := map[int64][]TreeNode{}
	if len(level1IDs) > 0 {
		level2, err := s.users.ListDownline(ctx, level1IDs)
		if err != nil {
			return nil, err
		}
		for _, m := range level2 {
			if m.SponsorID == nil {
				continue
			}
			childrenBySponsor[*m.SponsorID] = append(childrenBySponsor[*m.SponsorID], TreeNode{
				ID:          m.ID,
				Username:    m.Username,
				DisplayName: m.DisplayName,
			})
		}
	}

	tree := &Tree{
		Root: TreeNode{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName(),
		},
		Level1: make([]TreeNode, 0, len(level1)),
	}
	for _, m := range level1 {
		tree.Level1 = append(tree.Level1, TreeNode{
			ID:          m.ID,
			Username:    m.Username,
			DisplayName: m.DisplayName,
			Children:    childrenBySponsor[m.ID],
		})
	}
	return tree, nil
}

// Earnings returns the user's earning history, newest first.
func (s *Service) Earnings(ctx context.Context, userID int64, limit, offset int) ([]*domain.Earning, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.earnings.ListByUser(ctx, userID, limit, offset)
}
