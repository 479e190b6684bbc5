// Package repotest provides in-memory repository implementations for unit
// tests. The fakes keep the same error contracts as the Postgres
// implementations but no transactional isolation: a Tx is a no-op handle, so
// tests exercise usecase logic, not rollback behavior.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	xerrors "referral-service/internal/xerrors"

	"github.com/shopspring/decimal"
)

type noopTx struct{}

func (noopTx) Commit(ctx context.Context) error   { return nil }
func (noopTx) Rollback(ctx context.Context) error { return nil }

// FakeUserRepo implements repository.UserRepository in memory.
type FakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	Users  map[int64]*domain.User
	tokens map[int64]verification
}

type verification struct {
	token  string
	expiry time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		Users:  map[int64]*domain.User{},
		tokens: map[int64]verification{},
	}
}

// Seed inserts a user directly, assigning an ID when missing.
func (f *FakeUserRepo) Seed(u *domain.User) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		f.nextID++
		u.ID = f.nextID
	} else if u.ID > f.nextID {
		f.nextID = u.ID
	}
	f.Users[u.ID] = u
	return u
}

func (f *FakeUserRepo) BeginTx(ctx context.Context) (repository.Tx, error) {
	return noopTx{}, nil
}

func (f *FakeUserRepo) Create(ctx context.Context, u *domain.User, verificationToken string, tokenExpiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Users {
		if existing.Email == u.Email || existing.Username == u.Username || existing.Phone == u.Phone {
			return xerrors.ErrUserAlreadyExists
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.Users[u.ID] = u
	f.tokens[u.ID] = verification{token: verificationToken, expiry: tokenExpiry}
	return nil
}

func (f *FakeUserRepo) GetByID(ctx context.Context, tx repository.Tx, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *FakeUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.Users {
		if u.Email == identifier || u.Username == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, xerrors.ErrUserNotFound
}

func (f *FakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.Users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, xerrors.ErrUserNotFound
}

func (f *FakeUserRepo) GetByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, v := range f.tokens {
		if v.token == token && v.expiry.After(time.Now()) {
			copied := *f.Users[id]
			return &copied, nil
		}
	}
	return nil, xerrors.ErrUserNotFound
}

func (f *FakeUserRepo) SetEmailVerified(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	u.EmailVerified = true
	delete(f.tokens, id)
	return nil
}

func (f *FakeUserRepo) SetVerificationToken(ctx context.Context, id int64, token string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Users[id]; !ok {
		return xerrors.ErrUserNotFound
	}
	f.tokens[id] = verification{token: token, expiry: expiry}
	return nil
}

func (f *FakeUserRepo) SetAgent(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	u.IsAgent = true
	return nil
}

func (f *FakeUserRepo) SetPremium(ctx context.Context, tx repository.Tx, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	u.IsPremium = true
	return nil
}

func (f *FakeUserRepo) IncrementBalance(ctx context.Context, tx repository.Tx, id int64, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (f *FakeUserRepo) DecrementBalance(ctx context.Context, tx repository.Tx, id int64, amount decimal.Decimal) error {
	return f.IncrementBalance(ctx, tx, id, amount.Neg())
}

func (f *FakeUserRepo) SetBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	u.Balance = amount
	return nil
}

func (f *FakeUserRepo) IncrementCouponCredits(ctx context.Context, tx repository.Tx, id int64, credits int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	u.AgentCouponCredits += credits
	return nil
}

func (f *FakeUserRepo) SponsorOf(ctx context.Context, id int64) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}
	return u.SponsorID, nil
}

func (f *FakeUserRepo) ListDownline(ctx context.Context, sponsorIDs []int64) ([]*domain.DownlineMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[int64]bool{}
	for _, id := range sponsorIDs {
		wanted[id] = true
	}
	var members []*domain.DownlineMember
	for _, u := range f.Users {
		if u.SponsorID != nil && wanted[*u.SponsorID] {
			members = append(members, &domain.DownlineMember{
				ID:          u.ID,
				Username:    u.Username,
				DisplayName: u.DisplayName(),
				SponsorID:   u.SponsorID,
			})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (f *FakeUserRepo) CountBySponsor(ctx context.Context, sponsorID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.Users {
		if u.SponsorID != nil && *u.SponsorID == sponsorID {
			n++
		}
	}
	return n, nil
}

func (f *FakeUserRepo) ListUserIDs(ctx context.Context, onlyVerified, onlyPremium bool) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, u := range f.Users {
		if onlyVerified && !u.EmailVerified {
			continue
		}
		if onlyPremium && !u.IsPremium {
			continue
		}
		ids = append(ids, u.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// FakeCouponRepo implements repository.CouponRepository in memory.
type FakeCouponRepo struct {
	mu      sync.Mutex
	nextID  int64
	Coupons map[int64]*domain.Coupon
}

func NewFakeCouponRepo() *FakeCouponRepo {
	return &FakeCouponRepo{Coupons: map[int64]*domain.Coupon{}}
}

func (f *FakeCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Coupons {
		if existing.Code == c.Code {
			return xerrors.ErrInvalidRequest
		}
	}
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	f.Coupons[c.ID] = c
	return nil
}

func (f *FakeCouponRepo) GetByCode(ctx context.Context, tx repository.Tx, code string) (*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Coupons {
		if c.Code == code {
			copied := *c
			return &copied, nil
		}
	}
	return nil, xerrors.ErrInvalidCoupon
}

func (f *FakeCouponRepo) Consume(ctx context.Context, tx repository.Tx, couponID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Coupons[couponID]
	if !ok || c.IsUsed {
		return xerrors.ErrCouponAlreadyUsed
	}
	now := time.Now()
	c.IsUsed = true
	c.UsedBy = &userID
	c.UsedAt = &now
	return nil
}

func (f *FakeCouponRepo) ListByAgent(ctx context.Context, agentID int64) ([]*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Coupon
	for _, c := range f.Coupons {
		if c.AgentID == agentID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// FakeEarningRepo implements repository.EarningRepository in memory.
type FakeEarningRepo struct {
	mu       sync.Mutex
	nextID   int64
	Earnings []*domain.Earning
}

func NewFakeEarningRepo() *FakeEarningRepo {
	return &FakeEarningRepo{}
}

func (f *FakeEarningRepo) Create(ctx context.Context, tx repository.Tx, e *domain.Earning) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	copied := *e
	f.Earnings = append(f.Earnings, &copied)
	return nil
}

func (f *FakeEarningRepo) SumByUser(ctx context.Context, tx repository.Tx, userID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, e := range f.Earnings {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (f *FakeEarningRepo) SumByUserAndType(ctx context.Context, userID int64) (map[domain.EarningType]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := map[domain.EarningType]decimal.Decimal{}
	for _, e := range f.Earnings {
		if e.UserID == userID {
			sums[e.Type] = sums[e.Type].Add(e.Amount)
		}
	}
	return sums, nil
}

func (f *FakeEarningRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Earning, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Earning
	for _, e := range f.Earnings {
		if e.UserID == userID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeEarningRepo) ExistsByTypeAndReference(ctx context.Context, tx repository.Tx, userID int64, typ domain.EarningType, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.Earnings {
		if e.UserID == userID && e.Type == typ && e.PaymentReference != nil && *e.PaymentReference == reference {
			return true, nil
		}
	}
	return false, nil
}

// ByType returns the user's earnings of one type, for assertions.
func (f *FakeEarningRepo) ByType(userID int64, typ domain.EarningType) []*domain.Earning {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Earning
	for _, e := range f.Earnings {
		if e.UserID == userID && e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// FakeInvestmentRepo implements repository.InvestmentRepository in memory.
type FakeInvestmentRepo struct {
	mu          sync.Mutex
	nextID      int64
	Investments map[string]*domain.Investment
}

func NewFakeInvestmentRepo() *FakeInvestmentRepo {
	return &FakeInvestmentRepo{Investments: map[string]*domain.Investment{}}
}

func (f *FakeInvestmentRepo) Create(ctx context.Context, inv *domain.Investment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Investments[inv.PaymentReference]; ok {
		return xerrors.ErrAlreadyProcessed
	}
	f.nextID++
	inv.ID = f.nextID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	f.Investments[inv.PaymentReference] = inv
	return nil
}

func (f *FakeInvestmentRepo) GetByReference(ctx context.Context, tx repository.Tx, reference string) (*domain.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.Investments[reference]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (f *FakeInvestmentRepo) UpsertCompleted(ctx context.Context, tx repository.Tx, userID int64, amount decimal.Decimal, tier domain.InvestmentTier, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv, ok := f.Investments[reference]; ok {
		inv.Status = domain.InvestmentCompleted
		inv.Tier = tier
		inv.UpdatedAt = time.Now()
		return nil
	}
	f.nextID++
	f.Investments[reference] = &domain.Investment{
		ID:               f.nextID,
		UserID:           userID,
		Amount:           amount,
		Tier:             tier,
		PaymentReference: reference,
		Status:           domain.InvestmentCompleted,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	return nil
}

func (f *FakeInvestmentRepo) SumCompletedByUserAndTier(ctx context.Context, userID int64, tier domain.InvestmentTier) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, inv := range f.Investments {
		if inv.UserID == userID && inv.Tier == tier && inv.Status == domain.InvestmentCompleted {
			sum = sum.Add(inv.Amount)
		}
	}
	return sum, nil
}

// FakeWithdrawalRepo implements repository.WithdrawalRepository in memory.
type FakeWithdrawalRepo struct {
	mu          sync.Mutex
	nextID      int64
	Withdrawals map[int64]*domain.Withdrawal
}

func NewFakeWithdrawalRepo() *FakeWithdrawalRepo {
	return &FakeWithdrawalRepo{Withdrawals: map[int64]*domain.Withdrawal{}}
}

func (f *FakeWithdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	w.ID = f.nextID
	w.CreatedAt = time.Now()
	copied := *w
	f.Withdrawals[w.ID] = &copied
	return nil
}

func (f *FakeWithdrawalRepo) GetByID(ctx context.Context, tx repository.Tx, id int64) (*domain.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.Withdrawals[id]
	if !ok {
		return nil, xerrors.ErrWithdrawalNotFound
	}
	copied := *w
	return &copied, nil
}

func (f *FakeWithdrawalRepo) GetByReferenceForUpdate(ctx context.Context, tx repository.Tx, reference string) (*domain.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.Withdrawals {
		if w.PaymentReference != nil && *w.PaymentReference == reference {
			copied := *w
			return &copied, nil
		}
	}
	return nil, xerrors.ErrWithdrawalNotFound
}

func (f *FakeWithdrawalRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id int64, from, to domain.WithdrawalStatus, reference, rejectionReason *string, markProcessed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.Withdrawals[id]
	if !ok || w.Status != from {
		return xerrors.ErrInvalidStatusTransition
	}
	w.Status = to
	if reference != nil {
		w.PaymentReference = reference
	}
	w.RejectionReason = rejectionReason
	if markProcessed && w.ProcessedAt == nil {
		now := time.Now()
		w.ProcessedAt = &now
	}
	return nil
}

func (f *FakeWithdrawalRepo) SumSettledByUser(ctx context.Context, tx repository.Tx, userID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, w := range f.Withdrawals {
		if w.UserID == userID && w.Status.Settled() {
			sum = sum.Add(w.Amount)
		}
	}
	return sum, nil
}

func (f *FakeWithdrawalRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Withdrawal, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Withdrawal
	for _, w := range f.Withdrawals {
		if w.UserID == userID {
			copied := *w
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}
