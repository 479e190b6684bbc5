package repository

import (
	"context"
	"errors"
	"time"

	"referral-service/internal/domain"
	xerrors "referral-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	BeginTx(ctx context.Context) (Tx, error)

	Create(ctx context.Context, u *domain.User, verificationToken string, tokenExpiry time.Time) error
	GetByID(ctx context.Context, tx Tx, id int64) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.User, error)

	SetEmailVerified(ctx context.Context, id int64) error
	SetVerificationToken(ctx context.Context, id int64, token string, expiry time.Time) error
	SetAgent(ctx context.Context, id int64) error
	SetPremium(ctx context.Context, tx Tx, id int64) error

	// IncrementBalance and DecrementBalance are the only balance mutation
	// primitives; adjustments are applied in SQL so concurrent payouts and
	// settlements on the same user cannot lose updates.
	IncrementBalance(ctx context.Context, tx Tx, id int64, amount decimal.Decimal) error
	DecrementBalance(ctx context.Context, tx Tx, id int64, amount decimal.Decimal) error
	SetBalance(ctx context.Context, id int64, amount decimal.Decimal) error
	IncrementCouponCredits(ctx context.Context, tx Tx, id int64, credits int) error

	SponsorOf(ctx context.Context, id int64) (*int64, error)
	ListDownline(ctx context.Context, sponsorIDs []int64) ([]*domain.DownlineMember, error)
	CountBySponsor(ctx context.Context, sponsorID int64) (int, error)
	ListUserIDs(ctx context.Context, onlyVerified, onlyPremium bool) ([]int64, error)
}

type userRepo struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) BeginTx(ctx context.Context) (Tx, error) {
	return beginTx(ctx, r.db)
}

const userCols = `id, first_name, last_name, email, phone, username, password_hash,
	bank_name, bank_account, sponsor_id, balance::text, agent_coupon_credits,
	is_agent, is_admin, is_premium, kyc_verified, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var balance string
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Username,
		&u.PasswordHash, &u.BankName, &u.BankAccount, &u.SponsorID, &balance,
		&u.AgentCouponCredits, &u.IsAgent, &u.IsAdmin, &u.IsPremium,
		&u.KYCVerified, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrUserNotFound
		}
		return nil, err
	}
	u.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *domain.User, verificationToken string, tokenExpiry time.Time) error {
	query := `INSERT INTO users
		(first_name, last_name, email, phone, username, password_hash,
		 bank_name, bank_account, sponsor_id, email_verification_token,
		 email_verification_expiry)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		u.FirstName, u.LastName, u.Email, u.Phone, u.Username, u.PasswordHash,
		u.BankName, u.BankAccount, u.SponsorID, verificationToken, tokenExpiry,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return xerrors.ErrUserAlreadyExists
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, tx Tx, id int64) (*domain.User, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE id = $1`
	return scanUser(within(r.db, tx).QueryRow(ctx, query, id))
}

func (r *userRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE email = $1 OR username = $1`
	return scanUser(r.db.QueryRow(ctx, query, identifier))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *userRepo) GetByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	query := `SELECT ` + userCols + ` FROM users
		WHERE email_verification_token = $1 AND email_verification_expiry > NOW()`
	return scanUser(r.db.QueryRow(ctx, query, token))
}

func (r *userRepo) SetEmailVerified(ctx context.Context, id int64) error {
	query := `UPDATE users
		SET email_verified = TRUE, email_verification_token = NULL,
		    email_verification_expiry = NULL, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *userRepo) SetVerificationToken(ctx context.Context, id int64, token string, expiry time.Time) error {
	query := `UPDATE users
		SET email_verification_token = $1, email_verification_expiry = $2, updated_at = NOW()
		WHERE id = $3`
	_, err := r.db.Exec(ctx, query, token, expiry, id)
	return err
}

func (r *userRepo) SetAgent(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_agent = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) SetPremium(ctx context.Context, tx Tx, id int64) error {
	_, err := within(r.db, tx).Exec(ctx,
		`UPDATE users SET is_premium = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *userRepo) IncrementBalance(ctx context.Context, tx Tx, id int64, amount decimal.Decimal) error {
	query := `UPDATE users SET balance = balance + $1::numeric, updated_at = NOW() WHERE id = $2`
	tag, err := within(r.db, tx).Exec(ctx, query, amount.String(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) DecrementBalance(ctx context.Context, tx Tx, id int64, amount decimal.Decimal) error {
	return r.IncrementBalance(ctx, tx, id, amount.Neg())
}

func (r *userRepo) SetBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	query := `UPDATE users SET balance = $1::numeric, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, amount.String(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) IncrementCouponCredits(ctx context.Context, tx Tx, id int64, credits int) error {
	query := `UPDATE users SET agent_coupon_credits = agent_coupon_credits + $1, updated_at = NOW() WHERE id = $2`
	tag, err := within(r.db, tx).Exec(ctx, query, credits, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) SponsorOf(ctx context.Context, id int64) (*int64, error) {
	var sponsorID *int64
	err := r.db.QueryRow(ctx, `SELECT sponsor_id FROM users WHERE id = $1`, id).Scan(&sponsorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrUserNotFound
		}
		return nil, err
	}
	return sponsorID, nil
}

func (r *userRepo) ListDownline(ctx context.Context, sponsorIDs []int64) ([]*domain.DownlineMember, error) {
	query := `SELECT id, username, first_name, last_name, sponsor_id
		FROM users WHERE sponsor_id = ANY($1) ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, sponsorIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.DownlineMember
	for rows.Next() {
		var m domain.DownlineMember
		var first, last string
		if err := rows.Scan(&m.ID, &m.Username, &first, &last, &m.SponsorID); err != nil {
			return nil, err
		}
		m.DisplayName = first + " " + last
		if m.DisplayName == " " {
			m.DisplayName = m.Username
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (r *userRepo) CountBySponsor(ctx context.Context, sponsorID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE sponsor_id = $1`, sponsorID).Scan(&n)
	return n, err
}

func (r *userRepo) ListUserIDs(ctx context.Context, onlyVerified, onlyPremium bool) ([]int64, error) {
	query := `SELECT id FROM users WHERE ($1 = FALSE OR email_verified)
		AND ($2 = FALSE OR is_premium) ORDER BY id`
	rows, err := r.db.Query(ctx, query, onlyVerified, onlyPremium)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
