package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"referral-service/internal/domain"
	"referral-service/internal/jwtutil"
	"referral-service/internal/repository"
	xerrors "referral-service/internal/xerrors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost           = 10
	verificationTokenTTL = 24 * time.Hour
)

// Service handles registration, login and the email-verification token flow.
// Token delivery (sending the email) is out of scope; the token is returned
// to the caller in non-production environments only.
type Service struct {
	users  repository.UserRepository
	tokens *jwtutil.Manager
	logger *zap.Logger
}

func New(users repository.UserRepository, tokens *jwtutil.Manager, logger *zap.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// RegisterRequest carries the validated registration fields. SponsorUsername
// is optional; when set it must resolve to an existing user.
type RegisterRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Username        string
	BankName        string
	BankAccount     string
	Password        string
	SponsorUsername string
}

// RegisterResult is the created user plus the verification token for the
// handler to expose in dev mode.
type RegisterResult struct {
	User              *domain.User
	VerificationToken string
}

// Register creates an unverified, unactivated user under the sponsor.
// Uniqueness of email, username and phone is enforced by database
// constraints; a violation surfaces as ErrUserAlreadyExists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	var sponsorID *int64
	if req.SponsorUsername != "" {
		sponsor, err := s.users.GetByUsername(ctx, req.SponsorUsername)
		if err != nil {
			if errors.Is(err, xerrors.ErrUserNotFound) {
				return nil, xerrors.ErrSponsorNotFound
			}
			return nil, err
		}
		sponsorID = &sponsor.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		Username:     req.Username,
		PasswordHash: string(hash),
		BankName:     optional(req.BankName),
		BankAccount:  optional(req.BankAccount),
		SponsorID:    sponsorID,
	}
	if err := s.users.Create(ctx, user, token, time.Now().Add(verificationTokenTTL)); err != nil {
		if xerrors.IsUniqueViolation(err) {
			return nil, xerrors.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))

	return &RegisterResult{User: user, VerificationToken: token}, nil
}

// Login authenticates by email or username and returns a signed access token.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, *domain.User, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, xerrors.ErrUserNotFound) {
			return "", nil, xerrors.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, xerrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, roleOf(user))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

// VerifyEmail consumes an unexpired verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, xerrors.ErrUserNotFound) {
			return xerrors.ErrInvalidToken
		}
		return err
	}
	if user.EmailVerified {
		return fmt.Errorf("%w: email already verified", xerrors.ErrInvalidRequest)
	}
	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info("email verified", zap.Int64("user_id", user.ID))
	return nil
}

// ResendVerification rotates the user's verification token and returns the
// new one for delivery.
func (s *Service) ResendVerification(ctx context.Context, identifier string) (string, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return "", err
	}
	if user.EmailVerified {
		return "", fmt.Errorf("%w: email already verified", xerrors.ErrInvalidRequest)
	}
	token, err := newVerificationToken()
	if err != nil {
		return "", err
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, token, time.Now().Add(verificationTokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func roleOf(u *domain.User) string {
	switch {
	case u.IsAdmin:
		return jwtutil.RoleAdmin
	case u.IsAgent:
		return jwtutil.RoleAgent
	default:
		return jwtutil.RoleUser
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
