package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pfm/internal/auth"
	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/ledger"
	"pfm/internal/log"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(u core.User) (token string, expiresAt time.Time, err error)
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserService handles registration, login and balance top-ups.
type UserService struct {
	base
	balances *ledger.BalanceStore
	tokens   TokenIssuer
}

func NewUserService(d Deps, tokens TokenIssuer) *UserService {
	return &UserService{
		base:     newBase(d, log.ComponentUser),
		balances: ledger.NewBalanceStore(d.Store),
		tokens:   tokens,
	}
}

// Register creates a user with a zero balance.
func (s *UserService) Register(ctx context.Context, email, password string) (core.User, error) {
	return s.RegisterWithBalance(ctx, email, password, core.Zero)
}

// RegisterWithBalance creates a user whose opening balance is written by the
// same insert, so the user never exists without it.
func (s *UserService) RegisterWithBalance(ctx context.Context, email, password string, opening core.Money) (core.User, error) {
	if opening.IsNegative() {
		return core.User{}, core.ErrInvalidAmount
	}
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		Email:        email,
		PasswordHash: hash,
		Balance:      opening,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		s.failed(ctx, log.OpRegister, 0, 0, err)
		return core.User{}, fmt.Errorf("register %s: %w", email, err)
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, int64(u.ID))
	if opening.IsPositive() {
		s.committed(ctx, log.OpTopUp, events.BalanceToppedUp, u.ID, 0, opening, opening)
	}
	return u, nil
}

// Login checks the password and issues a token. Unknown emails and wrong
// passwords both fail with core.ErrUnauthenticated.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return LoginResult{}, core.ErrUnauthenticated
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return LoginResult{}, core.ErrUnauthenticated
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "Login rejected", log.FieldUserID, int64(u.ID))
		return LoginResult{}, err
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: exp}, nil
}

func (s *UserService) Balance(ctx context.Context, userID core.ID) (core.Money, error) {
	return s.balances.Get(ctx, userID)
}

// TopUp credits amount from source.
func (s *UserService) TopUp(ctx context.Context, userID core.ID, amount core.Money, source core.BalanceSource) (core.Money, error) {
	if err := amount.ValidatePositive(); err != nil {
		return core.Zero, err
	}
	if _, err := core.ParseBalanceSource(string(source)); err != nil {
		return core.Zero, err
	}
	balance, err := s.balances.Apply(ctx, userID, amount)
	if err != nil {
		s.failed(ctx, log.OpTopUp, userID, 0, err)
		return core.Zero, fmt.Errorf("top up: %w", err)
	}
	s.committed(ctx, log.OpTopUp, events.BalanceToppedUp, userID, 0, amount, balance)
	return balance, nil
}

func (s *UserService) Sources() []core.BalanceSource {
	return core.BalanceSources()
}
