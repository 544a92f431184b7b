// Package auth: регистрация и вход (пароль или внешний провайдер) и
// выпуск токенов API-сессий.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/makerspace/internal/docstore"
	"github.com/Spok95/makerspace/internal/domain/users"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrFederatedDisabled  = errors.New("federated sign-in is not configured")
)

const minPasswordLen = 6

type Config struct {
	TokenSecret     string
	TokenTTL        time.Duration
	Issuer          string
	FederatedSecret string // пусто: федеративный вход выключен
	FederatedIssuer string
	BcryptCost      int
}

type Service struct {
	store docstore.Store
	cfg   Config
	now   func() time.Time
}

func NewService(store docstore.Store, cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "makerspace"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, cfg: cfg, now: time.Now}
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (users.User, error) {
	email = users.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return users.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return users.User{}, ErrWeakPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return users.User{}, fmt.Errorf("hash password: %w", err)
	}
	acc := users.Account{
		User: users.User{
			ID:          uuid.NewString(),
			DisplayName: displayName,
			Email:       email,
			Provider:    users.ProviderPassword,
		},
		PasswordHash: string(hash),
	}

	_, err = s.store.RunAtomic(ctx, func(ctx context.Context, txn docstore.Txn) error {
		_, exists, err := txn.Read(ctx, users.Ref(email))
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailTaken
		}
		return txn.Write(users.Ref(email), acc.Fields())
	})
	if err != nil {
		return users.User{}, err
	}
	return acc.User, nil
}

func (s *Service) SignInWithCredentials(ctx context.Context, email, password string) (users.User, error) {
	acc, ok, err := s.account(ctx, email)
	if err != nil {
		return users.User{}, err
	}
	if !ok || acc.PasswordHash == "" {
		return users.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return users.User{}, ErrInvalidCredentials
	}
	return acc.User, nil
}

// SignInFederated принимает ID-токен внешнего провайдера и создаёт
// пользователя при первом входе.
func (s *Service) SignInFederated(ctx context.Context, idToken string) (users.User, error) {
	if s.cfg.FederatedSecret == "" {
		return users.User{}, ErrFederatedDisabled
	}
	claims, err := s.parseIDToken(idToken)
	if err != nil {
		return users.User{}, err
	}
	email := users.NormalizeEmail(claims.Email)
	if !strings.Contains(email, "@") {
		return users.User{}, fmt.Errorf("%w: id token has no email", ErrInvalidToken)
	}

	var out users.User
	_, err = s.store.RunAtomic(ctx, func(ctx context.Context, txn docstore.Txn) error {
		doc, exists, err := txn.Read(ctx, users.Ref(email))
		if err != nil {
			return err
		}
		if exists {
			// аккаунт уже есть (в т.ч. парольный): просто входим в него
			out = users.FromDocument(doc).User
			return nil
		}
		name := strings.TrimSpace(claims.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		acc := users.Account{User: users.User{
			ID:          uuid.NewString(),
			DisplayName: name,
			Email:       email,
			Provider:    users.ProviderFederated,
		}}
		out = acc.User
		return txn.Write(users.Ref(email), acc.Fields())
	})
	if err != nil {
		return users.User{}, err
	}
	return out, nil
}

func (s *Service) account(ctx context.Context, email string) (users.Account, bool, error) {
	var (
		acc users.Account
		ok  bool
	)
	_, err := s.store.RunAtomic(ctx, func(ctx context.Context, txn docstore.Txn) error {
		doc, exists, err := txn.Read(ctx, users.Ref(email))
		if err != nil || !exists {
			return err
		}
		acc, ok = users.FromDocument(doc), true
		return nil
	})
	return acc, ok, err
}
