package payments

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/makerspace/internal/usage"
)

var ErrInvalidConfirmation = errors.New("invalid or expired payment confirmation")

type Service struct {
	baseURL  string
	secret   []byte
	ttl      time.Duration
	currency string
	now      func() time.Time
}

func NewService(baseURL, secret string, ttl time.Duration, currency string) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   []byte(secret),
		ttl:      ttl,
		currency: currency,
		now:      time.Now,
	}
}

type confirmationClaims struct {
	UsageID  string `json:"usage_id"`
	UserID   string `json:"user_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	jwt.RegisteredClaims
}

// Confirmation: что подтверждает внешний платёж.
type Confirmation struct {
	UsageID  string
	UserID   string
	Amount   string
	Currency string
}

// PaymentURL строит подписанную ссылку подтверждения оплаты для кандидата.
// В тестовом варианте это просто наш же HTTP-сервер.
func (s *Service) PaymentURL(userID string, p usage.Pending) (string, error) {
	now := s.now()
	claims := confirmationClaims{
		UsageID:  p.ID,
		UserID:   userID,
		Amount:   p.Price.StringFixed(2),
		Currency: s.currency,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/payments/confirm?token=%s", s.baseURL, url.QueryEscape(token)), nil
}

func (s *Service) Verify(raw string) (Confirmation, error) {
	var claims confirmationClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.UsageID == "" || claims.UserID == "" {
		return Confirmation{}, ErrInvalidConfirmation
	}
	return Confirmation{
		UsageID:  claims.UsageID,
		UserID:   claims.UserID,
		Amount:   claims.Amount,
		Currency: claims.Currency,
	}, nil
}
