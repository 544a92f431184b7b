package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/makerspace/internal/domain/users"
)

type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
	jwt.RegisteredClaims
}

type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// IssueToken выпускает HS256-токен API-сессии.
func (s *Service) IssueToken(u users.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.DisplayName,
		IsMember: u.IsMember,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.TokenSecret))
}

func (s *Service) ParseToken(raw string) (users.User, error) {
	var claims Claims
	if err := s.parseHS256(raw, &claims, s.cfg.TokenSecret, s.cfg.Issuer); err != nil {
		return users.User{}, err
	}
	if claims.UserID == "" {
		return users.User{}, ErrInvalidToken
	}
	return users.User{
		ID:          claims.UserID,
		DisplayName: claims.Name,
		Email:       claims.Email,
		IsMember:    claims.IsMember,
	}, nil
}

func (s *Service) parseIDToken(raw string) (*idTokenClaims, error) {
	var claims idTokenClaims
	if err := s.parseHS256(raw, &claims, s.cfg.FederatedSecret, s.cfg.FederatedIssuer); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *Service) parseHS256(raw string, claims jwt.Claims, secret, issuer string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
