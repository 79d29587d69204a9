package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every token that fails validation,
// whatever the cause.
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the identity carried by a validated token. Fields are reported
// as found; callers decide whether a missing subject or tenant is fatal.
type Claims struct {
	Subject   string
	TenantID  string
	Role      string
	ExpiresAt time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// TokenService issues and validates HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService returns a TokenService for cfg.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Issue signs a token for subject scoped to tenantID. It returns the token
// and its expiry.
func (s *TokenService) Issue(subject, tenantID, role string) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID: tenantID,
		Role:     role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate checks signature, algorithm, issuer and expiry. Any failure
// yields ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &accessClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Claims{
		Subject:   claims.Subject,
		TenantID:  claims.TenantID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
