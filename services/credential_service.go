package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/socialfeed/models"
)

// Claims defines JWT claims used in the application. The subject is the user id.
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// CredentialService hashes passwords and issues/validates signed identity tokens.
type CredentialService struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// NewCredentialService creates a CredentialService signing with secret. A zero ttl disables
// expiry; a cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewCredentialService(secret string, ttl time.Duration, cost int) *CredentialService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialService{
		secret: []byte(secret),
		ttl:    ttl,
		cost:   cost,
		now:    time.Now,
	}
}

// Hash returns a salted bcrypt hash of plain.
func (s *CredentialService) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares a bcrypt hash with its possible plaintext equivalent.
func (s *CredentialService) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IssueToken signs a token carrying userID.
func (s *CredentialService) IssueToken(userID int64) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature and expiry and returns the claims.
// Every failure wraps models.ErrUnauthenticated.
func (s *CredentialService) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: invalid token claims", models.ErrUnauthenticated)
	}
	return claims, nil
}

// ResolveToken returns the user id carried by a valid token.
func (s *CredentialService) ResolveToken(tokenStr string) (int64, error) {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
