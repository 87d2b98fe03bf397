package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Audience is the only accepted value of the aud claim
const Audience = "authenticated"

// Identity is the verified caller attached to every protected request
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Claims represents the identity provider's access token claims
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens against the shared secret
type Verifier struct {
	secret    []byte
	blacklist RevocationChecker
}

// NewVerifier creates a verifier. blacklist may be nil.
func NewVerifier(secret string, blacklist RevocationChecker) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		blacklist: blacklist,
	}
}

// ParseBearer extracts the token from an Authorization header value
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", domain.NewUnauthenticatedError()
	}
	return strings.TrimSpace(token), nil
}

// Verify checks signature, audience and expiry and returns the caller identity
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if v.blacklist != nil {
		revoked, err := v.blacklist.IsBlacklisted(ctx, tokenString)
		if err != nil {
			return nil, domain.NewInternalError(fmt.Errorf("failed to check blacklist: %w", err))
		}
		if revoked {
			return nil, domain.NewInvalidSignatureError(errors.New("token has been revoked"))
		}
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// ExpiresAt returns the expiry of a token that verifies, for revocation bookkeeping
func (v *Verifier) ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

func (v *Verifier) parse(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, domain.NewUnauthenticatedError()
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.NewTokenExpiredError(err)
		}
		return nil, domain.NewInvalidSignatureError(err)
	}

	if claims.Subject == "" {
		return nil, domain.NewInvalidSignatureError(errors.New("token has no subject"))
	}

	return claims, nil
}

// IssueToken signs an access token the way the identity provider does
func IssueToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

type identityKey struct{}

// WithIdentity attaches the verified identity to ctx
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by WithIdentity
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
