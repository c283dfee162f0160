package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/apperr"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Identity is the authenticated actor of a single request.
type Identity struct {
	ID  string
	OID primitive.ObjectID
}

// Resolver turns an authorization header into an Identity and issues tokens.
type Resolver struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResolver(secret string, ttl time.Duration) (*Resolver, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Resolver{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// ParseBearerToken strips an optional case-insensitive "Bearer " prefix.
func ParseBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}

// Resolve has no side effects. An empty header is Unauthenticated, anything
// that fails verification is InvalidCredential.
func (r *Resolver) Resolve(header string) (Identity, error) {
	const op = "auth.resolve"
	token := ParseBearerToken(header)
	if token == "" {
		return Identity{}, apperr.Ef(apperr.Unauthenticated, op, "not authenticated")
	}

	claims, err := r.parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Ef(apperr.InvalidCredential, op, "token expired")
		}
		return Identity{}, apperr.Ef(apperr.InvalidCredential, op, "invalid token")
	}

	uid := claims.UserID
	if uid == "" {
		uid = claims.Subject
	}
	oid, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		return Identity{}, apperr.Ef(apperr.InvalidCredential, op, "invalid token subject")
	}
	return Identity{ID: oid.Hex(), OID: oid}, nil
}

func (r *Resolver) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := parsed.Claims.(*Claims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Issue signs a token for userID.
func (r *Resolver) Issue(userID string) (string, time.Time, error) {
	now := r.now()
	exp := now.Add(r.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	return signed, exp, err
}
