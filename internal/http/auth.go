package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionHeader = "X-Session-Token"

// Claims are issued by the identity service; only sub and email are used here.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Principal is who a request acts for. Exactly one of UserID and the guest
// session applies to the cart: Owner is user:{id} when a valid token was sent
// and the session token otherwise. SessionToken is kept for authenticated
// requests too, so login can merge the guest cart.
type Principal struct {
	Owner        domain.OwnerKey
	UserID       string
	Email        string
	SessionToken string
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("validator has no secret")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject is required")
	}
	return claims, nil
}

// AuthMiddleware resolves the Principal. A bearer token must be valid when
// sent. Without one the request is a guest; a guest with no session token
// gets a fresh one back in the X-Session-Token response header.
func AuthMiddleware(v *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := Principal{SessionToken: strings.TrimSpace(r.Header.Get(SessionHeader))}

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || parts[0] != "Bearer" {
					respondError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header format (expected 'Bearer <token>')")
					return
				}
				claims, err := v.Validate(parts[1])
				if err != nil {
					respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
					return
				}
				p.UserID = claims.Subject
				p.Email = claims.Email
				p.Owner = domain.UserOwner(claims.Subject)
			} else {
				if p.SessionToken == "" {
					p.SessionToken = uuid.NewString()
					w.Header().Set(SessionHeader, p.SessionToken)
				}
				owner, err := domain.GuestOwner(p.SessionToken)
				if err != nil {
					respondError(w, http.StatusBadRequest, "invalid_session", "invalid session token")
					return
				}
				p.Owner = owner
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

// RequireUser rejects guests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok || !p.Authenticated() {
			respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
