package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/transport/http/response"
)

type ctxKey string

const ctxActor ctxKey = "actor"

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret []byte
	issuer string
}

func NewAuth(secret, issuer string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Require rejects unauthenticated requests and injects the caller's
// ActorContext. Business code never reads the token itself.
func (a *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.parse(r)
		if err != nil {
			response.Fail(
				w,
				http.StatusUnauthorized,
				"unauthorized",
				"unauthorized",
				map[string]string{"reason": err.Error()},
				response.RequestIDFromRequest(r),
			)
			return
		}

		ctx := context.WithValue(r.Context(), ctxActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) parse(r *http.Request) (domain.ActorContext, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(h, "Bearer ") {
		return domain.ActorContext{}, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		return domain.ActorContext{}, err
	}
	if !tok.Valid {
		return domain.ActorContext{}, errors.New("invalid token")
	}

	if a.issuer != "" && claims.Issuer != a.issuer {
		return domain.ActorContext{}, errors.New("invalid issuer")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return domain.ActorContext{}, errors.New("missing uid")
	}

	role := domain.Role(strings.TrimSpace(claims.Role))
	switch role {
	case domain.RoleTecnico, domain.RoleOficina, domain.RoleAdmin, domain.RoleCliente:
	case "":
		role = domain.RoleCliente
	default:
		return domain.ActorContext{}, errors.New("unknown role")
	}

	return domain.ActorContext{ID: claims.UserID, Role: role}, nil
}

// Actor returns the authenticated caller. Zero value outside Require.
func Actor(r *http.Request) domain.ActorContext {
	if v, ok := r.Context().Value(ctxActor).(domain.ActorContext); ok {
		return v
	}
	return domain.ActorContext{}
}

// WithActor is a test helper for handler tests that bypass Require.
func WithActor(r *http.Request, actor domain.ActorContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxActor, actor))
}
