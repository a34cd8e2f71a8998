package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// Claim names carried by bookshelf tokens
const (
	ClaimSubject = "sub"
	ClaimRole    = "role"
)

var errUnauthenticated = errors.New("authentication required")

type actorCtxKey struct{}

// NewTokenAuth creates an HS256 token authority from a shared secret
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token for the given actor. A zero ttl issues a token
// that never expires.
func IssueToken(auth *jwtauth.JWTAuth, actor bookshelf.Actor, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		ClaimSubject: actor.ID.String(),
		ClaimRole:    string(actor.Role),
	}
	jwtauth.SetIssuedNow(claims)
	if ttl > 0 {
		jwtauth.SetExpiryIn(claims, ttl)
	}
	_, token, err := auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves the verified token into an Actor. Requests without a
// token pass through anonymously; requests with an invalid one are rejected.
// It must run after jwtauth.Verifier.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if jwtauth.TokenFromHeader(r) == "" && jwtauth.TokenFromCookie(r) == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, claims, err := jwtauth.FromContext(r.Context())
		if err == nil && token == nil {
			err = errors.New("token not verified")
		}
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errUnauthenticated, err))
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireActor rejects anonymous requests
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			writeError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose actor is not an admin
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, r, errUnauthenticated)
			return
		}
		if !actor.IsAdmin() {
			writeError(w, r, fmt.Errorf("%w: admin role required", bookshelf.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor stores the actor in the context
func WithActor(ctx context.Context, actor bookshelf.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns the authenticated actor, if any
func ActorFromContext(ctx context.Context) (bookshelf.Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(bookshelf.Actor)
	return actor, ok
}

func actorFromClaims(claims map[string]interface{}) (bookshelf.Actor, error) {
	sub, _ := claims[ClaimSubject].(string)
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return bookshelf.Actor{}, fmt.Errorf("%w: invalid subject claim", errUnauthenticated)
	}

	role, _ := claims[ClaimRole].(string)
	switch r := bookshelf.Role(role); r {
	case bookshelf.RoleAdmin, bookshelf.RoleWriter, bookshelf.RoleReader:
		return bookshelf.Actor{ID: id, Role: r}, nil
	default:
		return bookshelf.Actor{}, fmt.Errorf("%w: invalid role claim %q", errUnauthenticated, role)
	}
}
