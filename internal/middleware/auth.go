package middleware

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// IdentityKey is the context key for the authenticated participant.
const IdentityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying who.
func WithIdentity(ctx context.Context, who models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, who)
}

// IdentityFrom extracts the participant from the context.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	who, ok := ctx.Value(IdentityKey).(models.Identity)
	return who, ok && who.Key != ""
}

// GetEmail returns the participant's identity key, or "" if the request
// is unauthenticated.
func GetEmail(ctx context.Context) string {
	who, _ := IdentityFrom(ctx)
	return who.Key
}

// bearer extracts the token from an Authorization header.
func bearer(h http.Header) (string, error) {
	authHeader := h.Get("Authorization")
	if authHeader == "" {
		return "", auth.ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

func authenticate(ctx context.Context, provider auth.IdentityProvider, h http.Header) (context.Context, error) {
	token, err := bearer(h)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}
	who, err := provider.Identify(ctx, token)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}
	return WithIdentity(ctx, who), nil
}

// authInterceptor requires a valid bearer token on every call, unary and
// streaming, and adds the participant to the request context.
type authInterceptor struct {
	provider auth.IdentityProvider
}

// RequireAuth returns an interceptor that rejects unauthenticated calls.
func RequireAuth(provider auth.IdentityProvider) connect.Interceptor {
	return &authInterceptor{provider: provider}
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := authenticate(ctx, i.provider, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := authenticate(ctx, i.provider, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// BearerToken returns a client interceptor that sends token on every call.
func BearerToken(token string) connect.Interceptor {
	return &bearerInterceptor{value: "Bearer " + token}
}

type bearerInterceptor struct {
	value string
}

func (b *bearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set("Authorization", b.value)
		}
		return next(ctx, req)
	}
}

func (b *bearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", b.value)
		return conn
	}
}

func (b *bearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
