// Package auth guards the operator surfaces: the admin HTTP routes and
// the gRPC server. Customers chatting with the agent are anonymous.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// APIKeyHeader carries the admin API key, on HTTP and as gRPC metadata.
	APIKeyHeader = "X-API-Key"

	operatorContextKey contextKey = "operator"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrAdminKeyDisabled   = errors.New("admin API key not configured")
	ErrInvalidAPIKey      = errors.New("invalid API key")
)

// Operator identifies the caller of an admin operation.
type Operator struct {
	Name string
	// ViaAPIKey is true when the static admin key was presented.
	ViaAPIKey bool
}

// Guard checks admin API keys and operator tokens.
type Guard struct {
	adminAPIKey string
	jwt         *JWTManager
	skipMethods map[string]bool
}

// NewGuard creates a guard. An empty adminAPIKey disables key auth; a nil
// jwt disables bearer tokens.
func NewGuard(adminAPIKey string, jwt *JWTManager) *Guard {
	return &Guard{
		adminAPIKey: adminAPIKey,
		jwt:         jwt,
		skipMethods: map[string]bool{
			// Health check endpoints
			"/grpc.health.v1.Health/Check": true,
			"/grpc.health.v1.Health/Watch": true,
			"/grpc.health.v1.Health/List":  true,
		},
	}
}

// WithSkipMethods adds gRPC methods that need no credentials.
func (g *Guard) WithSkipMethods(methods ...string) *Guard {
	for _, method := range methods {
		g.skipMethods[method] = true
	}
	return g
}

// CheckAPIKey accepts only the static admin key.
func (g *Guard) CheckAPIKey(key string) (*Operator, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrMissingCredentials
	}
	if g.adminAPIKey == "" {
		return nil, ErrAdminKeyDisabled
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(g.adminAPIKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}
	return &Operator{Name: "admin", ViaAPIKey: true}, nil
}

// Check accepts the admin key or, failing that, an operator bearer token.
func (g *Guard) Check(apiKey, authorization string) (*Operator, error) {
	if strings.TrimSpace(apiKey) != "" {
		return g.CheckAPIKey(apiKey)
	}
	token, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrMissingCredentials
	}
	if g.jwt == nil {
		return nil, ErrInvalidToken
	}
	claims, err := g.jwt.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	return &Operator{Name: claims.Operator}, nil
}

// AuthenticateRequest applies Check to an HTTP request's headers.
func (g *Guard) AuthenticateRequest(r *http.Request) (*Operator, error) {
	return g.Check(r.Header.Get(APIKeyHeader), r.Header.Get("Authorization"))
}

// UnaryInterceptor returns a gRPC unary interceptor that requires
// operator credentials outside the skipped methods.
func (g *Guard) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if g.skipMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		op, err := g.fromMetadata(ctx)
		if err != nil {
			return nil, err
		}
		return handler(WithOperator(ctx, op), req)
	}
}

// StreamInterceptor returns the streaming counterpart of UnaryInterceptor.
func (g *Guard) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if g.skipMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		op, err := g.fromMetadata(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithOperator(ss.Context(), op),
		})
	}
}

func (g *Guard) fromMetadata(ctx context.Context) (*Operator, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	op, err := g.Check(first(md.Get(APIKeyHeader)), first(md.Get("authorization")))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return op, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// wrappedServerStream wraps a grpc.ServerStream with a modified context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// WithOperator stores the authenticated operator in ctx.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey, op)
}

// OperatorFromContext extracts operator info from context
func OperatorFromContext(ctx context.Context) (*Operator, bool) {
	op, ok := ctx.Value(operatorContextKey).(*Operator)
	return op, ok
}
