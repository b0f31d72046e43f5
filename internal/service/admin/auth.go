package admin

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	svcErr "github.com/oggyb/match-relay/internal/errors"
)

// TokenHeader carries the plaintext admin token.
const TokenHeader = "x-admin-token"

// AuthInterceptor checks admin calls against a bcrypt hash of the admin token.
// An empty hash locks the admin API entirely. Other services pass through.
func AuthInterceptor(tokenHash string) grpc.UnaryServerInterceptor {
	hash := []byte(tokenHash)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		if len(hash) == 0 {
			return nil, svcErr.Unauthenticated("admin API disabled")
		}

		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get(TokenHeader)
		if len(vals) == 0 || vals[0] == "" {
			return nil, svcErr.Unauthenticated("missing admin token")
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(vals[0])); err != nil {
			return nil, svcErr.Unauthenticated("invalid admin token")
		}
		return handler(ctx, req)
	}
}
