package server

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/match-relay/internal/config"
)

// NewGRPCServer builds a gRPC server with the given unary interceptors
// chained after request logging, and registers all provided services.
func NewGRPCServer(interceptors []grpc.UnaryServerInterceptor, registrars ...Registrar) *grpc.Server {
	chain := append([]grpc.UnaryServerInterceptor{LoggingInterceptor()}, interceptors...)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer
}

// StartGRPCServer listens on the configured address and serves until Stop.
func StartGRPCServer(cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return grpcServer.Serve(lis)
}
