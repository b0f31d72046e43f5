package admin

import (
	"google.golang.org/grpc"

	"github.com/oggyb/match-relay/internal/app"
)

// Registrar ties the admin service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the admin service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewService(r.appCtx))
}
