package admin

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oggyb/match-relay/internal/app"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/repository"
	"github.com/oggyb/match-relay/internal/service/session"
)

// Service implements the admin gRPC API on top of the session and profile layers.
type Service struct {
	appCtx   *app.AppContext
	sessions *session.Service
	profiles *repository.ProfileRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		sessions: session.NewService(appCtx),
		profiles: repository.NewProfileRepository(appCtx.DB),
	}
}

// BanUser bans the user and ends any chat they are in.
//
// Behavior:
//   - user_id must be non-zero (InvalidArgument).
//   - Unknown user → NotFound.
//   - The former partner is told the chat ended; no reconnect request is left.
func (s *Service) BanUser(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	id := req.GetValue()
	if id == 0 {
		return nil, svcErr.InvalidArgument("user_id is required")
	}
	if err := s.sessions.BanUser(ctx, id); err != nil {
		s.appCtx.Logger.Error("BanUser failed", "user_id", id, "err", err)
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("user banned", "user_id", id)
	return &emptypb.Empty{}, nil
}

func (s *Service) UnbanUser(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	id := req.GetValue()
	if id == 0 {
		return nil, svcErr.InvalidArgument("user_id is required")
	}
	if err := s.sessions.UnbanUser(ctx, id); err != nil {
		s.appCtx.Logger.Error("UnbanUser failed", "user_id", id, "err", err)
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("user unbanned", "user_id", id)
	return &emptypb.Empty{}, nil
}

// Stats returns store-wide counters as a flat struct.
func (s *Service) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.profiles.Stats(ctx)
	if err != nil {
		s.appCtx.Logger.Error("Stats failed", "err", err)
		return nil, svcErr.Map(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"users":           st.Users,
		"banned_users":    st.BannedUsers,
		"swipes":          st.Swipes,
		"active_sessions": st.ActiveSessions,
		"pending_chats":   st.PendingChats,
		"pending_reports": st.PendingReports,
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return out, nil
}
