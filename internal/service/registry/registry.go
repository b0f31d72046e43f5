// Package registry builds the domain services once so every transport
// shares them (the relay's per-sender ordering depends on it).
package registry

import (
	"github.com/oggyb/match-relay/internal/app"
	"github.com/oggyb/match-relay/internal/service/matching"
	"github.com/oggyb/match-relay/internal/service/moderation"
	"github.com/oggyb/match-relay/internal/service/relay"
	"github.com/oggyb/match-relay/internal/service/session"
)

type Services struct {
	Matching   *matching.Service
	Sessions   *session.Service
	Relay      *relay.Service
	Moderation *moderation.Service
}

func New(appCtx *app.AppContext) *Services {
	return &Services{
		Matching:   matching.NewService(appCtx),
		Sessions:   session.NewService(appCtx),
		Relay:      relay.NewService(appCtx),
		Moderation: moderation.NewService(appCtx),
	}
}
