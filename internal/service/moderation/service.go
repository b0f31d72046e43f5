package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oggyb/match-relay/internal/app"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/intent"
	"github.com/oggyb/match-relay/internal/notify"
	"github.com/oggyb/match-relay/internal/repository"
	"github.com/oggyb/match-relay/internal/service"
)

// MaxReasonLength is the longest accepted report reason, in characters.
const MaxReasonLength = 500

type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	sessions *repository.SessionRepository
	reports  *repository.ReportRepository
	intents  *intent.Store
	notifier *notify.Notifier
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		sessions: repository.NewSessionRepository(appCtx.DB),
		reports:  repository.NewReportRepository(appCtx.DB),
		intents:  intent.NewStore(appCtx.RedisCache, appCtx.Config.Intent.TTL),
		notifier: appCtx.Notifier(),
	}
}

// BeginReport arms the reporter's next text as a report reason.
// targetID 0 means the current chat partner.
func (s *Service) BeginReport(ctx context.Context, reporterID, targetID uint64) (uint64, error) {
	if _, err := service.Actor(ctx, s.profiles, reporterID); err != nil {
		return 0, err
	}

	if targetID == 0 {
		partner, ok, err := s.sessions.PartnerOf(ctx, reporterID)
		if err != nil {
			return 0, fmt.Errorf("session state: %w", err)
		}
		if !ok {
			return 0, svcErr.ErrNothingToReport
		}
		targetID = partner
	}
	if targetID == reporterID {
		return 0, svcErr.ErrSelf
	}
	// banned users can still be reported; only existence matters
	if _, err := service.Target(ctx, s.profiles, targetID); err != nil && !errors.Is(err, svcErr.ErrUserUnavailable) {
		return 0, err
	}

	if err := s.intents.Set(ctx, reporterID, intent.Intent{Kind: intent.KindReportReason, TargetID: targetID}); err != nil {
		return 0, err
	}
	s.notifier.Tell(ctx, reporterID,
		fmt.Sprintf("⚠️ Please describe the reason for your report (max %d characters), or send /cancel.", MaxReasonLength))
	return targetID, nil
}

// SubmitReport files the pending report with reason.
// A reason that is too long keeps the intent so the user can retry.
func (s *Service) SubmitReport(ctx context.Context, reporterID uint64, reason string) (uint64, error) {
	in, err := s.intents.Get(ctx, reporterID)
	if err != nil {
		return 0, err
	}
	if in.Kind != intent.KindReportReason {
		return 0, svcErr.ErrNothingToReport
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return 0, svcErr.ErrEmptyMessage
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return 0, svcErr.ErrReasonTooLong
	}

	rep, err := s.reports.Create(ctx, reporterID, in.TargetID, reason)
	if err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	if err := s.intents.Clear(ctx, reporterID); err != nil {
		s.appCtx.Logger.Warn("report intent not cleared", "user_id", reporterID, "err", err)
	}

	s.appCtx.Logger.Info("report filed",
		"report_id", rep.ID, "reporter_id", reporterID, "reported_id", in.TargetID)
	s.notifier.Tell(ctx, reporterID, "✅ Thank you. Your report has been submitted for review.")

	if admin := s.appCtx.Config.Admin.UserID; admin != 0 {
		s.notifier.Tell(ctx, admin, fmt.Sprintf(
			"🚨 New report #%d\nReporter: %d\nReported: %d\nReason: %s",
			rep.ID, reporterID, in.TargetID, reason))
	}
	return rep.ID, nil
}

// Cancel drops any armed intent. It reports whether one was set.
func (s *Service) Cancel(ctx context.Context, userID uint64) (bool, error) {
	in, err := s.intents.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if in.Kind == intent.KindNone {
		return false, nil
	}
	if err := s.intents.Clear(ctx, userID); err != nil {
		return false, err
	}
	s.notifier.Tell(ctx, userID, "Cancelled.")
	return true, nil
}

// Intent exposes the user's current intent to the inbound dispatcher.
func (s *Service) Intent(ctx context.Context, userID uint64) (intent.Intent, error) {
	return s.intents.Get(ctx, userID)
}
