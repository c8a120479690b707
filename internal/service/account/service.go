package account

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/repository"
)

const (
	maxReasonLen  = 64
	maxDetailsLen = 1000
)

// Service covers account lifecycle and moderation.
type Service struct {
	appCtx     *app.AppContext
	userRepo   *repository.UserRepository
	swipeRepo  *repository.SwipeRepository
	reportRepo *repository.ReportRepository
}

func NewAccountService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:     appCtx,
		userRepo:   repository.NewUserRepository(appCtx.DB),
		swipeRepo:  repository.NewSwipeRepository(appCtx.DB),
		reportRepo: repository.NewReportRepository(appCtx.DB),
	}
}

func (s *Service) exists(ctx context.Context, userID uint64) error {
	_, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound("user not found")
	}
	return svcErr.Map(err)
}

// Deactivate hides the account until its next login.
func (s *Service) Deactivate(ctx context.Context, userID uint64) error {
	if err := s.exists(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.SetActive(ctx, userID, false); err != nil {
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Info("account deactivated", "user_id", userID)
	return nil
}

// Delete removes the account and everything referencing it.
//
// Behavior:
//   - Swipes, reports, the user's matches with their messages, then the user,
//     in one transaction.
//   - Cached received-like counters of users the account had liked are
//     dropped so they are recounted.
func (s *Service) Delete(ctx context.Context, userID uint64) error {
	liked, err := s.swipeRepo.LikedTargets(ctx, userID)
	if err != nil {
		return svcErr.Map(err)
	}

	if err := s.userRepo.DeleteCascade(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user not found")
		}
		s.appCtx.Logger.Error("account delete failed", "user_id", userID, "err", err)
		return svcErr.Map(err)
	}

	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.DropLikeCounts(ctx, append(liked, userID)...); err != nil {
			s.appCtx.Logger.Warn("failed to drop like counters", "user_id", userID, "err", err)
		}
	}
	s.appCtx.Logger.Info("account deleted", "user_id", userID, "liked_targets", len(liked))
	return nil
}

// Report files a moderation report against reportedID.
func (s *Service) Report(ctx context.Context, reporterID, reportedID uint64, reason, details string) error {
	reason = strings.TrimSpace(reason)
	details = strings.TrimSpace(details)
	if reportedID == 0 || reason == "" {
		return svcErr.InvalidInput("reported_id and reason are required")
	}
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return svcErr.InvalidInput("reason must be at most 64 characters")
	}
	if utf8.RuneCountInString(details) > maxDetailsLen {
		return svcErr.InvalidInput("details must be at most 1000 characters")
	}
	if reporterID == reportedID {
		return svcErr.InvalidInput("cannot report yourself")
	}
	if err := s.exists(ctx, reportedID); err != nil {
		return err
	}

	report := &db.Report{ReporterID: reporterID, ReportedID: reportedID, Reason: reason, Details: details}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Info("user reported", "report_id", report.ID, "reporter", reporterID, "reported", reportedID, "reason", reason)
	return nil
}

// Online reports whether userID currently has a live session.
func (s *Service) Online(ctx context.Context, userID uint64) (bool, error) {
	online, err := s.appCtx.Presence.Online(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Warn("presence lookup failed", "user_id", userID, "err", err)
		return false, svcErr.Upstream("presence unavailable", err)
	}
	return online, nil
}
