package matching

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/live"
	"github.com/oggyb/campusknot/internal/repository"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/utils/pagination"
)

// Swipe actions accepted from clients.
const (
	ActionLike      = "like"
	ActionPass      = "pass"
	ActionSuperLike = "super_like"
)

const (
	defaultLikesLimit = 50
	maxLikesLimit     = 100
)

// Outcome is the result of one swipe.
type Outcome struct {
	AlreadyRecorded bool            `json:"already_recorded"`
	Matched         bool            `json:"matched"`
	MatchID         uint64          `json:"match_id,omitempty"`
	Other           *profile.Public `json:"matched_user,omitempty"`
}

// MatchFound is the live payload sent to each member of a new match.
type MatchFound struct {
	MatchID     uint64          `json:"matchId"`
	MatchedUser *profile.Public `json:"matchedUser"`
}

// SuperLikeReceived is the live payload sent to a super-liked user.
type SuperLikeReceived struct {
	FromUserID uint64 `json:"fromUserId"`
	Name       string `json:"name"`
	Photo      string `json:"photo"`
}

// ReceivedLike is one pending liker.
type ReceivedLike struct {
	User        *profile.Public `json:"user"`
	IsSuperLike bool            `json:"is_super_like"`
	LikedAt     time.Time       `json:"liked_at"`
}

// LikesPage is one page of ReceivedLikes.
type LikesPage struct {
	Likes         []ReceivedLike `json:"likes"`
	NextPageToken *string        `json:"next_page_token,omitempty"`
}

// Stats are the caller's activity counters.
type Stats struct {
	Matches       int64 `json:"matches"`
	LikesGiven    int64 `json:"likes_given"`
	LikesReceived int64 `json:"likes_received"`
}

// Service records swipes and turns reciprocal likes into matches.
// It contains the business logic on top of repository and cache layers.
type Service struct {
	appCtx    *app.AppContext
	swipeRepo *repository.SwipeRepository
	matchRepo *repository.MatchRepository
	userRepo  *repository.UserRepository
}

// NewMatchingService creates the service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via Swipe, Match and User repositories)
//   - RedisCache for like counters (optional)
//   - Notifier for match and super-like events
func NewMatchingService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		swipeRepo: repository.NewSwipeRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
		userRepo:  repository.NewUserRepository(appCtx.DB),
	}
}

// RecordSwipe stores actor's decision on target and resolves a match.
//
// Behavior:
//   - action is like, pass or super_like; super_like is a like with a flag.
//   - A repeated swipe on the same target is a no-op reported as
//     AlreadyRecorded, whatever the new action.
//   - A like whose reciprocal like exists creates the match (at most once,
//     even under concurrent retries) and sends match_found to both members.
//   - A super-like without a reciprocal like sends super_like_received to
//     the target.
//
// Example:
//
//	svc.RecordSwipe(ctx, 1, 2, "like") // user 1 likes user 2
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID uint64, action string) (*Outcome, error) {
	s.appCtx.Logger.Debug("RecordSwipe called", "actor", actorID, "target", targetID, "action", action)

	var (
		decision db.Decision
		super    bool
	)
	switch action {
	case ActionLike:
		decision = db.DecisionLike
	case ActionSuperLike:
		decision, super = db.DecisionLike, true
	case ActionPass:
		decision = db.DecisionPass
	default:
		return nil, svcErr.InvalidInput("action must be one of like, pass, super_like")
	}
	if targetID == 0 {
		return nil, svcErr.InvalidInput("target_id is required")
	}
	if actorID == targetID {
		return nil, svcErr.InvalidInput("cannot swipe on yourself")
	}

	target, err := s.userRepo.GetActiveByID(ctx, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("user not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	inserted, err := s.swipeRepo.Record(ctx, actorID, targetID, decision, super)
	if err != nil {
		s.appCtx.Logger.Error("Record swipe failed", "actor", actorID, "target", targetID, "err", err)
		return nil, svcErr.Map(err)
	}
	if !inserted {
		s.appCtx.Logger.Debug("swipe already recorded", "actor", actorID, "target", targetID)
		return &Outcome{AlreadyRecorded: true}, nil
	}
	if decision != db.DecisionLike {
		return &Outcome{}, nil
	}

	// best-effort cache invalidation; the next Stats recounts
	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.DropLikeCounts(ctx, targetID); err != nil {
			s.appCtx.Logger.Warn("failed to invalidate like counter", "target", targetID, "err", err)
		}
	}

	reciprocal, err := s.swipeRepo.HasLiked(ctx, targetID, actorID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !reciprocal {
		if super {
			s.notifySuperLike(ctx, actorID, targetID)
		}
		return &Outcome{}, nil
	}

	match, created, err := s.matchRepo.CreateIfAbsent(ctx, actorID, targetID)
	if err != nil {
		s.appCtx.Logger.Error("CreateIfAbsent failed", "actor", actorID, "target", targetID, "err", err)
		return nil, svcErr.Map(err)
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	actorPublic, targetPublic := profile.Sanitize(actor), profile.Sanitize(target)

	if created {
		s.appCtx.Logger.Info("match created", "match_id", match.ID, "user1", match.User1ID, "user2", match.User2ID)
		s.appCtx.Notifier.Notify(ctx, actorID, live.EventMatchFound, MatchFound{MatchID: match.ID, MatchedUser: targetPublic})
		s.appCtx.Notifier.Notify(ctx, targetID, live.EventMatchFound, MatchFound{MatchID: match.ID, MatchedUser: actorPublic})
	}

	return &Outcome{Matched: true, MatchID: match.ID, Other: targetPublic}, nil
}

func (s *Service) notifySuperLike(ctx context.Context, actorID, targetID uint64) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		s.appCtx.Logger.Warn("super-like sender lookup failed", "actor", actorID, "err", err)
		return
	}
	s.appCtx.Notifier.Notify(ctx, targetID, live.EventSuperLike, SuperLikeReceived{
		FromUserID: actor.ID,
		Name:       actor.Name,
		Photo:      actor.Photo,
	})
}

// ReceivedLikes returns active users who liked userID and are not matched
// with them yet.
//
// Behavior:
//   - Super-likes first, then newest first.
//   - Supports cursor-based pagination with pageToken.
//   - limit defaults to 50 and is capped at 100.
//
// Example:
//
//	svc.ReceivedLikes(ctx, 42, nil, 20)
func (s *Service) ReceivedLikes(ctx context.Context, userID uint64, pageToken *string, limit int) (*LikesPage, error) {
	s.appCtx.Logger.Debug("ReceivedLikes called", "user", userID, "token", pageToken)

	if pageToken != nil && *pageToken != "" {
		if _, err := pagination.Decode(*pageToken); err != nil {
			return nil, svcErr.InvalidInput("invalid page_token")
		}
	}
	limit = pagination.ClampLimit(limit, defaultLikesLimit, maxLikesLimit)

	rows, next, err := s.swipeRepo.ReceivedLikes(ctx, userID, pageToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ReceivedLikes failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}

	page := &LikesPage{Likes: make([]ReceivedLike, 0, len(rows)), NextPageToken: next}
	for i := range rows {
		page.Likes = append(page.Likes, ReceivedLike{
			User:        profile.Sanitize(&rows[i].User),
			IsSuperLike: rows[i].SuperLike,
			LikedAt:     rows[i].LikedAt,
		})
	}

	s.appCtx.Logger.Debug("ReceivedLikes result", "count", len(page.Likes), "has_next", next != nil)
	return page, nil
}

// Stats returns match and like counters for userID.
//
// Behavior:
//   - likes_received is read from Redis when cached; on a miss it is counted
//     in the DB and written back unless a like landed during the count.
//   - New likes invalidate the cached counter.
//   - Redis failures fall back to the DB.
func (s *Service) Stats(ctx context.Context, userID uint64) (*Stats, error) {
	matches, err := s.matchRepo.CountForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	given, err := s.swipeRepo.CountLikesGiven(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	received, err := s.likesReceived(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &Stats{Matches: matches, LikesGiven: given, LikesReceived: received}, nil
}

func (s *Service) likesReceived(ctx context.Context, userID uint64) (int64, error) {
	if s.appCtx.RedisCache != nil {
		n, found, err := s.appCtx.RedisCache.GetLikeCount(ctx, userID)
		if err == nil && found {
			return n, nil
		}
		if err != nil {
			s.appCtx.Logger.Warn("like counter read failed, using DB", "user", userID, "err", err)
		}
	}

	var token string
	if s.appCtx.RedisCache != nil {
		t, err := s.appCtx.RedisCache.BeginLikeCountFill(ctx, userID)
		if err != nil {
			s.appCtx.Logger.Warn("like counter fill failed", "user", userID, "err", err)
		}
		token = t
	}

	n, err := s.swipeRepo.CountLikesReceived(ctx, userID)
	if err != nil {
		return 0, err
	}
	if token != "" {
		stored, err := s.appCtx.RedisCache.CommitLikeCountFill(ctx, userID, token, n)
		if err != nil {
			s.appCtx.Logger.Warn("failed to cache like counter", "user", userID, "err", err)
		} else if !stored {
			s.appCtx.Logger.Debug("like counter changed during recount, not cached", "user", userID)
		}
	}
	return n, nil
}
