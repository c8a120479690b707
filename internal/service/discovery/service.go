package discovery

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/repository"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/utils/pagination"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

// Candidate is a profile the requester may swipe on, with a cosmetic
// affinity score.
type Candidate struct {
	profile.Public
	MatchPercent    int      `json:"match_percent"`
	SharedInterests []string `json:"shared_interests"`
}

type Service struct {
	appCtx   *app.AppContext
	userRepo *repository.UserRepository
	randIntN func(n int) int
}

func NewDiscoveryService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		userRepo: repository.NewUserRepository(appCtx.DB),
		randIntN: rand.IntN,
	}
}

// Candidates returns up to limit random profiles userID has not swiped on
// and is not matched with, filtered by the requester's show_me.
func (s *Service) Candidates(ctx context.Context, userID uint64, limit int) ([]Candidate, error) {
	s.appCtx.Logger.Debug("Candidates called", "user", userID, "limit", limit)

	me, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("user not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	gender := ""
	switch me.ShowMe {
	case db.ShowMale, db.ShowFemale:
		gender = me.ShowMe
	}

	users, err := s.userRepo.Candidates(ctx, userID, gender, pagination.ClampLimit(limit, defaultLimit, maxLimit))
	if err != nil {
		s.appCtx.Logger.Error("Candidates query failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}

	mine := me.Interests.OrEmpty()
	out := make([]Candidate, 0, len(users))
	for i := range users {
		pub := profile.Sanitize(&users[i])
		percent, shared := Affinity(mine, pub.Interests, s.randIntN)
		out = append(out, Candidate{Public: *pub, MatchPercent: percent, SharedInterests: shared})
	}

	s.appCtx.Logger.Debug("Candidates result", "user", userID, "count", len(out))
	return out, nil
}

// Affinity scores candidate interests against the requester's.
//
// With requester interests the score is min(99, round(shared/len(requester)*100 + 40)),
// counting candidate tags present in the requester's list (case-sensitive).
// Without any, it is a random value in [60, 90) drawn from randIntN.
//
// Example:
//
//	Affinity([]string{"Music", "Art"}, []string{"Music", "Chess"}, rand.IntN) // 90, [Music]
func Affinity(requester, candidate []string, randIntN func(int) int) (int, []string) {
	shared := []string{}
	if len(requester) == 0 {
		return 60 + randIntN(30), shared
	}

	have := make(map[string]struct{}, len(requester))
	for _, tag := range requester {
		have[tag] = struct{}{}
	}
	for _, tag := range candidate {
		if _, ok := have[tag]; ok {
			shared = append(shared, tag)
		}
	}

	score := int(math.Round(float64(len(shared))/float64(len(requester))*100 + 40))
	return min(99, score), shared
}
