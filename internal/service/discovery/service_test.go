package discovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/service/discovery"
	"github.com/oggyb/campusknot/internal/testutil"
)

func fixed(n int) func(int) int { return func(int) int { return n } }

func TestAffinity(t *testing.T) {
	score, shared := discovery.Affinity([]string{"Music", "Art"}, []string{"Music", "Chess"}, fixed(0))
	assert.Equal(t, 90, score)
	assert.Equal(t, []string{"Music"}, shared)

	score, _ = discovery.Affinity([]string{"Music"}, []string{"Music"}, fixed(0))
	assert.Equal(t, 99, score, "capped")

	score, shared = discovery.Affinity([]string{"Music"}, []string{"music"}, fixed(0))
	assert.Equal(t, 40, score, "case-sensitive")
	assert.Empty(t, shared)

	score, shared = discovery.Affinity(nil, []string{"Music"}, fixed(29))
	assert.Equal(t, 89, score)
	assert.NotNil(t, shared)
}

func TestCandidates_Exclusions(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := discovery.NewDiscoveryService(appCtx)

	me := testutil.CreateUser(t, appCtx, "Me", "female", "Music", "Art")
	fresh := testutil.CreateUser(t, appCtx, "Fresh", "male", "Music", "Chess")
	swiped := testutil.CreateUser(t, appCtx, "Swiped", "male")
	matched := testutil.CreateUser(t, appCtx, "Matched", "male")
	inactive := testutil.CreateUser(t, appCtx, "Inactive", "male")
	testutil.Deactivate(t, appCtx, inactive)

	require.NoError(t, appCtx.DB.Create(&db.Swipe{ActorID: me.ID, TargetID: swiped.ID, Decision: db.DecisionPass}).Error)
	lo, hi := db.CanonicalPair(me.ID, matched.ID)
	require.NoError(t, appCtx.DB.Create(&db.Match{User1ID: lo, User2ID: hi}).Error)

	got, err := svc.Candidates(ctx, me.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
	assert.Equal(t, 90, got[0].MatchPercent)
	assert.Equal(t, []string{"Music"}, got[0].SharedInterests)
}

func TestCandidates_ShowMeFilter(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := discovery.NewDiscoveryService(appCtx)

	me := testutil.CreateUser(t, appCtx, "Me", "male")
	require.NoError(t, appCtx.DB.Model(me).Update("show_me", db.ShowFemale).Error)
	her := testutil.CreateUser(t, appCtx, "Her", "female")
	testutil.CreateUser(t, appCtx, "Him", "male")

	got, err := svc.Candidates(ctx, me.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, her.ID, got[0].ID)
	assert.GreaterOrEqual(t, got[0].MatchPercent, 60)
	assert.Less(t, got[0].MatchPercent, 90)
}

func TestCandidates_UnknownUser(t *testing.T) {
	appCtx, _ := testutil.NewAppContext(t)
	svc := discovery.NewDiscoveryService(appCtx)

	_, err := svc.Candidates(context.Background(), 77, 10)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}
