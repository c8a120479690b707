package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedTestData(t *testing.T) {
	database, err := OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(database) })

	require.NoError(t, SeedTestData(database, SeedOptions{Users: 10, SwipesPerUser: 6, Reset: true}))

	var users int64
	require.NoError(t, database.Model(&User{}).Count(&users).Error)
	assert.Equal(t, int64(10), users)

	var matches []Match
	require.NoError(t, database.Find(&matches).Error)
	for _, m := range matches {
		assert.Less(t, m.User1ID, m.User2ID)

		var likes int64
		require.NoError(t, database.Model(&Swipe{}).
			Where("decision = ? AND ((actor_id = ? AND target_id = ?) OR (actor_id = ? AND target_id = ?))",
				DecisionLike, m.User1ID, m.User2ID, m.User2ID, m.User1ID).
			Count(&likes).Error)
		assert.Equal(t, int64(2), likes, "match %d must be backed by two likes", m.ID)
	}

	var u User
	require.NoError(t, database.First(&u).Error)
	assert.NotEmpty(t, u.Interests)
	assert.True(t, u.Verified)
}
