package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campusknot/internal/db"
	"github.com/oggyb/campusknot/internal/utils/pagination"
)

// SwipeRepository provides data access methods for the Swipe model.
// It encapsulates all queries related to likes/passes between users.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// ReceivedLike is a liker's profile row joined with the swipe that liked.
type ReceivedLike struct {
	db.User
	SwipeID   uint64
	SuperLike bool
	LikedAt   time.Time
}

// Record inserts the swipe actor -> target unless one already exists.
//
// Behavior:
//   - Single INSERT ... ON CONFLICT DO NOTHING on (actor_id, target_id).
//   - inserted is false when a row already existed; that row is left as is,
//     even if its decision differs.
//
// Example:
//
//	repo.Record(ctx, 1, 2, db.DecisionLike, false) // user 1 liked user 2
func (r *SwipeRepository) Record(
	ctx context.Context,
	actorID, targetID uint64,
	decision db.Decision,
	superLike bool,
) (inserted bool, err error) {
	swipe := db.Swipe{
		ActorID:   actorID,
		TargetID:  targetID,
		Decision:  decision,
		SuperLike: superLike,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoNothing: true,
		}).
		Create(&swipe)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasLiked checks whether an actor has liked a target (super-likes included).
func (r *SwipeRepository) HasLiked(ctx context.Context, actorID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND target_id = ? AND decision = ?", actorID, targetID, db.DecisionLike).
		Count(&count).Error
	return count > 0, err
}

// Get returns the swipe actor -> target.
func (r *SwipeRepository) Get(ctx context.Context, actorID, targetID uint64) (*db.Swipe, error) {
	var s db.Swipe
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ReceivedLikes returns active users who liked userID and are not matched
// with them yet.
//
// Behavior:
//   - Ordered by super_like DESC, created_at DESC, swipe id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ReceivedLikes(ctx, 42, nil, 20) // first 20 pending likers of user 42
func (r *SwipeRepository) ReceivedLikes(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]ReceivedLike, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("swipes s").
		Select("u.*, s.id AS swipe_id, s.super_like AS super_like, s.created_at AS liked_at").
		Joins("JOIN users u ON u.id = s.actor_id").
		Where("s.target_id = ? AND s.decision = ? AND u.active = ?", userID, db.DecisionLike, true).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM matches m
				WHERE (m.user1_id = s.actor_id AND m.user2_id = s.target_id)
				   OR (m.user1_id = s.target_id AND m.user2_id = s.actor_id)
			)`).
		Order("s.super_like DESC, s.created_at DESC, s.id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(s.super_like < ? OR (s.super_like = ? AND (s.created_at < ? OR (s.created_at = ? AND s.id < ?))))",
			cursor.Super, cursor.Super, ts, ts, cursor.ID,
		)
	}

	var likes []ReceivedLike
	if err := query.Scan(&likes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.SwipeID,
			CreatedUnix: last.LikedAt.UnixMilli(),
			Super:       last.SuperLike,
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikesGiven counts likes recorded by userID.
func (r *SwipeRepository) CountLikesGiven(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND decision = ?", userID, db.DecisionLike).
		Count(&count).Error
	return count, err
}

// CountLikesReceived counts likes targeting userID.
//
// Used in conjunction with Redis cache (DB is fallback).
func (r *SwipeRepository) CountLikesReceived(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("target_id = ? AND decision = ?", userID, db.DecisionLike).
		Count(&count).Error
	return count, err
}

// LikedTargets lists the users actorID has liked.
func (r *SwipeRepository) LikedTargets(ctx context.Context, actorID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND decision = ?", actorID, db.DecisionLike).
		Pluck("target_id", &ids).Error
	return ids, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
