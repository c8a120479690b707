package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campusknot/internal/db"
)

// MatchRepository owns the matches table and the messages it owns.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// MatchPeer is a match of the caller joined with the other member's row.
type MatchPeer struct {
	db.User
	MatchID   uint64
	MatchedAt time.Time
}

// CreateIfAbsent creates the match for the unordered pair {a, b}.
//
// Behavior:
//   - The pair is stored canonically (lower id, higher id).
//   - Compare-and-insert: INSERT ... ON CONFLICT DO NOTHING, then, when no
//     row was inserted, read the existing row. A concurrent reciprocal swipe
//     that loses the race therefore sees the winner's match as a normal
//     success. The unique index is the only arbiter; no locks are taken.
//   - created reports whether this call inserted the row.
//
// Example:
//
//	m, created, err := repo.CreateIfAbsent(ctx, 9, 4) // stores (4, 9)
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b uint64) (*db.Match, bool, error) {
	lo, hi := db.CanonicalPair(a, b)
	m := db.Match{User1ID: lo, User2ID: hi}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, false, res.Error
	}
	if res.Error == nil && res.RowsAffected > 0 && m.ID != 0 {
		return &m, true, nil
	}

	existing, err := r.GetByPair(ctx, lo, hi)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByPair returns the match of {a, b} in either order.
func (r *MatchRepository) GetByPair(ctx context.Context, a, b uint64) (*db.Match, error) {
	lo, hi := db.CanonicalPair(a, b)
	var m db.Match
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", lo, hi).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID uint64) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).First(&m, matchID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetForMember returns the match only if userID belongs to it; otherwise
// gorm.ErrRecordNotFound.
func (r *MatchRepository) GetForMember(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).
		Where("id = ? AND (user1_id = ? OR user2_id = ?)", matchID, userID, userID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns every match of userID with the other member joined in.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]MatchPeer, error) {
	var peers []MatchPeer
	err := r.db.WithContext(ctx).
		Table("matches m").
		Select("u.*, m.id AS match_id, m.created_at AS matched_at").
		Joins("JOIN users u ON u.id = CASE WHEN m.user1_id = ? THEN m.user2_id ELSE m.user1_id END", userID).
		Where("m.user1_id = ? OR m.user2_id = ?", userID, userID).
		Order("m.created_at DESC, m.id DESC").
		Scan(&peers).Error
	return peers, err
}

// CountForUser counts matches that include userID.
func (r *MatchRepository) CountForUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}

// DeleteWithMessages removes a match and everything it owns.
//
// Behavior:
//   - One transaction: all messages of the match first, then the match row,
//     so no message can outlive its match.
//   - Returns gorm.ErrRecordNotFound if the match did not exist.
func (r *MatchRepository) DeleteWithMessages(ctx context.Context, matchID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", matchID).Delete(&db.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&db.Match{}, matchID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
