package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/db"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) Create(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveByID returns the user only while the account is active.
func (r *UserRepository) GetActiveByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up an already-normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// Update applies a column -> value set to one user. Zero values are written.
// Callers resolve the user first; a missing id is not reported.
func (r *UserRepository) Update(ctx context.Context, id uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&db.User{ID: id}).Updates(fields).Error
}

func (r *UserRepository) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.Update(ctx, id, map[string]any{"active": active})
}

func (r *UserRepository) SetPassword(ctx context.Context, id uint64, hash string) error {
	return r.Update(ctx, id, map[string]any{"password_hash": hash})
}

// Candidates selects users userID can still swipe on.
//
// Behavior:
//   - Active users only, never userID itself.
//   - Excludes anyone userID already swiped (like or pass).
//   - Excludes anyone already matched with userID.
//   - gender narrows the set when non-empty.
//   - Random order, capped at limit.
func (r *UserRepository) Candidates(ctx context.Context, userID uint64, gender string, limit int) ([]db.User, error) {
	swiped := r.db.Model(&db.Swipe{}).Select("target_id").Where("actor_id = ?", userID)
	matchedHi := r.db.Model(&db.Match{}).Select("user2_id").Where("user1_id = ?", userID)
	matchedLo := r.db.Model(&db.Match{}).Select("user1_id").Where("user2_id = ?", userID)

	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id <> ? AND active = ?", userID, true).
		Where("id NOT IN (?)", swiped).
		Where("id NOT IN (?)", matchedHi).
		Where("id NOT IN (?)", matchedLo)
	if gender != "" {
		query = query.Where("gender = ?", gender)
	}

	users := []db.User{}
	err := query.Order(db.RandomOrder(r.db)).Limit(limit).Find(&users).Error
	return users, err
}

// DeleteCascade removes a user and every row referencing them.
//
// Behavior:
//   - One transaction, in dependency order: swipes and reports on either
//     side, messages of the user's matches, the matches, then the user.
//   - Returns gorm.ErrRecordNotFound if the user did not exist.
func (r *UserRepository) DeleteCascade(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("actor_id = ? OR target_id = ?", id, id).Delete(&db.Swipe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reporter_id = ? OR reported_id = ?", id, id).Delete(&db.Report{}).Error; err != nil {
			return err
		}

		var matchIDs []uint64
		if err := tx.Model(&db.Match{}).
			Where("user1_id = ? OR user2_id = ?", id, id).
			Pluck("id", &matchIDs).Error; err != nil {
			return err
		}
		if len(matchIDs) > 0 {
			if err := tx.Where("match_id IN ?", matchIDs).Delete(&db.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", matchIDs).Delete(&db.Match{}).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&db.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
