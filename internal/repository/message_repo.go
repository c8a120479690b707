package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/db"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// MessageView is a message joined with sender display fields and a preview
// of the message it replies to.
type MessageView struct {
	ID            uint64    `json:"id"`
	MatchID       uint64    `json:"match_id"`
	SenderID      uint64    `json:"sender_id"`
	Text          string    `json:"text"`
	ImageURL      *string   `json:"image_url"`
	VoiceURL      *string   `json:"voice_url"`
	ReplyToID     *uint64   `json:"reply_to_id"`
	Read          bool      `json:"is_read" gorm:"column:is_read"`
	CreatedAt     time.Time `json:"created_at"`
	SenderName    string    `json:"sender_name"`
	SenderPhoto   string    `json:"sender_photo"`
	ReplyToText   *string   `json:"reply_to_text"`
	ReplyToSender *string   `json:"reply_to_sender"`
}

func (r *MessageRepository) views(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("messages m").
		Select(`m.id, m.match_id, m.sender_id, COALESCE(m.text, '') AS text,
			m.image_url, m.voice_url, m.reply_to_id, m.is_read, m.created_at,
			u.name AS sender_name, COALESCE(u.photo, '') AS sender_photo,
			rm.text AS reply_to_text, ru.name AS reply_to_sender`).
		Joins("JOIN users u ON u.id = m.sender_id").
		Joins("LEFT JOIN messages rm ON rm.id = m.reply_to_id").
		Joins("LEFT JOIN users ru ON ru.id = rm.sender_id")
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id uint64) (*db.Message, error) {
	var m db.Message
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// View returns one message as a MessageView.
func (r *MessageRepository) View(ctx context.Context, id uint64) (*MessageView, error) {
	var views []MessageView
	if err := r.views(ctx).Where("m.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &views[0], nil
}

// ListViews returns the conversation of a match in insertion order.
func (r *MessageRepository) ListViews(ctx context.Context, matchID uint64) ([]MessageView, error) {
	views := []MessageView{}
	err := r.views(ctx).
		Where("m.match_id = ?", matchID).
		Order("m.created_at ASC, m.id ASC").
		Scan(&views).Error
	return views, err
}

// Delete removes a single message.
func (r *MessageRepository) Delete(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Delete(&db.Message{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkRead flips the read flag of every unread message in matchID that was
// not sent by readerID and returns how many rows changed.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND sender_id <> ? AND is_read = ?", matchID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// LatestByMatch returns the newest message of each given match.
func (r *MessageRepository) LatestByMatch(ctx context.Context, matchIDs []uint64) (map[uint64]db.Message, error) {
	out := make(map[uint64]db.Message, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	latest := r.db.
		Model(&db.Message{}).
		Select("MAX(id)").
		Where("match_id IN ?", matchIDs).
		Group("match_id")

	var msgs []db.Message
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.MatchID] = m
	}
	return out, nil
}

// UnreadCounts returns, per match, how many messages readerID has not read.
func (r *MessageRepository) UnreadCounts(ctx context.Context, matchIDs []uint64, readerID uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		MatchID uint64
		Unread  int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("match_id, COUNT(*) AS unread").
		Where("match_id IN ? AND sender_id <> ? AND is_read = ?", matchIDs, readerID, false).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MatchID] = row.Unread
	}
	return out, nil
}
