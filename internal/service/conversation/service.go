package conversation

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/live"
	"github.com/oggyb/campusknot/internal/repository"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/storage"
)

// MaxTextLen is the longest accepted message text, in characters.
const MaxTextLen = 2000

// SendInput is one outgoing message. At least one of Text, Image and Voice
// must be present.
type SendInput struct {
	MatchID   uint64
	SenderID  uint64
	Text      string
	Image     *storage.Upload
	Voice     *storage.Upload
	ReplyToID *uint64
}

// LastMessage previews the newest message of a match.
type LastMessage struct {
	Text     string    `json:"text"`
	HasImage bool      `json:"has_image"`
	HasVoice bool      `json:"has_voice"`
	Mine     bool      `json:"is_mine"`
	SentAt   time.Time `json:"sent_at"`
}

// MatchSummary is one entry of the caller's match list.
type MatchSummary struct {
	MatchID     uint64          `json:"match_id"`
	User        *profile.Public `json:"user"`
	MatchedAt   time.Time       `json:"matched_at"`
	LastMessage *LastMessage    `json:"last_message"`
	UnreadCount int64           `json:"unread_count"`
}

func (m MatchSummary) lastActivity() time.Time {
	if m.LastMessage != nil {
		return m.LastMessage.SentAt
	}
	return m.MatchedAt
}

// MessageDeleted is the live payload of a removed message.
type MessageDeleted struct {
	MessageID uint64 `json:"messageId"`
	MatchID   uint64 `json:"matchId"`
}

// MessagesRead tells the sender their messages were read.
type MessagesRead struct {
	MatchID uint64 `json:"matchId"`
	ReadBy  uint64 `json:"readBy"`
}

// Service owns matches' conversations: listing, sending, read state,
// deletion and unmatching.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
}

func NewConversationService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
	}
}

// member returns the match if userID belongs to it, Forbidden otherwise.
func (s *Service) member(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	m, err := s.matchRepo.GetForMember(ctx, matchID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Forbidden("not your match")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return m, nil
}

// ListMessages returns the conversation of matchID in insertion order.
func (s *Service) ListMessages(ctx context.Context, matchID, callerID uint64) ([]repository.MessageView, error) {
	if _, err := s.member(ctx, matchID, callerID); err != nil {
		return nil, err
	}
	views, err := s.messageRepo.ListViews(ctx, matchID)
	if err != nil {
		s.appCtx.Logger.Error("ListViews failed", "match_id", matchID, "err", err)
		return nil, svcErr.Map(err)
	}
	return views, nil
}

// SendMessage stores a message and relays it live.
//
// Behavior:
//   - Only a member of the match may send.
//   - Text is trimmed and limited to 2000 characters.
//   - A reply must point at a message of the same match.
//   - Media are stored before the message row is written.
//   - new_message goes to the other member, message_sent to the sender.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (*repository.MessageView, error) {
	match, err := s.member(ctx, in.MatchID, in.SenderID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == nil && in.Voice == nil {
		return nil, svcErr.InvalidInput("message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxTextLen {
		return nil, svcErr.InvalidInput("message too long (max 2000 characters)")
	}

	maxMedia := s.appCtx.Config.Upload.MediaMaxBytes
	if in.Image != nil {
		if err := storage.CheckImage(*in.Image, maxMedia); err != nil {
			return nil, err
		}
	}
	if in.Voice != nil {
		if err := storage.CheckAudio(*in.Voice, maxMedia); err != nil {
			return nil, err
		}
	}

	if in.ReplyToID != nil {
		parent, err := s.messageRepo.GetByID(ctx, *in.ReplyToID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.MatchID != match.ID) {
			return nil, svcErr.InvalidInput("reply_to_id must reference a message in this match")
		}
		if err != nil {
			return nil, svcErr.Map(err)
		}
	}

	msg := &db.Message{MatchID: match.ID, SenderID: in.SenderID, Text: text, ReplyToID: in.ReplyToID}
	if in.Image != nil {
		url, err := s.store(ctx, "chat-images", in.SenderID, *in.Image)
		if err != nil {
			return nil, err
		}
		msg.ImageURL = &url
	}
	if in.Voice != nil {
		url, err := s.store(ctx, "voice-notes", in.SenderID, *in.Voice)
		if err != nil {
			return nil, err
		}
		msg.VoiceURL = &url
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.appCtx.Logger.Error("message insert failed", "match_id", match.ID, "err", err)
		return nil, svcErr.Map(err)
	}
	view, err := s.messageRepo.View(ctx, msg.ID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.appCtx.Notifier.Notify(ctx, match.Other(in.SenderID), live.EventNewMessage, view)
	s.appCtx.Notifier.Notify(ctx, in.SenderID, live.EventMessageSent, view)

	s.appCtx.Logger.Debug("message sent", "match_id", match.ID, "message_id", msg.ID, "sender", in.SenderID)
	return view, nil
}

func (s *Service) store(ctx context.Context, kind string, userID uint64, up storage.Upload) (string, error) {
	if s.appCtx.Storage == nil {
		return "", svcErr.Upstream("media storage unavailable", nil)
	}
	url, err := s.appCtx.Storage.Put(ctx, storage.ObjectKey(kind, userID, up.Filename), up)
	if err != nil {
		s.appCtx.Logger.Error("media upload failed", "kind", kind, "user_id", userID, "err", err)
		return "", svcErr.Upstream("upload failed", err)
	}
	return url, nil
}

// MarkRead marks the other member's messages in matchID as read by callerID
// and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, matchID, callerID uint64) (int64, error) {
	match, err := s.member(ctx, matchID, callerID)
	if err != nil {
		return 0, err
	}
	changed, err := s.messageRepo.MarkRead(ctx, matchID, callerID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if changed > 0 {
		s.appCtx.Notifier.Notify(ctx, match.Other(callerID), live.EventMessagesRead,
			MessagesRead{MatchID: matchID, ReadBy: callerID})
	}
	return changed, nil
}

// DeleteMessage removes a message sent by callerID and tells both members.
func (s *Service) DeleteMessage(ctx context.Context, messageID, callerID uint64) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound("message not found")
	}
	if err != nil {
		return svcErr.Map(err)
	}
	if msg.SenderID != callerID {
		return svcErr.Forbidden("you can only delete your own messages")
	}

	match, err := s.matchRepo.GetByID(ctx, msg.MatchID)
	if err != nil {
		return svcErr.Map(err)
	}
	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("message not found")
		}
		return svcErr.Map(err)
	}

	payload := MessageDeleted{MessageID: messageID, MatchID: match.ID}
	s.appCtx.Notifier.Notify(ctx, match.User1ID, live.EventMessageDeleted, payload)
	s.appCtx.Notifier.Notify(ctx, match.User2ID, live.EventMessageDeleted, payload)

	s.appCtx.Logger.Debug("message deleted", "message_id", messageID, "match_id", match.ID)
	return nil
}

// ListMatches returns the caller's matches, most recently active first.
func (s *Service) ListMatches(ctx context.Context, userID uint64) ([]MatchSummary, error) {
	peers, err := s.matchRepo.ListForUser(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Error("ListForUser failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}

	ids := make([]uint64, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.MatchID)
	}
	latest, err := s.messageRepo.LatestByMatch(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	unread, err := s.messageRepo.UnreadCounts(ctx, ids, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]MatchSummary, 0, len(peers))
	for i := range peers {
		p := &peers[i]
		sum := MatchSummary{
			MatchID:     p.MatchID,
			User:        profile.Sanitize(&p.User),
			MatchedAt:   p.MatchedAt,
			UnreadCount: unread[p.MatchID],
		}
		if m, ok := latest[p.MatchID]; ok {
			sum.LastMessage = &LastMessage{
				Text:     m.Text,
				HasImage: m.ImageURL != nil,
				HasVoice: m.VoiceURL != nil,
				Mine:     m.SenderID == userID,
				SentAt:   m.CreatedAt,
			}
		}
		out = append(out, sum)
	}

	slices.SortStableFunc(out, func(a, b MatchSummary) int {
		return cmp.Compare(b.lastActivity().UnixNano(), a.lastActivity().UnixNano())
	})
	return out, nil
}

// Unmatch dissolves a match of userID together with its messages.
func (s *Service) Unmatch(ctx context.Context, matchID, userID uint64) error {
	if _, err := s.matchRepo.GetForMember(ctx, matchID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("match not found")
		}
		return svcErr.Map(err)
	}
	if err := s.matchRepo.DeleteWithMessages(ctx, matchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("match not found")
		}
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Info("unmatched", "match_id", matchID, "by", userID)
	return nil
}
