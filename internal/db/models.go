package db

import (
	"time"
)

// Decision is the stored outcome of a swipe.
type Decision string

const (
	DecisionLike Decision = "like"
	DecisionPass Decision = "pass"
)

// Visibility values for User.ShowMe.
const (
	ShowAll    = "all"
	ShowMale   = "male"
	ShowFemale = "female"
)

// User table
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	Name         string     `gorm:"size:100;not null"`
	Email        string     `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string     `gorm:"size:255;not null"`
	Age          int        `gorm:"not null"`
	Gender       string     `gorm:"size:16;not null;index"`
	Branch       string     `gorm:"size:100;not null"`
	Year         string     `gorm:"size:16;not null"`
	Bio          string     `gorm:"size:500"`
	Photo        string     `gorm:"size:512"`
	ShowMe       string     `gorm:"size:16;not null;default:all"`
	Interests    StringList `gorm:"type:text"`
	GreenFlags   StringList `gorm:"type:text"`
	RedFlags     StringList `gorm:"type:text"`
	Verified     bool       `gorm:"not null;default:false"`
	Active       bool       `gorm:"not null;default:true;index"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// Swipe is a directional decision of an actor on a target.
//
// Indexes:
//   - idx_swipe_actor_target(actor_id, target_id) UNIQUE
//     At most one row per directed pair; a repeated swipe is a no-op.
//   - idx_swipe_target_decision(target_id, decision)
//     Serves "who liked me" lists and reciprocal-like lookups.
//
// Super-likes are stored as Decision=like with SuperLike=true.
type Swipe struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ActorID   uint64    `gorm:"not null;uniqueIndex:idx_swipe_actor_target,priority:1"`
	TargetID  uint64    `gorm:"not null;uniqueIndex:idx_swipe_actor_target,priority:2;index:idx_swipe_target_decision,priority:1"`
	Decision  Decision  `gorm:"size:8;not null;index:idx_swipe_target_decision,priority:2"`
	SuperLike bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Match pairs two users who liked each other. User1ID < User2ID always holds,
// which makes the unordered pair unique under idx_match_pair.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	User1ID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:1"`
	User2ID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Other returns the member of m that is not userID.
func (m *Match) Other(userID uint64) uint64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// HasMember reports whether userID is one of the pair.
func (m *Match) HasMember(userID uint64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Message belongs to exactly one match.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	MatchID   uint64    `gorm:"not null;index:idx_message_match_created,priority:1"`
	SenderID  uint64    `gorm:"not null"`
	Text      string    `gorm:"type:text"`
	ImageURL  *string   `gorm:"size:512"`
	VoiceURL  *string   `gorm:"size:512"`
	ReplyToID *uint64   `gorm:"index"`
	Read      bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_message_match_created,priority:2"`
}

// Report is append-only.
type Report struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ReporterID uint64    `gorm:"not null;index"`
	ReportedID uint64    `gorm:"not null;index"`
	Reason     string    `gorm:"size:64;not null"`
	Details    string    `gorm:"size:1000"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Models lists every table owned by the schema, in creation order.
func Models() []any {
	return []any{&User{}, &Swipe{}, &Match{}, &Message{}, &Report{}}
}

// CanonicalPair orders two user ids as (lower, higher).
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}
