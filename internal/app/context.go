package app

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/cache"
	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/live"
	"github.com/oggyb/campusknot/internal/mail"
	"github.com/oggyb/campusknot/internal/storage"
	"github.com/oggyb/campusknot/internal/verification"
)

// PresenceReader answers "is this user connected right now".
type PresenceReader interface {
	Online(ctx context.Context, userID uint64) (bool, error)
}

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
// RedisCache is nil when Redis is not configured.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Config     *config.Config

	Notifier live.Notifier
	Presence PresenceReader
	Storage  storage.Store
	Mailer   mail.Mailer
	Codes    verification.Store

	Now func() time.Time
}

type Option func(*AppContext)

func WithConfig(cfg *config.Config) Option { return func(a *AppContext) { a.Config = cfg } }
func WithNotifier(n live.Notifier) Option { return func(a *AppContext) { a.Notifier = n } }
func WithPresence(p PresenceReader) Option { return func(a *AppContext) { a.Presence = p } }
func WithStorage(s storage.Store) Option { return func(a *AppContext) { a.Storage = s } }
func WithMailer(m mail.Mailer) Option { return func(a *AppContext) { a.Mailer = m } }
func WithCodes(s verification.Store) Option { return func(a *AppContext) { a.Codes = s } }
func WithClock(now func() time.Time) Option { return func(a *AppContext) { a.Now = now } }

// New creates a new AppContext. Collaborators not given as options get
// process-local defaults.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	a := &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Notifier:   live.Discard,
		Codes:      verification.NewMemoryStore(),
		Now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Config == nil {
		a.Config = config.New()
	}
	if a.Presence == nil {
		a.Presence = live.NewMemoryPresence()
	}
	if a.Mailer == nil {
		a.Mailer = mail.New(a.Config.Mail)
	}
	return a
}
