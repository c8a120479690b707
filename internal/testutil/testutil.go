// Package testutil builds service fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/db"
	"github.com/oggyb/campusknot/internal/logger"
	"github.com/oggyb/campusknot/internal/mail"
	"github.com/oggyb/campusknot/internal/storage"
)

// Config returns development settings suitable for tests.
func Config() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "development"
	cfg.App.Name = "campusknot"
	cfg.App.EmailDomain = "@nitk.edu.in"
	cfg.JWT.Secret = "test-secret-test-secret-test-secret"
	cfg.JWT.TTL = time.Hour
	cfg.Upload.PhotoMaxBytes = 10 << 20
	cfg.Upload.MediaMaxBytes = 15 << 20
	return cfg
}

// Event is one recorded notification.
type Event struct {
	UserID uint64
	Name   string
	Data   any
}

// Recorder is a live.Notifier that keeps everything it is given.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, userID uint64, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{UserID: userID, Name: event, Data: data})
}

// Events returns recorded events, optionally filtered by name.
func (r *Recorder) Events(name ...string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if len(name) == 0 || e.Name == name[0] {
			out = append(out, e)
		}
	}
	return out
}

// For returns the events named name that were sent to userID.
func (r *Recorder) For(userID uint64, name string) []Event {
	var out []Event
	for _, e := range r.Events(name) {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// Mailer records messages and fails when Err is set.
type Mailer struct {
	mu   sync.Mutex
	Err  error
	Sent []mail.Message
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// NewAppContext opens a fresh in-memory database and wires test doubles.
// Options given by the caller override the defaults.
func NewAppContext(t *testing.T, opts ...app.Option) (*app.AppContext, *Recorder) {
	t.Helper()
	database, err := db.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	rec := &Recorder{}
	base := []app.Option{
		app.WithConfig(Config()),
		app.WithNotifier(rec),
		app.WithStorage(store),
		app.WithMailer(&Mailer{}),
	}
	return app.New(database, nil, logger.Discard(), append(base, opts...)...), rec
}

// CreateUser inserts an active user. Interests may be nil.
func CreateUser(t *testing.T, appCtx *app.AppContext, name, gender string, interests ...string) *db.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &db.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@nitk.edu.in", strings.ToLower(name)),
		PasswordHash: string(hash),
		Age:          21,
		Gender:       gender,
		Branch:       "CSE",
		Year:         "3rd",
		ShowMe:       db.ShowAll,
		Interests:    interests,
		Verified:     true,
		Active:       true,
	}
	require.NoError(t, appCtx.DB.Create(u).Error)
	return u
}

// Deactivate flips a user to inactive.
func Deactivate(t *testing.T, appCtx *app.AppContext, u *db.User) {
	t.Helper()
	require.NoError(t, appCtx.DB.Model(u).Update("active", false).Error)
}
