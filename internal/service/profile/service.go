package profile

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/repository"
	"github.com/oggyb/campusknot/internal/storage"
)

const (
	maxNameLen = 100
	maxBioLen  = 500
)

// Public is a user as other users see it. It never carries credentials.
type Public struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	Branch     string    `json:"branch"`
	Year       string    `json:"year"`
	Bio        string    `json:"bio"`
	Photo      string    `json:"photo"`
	ShowMe     string    `json:"show_me"`
	Interests  []string  `json:"interests"`
	GreenFlags []string  `json:"green_flags"`
	RedFlags   []string  `json:"red_flags"`
	Verified   bool      `json:"verified"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sanitize strips the password hash and decodes list fields. Lists are
// never nil.
func Sanitize(u *db.User) *Public {
	if u == nil {
		return nil
	}
	return &Public{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Age:        u.Age,
		Gender:     u.Gender,
		Branch:     u.Branch,
		Year:       u.Year,
		Bio:        u.Bio,
		Photo:      u.Photo,
		ShowMe:     u.ShowMe,
		Interests:  u.Interests.OrEmpty(),
		GreenFlags: u.GreenFlags.OrEmpty(),
		RedFlags:   u.RedFlags.OrEmpty(),
		Verified:   u.Verified,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
	}
}

// UpdateInput is a partial profile edit. Nil fields are left unchanged;
// list fields replace the whole list.
type UpdateInput struct {
	Name       *string   `json:"name"`
	Bio        *string   `json:"bio"`
	Branch     *string   `json:"branch"`
	Year       *string   `json:"year"`
	ShowMe     *string   `json:"show_me"`
	Interests  *[]string `json:"interests"`
	GreenFlags *[]string `json:"green_flags"`
	RedFlags   *[]string `json:"red_flags"`
}

type Service struct {
	appCtx   *app.AppContext
	userRepo *repository.UserRepository
}

func NewProfileService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		userRepo: repository.NewUserRepository(appCtx.DB),
	}
}

// Get returns the sanitized profile of userID.
func (s *Service) Get(ctx context.Context, userID uint64) (*Public, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, svcErr.Map(err)
	}
	return Sanitize(u), nil
}

// Update applies a partial edit and returns the updated profile.
//
// Behavior:
//   - name is trimmed and must be 1..100 characters.
//   - bio is at most 500 characters.
//   - show_me must be one of all, male, female.
//   - Empty branch or year values are ignored.
func (s *Service) Update(ctx context.Context, userID uint64, in UpdateInput) (*Public, error) {
	fields := map[string]any{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLen {
			return nil, svcErr.InvalidInput("name must be 1 to 100 characters")
		}
		fields["name"] = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return nil, svcErr.InvalidInput("bio must be at most 500 characters")
		}
		fields["bio"] = bio
	}
	if in.Branch != nil && strings.TrimSpace(*in.Branch) != "" {
		fields["branch"] = strings.TrimSpace(*in.Branch)
	}
	if in.Year != nil && strings.TrimSpace(*in.Year) != "" {
		fields["year"] = strings.TrimSpace(*in.Year)
	}
	if in.ShowMe != nil {
		switch *in.ShowMe {
		case db.ShowAll, db.ShowMale, db.ShowFemale:
			fields["show_me"] = *in.ShowMe
		default:
			return nil, svcErr.InvalidInput("show_me must be one of all, male, female")
		}
	}
	if in.Interests != nil {
		fields["interests"] = cleanList(*in.Interests)
	}
	if in.GreenFlags != nil {
		fields["green_flags"] = cleanList(*in.GreenFlags)
	}
	if in.RedFlags != nil {
		fields["red_flags"] = cleanList(*in.RedFlags)
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.Update(ctx, userID, fields); err != nil {
		s.appCtx.Logger.Error("profile update failed", "user_id", userID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("profile updated", "user_id", userID, "fields", len(fields))
	return s.Get(ctx, userID)
}

// UploadPhoto stores a new profile photo and returns its public reference.
func (s *Service) UploadPhoto(ctx context.Context, userID uint64, up storage.Upload) (string, error) {
	if err := storage.CheckPhoto(up, s.appCtx.Config.Upload.PhotoMaxBytes); err != nil {
		return "", err
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return "", err
	}
	if s.appCtx.Storage == nil {
		return "", svcErr.Upstream("photo storage unavailable", nil)
	}

	url, err := s.appCtx.Storage.Put(ctx, storage.ObjectKey("photos", userID, up.Filename), up)
	if err != nil {
		s.appCtx.Logger.Error("photo upload failed", "user_id", userID, "err", err)
		return "", svcErr.Upstream("upload failed", err)
	}
	if err := s.userRepo.Update(ctx, userID, map[string]any{"photo": url}); err != nil {
		return "", svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("photo uploaded", "user_id", userID, "url", url)
	return url, nil
}

// cleanList trims entries and drops empty ones.
func cleanList(in []string) db.StringList {
	out := make(db.StringList, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
