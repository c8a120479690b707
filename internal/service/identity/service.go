package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/mail"
	"github.com/oggyb/campusknot/internal/repository"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/verification"
)

const (
	codeDigits     = 6
	codeTTL        = 10 * time.Minute
	tempPassLen    = 8
	minPasswordLen = 4
	minAge         = 18
	maxAge         = 35
	bcryptCost     = 10
	defaultBio     = "Hey there! I'm on campusknot 💕"
)

// RegisterInput is a signup request. Optional fields may be empty.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Age        int
	Gender     string
	Branch     string
	Year       string
	Bio        string
	ShowMe     string
	Interests  []string
	GreenFlags []string
	RedFlags   []string
}

// Session is a signed token together with the profile it belongs to.
type Session struct {
	Token string          `json:"token"`
	User  *profile.Public `json:"user"`
}

// CodeRequest is the result of RequestCode. DevCode is only set outside
// production when mail delivery failed.
type CodeRequest struct {
	DevCode string `json:"dev_code,omitempty"`
}

type Service struct {
	appCtx   *app.AppContext
	userRepo *repository.UserRepository
}

func NewIdentityService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		userRepo: repository.NewUserRepository(appCtx.DB),
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) campusEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	domain := s.appCtx.Config.App.EmailDomain
	if email == "" || !strings.HasSuffix(email, domain) || len(email) == len(domain) {
		return "", svcErr.InvalidInput("only " + domain + " emails are allowed")
	}
	return email, nil
}

// RequestCode issues a one-time code for email and mails it.
//
// Behavior:
//   - Only campus addresses may request a code; registered ones get Conflict.
//   - The code is 6 digits and expires after 10 minutes.
//   - When delivery fails in production, the code is discarded and the call
//     fails with Upstream. Elsewhere the code is logged and returned as
//     DevCode.
func (s *Service) RequestCode(ctx context.Context, email string) (*CodeRequest, error) {
	email, err := s.campusEmail(email)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if exists {
		return nil, svcErr.Conflict("email already registered")
	}

	code, err := verification.NewCode(codeDigits)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	entry := verification.Code{Code: code, ExpiresAt: s.appCtx.Now().Add(codeTTL)}
	if err := s.appCtx.Codes.Put(ctx, email, entry); err != nil {
		s.appCtx.Logger.Error("failed to store verification code", "email", email, "err", err)
		return nil, svcErr.Map(err)
	}

	msg := mail.VerificationEmail(s.appCtx.Config.App.Name, email, code)
	if err := s.appCtx.Mailer.Send(ctx, msg); err != nil {
		if s.appCtx.Config.IsProduction() {
			_ = s.appCtx.Codes.Delete(ctx, email)
			return nil, svcErr.Upstream("failed to send verification email", err)
		}
		s.appCtx.Logger.Warn("verification email not sent, disclosing code locally",
			"email", email, "code", code, "err", err)
		return &CodeRequest{DevCode: code}, nil
	}

	s.appCtx.Logger.Debug("verification code sent", "email", email)
	return &CodeRequest{}, nil
}

// ConfirmCode proves ownership of email. The code keeps its remaining
// lifetime once verified.
func (s *Service) ConfirmCode(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	entry, err := s.appCtx.Codes.Get(ctx, email)
	if errors.Is(err, verification.ErrNotFound) {
		return svcErr.InvalidInput("no verification code found")
	}
	if err != nil {
		return svcErr.Map(err)
	}

	if entry.Expired(s.appCtx.Now()) {
		_ = s.appCtx.Codes.Delete(ctx, email)
		return svcErr.InvalidInput("verification code expired")
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) != 1 {
		return svcErr.InvalidInput("invalid verification code")
	}

	entry.Verified = true
	if err := s.appCtx.Codes.Put(ctx, email, entry); err != nil {
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Debug("email verified", "email", email)
	return nil
}

// Register creates a verified account for an email confirmed through
// ConfirmCode and signs the user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Branch = strings.TrimSpace(in.Branch)
	in.Year = strings.TrimSpace(in.Year)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Age == 0 ||
		in.Gender == "" || in.Branch == "" || in.Year == "" {
		return nil, svcErr.InvalidInput("all fields are required")
	}

	email, err := s.campusEmail(in.Email)
	if err != nil {
		return nil, err
	}

	entry, err := s.appCtx.Codes.Get(ctx, email)
	if err != nil && !errors.Is(err, verification.ErrNotFound) {
		return nil, svcErr.Map(err)
	}
	if err != nil || !entry.Verified || entry.Expired(s.appCtx.Now()) {
		return nil, svcErr.Forbidden("email not verified")
	}

	if len(in.Password) < minPasswordLen {
		return nil, svcErr.InvalidInput("password must be at least 4 characters")
	}
	if in.Age < minAge || in.Age > maxAge {
		return nil, svcErr.InvalidInput("age must be between 18 and 35")
	}
	switch in.Gender {
	case "male", "female", "other":
	default:
		return nil, svcErr.InvalidInput("gender must be one of male, female, other")
	}
	showMe := in.ShowMe
	switch showMe {
	case "":
		showMe = db.ShowAll
	case db.ShowAll, db.ShowMale, db.ShowFemale:
	default:
		return nil, svcErr.InvalidInput("show_me must be one of all, male, female")
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if exists {
		return nil, svcErr.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, svcErr.Internal(err)
	}

	bio := strings.TrimSpace(in.Bio)
	if bio == "" {
		bio = defaultBio
	}
	u := &db.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		Age:          in.Age,
		Gender:       in.Gender,
		Branch:       in.Branch,
		Year:         in.Year,
		Bio:          bio,
		ShowMe:       showMe,
		Interests:    in.Interests,
		GreenFlags:   in.GreenFlags,
		RedFlags:     in.RedFlags,
		Verified:     true,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.Conflict("email already registered")
		}
		s.appCtx.Logger.Error("failed to create user", "email", email, "err", err)
		return nil, svcErr.Map(err)
	}
	_ = s.appCtx.Codes.Delete(ctx, email)

	s.appCtx.Logger.Info("user registered", "user_id", u.ID)
	return s.session(u)
}

// Login checks credentials. A deactivated account is reactivated.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	invalid := svcErr.Unauthenticated("invalid email or password")

	u, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, invalid
	}

	if !u.Active {
		if err := s.userRepo.SetActive(ctx, u.ID, true); err != nil {
			return nil, svcErr.Map(err)
		}
		u.Active = true
		s.appCtx.Logger.Info("account reactivated on login", "user_id", u.ID)
	}
	return s.session(u)
}

// ResetPassword mails a temporary password to email and stores its hash.
// If delivery fails in production the old password stays valid.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	u, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound("no account found with this email")
	}
	if err != nil {
		return svcErr.Map(err)
	}

	temp, err := randomPassword(tempPassLen)
	if err != nil {
		return svcErr.Internal(err)
	}

	msg := mail.TemporaryPasswordEmail(s.appCtx.Config.App.Name, email, temp)
	if err := s.appCtx.Mailer.Send(ctx, msg); err != nil {
		if s.appCtx.Config.IsProduction() {
			return svcErr.Upstream("failed to send reset email", err)
		}
		s.appCtx.Logger.Warn("reset email not sent, disclosing password locally",
			"user_id", u.ID, "temp_password", temp, "err", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(temp), bcryptCost)
	if err != nil {
		return svcErr.Internal(err)
	}
	if err := s.userRepo.SetPassword(ctx, u.ID, string(hash)); err != nil {
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Info("password reset", "user_id", u.ID)
	return nil
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, userID uint64) (*profile.Public, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("user not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return profile.Sanitize(u), nil
}

// Authenticate resolves a bearer token to its active user. Every failure is
// reported as Unauthenticated; a deactivated account must log in again.
func (s *Service) Authenticate(ctx context.Context, token string) (*db.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, svcErr.Unauthenticated("authentication required")
	}
	claims, err := s.parseToken(token)
	if err != nil {
		s.appCtx.Logger.Debug("token rejected", "err", err)
		return nil, svcErr.Unauthenticated("invalid or expired token")
	}

	u, err := s.userRepo.GetActiveByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Unauthenticated("user not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return u, nil
}

func (s *Service) session(u *db.User) (*Session, error) {
	token, err := s.issueToken(u.ID)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return &Session{Token: token, User: profile.Sanitize(u)}, nil
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

func randomPassword(n int) (string, error) {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := range b {
		d, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[d.Int64()]
	}
	return string(b), nil
}
