package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/service/identity"
)

type AuthHandler struct {
	identity *identity.Service
	domain   string
}

func NewAuthHandler(identitySvc *identity.Service, emailDomain string) *AuthHandler {
	return &AuthHandler{identity: identitySvc, domain: emailDomain}
}

// EmailRequest carries a campus address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,campusemail"`
}

// VerifyRequest confirms a one-time code.
type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"otp" binding:"required"`
}

// RegisterRequest is the signup form.
type RegisterRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	Branch     string   `json:"branch"`
	Year       string   `json:"year"`
	Bio        string   `json:"bio"`
	ShowMe     string   `json:"show_me"`
	Interests  []string `json:"interests"`
	GreenFlags []string `json:"green_flags"`
	RedFlags   []string `json:"red_flags"`
}

// LoginRequest holds credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SendCode mails a verification code.
// POST /api/auth/send-otp
func (h *AuthHandler) SendCode(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err, h.domain))
		return
	}
	res, err := h.identity.RequestCode(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{"success": true, "message": "OTP sent!"}
	if res.DevCode != "" {
		body["dev_code"] = res.DevCode
	}
	c.JSON(http.StatusOK, body)
}

// VerifyCode confirms the address.
// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and otp are required")
		return
	}
	if err := h.identity.ConfirmCode(c.Request.Context(), req.Email, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Email verified!"})
}

// Register creates the account and returns a session.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	session, err := h.identity.Register(c.Request.Context(), identity.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Age:        req.Age,
		Gender:     req.Gender,
		Branch:     req.Branch,
		Year:       req.Year,
		Bio:        req.Bio,
		ShowMe:     req.ShowMe,
		Interests:  req.Interests,
		GreenFlags: req.GreenFlags,
		RedFlags:   req.RedFlags,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login exchanges credentials for a session.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	session, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ForgotPassword mails a temporary password.
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	if err := h.identity.ResetPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Temporary password sent to your email"})
}

// Me returns the caller's profile.
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.identity.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": me})
}
