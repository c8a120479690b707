package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/service/profile"
)

type ProfileHandler struct {
	profiles *profile.Service
}

func NewProfileHandler(profileSvc *profile.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profileSvc}
}

// UpdateProfile applies a partial edit to the caller's profile.
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req profile.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	updated, err := h.profiles.Update(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// UploadPhoto replaces the caller's profile photo.
// POST /api/profile/photo (multipart field "photo")
func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	up, closer, err := formUpload(c, "photo")
	if err != nil {
		badRequest(c, "invalid upload")
		return
	}
	defer closer()
	if up == nil {
		badRequest(c, "no file uploaded")
		return
	}

	url, err := h.profiles.UploadPhoto(c.Request.Context(), currentUserID(c), *up)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo": url})
}
