package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/logger"
	"github.com/oggyb/campusknot/internal/storage"
)

// Context keys set by middleware.RequireAuth.
const (
	UserIDKey = "user_id"
	UserKey   = "user"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges a request without a payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// respondError writes err as {"error": msg} with the status of its kind.
// Internal and upstream causes are logged; callers only see the short reason.
func respondError(c *gin.Context, err error) {
	status := svcErr.HTTPStatus(err)
	switch svcErr.KindOf(err) {
	case svcErr.KindInternal, svcErr.KindUpstream:
		logger.FromContext(c.Request.Context()).Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"err", err,
		)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: svcErr.Message(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// currentUserID returns the authenticated caller set by RequireAuth.
func currentUserID(c *gin.Context) uint64 {
	return c.GetUint64(UserIDKey)
}

func currentUser(c *gin.Context) *db.User {
	if v, ok := c.Get(UserKey); ok {
		if u, ok := v.(*db.User); ok {
			return u
		}
	}
	return nil
}

// idParam parses the positive integer path parameter name.
func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// formUpload opens the multipart file field. up is nil when the field is
// absent; closer must be called once the upload is consumed.
func formUpload(c *gin.Context, field string) (up *storage.Upload, closer func(), err error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*storage.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &storage.Upload{
		Body:        f,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Filename:    fh.Filename,
	}, func() { _ = f.Close() }, nil
}
