package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/service/account"
)

type AccountHandler struct {
	accounts *account.Service
}

func NewAccountHandler(accountSvc *account.Service) *AccountHandler {
	return &AccountHandler{accounts: accountSvc}
}

// ReportRequest files a moderation report.
type ReportRequest struct {
	ReportedID uint64 `json:"reported_id"`
	Reason     string `json:"reason"`
	Details    string `json:"details"`
}

// Report files a report against another user.
// POST /api/report
func (h *AccountHandler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.accounts.Report(c.Request.Context(), currentUserID(c), req.ReportedID, req.Reason, req.Details); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Report submitted. We'll review it soon."})
}

// Deactivate hides the caller until the next login.
// POST /api/account/deactivate
func (h *AccountHandler) Deactivate(c *gin.Context) {
	if err := h.accounts.Deactivate(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Delete removes the caller's account permanently.
// DELETE /api/account
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.accounts.Delete(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Online reports whether a user has a live session.
// GET /api/users/:id/online
func (h *AccountHandler) Online(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	online, err := h.accounts.Online(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": online})
}
