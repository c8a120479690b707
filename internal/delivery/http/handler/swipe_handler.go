package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/service/discovery"
	"github.com/oggyb/campusknot/internal/service/matching"
)

// SwipeHandler serves the discovery feed, swipes, received likes and stats.
type SwipeHandler struct {
	discovery *discovery.Service
	matching  *matching.Service
}

func NewSwipeHandler(discoverySvc *discovery.Service, matchingSvc *matching.Service) *SwipeHandler {
	return &SwipeHandler{discovery: discoverySvc, matching: matchingSvc}
}

// SwipeRequest records one decision.
type SwipeRequest struct {
	TargetID uint64 `json:"target_id" binding:"required"`
	Action   string `json:"action" binding:"required,oneof=like pass super_like"`
}

// Discover returns candidate profiles.
// GET /api/discover?limit=
func (h *SwipeHandler) Discover(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	profiles, err := h.discovery.Candidates(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// Swipe records a like, pass or super-like.
// POST /api/swipe
func (h *SwipeHandler) Swipe(c *gin.Context) {
	var req SwipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err, ""))
		return
	}
	out, err := h.matching.RecordSwipe(c.Request.Context(), currentUserID(c), req.TargetID, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	if out.AlreadyRecorded {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Already swiped"})
		return
	}

	body := gin.H{"success": true, "match": out.Matched, "match_id": nil, "matched_user": nil}
	if out.Matched {
		body["match_id"] = out.MatchID
		body["matched_user"] = out.Other
	}
	c.JSON(http.StatusOK, body)
}

// ReceivedLikes lists people who liked the caller and are still unanswered.
// GET /api/likes/received?page_token=&limit=
func (h *SwipeHandler) ReceivedLikes(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	var token *string
	if t := c.Query("page_token"); t != "" {
		token = &t
	}
	page, err := h.matching.ReceivedLikes(c.Request.Context(), currentUserID(c), token, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Stats returns the caller's counters.
// GET /api/stats
func (h *SwipeHandler) Stats(c *gin.Context) {
	stats, err := h.matching.Stats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// queryInt reads an optional non-negative integer query parameter; 0 when absent.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}
