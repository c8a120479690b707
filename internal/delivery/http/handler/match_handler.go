package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/service/conversation"
)

// MatchHandler serves matches and their conversations.
type MatchHandler struct {
	conversations *conversation.Service
	maxUpload     int64
}

// NewMatchHandler builds the handler. maxUpload bounds a whole multipart
// message body.
func NewMatchHandler(conversationSvc *conversation.Service, maxUpload int64) *MatchHandler {
	return &MatchHandler{conversations: conversationSvc, maxUpload: maxUpload}
}

// MessageRequest is the JSON form of an outgoing text message. Both
// reply_to_id and replyToId are accepted.
type MessageRequest struct {
	Text         string  `json:"text"`
	ReplyToID    *uint64 `json:"reply_to_id"`
	ReplyToIDAlt *uint64 `json:"replyToId"`
}

func (r MessageRequest) replyTo() *uint64 {
	if r.ReplyToID != nil {
		return r.ReplyToID
	}
	return r.ReplyToIDAlt
}

// formReplyTo reads the optional reply id from either form field name.
func formReplyTo(c *gin.Context) (*uint64, bool) {
	raw := c.PostForm("reply_to_id")
	if raw == "" {
		raw = c.PostForm("replyToId")
	}
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// ListMatches returns the caller's matches, most recently active first.
// GET /api/matches
func (h *MatchHandler) ListMatches(c *gin.Context) {
	matches, err := h.conversations.ListMatches(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// Unmatch dissolves a match.
// DELETE /api/matches/:id
func (h *MatchHandler) Unmatch(c *gin.Context) {
	matchID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.Unmatch(c.Request.Context(), matchID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ListMessages returns a match's conversation.
// GET /api/messages/:id
func (h *MatchHandler) ListMessages(c *gin.Context) {
	matchID, ok := idParam(c, "id")
	if !ok {
		return
	}
	messages, err := h.conversations.ListMessages(c.Request.Context(), matchID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "match_id": matchID})
}

// SendMessage posts into a match. It accepts JSON {text, reply_to_id} or a
// multipart form with text, reply_to_id, image and audio fields.
// POST /api/messages/:id
func (h *MatchHandler) SendMessage(c *gin.Context) {
	matchID, ok := idParam(c, "id")
	if !ok {
		return
	}
	in := conversation.SendInput{MatchID: matchID, SenderID: currentUserID(c)}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if h.maxUpload > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxUpload+(1<<20))
		}
		in.Text = c.PostForm("text")
		replyTo, ok := formReplyTo(c)
		if !ok {
			badRequest(c, "invalid reply_to_id")
			return
		}
		in.ReplyToID = replyTo

		image, closeImage, err := formUpload(c, "image")
		if err != nil {
			badRequest(c, "invalid image upload")
			return
		}
		defer closeImage()
		voice, closeVoice, err := formUpload(c, "audio")
		if err != nil {
			badRequest(c, "invalid audio upload")
			return
		}
		defer closeVoice()
		in.Image, in.Voice = image, voice
	} else {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		in.Text = req.Text
		in.ReplyToID = req.replyTo()
	}

	view, err := h.conversations.SendMessage(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// MarkRead marks the other member's messages as read.
// POST /api/messages/:id/read
func (h *MatchHandler) MarkRead(c *gin.Context) {
	matchID, ok := idParam(c, "id")
	if !ok {
		return
	}
	changed, err := h.conversations.MarkRead(c.Request.Context(), matchID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "changes": changed})
}

// DeleteMessage removes one of the caller's messages.
// DELETE /api/messages/:id
func (h *MatchHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.DeleteMessage(c.Request.Context(), messageID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
