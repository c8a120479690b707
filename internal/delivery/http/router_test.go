package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/config"
	deliveryhttp "github.com/oggyb/campusknot/internal/delivery/http"
	"github.com/oggyb/campusknot/internal/delivery/http/handler"
	"github.com/oggyb/campusknot/internal/delivery/http/middleware"
	"github.com/oggyb/campusknot/internal/live"
	"github.com/oggyb/campusknot/internal/logger"
	"github.com/oggyb/campusknot/internal/service/account"
	"github.com/oggyb/campusknot/internal/service/conversation"
	"github.com/oggyb/campusknot/internal/service/discovery"
	"github.com/oggyb/campusknot/internal/service/identity"
	"github.com/oggyb/campusknot/internal/service/matching"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/storage"
	"github.com/oggyb/campusknot/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	t      *testing.T
	appCtx *app.AppContext
	mailer *testutil.Mailer
	engine *gin.Engine
}

// newEnv wires the full router over an in-memory app context. Uploads are
// written below a temp dir and served from /uploads.
func newEnv(t *testing.T, tune ...func(*config.Config)) *env {
	t.Helper()
	uploads := t.TempDir()
	store, err := storage.NewLocalStore(uploads, "/uploads")
	require.NoError(t, err)

	mailer := &testutil.Mailer{}
	appCtx, _ := testutil.NewAppContext(t, app.WithMailer(mailer), app.WithStorage(store))
	appCtx.Config.Storage.Driver = "local"
	appCtx.Config.Storage.LocalDir = uploads
	appCtx.Config.Storage.PublicBase = "/uploads"
	for _, f := range tune {
		f(appCtx.Config)
	}

	hub := live.NewHub(logger.Discard())
	t.Cleanup(hub.Close)

	identitySvc := identity.NewIdentityService(appCtx)
	router := deliveryhttp.NewRouter(
		appCtx.Config,
		logger.Discard(),
		handler.NewAuthHandler(identitySvc, appCtx.Config.App.EmailDomain),
		handler.NewProfileHandler(profile.NewProfileService(appCtx)),
		handler.NewSwipeHandler(discovery.NewDiscoveryService(appCtx), matching.NewMatchingService(appCtx)),
		handler.NewMatchHandler(conversation.NewConversationService(appCtx), appCtx.Config.Upload.MediaMaxBytes),
		handler.NewAccountHandler(account.NewAccountService(appCtx)),
		handler.NewLiveHandler(hub, identitySvc),
		handler.NewHealthHandler(appCtx.DB),
		middleware.NewAuthMiddleware(identitySvc),
	)
	return &env{t: t, appCtx: appCtx, mailer: mailer, engine: router.Setup()}
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(raw))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return e.send(r, token)
}

func (e *env) send(r *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, r)
	return w
}

func (e *env) login(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "secret"})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	decode(e.t, w, &session)
	require.NotEmpty(e.t, session.Token)
	return session.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body handler.ErrorResponse
	decode(t, w, &body)
	return body.Error
}

type filePart struct {
	field, filename, contentType, body string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := newEnv(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(middleware.RequestIDHeader, "req-42")
	w := e.send(r, "")
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/api/auth/me", "/api/discover", "/api/matches", "/api/stats"} {
		w := e.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "Not authenticated", errorOf(t, w), path)
	}

	w := e.do(http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendCode_NonCampusEmail(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/auth/send-otp", "", gin.H{"email": "asha@gmail.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "only @nitk.edu.in emails are allowed", errorOf(t, w))

	w = e.do(http.MethodPost, "/api/auth/send-otp", "", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email is required", errorOf(t, w))
}

func TestSignupFlow(t *testing.T) {
	e := newEnv(t)
	e.mailer.Err = errors.New("smtp down")
	const email = "asha@nitk.edu.in"

	w := e.do(http.MethodPost, "/api/auth/send-otp", "", gin.H{"email": email})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		Success bool   `json:"success"`
		DevCode string `json:"dev_code"`
	}
	decode(t, w, &sent)
	assert.True(t, sent.Success)
	require.Len(t, sent.DevCode, 6)

	signup := gin.H{
		"name": "Asha", "email": email, "password": "pass1234", "age": 20,
		"gender": "female", "branch": "CSE", "year": "2nd", "interests": []string{"Music"},
	}
	w = e.do(http.MethodPost, "/api/auth/register", "", signup)
	require.Equal(t, http.StatusForbidden, w.Code, "unverified email")

	w = e.do(http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": email, "otp": "000000x"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": email, "otp": sent.DevCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/register", "", signup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session struct {
		Token string         `json:"token"`
		User  profile.Public `json:"user"`
	}
	decode(t, w, &session)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, []string{"Music"}, session.User.Interests)
	assert.NotContains(t, w.Body.String(), "password")

	w = e.do(http.MethodGet, "/api/auth/me", session.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Asha"`)

	w = e.do(http.MethodPut, "/api/profile", session.Token, gin.H{"bio": "chai over coffee"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"bio":"chai over coffee"`)

	w = e.do(http.MethodPost, "/api/auth/register", "", signup)
	assert.Equal(t, http.StatusForbidden, w.Code, "code is consumed by registration")
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newEnv(t)
	testutil.CreateUser(t, e.appCtx, "Asha", "female")

	w := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@nitk.edu.in", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", errorOf(t, w))
}

func TestMatchAndChat(t *testing.T) {
	e := newEnv(t)
	a := testutil.CreateUser(t, e.appCtx, "Asha", "female", "Music")
	b := testutil.CreateUser(t, e.appCtx, "Ravi", "male", "Music")
	outsider := testutil.CreateUser(t, e.appCtx, "Kiran", "male")
	ta, tb, to := e.login(a.Email), e.login(b.Email), e.login(outsider.Email)

	w := e.do(http.MethodGet, "/api/discover?limit=5", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var feed struct {
		Profiles []discovery.Candidate `json:"profiles"`
	}
	decode(t, w, &feed)
	assert.Len(t, feed.Profiles, 2)

	w = e.do(http.MethodPost, "/api/swipe", ta, gin.H{"target_id": b.ID, "action": "dance"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/swipe", ta, gin.H{"target_id": b.ID, "action": "like"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"match":false,"match_id":null,"matched_user":null}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/swipe", ta, gin.H{"target_id": b.ID, "action": "pass"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Already swiped"}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/likes/received", tb, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var likes matching.LikesPage
	decode(t, w, &likes)
	require.Len(t, likes.Likes, 1)
	assert.Equal(t, a.ID, likes.Likes[0].User.ID)

	w = e.do(http.MethodPost, "/api/swipe", tb, gin.H{"target_id": a.ID, "action": "like"})
	require.Equal(t, http.StatusOK, w.Code)
	var swiped struct {
		Match       bool           `json:"match"`
		MatchID     uint64         `json:"match_id"`
		MatchedUser profile.Public `json:"matched_user"`
	}
	decode(t, w, &swiped)
	require.True(t, swiped.Match)
	assert.Equal(t, a.ID, swiped.MatchedUser.ID)
	matchPath := fmt.Sprintf("/api/messages/%d", swiped.MatchID)

	w = e.do(http.MethodGet, "/api/matches", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var matches struct {
		Matches []conversation.MatchSummary `json:"matches"`
	}
	decode(t, w, &matches)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, b.ID, matches.Matches[0].User.ID)

	w = e.do(http.MethodPost, matchPath, ta, gin.H{"text": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message cannot be empty", errorOf(t, w))

	w = e.do(http.MethodPost, matchPath, ta, gin.H{"text": "hey!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first struct {
		Message struct {
			ID   uint64 `json:"id"`
			Text string `json:"text"`
		} `json:"message"`
	}
	decode(t, w, &first)
	assert.Equal(t, "hey!", first.Message.Text)

	r := multipartRequest(t, matchPath,
		map[string]string{"text": "look", "reply_to_id": fmt.Sprint(first.Message.ID)},
		filePart{field: "image", filename: "cat.png", contentType: "image/png", body: "png-bytes"},
	)
	w = e.send(r, tb)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second struct {
		Message struct {
			ImageURL    *string `json:"image_url"`
			ReplyToText *string `json:"reply_to_text"`
		} `json:"message"`
	}
	decode(t, w, &second)
	require.NotNil(t, second.Message.ImageURL)
	require.NotNil(t, second.Message.ReplyToText)
	assert.Equal(t, "hey!", *second.Message.ReplyToText)

	w = e.do(http.MethodGet, *second.Message.ImageURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code, "local uploads are served")
	assert.Equal(t, "png-bytes", w.Body.String())

	w = e.do(http.MethodGet, matchPath, to, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodGet, matchPath, ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convo struct {
		Messages []json.RawMessage `json:"messages"`
	}
	decode(t, w, &convo)
	assert.Len(t, convo.Messages, 2)

	w = e.do(http.MethodPost, matchPath+"/read", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"changes":1}`, w.Body.String())

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/messages/%d", first.Message.ID), tb, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(http.MethodDelete, fmt.Sprintf("/api/messages/%d", first.Message.ID), ta, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/stats", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matches":1,"likes_given":1,"likes_received":1}`, w.Body.String())

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/matches/%d", swiped.MatchID), to, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodDelete, fmt.Sprintf("/api/matches/%d", swiped.MatchID), ta, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSendMessage_CamelCaseReplyField(t *testing.T) {
	e := newEnv(t)
	a := testutil.CreateUser(t, e.appCtx, "Asha", "female")
	b := testutil.CreateUser(t, e.appCtx, "Ravi", "male")
	ta, tb := e.login(a.Email), e.login(b.Email)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/swipe", ta, gin.H{"target_id": b.ID, "action": "like"}).Code)
	w := e.do(http.MethodPost, "/api/swipe", tb, gin.H{"target_id": a.ID, "action": "like"})
	require.Equal(t, http.StatusOK, w.Code)
	var swiped struct {
		MatchID uint64 `json:"match_id"`
	}
	decode(t, w, &swiped)
	matchPath := fmt.Sprintf("/api/messages/%d", swiped.MatchID)

	type sent struct {
		Message struct {
			ID          uint64  `json:"id"`
			ReplyToID   *uint64 `json:"reply_to_id"`
			ReplyToText *string `json:"reply_to_text"`
		} `json:"message"`
	}

	w = e.do(http.MethodPost, matchPath, ta, gin.H{"text": "first"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first sent
	decode(t, w, &first)

	w = e.do(http.MethodPost, matchPath, tb, gin.H{"text": "json reply", "replyToId": first.Message.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var jsonReply sent
	decode(t, w, &jsonReply)
	require.NotNil(t, jsonReply.Message.ReplyToID)
	assert.Equal(t, first.Message.ID, *jsonReply.Message.ReplyToID)

	r := multipartRequest(t, matchPath, map[string]string{"text": "form reply", "replyToId": fmt.Sprint(first.Message.ID)})
	w = e.send(r, tb)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var formReply sent
	decode(t, w, &formReply)
	require.NotNil(t, formReply.Message.ReplyToText)
	assert.Equal(t, "first", *formReply.Message.ReplyToText)
}

func TestUploadPhoto(t *testing.T) {
	e := newEnv(t)
	u := testutil.CreateUser(t, e.appCtx, "Asha", "female")
	token := e.login(u.Email)

	w := e.send(multipartRequest(t, "/api/profile/photo", nil), token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no file uploaded", errorOf(t, w))

	w = e.send(multipartRequest(t, "/api/profile/photo", nil,
		filePart{field: "photo", filename: "me.gif", contentType: "image/gif", body: "gif"}), token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.send(multipartRequest(t, "/api/profile/photo", nil,
		filePart{field: "photo", filename: "me.jpg", contentType: "image/jpeg", body: "jpeg"}), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Photo string `json:"photo"`
	}
	decode(t, w, &res)
	assert.True(t, strings.HasPrefix(res.Photo, "/uploads/photos/"), res.Photo)
}

func TestAccountRoutes(t *testing.T) {
	e := newEnv(t)
	a := testutil.CreateUser(t, e.appCtx, "Asha", "female")
	b := testutil.CreateUser(t, e.appCtx, "Ravi", "male")
	ta := e.login(a.Email)

	w := e.do(http.MethodPost, "/api/report", ta, gin.H{"reported_id": b.ID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/api/report", ta, gin.H{"reported_id": b.ID, "reason": "spam"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/users/%d/online", b.ID), ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"online":false}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/users/abc/online", ta, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/account/deactivate", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/auth/me", ta, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "deactivated accounts must log in again")

	ta = e.login(a.Email)
	w = e.do(http.MethodDelete, "/api/account", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/auth/me", ta, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.Window = time.Minute
		cfg.RateLimit.OTP = 2
	})

	body := gin.H{"email": "someone@gmail.com"}
	for i := 0; i < 2; i++ {
		w := e.do(http.MethodPost, "/api/auth/send-otp", "", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := e.do(http.MethodPost, "/api/auth/send-otp", "", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests, please try again later.", errorOf(t, w))

	w = e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "x@nitk.edu.in", "password": "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "login has its own budget")
}

func TestLiveChannel(t *testing.T) {
	e := newEnv(t)
	u := testutil.CreateUser(t, e.appCtx, "Asha", "female")
	token := e.login(u.Email)

	w := e.do(http.MethodGet, "/ws?token=bogus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	srv := httptest.NewServer(e.engine)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(gin.H{"event": live.EventRegister, "data": gin.H{"userId": u.ID}}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, live.EventOnlineStatus, frame.Event)
	assert.JSONEq(t, fmt.Sprintf(`{"userId":%d,"online":true}`, u.ID), string(frame.Data))
}
