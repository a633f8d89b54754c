package routes_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/auth"
	"github.com/princinho/postboard/middleware"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"github.com/princinho/postboard/routes"
	"github.com/princinho/postboard/storage"
	"github.com/princinho/postboard/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	users  *repository.MemoryUserRepository
	posts  *repository.MemoryRepository[models.Post]
	store  *storage.MemoryStore
}

type session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := repository.NewMemoryUserRepository()
	posts := repository.NewMemoryRepository[models.Post]()
	hasher := utils.NewBcryptHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte("routes-test-secret"),
		AccessTTL:  5 * time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(users, tokens, hasher, zap.NewNop())
	require.NoError(t, err)
	store := storage.NewMemoryStore("https://cdn.test")

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.NewNop()), middleware.Recovery(zap.NewNop()))
	routes.Register(r, routes.Deps{
		Sessions:  sessions,
		Hasher:    hasher,
		Users:     users,
		Posts:     posts,
		Comments:  repository.NewMemoryRepository[models.Comment](),
		Store:     store,
		Validator: utils.NewFileValidator([]string{".png"}, []string{"image/png"}, 1),
	})

	return &testServer{t: t, engine: r, users: users, posts: posts, store: store}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) register(name, email, password string) session {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/auth/register", "", gin.H{"username": name, "email": email, "password": password})
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())
	var out session
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func messageOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rr)["message"].(string)
}

func TestSessionScenario(t *testing.T) {
	s := newTestServer(t)

	reg := s.register("alice", "a@x.com", "pw1")
	assert.NotEmpty(t, reg.UserID)

	rr := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[session](t, rr)
	assert.Equal(t, reg.UserID, login.UserID)

	rr = s.do(http.MethodPost, "/auth/refresh-token", "", gin.H{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	rotated := decode[session](t, rr)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// replay of the consumed token
	rr = s.do(http.MethodPost, "/auth/refresh-token", "", gin.H{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// global revocation: the fresh token and the registration token are gone too
	rr = s.do(http.MethodPost, "/auth/refresh-token", "", gin.H{"refreshToken": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = s.do(http.MethodPost, "/auth/refresh-token", "", gin.H{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// access tokens are not revoked by the allow-list and keep working until they expire
	rr = s.do(http.MethodGet, "/users/"+reg.UserID, rotated.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthEndpoints_Validation(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "a@x.com", "pw1")

	cases := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"register missing email", "/auth/register", gin.H{"username": "bob", "password": "pw"}, http.StatusBadRequest},
		{"register duplicate email", "/auth/register", gin.H{"username": "al", "email": "A@x.com", "password": "pw"}, http.StatusInternalServerError},
		{"register password too long", "/auth/register", gin.H{"username": "bob", "email": "b@x.com", "password": strings.Repeat("p", 73)}, http.StatusBadRequest},
		{"register malformed body", "/auth/register", "{not json", http.StatusBadRequest},
		{"login missing password", "/auth/login", gin.H{"email": "a@x.com"}, http.StatusBadRequest},
		{"login both identifiers", "/auth/login", gin.H{"email": "a@x.com", "username": "alice", "password": "pw1"}, http.StatusBadRequest},
		{"refresh missing token", "/auth/refresh-token", gin.H{}, http.StatusBadRequest},
		{"refresh garbage token", "/auth/refresh-token", gin.H{"refreshToken": "InvalidRefreshToken"}, http.StatusUnauthorized},
		{"logout missing token", "/auth/logout", gin.H{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := s.do(http.MethodPost, tc.path, "", tc.body)
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, messageOf(t, rr))
		})
	}
}

func TestLogin_EnumerationResistance(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "a@x.com", "pw1")

	unknown := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": "ghost@x.com", "password": "pw1"})
	wrong := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "nope"})
	byName := s.do(http.MethodPost, "/auth/login", "", gin.H{"username": "alice", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.Bytes(), wrong.Body.Bytes())
	assert.Equal(t, unknown.Body.Bytes(), byName.Body.Bytes())
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, unknown.Body.String())
}

func TestTokenKinds(t *testing.T) {
	s := newTestServer(t)
	reg := s.register("alice", "a@x.com", "pw1")

	rr := s.do(http.MethodPost, "/auth/refresh-token", "", gin.H{"refreshToken": reg.Token})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "an access token cannot refresh")

	rr = s.do(http.MethodGet, "/posts", reg.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "a refresh token cannot authenticate")

	rr = s.do(http.MethodGet, "/posts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Authorization header missing", messageOf(t, rr))
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	reg := s.register("alice", "a@x.com", "pw1")

	rr := s.do(http.MethodPost, "/auth/logout", "", gin.H{"refreshToken": reg.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/auth/refresh-token", "", gin.H{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPosts_OwnershipAndSender(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "a@x.com", "pw1")
	bob := s.register("bob", "b@x.com", "pw2")

	rr := s.do(http.MethodPost, "/posts", alice.Token, gin.H{"title": "Hello", "content": "World", "sender_id": bob.UserID})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "client supplied sender_id")

	rr = s.do(http.MethodPost, "/posts", alice.Token, gin.H{"title": "Hello"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/posts", alice.Token, gin.H{"title": "Hello", "content": "World"})
	require.Equal(t, http.StatusCreated, rr.Code)
	post := decode[map[string]any](t, rr)
	postID := post["_id"].(string)
	assert.Equal(t, alice.UserID, post["sender_id"])
	assert.Contains(t, post, "createdAt")
	assert.Contains(t, post, "updatedAt")

	rr = s.do(http.MethodPut, "/posts/"+postID, bob.Token, gin.H{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Forbidden: unable to perform operation on resource not owned by you", messageOf(t, rr))
	rr = s.do(http.MethodDelete, "/posts/"+postID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodPut, "/posts/"+postID, alice.Token, gin.H{"sender_id": bob.UserID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPut, "/posts/"+postID, alice.Token, gin.H{"title": "Edited"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Edited", decode[map[string]any](t, rr)["title"])

	rr = s.do(http.MethodGet, "/posts?sender_id="+alice.UserID, bob.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)
	rr = s.do(http.MethodGet, "/posts?sender_id="+bob.UserID, bob.Token, nil)
	assert.Len(t, decode[[]map[string]any](t, rr), 0)

	rr = s.do(http.MethodDelete, "/posts/"+postID, alice.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Deleted successfully"}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/posts/"+postID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Resource not found", messageOf(t, rr))
	rr = s.do(http.MethodPut, "/posts/"+postID, alice.Token, gin.H{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = s.do(http.MethodDelete, "/posts/"+postID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/posts/not-an-id", alice.Token, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Server error", messageOf(t, rr))
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "a@x.com", "pw1")
	bob := s.register("bob", "b@x.com", "pw2")
	postID := bson.NewObjectID().Hex()

	rr := s.do(http.MethodPost, "/comments", bob.Token, gin.H{"message": "hi", "post_id": postID, "sender_id": alice.UserID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/comments", bob.Token, gin.H{"message": "hi", "post_id": "nope"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Server error", messageOf(t, rr))

	rr = s.do(http.MethodPost, "/comments", bob.Token, gin.H{"message": "hi", "post_id": postID})
	require.Equal(t, http.StatusCreated, rr.Code)
	comment := decode[map[string]any](t, rr)
	assert.Equal(t, bob.UserID, comment["sender_id"])
	commentID := comment["_id"].(string)

	rr = s.do(http.MethodGet, "/comments/posts/"+postID, alice.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = s.do(http.MethodGet, "/comments/posts/12345", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid postId", messageOf(t, rr))

	rr = s.do(http.MethodGet, "/comments?post_id="+postID, alice.Token, nil)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	for _, path := range []string{"/comments/invalid_id_format", "/comments?_id=invalid_id_format"} {
		rr = s.do(http.MethodGet, path, alice.Token, nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
		assert.JSONEq(t, `{"message":"Server error"}`, rr.Body.String(), path)
	}

	rr = s.do(http.MethodPut, "/comments/"+commentID, alice.Token, gin.H{"message": "edited"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodPut, "/comments/"+commentID, bob.Token, gin.H{"message": "edited"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "edited", decode[map[string]any](t, rr)["message"])

	rr = s.do(http.MethodDelete, "/comments/"+commentID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "a@x.com", "pw1")
	bob := s.register("bob", "b@x.com", "pw2")

	rr := s.do(http.MethodGet, "/users", alice.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
	assert.NotContains(t, rr.Body.String(), "refreshTokens")
	assert.Len(t, decode[[]map[string]any](t, rr), 2)

	rr = s.do(http.MethodGet, "/users?name=bob", alice.Token, nil)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	// operator and hidden-path keys are dropped rather than matched
	rr = s.do(http.MethodGet, "/users?name=bob&$where=false&refreshTokens.0=x", alice.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = s.do(http.MethodPut, "/users/"+bob.UserID, alice.Token, gin.H{"name": "mallory"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodPut, "/users/"+alice.UserID, alice.Token, gin.H{"refreshTokens": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPut, "/users/"+alice.UserID, alice.Token, gin.H{"password": strings.Repeat("p", 80)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "password must be at most 72 bytes", messageOf(t, rr))

	rr = s.do(http.MethodPut, "/users/"+alice.UserID, alice.Token, gin.H{"password": "pw-new"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "pw1"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = s.do(http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "pw-new"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/users", alice.Token, gin.H{"name": "dave", "password": strings.Repeat("p", 73)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/users", alice.Token, gin.H{"name": "carol", "password": "pw3"})
	require.Equal(t, http.StatusCreated, rr.Code)
	carol := decode[map[string]any](t, rr)
	stored, err := s.users.FindByID(t.Context(), carol["_id"].(string))
	require.NoError(t, err)
	assert.NotEqual(t, "pw3", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("pw3")))

	rr = s.do(http.MethodDelete, "/users/"+bob.UserID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(http.MethodGet, "/users/"+bob.UserID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPostImage(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "a@x.com", "pw1")
	bob := s.register("bob", "b@x.com", "pw2")

	rr := s.do(http.MethodPost, "/posts", alice.Token, gin.H{"title": "Pic", "content": "see image"})
	require.Equal(t, http.StatusCreated, rr.Code)
	postID := decode[map[string]any](t, rr)["_id"].(string)

	upload := func(token, name string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("image", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/posts/"+postID+"/image", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		s.engine.ServeHTTP(rr, req)
		return rr
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	rr = upload(bob.Token, "a.png", png)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = upload(alice.Token, "a.txt", []byte("text"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = upload(alice.Token, "a.png", png)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[map[string]any](t, rr)["imageUrl"].(string)
	assert.True(t, strings.HasPrefix(first, "https://cdn.test/posts/"+postID+"/"))
	assert.Equal(t, 1, s.store.Len())

	rr = upload(alice.Token, "b.png", png)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEqual(t, first, decode[map[string]any](t, rr)["imageUrl"])
	assert.Equal(t, 1, s.store.Len(), "the replaced image is removed")

	rr = s.do(http.MethodDelete, "/posts/"+postID, alice.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, s.store.Len())
}

func TestPostImage_StorageDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := repository.NewMemoryUserRepository()
	posts := repository.NewMemoryRepository[models.Post]()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("k"), AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	hasher := utils.NewBcryptHasher(bcrypt.MinCost)
	sessions, err := auth.NewSessionService(users, tokens, hasher, nil)
	require.NoError(t, err)

	r := gin.New()
	routes.Register(r, routes.Deps{
		Sessions: sessions, Hasher: hasher, Users: users, Posts: posts,
		Comments:  repository.NewMemoryRepository[models.Comment](),
		Validator: utils.NewFileValidator(nil, nil, 1),
	})

	sess, err := sessions.Register(t.Context(), auth.RegisterInput{Username: "alice", Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	sender, err := bson.ObjectIDFromHex(sess.UserID)
	require.NoError(t, err)
	post := &models.Post{Title: "t", Content: "c", SenderID: sender}
	require.NoError(t, posts.Create(t.Context(), post))

	req := httptest.NewRequest(http.MethodPost, "/posts/"+post.ID.Hex()+"/image", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/ping", "", nil)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	s.register("alice", "a@x.com", "pw1")
	rr = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "auth_events_total")
}
