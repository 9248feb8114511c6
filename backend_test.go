package inspirehub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	testUserID   = "65f1c0ffee0000000000abcd"
	testUsername = "alice"
	testPassword = "secret"

	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

// recordedRequest is what the fake backend saw for one attempt.
type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	RequestID     string
}

// fakeBackend mimics the InspireHub REST API. Access tokens are HS256
// JWTs; tokens passed to expire are answered with 401 from then on.
type fakeBackend struct {
	t      *testing.T
	srv    *httptest.Server
	secret []byte

	mu            sync.Mutex
	seq           int
	expired       map[string]bool
	refreshTokens map[string]string
	refreshCalls  int
	refreshStatus int
	refreshHook   func()
	requests      []recordedRequest
	posts         []Post
	comments      []Comment
	quotes        []Quote
	likes         map[string]map[string]bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		t:             t,
		secret:        []byte("test-signing-secret"),
		expired:       map[string]bool{},
		refreshTokens: map[string]string{},
		likes:         map[string]map[string]bool{},
		quotes:        []Quote{{Text: "Stay hungry.", Author: "Steve Jobs"}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", b.handleLogin)
	mux.HandleFunc("POST /api/auth/register", b.handleRegister)
	mux.HandleFunc("POST /api/auth/refresh-token", b.handleRefresh)
	mux.HandleFunc("GET /api/auth/get-user/{id}", b.authed(b.handleGetUser))
	mux.HandleFunc("PUT /api/auth/update-profile/{id}", b.authed(b.handleUpdateProfile))
	mux.HandleFunc("GET /api/posts", b.authed(b.handleListPosts))
	mux.HandleFunc("POST /api/posts", b.authed(b.handleCreatePost))
	mux.HandleFunc("GET /api/posts/sender/{id}", b.authed(b.handleListPosts))
	mux.HandleFunc("GET /api/posts/{id}", b.authed(b.handleGetPost))
	mux.HandleFunc("PUT /api/posts/{id}", b.authed(b.handleUpdatePost))
	mux.HandleFunc("DELETE /api/posts/{id}", b.authed(b.handleDeletePost))
	mux.HandleFunc("PUT /api/posts/{id}/like", b.authed(b.handleLike))
	mux.HandleFunc("POST /api/uploads/post-image", b.authed(b.handleUpload))
	mux.HandleFunc("GET /api/comments/post/{id}", b.authed(b.handleListComments))
	mux.HandleFunc("POST /api/comments", b.authed(b.handleCreateComment))
	mux.HandleFunc("PUT /api/comments/{id}", b.authed(b.handleUpdateComment))
	mux.HandleFunc("DELETE /api/comments/{id}", b.authed(b.handleDeleteComment))
	mux.HandleFunc("GET /api/quote", b.handleQuote)
	mux.HandleFunc("GET /api/always-unauthorized", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	})
	mux.HandleFunc("GET /api/broken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "database unavailable"})
	})

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			RequestID:     r.Header.Get(RequestIDHeader),
		})
		b.mu.Unlock()

		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)

	return b
}

// newClient returns a client for the fake backend with a silent logger.
func (b *fakeBackend) newClient(opts ...ClientOption) *Client {
	b.t.Helper()

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	c, err := New(b.srv.URL+"/api", append([]ClientOption{WithLogger(logger)}, opts...)...)
	if err != nil {
		b.t.Fatalf("New() error = %v", err)
	}
	return c
}

// issue returns a fresh token pair for userID.
func (b *fakeBackend) issue(userID string) (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	access := b.mint(userID, b.seq)
	refresh := fmt.Sprintf("refresh-%s-%d", userID, b.seq)
	b.refreshTokens[refresh] = userID

	return access, refresh
}

// mint must be called with mu held.
func (b *fakeBackend) mint(userID string, seq int) string {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        strconv.Itoa(seq),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		b.t.Fatalf("sign token: %v", err)
	}
	return token
}

// expire makes the backend reject token as if it had expired.
func (b *fakeBackend) expire(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expired[token] = true
}

// revokeRefreshTokens forgets every refresh token.
func (b *fakeBackend) revokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshTokens = map[string]string{}
}

// failRefresh answers every refresh call with status.
func (b *fakeBackend) failRefresh(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshStatus = status
}

// onRefresh runs hook at the start of every refresh call.
func (b *fakeBackend) onRefresh(hook func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshHook = hook
}

func (b *fakeBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.refreshCalls
}

// hits returns the recorded attempts for method and path.
func (b *fakeBackend) hits(method, path string) []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []recordedRequest
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *fakeBackend) userFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || (scheme != AuthSchemeJWT && scheme != AuthSchemeBearer) {
		return "", false
	}

	b.mu.Lock()
	expired := b.expired[token]
	b.mu.Unlock()
	if expired {
		return "", false
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", false
	}

	return claims.SubjectID(), true
}

func (b *fakeBackend) authed(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := b.userFromRequest(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next(w, r, userID)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if in.Username != testUsername || in.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
		return
	}

	access, refresh := b.issue(testUserID)
	writeJSON(w, http.StatusOK, LoginResponse{
		ID:             testUserID,
		Username:       testUsername,
		ProfilePicture: "/uploads/alice.png",
		AccessToken:    access,
		RefreshToken:   refresh,
	})
}

func (b *fakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	profile := Profile{ID: "new-user-id"}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		profile.Username = r.FormValue("username")
		profile.Email = r.FormValue("email")
		if _, fh, err := r.FormFile("profilePicture"); err == nil {
			profile.ProfilePicture = "/uploads/" + fh.Filename
		}
	} else {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		profile.Username = in["username"]
		profile.Email = in["email"]
	}

	writeJSON(w, http.StatusCreated, profile)
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	status := b.refreshStatus
	hook := b.refreshHook
	b.mu.Unlock()

	if hook != nil {
		hook()
	}

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "refresh unavailable"})
		return
	}

	var in RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	userID, ok := b.refreshTokens[in.Token]
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Invalid refresh token"})
		return
	}

	b.seq++
	writeJSON(w, http.StatusOK, RefreshTokenResponse{AccessToken: b.mint(userID, b.seq)})
}

func (b *fakeBackend) handleGetUser(w http.ResponseWriter, r *http.Request, _ string) {
	writeJSON(w, http.StatusOK, Profile{ID: r.PathValue("id"), Username: testUsername, Email: "alice@example.com"})
}

func (b *fakeBackend) handleUpdateProfile(w http.ResponseWriter, r *http.Request, _ string) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	profile := Profile{ID: r.PathValue("id"), Username: r.FormValue("username")}
	if _, fh, err := r.FormFile("profilePicture"); err == nil {
		profile.ProfilePicture = "/uploads/" + fh.Filename
	}
	writeJSON(w, http.StatusOK, profile)
}

func (b *fakeBackend) handleListPosts(w http.ResponseWriter, r *http.Request, _ string) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sender := r.PathValue("id")

	b.mu.Lock()
	var matching []Post
	for _, p := range b.posts {
		if sender == "" || p.Sender.ID == sender {
			matching = append(matching, p)
		}
	}
	b.mu.Unlock()

	page := []Post{}
	if offset < len(matching) {
		end := len(matching)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page = matching[offset:end]
	}
	writeJSON(w, http.StatusOK, page)
}

func (b *fakeBackend) findPost(id string) (int, bool) {
	for i, p := range b.posts {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (b *fakeBackend) handleGetPost(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.findPost(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
		return
	}
	writeJSON(w, http.StatusOK, b.posts[i])
}

func (b *fakeBackend) handleCreatePost(w http.ResponseWriter, r *http.Request, userID string) {
	var in NewPost
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	post := Post{
		ID:       fmt.Sprintf("post-%d", b.seq),
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		Sender:   Sender{ID: userID},
	}
	b.posts = append(b.posts, post)
	writeJSON(w, http.StatusCreated, post)
}

func (b *fakeBackend) handleUpdatePost(w http.ResponseWriter, r *http.Request, _ string) {
	var in PostUpdate
	imageName := ""
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		in.Title = r.FormValue("title")
		in.Content = r.FormValue("content")
		if _, fh, err := r.FormFile("image"); err == nil {
			imageName = fh.Filename
		}
	} else if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.findPost(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
		return
	}
	if in.Title != "" {
		b.posts[i].Title = in.Title
	}
	if in.Content != "" {
		b.posts[i].Content = in.Content
	}
	if imageName != "" {
		b.posts[i].ImageURL = "/uploads/" + imageName
	}
	writeJSON(w, http.StatusOK, b.posts[i])
}

func (b *fakeBackend) handleDeletePost(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.findPost(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
		return
	}
	b.posts = append(b.posts[:i], b.posts[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

func (b *fakeBackend) handleLike(w http.ResponseWriter, r *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := r.PathValue("id")
	if b.likes[id] == nil {
		b.likes[id] = map[string]bool{}
	}
	liked := !b.likes[id][userID]
	b.likes[id][userID] = liked
	if !liked {
		delete(b.likes[id], userID)
	}

	writeJSON(w, http.StatusOK, LikeResult{Likes: len(b.likes[id]), Liked: liked})
}

func (b *fakeBackend) handleUpload(w http.ResponseWriter, r *http.Request, _ string) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	_, fh, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "file is required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": b.srv.URL + "/uploads/1700000000-" + fh.Filename})
}

func (b *fakeBackend) handleListComments(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []Comment{}
	for _, c := range b.comments {
		if c.PostID == r.PathValue("id") {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) handleCreateComment(w http.ResponseWriter, r *http.Request, userID string) {
	var in commentBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	c := Comment{
		ID:      fmt.Sprintf("comment-%d", b.seq),
		Content: in.Content,
		PostID:  in.PostID,
		Sender:  Sender{ID: userID},
	}
	b.comments = append(b.comments, c)

	// The real backend answers with the unpopulated sender id.
	writeJSON(w, http.StatusCreated, map[string]string{
		"_id":     c.ID,
		"content": c.Content,
		"postId":  c.PostID,
		"sender":  userID,
	})
}

func (b *fakeBackend) handleUpdateComment(w http.ResponseWriter, r *http.Request, _ string) {
	var in commentBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.comments {
		if c.ID == r.PathValue("id") {
			b.comments[i].Content = in.Content
			writeJSON(w, http.StatusOK, b.comments[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Comment not found"})
}

func (b *fakeBackend) handleDeleteComment(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.comments {
		if c.ID == r.PathValue("id") {
			b.comments = append(b.comments[:i], b.comments[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Comment not found"})
}

func (b *fakeBackend) handleQuote(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	quotes := b.quotes
	if quotes == nil {
		quotes = []Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// seedPosts adds n posts written by senderID.
func (b *fakeBackend) seedPosts(senderID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < n; i++ {
		b.seq++
		b.posts = append(b.posts, Post{
			ID:      fmt.Sprintf("post-%d", b.seq),
			Title:   fmt.Sprintf("Post %d", len(b.posts)+1),
			Content: "content",
			Sender:  Sender{ID: senderID, Username: testUsername},
		})
	}
}

// login logs the client in as the test user.
func login(t *testing.T, c *Client) *Credential {
	t.Helper()

	cred, err := c.Login(t.Context(), LoginRequest{Username: testUsername, Password: testPassword})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return cred
}
