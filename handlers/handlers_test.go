package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"yatube/authoring"
	"yatube/feed"
	"yatube/middleware"
	"yatube/models"
	"yatube/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type feedMock struct {
	FeedFunc func(ctx context.Context, filter models.Filter, page int) (*models.FeedPage, error)
	PostFunc func(ctx context.Context, id primitive.ObjectID) (*models.PostDetail, error)
}

func (m *feedMock) Feed(ctx context.Context, filter models.Filter, page int) (*models.FeedPage, error) {
	return m.FeedFunc(ctx, filter, page)
}

func (m *feedMock) Post(ctx context.Context, id primitive.ObjectID) (*models.PostDetail, error) {
	return m.PostFunc(ctx, id)
}

type authoringMock struct {
	NewFormFunc      func(ctx context.Context) (*authoring.FormView, error)
	SubmitCreateFunc func(ctx context.Context, p models.Principal, form authoring.Form) (*authoring.Outcome, error)
	EditFormFunc     func(ctx context.Context, p models.Principal, id primitive.ObjectID) (*authoring.FormView, error)
	SubmitEditFunc   func(ctx context.Context, p models.Principal, id primitive.ObjectID, form authoring.Form) (*authoring.Outcome, error)
}

func (m *authoringMock) NewForm(ctx context.Context) (*authoring.FormView, error) {
	return m.NewFormFunc(ctx)
}

func (m *authoringMock) SubmitCreate(ctx context.Context, p models.Principal, form authoring.Form) (*authoring.Outcome, error) {
	return m.SubmitCreateFunc(ctx, p, form)
}

func (m *authoringMock) EditForm(ctx context.Context, p models.Principal, id primitive.ObjectID) (*authoring.FormView, error) {
	return m.EditFormFunc(ctx, p, id)
}

func (m *authoringMock) SubmitEdit(ctx context.Context, p models.Principal, id primitive.ObjectID, form authoring.Form) (*authoring.Outcome, error) {
	return m.SubmitEditFunc(ctx, p, id, form)
}

// withPrincipal stands in for middleware.Authenticate.
func withPrincipal(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.IsAnonymous() {
			token, _ := middleware.IssueToken("k", p, time.Hour)
			c.Request.Header.Set("Authorization", "Bearer "+token)
		}
		middleware.Authenticate("k")(c)
	}
}

func serve(r *gin.Engine, method, target string, body url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFeedHandlers(t *testing.T) {
	var got []string
	h := &Handler{Feed: &feedMock{
		FeedFunc: func(_ context.Context, filter models.Filter, page int) (*models.FeedPage, error) {
			got = append(got, filter.String())
			return &models.FeedPage{Filter: filter, Page: page, PageSize: 10, TotalCount: 15}, nil
		},
	}}
	r := gin.New()
	r.GET("/", h.Index)
	r.GET("/group/:slug", h.GroupPosts)
	r.GET("/profile/:username", h.Profile)

	w := serve(r, http.MethodGet, "/?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Filter      string `json:"filter"`
		Page        int    `json:"page"`
		TotalCount  int64  `json:"totalCount"`
		TotalPages  int    `json:"totalPages"`
		HasNext     bool   `json:"hasNext"`
		HasPrevious bool   `json:"hasPrevious"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "all", resp.Filter)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, int64(15), resp.TotalCount)
	assert.Equal(t, 2, resp.TotalPages)
	assert.False(t, resp.HasNext)
	assert.True(t, resp.HasPrevious)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/group/cats", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/profile/alice", nil).Code)
	assert.Equal(t, []string{"all", "group:cats", "author:alice"}, got)
}

func TestFeedHandlerBadPage(t *testing.T) {
	h := &Handler{Feed: &feedMock{
		FeedFunc: func(context.Context, models.Filter, int) (*models.FeedPage, error) {
			t.Fatal("feed must not be queried")
			return nil, nil
		},
	}}
	r := gin.New()
	r.GET("/", h.Index)

	for _, q := range []string{"0", "-1", "abc", "1.5"} {
		w := serve(r, http.MethodGet, "/?page="+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestFeedHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("group %q: %w", "x", feed.ErrNotFound), http.StatusNotFound},
		{"validation", &feed.ValidationError{Field: "page", Message: "bad"}, http.StatusBadRequest},
		{"internal", errors.New("mongo exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handler{Feed: &feedMock{
				FeedFunc: func(context.Context, models.Filter, int) (*models.FeedPage, error) { return nil, tt.err },
			}}
			r := gin.New()
			r.GET("/group/:slug", h.GroupPosts)
			w := serve(r, http.MethodGet, "/group/nonexistent-slug", nil)
			assert.Equal(t, tt.want, w.Code)
			assert.NotContains(t, w.Body.String(), "mongo exploded")
		})
	}
}

func TestPostDetailHandler(t *testing.T) {
	id := primitive.NewObjectID()
	h := &Handler{Feed: &feedMock{
		PostFunc: func(_ context.Context, got primitive.ObjectID) (*models.PostDetail, error) {
			if got != id {
				return nil, feed.ErrNotFound
			}
			return &models.PostDetail{PostView: models.PostView{Post: models.Post{ID: id, Text: "hi"}}, AuthorPostCount: 3}, nil
		},
	}}
	r := gin.New()
	r.GET("/posts/:id", h.PostDetail)

	w := serve(r, http.MethodGet, "/posts/"+id.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"text":"hi"`)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/posts/"+primitive.NewObjectID().Hex(), nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/posts/not-an-id", nil).Code)
}

func TestCreatePostHandler(t *testing.T) {
	alice := models.Principal{UserID: primitive.NewObjectID(), Username: "alice"}
	var submitted authoring.Form
	h := &Handler{Authoring: &authoringMock{
		SubmitCreateFunc: func(_ context.Context, p models.Principal, form authoring.Form) (*authoring.Outcome, error) {
			submitted = form
			if form.Text == "" {
				return &authoring.Outcome{Form: &authoring.FormView{Form: form, Errors: authoring.FieldErrors{"text": {"This field is required."}}}}, nil
			}
			return &authoring.Outcome{Redirect: authoring.ProfileURL(p.Username)}, nil
		},
	}}
	r := gin.New()
	r.Use(withPrincipal(alice))
	r.POST("/create", h.CreatePost)

	w := serve(r, http.MethodPost, "/create", url.Values{"text": {"Hello"}, "group": {""}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/alice", w.Header().Get("Location"))
	assert.Equal(t, authoring.Form{Text: "Hello"}, submitted)

	w = serve(r, http.MethodPost, "/create", url.Values{"text": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")
}

func TestEditPostHandler(t *testing.T) {
	bob := models.Principal{UserID: primitive.NewObjectID(), Username: "bob"}
	id := primitive.NewObjectID()
	h := &Handler{Authoring: &authoringMock{
		SubmitEditFunc: func(_ context.Context, _ models.Principal, got primitive.ObjectID, _ authoring.Form) (*authoring.Outcome, error) {
			if got != id {
				return nil, authoring.ErrNotFound
			}
			return nil, &authoring.ForbiddenError{PostID: id.Hex(), Redirect: authoring.PostURL(id)}
		},
		EditFormFunc: func(_ context.Context, _ models.Principal, _ primitive.ObjectID) (*authoring.FormView, error) {
			return &authoring.FormView{Form: authoring.Form{Text: "old"}, IsEdit: true}, nil
		},
	}}
	r := gin.New()
	r.Use(withPrincipal(bob))
	r.GET("/posts/:id/edit", h.EditPostForm)
	r.POST("/posts/:id/edit", h.EditPost)

	w := serve(r, http.MethodPost, "/posts/"+id.Hex()+"/edit", url.Values{"text": {"bob was here"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/posts/"+id.Hex(), w.Header().Get("Location"))

	w = serve(r, http.MethodPost, "/posts/"+primitive.NewObjectID().Hex()+"/edit", url.Values{"text": {"x"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/posts/"+id.Hex()+"/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isEdit":true`)
}

func TestUnauthenticatedSubmissionRedirectsToLogin(t *testing.T) {
	h := &Handler{Authoring: &authoringMock{
		SubmitCreateFunc: func(context.Context, models.Principal, authoring.Form) (*authoring.Outcome, error) {
			return nil, authoring.ErrUnauthenticated
		},
	}}
	r := gin.New()
	r.POST("/create", h.CreatePost)

	w := serve(r, http.MethodPost, "/create", url.Values{"text": {"hi"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginURL, w.Header().Get("Location"))
}

func TestSignupAndLogin(t *testing.T) {
	h := &Handler{
		Users:     store.NewMemoryUserStore(),
		JWTSecret: "k",
		TokenTTL:  time.Hour,
	}
	r := gin.New()
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)

	w := serve(r, http.MethodPost, "/auth/signup", url.Values{
		"email": {"Alice@Example.com"}, "username": {"alice"}, "password": {"secret123"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	p, err := middleware.ParseToken("k", created.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	w = serve(r, http.MethodPost, "/auth/signup", url.Values{
		"email": {"other@example.com"}, "username": {"alice"}, "password": {"secret123"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(r, http.MethodPost, "/auth/signup", url.Values{
		"email": {"x@example.com"}, "username": {"bad/name"}, "password": {"secret123"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/auth/login", url.Values{"username": {"alice"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Result().Cookies())

	w = serve(r, http.MethodPost, "/auth/login", url.Values{"email": {"alice@example.com"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPost, "/auth/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodPost, "/auth/login", url.Values{"username": {"nobody"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
