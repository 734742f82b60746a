package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"yatube/authoring"
	"yatube/feed"
	"yatube/middleware"
	"yatube/models"
	"yatube/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const LoginURL = "/auth/login"

// FeedReader serves feed pages and post details.
type FeedReader interface {
	Feed(ctx context.Context, filter models.Filter, page int) (*models.FeedPage, error)
	Post(ctx context.Context, id primitive.ObjectID) (*models.PostDetail, error)
}

// Authoring creates and edits posts.
type Authoring interface {
	NewForm(ctx context.Context) (*authoring.FormView, error)
	SubmitCreate(ctx context.Context, principal models.Principal, form authoring.Form) (*authoring.Outcome, error)
	EditForm(ctx context.Context, principal models.Principal, postID primitive.ObjectID) (*authoring.FormView, error)
	SubmitEdit(ctx context.Context, principal models.Principal, postID primitive.ObjectID, form authoring.Form) (*authoring.Outcome, error)
}

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	Feed      FeedReader
	Authoring Authoring
	Users     store.UserStore
	Groups    store.GroupStore

	JWTSecret string
	TokenTTL  time.Duration
}

var hlog = logrus.WithField("component", "handlers")

func requestTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

// fail maps a domain error onto a response.
func fail(c *gin.Context, err error) {
	var (
		feedInvalid  *feed.ValidationError
		storeInvalid *store.ValidationError
		forbidden    *authoring.ForbiddenError
	)
	switch {
	case errors.As(err, &feedInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": feedInvalid.Message, "field": feedInvalid.Field})
	case errors.As(err, &storeInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": storeInvalid.Message, "field": storeInvalid.Field})
	case errors.As(err, &forbidden):
		c.Redirect(http.StatusFound, forbidden.Redirect)
	case errors.Is(err, authoring.ErrUnauthenticated):
		c.Redirect(http.StatusFound, LoginURL)
	case errors.Is(err, feed.ErrNotFound), errors.Is(err, authoring.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		hlog.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"path":       c.Request.URL.Path,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

// postID parses the :id path parameter. Malformed ids cannot name a post and
// answer 404.
func postID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		notFound(c)
		return primitive.NilObjectID, false
	}
	return id, true
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}
