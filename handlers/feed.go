package handlers

import (
	"net/http"
	"strconv"

	"yatube/models"

	"github.com/gin-gonic/gin"
)

type feedResponse struct {
	*models.FeedPage
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// parsePage reads the page query parameter; it defaults to 1.
func parsePage(c *gin.Context) (int, bool) {
	raw := c.Query("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer", "field": "page"})
		return 0, false
	}
	return page, true
}

func (h *Handler) serveFeed(c *gin.Context, filter models.Filter) {
	page, ok := parsePage(c)
	if !ok {
		return
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	fp, err := h.Feed.Feed(ctx, filter, page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, feedResponse{
		FeedPage:    fp,
		TotalPages:  fp.TotalPages(),
		HasNext:     fp.HasNext(),
		HasPrevious: fp.HasPrevious(),
	})
}

// Index serves GET /.
func (h *Handler) Index(c *gin.Context) {
	h.serveFeed(c, models.AllPosts())
}

// GroupPosts serves GET /group/:slug.
func (h *Handler) GroupPosts(c *gin.Context) {
	h.serveFeed(c, models.ByGroup(c.Param("slug")))
}

// Profile serves GET /profile/:username.
func (h *Handler) Profile(c *gin.Context) {
	h.serveFeed(c, models.ByAuthor(c.Param("username")))
}

// PostDetail serves GET /posts/:id.
func (h *Handler) PostDetail(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	detail, err := h.Feed.Post(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
