package handlers

import (
	"net/http"

	"yatube/authoring"
	"yatube/middleware"

	"github.com/gin-gonic/gin"
)

func bindForm(c *gin.Context) (authoring.Form, bool) {
	var form authoring.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return form, false
	}
	return form, true
}

func respondOutcome(c *gin.Context, out *authoring.Outcome) {
	if out.Rejected() {
		c.JSON(http.StatusBadRequest, out.Form)
		return
	}
	c.Redirect(http.StatusFound, out.Redirect)
}

// NewPostForm serves GET /create.
func (h *Handler) NewPostForm(c *gin.Context) {
	ctx, cancel := requestTimeout(c)
	defer cancel()

	view, err := h.Authoring.NewForm(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreatePost serves POST /create.
func (h *Handler) CreatePost(c *gin.Context) {
	form, ok := bindForm(c)
	if !ok {
		return
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	out, err := h.Authoring.SubmitCreate(ctx, middleware.CurrentPrincipal(c), form)
	if err != nil {
		fail(c, err)
		return
	}
	respondOutcome(c, out)
}

// EditPostForm serves GET /posts/:id/edit.
func (h *Handler) EditPostForm(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	view, err := h.Authoring.EditForm(ctx, middleware.CurrentPrincipal(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// EditPost serves POST /posts/:id/edit. A non-author is sent back to the
// post without changes.
func (h *Handler) EditPost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	form, ok := bindForm(c)
	if !ok {
		return
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	out, err := h.Authoring.SubmitEdit(ctx, middleware.CurrentPrincipal(c), id, form)
	if err != nil {
		fail(c, err)
		return
	}
	respondOutcome(c, out)
}
