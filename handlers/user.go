package handlers

import (
	"errors"
	"net/http"

	"yatube/middleware"
	"yatube/store"

	"github.com/gin-gonic/gin"
)

// GetMyProfile serves GET /me.
func (h *Handler) GetMyProfile(c *gin.Context) {
	principal := middleware.CurrentPrincipal(c)

	ctx, cancel := requestTimeout(c)
	defer cancel()

	user, err := h.Users.GetByID(ctx, principal.UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID.Hex(),
		"email":      user.Email,
		"name":       user.Ref().Name,
		"username":   user.Username,
		"createdAt":  user.CreatedAt,
		"profileUrl": "/profile/" + user.Username,
	})
}

// ListGroups serves GET /groups.
func (h *Handler) ListGroups(c *gin.Context) {
	ctx, cancel := requestTimeout(c)
	defer cancel()

	groups, err := h.Groups.List(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
