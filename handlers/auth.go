package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"yatube/middleware"
	"yatube/models"
	"yatube/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type SignupRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Username string `json:"username" form:"username" binding:"required,max=150"`
	Name     string `json:"name" form:"name" binding:"max=150"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
}

// LoginRequest accepts either the username or the email.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password" binding:"required"`
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

func (h *Handler) issue(c *gin.Context, status int, user *models.User, message string) {
	principal := models.Principal{UserID: user.ID, Username: user.Username}
	tokenString, err := middleware.IssueToken(h.JWTSecret, principal, h.TokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	c.SetCookie(middleware.TokenCookie, tokenString, int(h.TokenTTL.Seconds()), "/", "", false, true)
	c.JSON(status, gin.H{
		"message":  message,
		"token":    tokenString,
		"userId":   user.ID.Hex(),
		"username": user.Username,
	})
}

// Signup serves POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Username may contain only letters, digits and @/./+/-/_",
			"field": "username",
		})
		return
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, err)
		return
	}
	hashed := string(hashedPassword)

	user := &models.User{
		Email:        strings.ToLower(req.Email),
		PasswordHash: &hashed,
		CreatedAt:    time.Now().Unix(),
		Username:     req.Username,
		Name:         strings.TrimSpace(req.Name),
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already in use"})
			return
		}
		fail(c, err)
		return
	}
	hlog.WithField("user", user.Username).Info("User signed up")
	h.issue(c, http.StatusCreated, user, "User created successfully")
}

// Login serves POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email is required"})
		return
	}

	ctx, cancel := requestTimeout(c)
	defer cancel()

	var (
		user *models.User
		err  error
	)
	if req.Username != "" {
		user, err = h.Users.GetByUsername(ctx, req.Username)
	} else {
		user, err = h.Users.GetByEmail(ctx, strings.ToLower(req.Email))
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	if user.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	h.issue(c, http.StatusOK, user, "Login successful")
}

// LoginPage serves GET /auth/login, the target of login redirects.
func LoginPage(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "Authentication required",
		"message": "POST credentials to /auth/login",
		"next":    c.Query("next"),
	})
}
