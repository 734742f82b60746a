package routes

import (
	"net/http"
	"time"

	"yatube/handlers"
	"yatube/middleware"
	"yatube/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Options struct {
	JWTSecret   string
	CORSOrigins []string
	// Limiter throttles the write endpoints. Nil disables throttling.
	Limiter *middleware.IPRateLimiter
	// Events serves live post events on /ws when set.
	Events *websocket.Manager
}

func SetupRouter(h *handlers.Handler, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestLogger(logrus.WithField("component", "http")),
		gin.Recovery(),
	)

	router.GET("/health", handlers.Health)

	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", "Content-Type", "Location", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(middleware.Authenticate(opts.JWTSecret))

	writes := []gin.HandlerFunc{}
	if opts.Limiter != nil {
		writes = append(writes, middleware.RateLimit(opts.Limiter))
	}

	// Public routes
	router.GET("/", h.Index)
	router.GET("/group/:slug", h.GroupPosts)
	router.GET("/profile/:username", h.Profile)
	router.GET("/posts/:id", h.PostDetail)
	router.GET("/groups", h.ListGroups)

	auth := router.Group("/auth")
	auth.GET("/login", handlers.LoginPage)
	auth.POST("/login", append(writes, h.Login)...)
	auth.POST("/signup", append(writes, h.Signup)...)

	// Routes that need a logged-in user
	protected := router.Group("/")
	protected.Use(middleware.RequireAuth(handlers.LoginURL))

	protected.GET("/me", h.GetMyProfile)
	protected.GET("/create", h.NewPostForm)
	protected.POST("/create", append(writes, h.CreatePost)...)
	protected.GET("/posts/:id/edit", h.EditPostForm)
	protected.POST("/posts/:id/edit", append(writes, h.EditPost)...)

	if opts.Events != nil {
		router.GET("/ws", websocket.Handler(opts.Events, opts.CORSOrigins))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})

	return router
}
