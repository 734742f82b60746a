package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"yatube/authoring"
	"yatube/feed"
	"yatube/handlers"
	"yatube/middleware"
	"yatube/routes"
	"yatube/store"
	"yatube/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the yatube HTTP server.

Examples:
  yatube serve
  yatube serve --addr :9000
  STORAGE_DRIVER=memory yatube serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :$PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logrus.WithField("component", "server")
	log.Info("Starting yatube server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	cache := feed.NewMemoryCache()
	defer cache.Close()

	assembler := feed.NewAssembler(be.posts, be.groups, be.users, cache, feed.Config{
		PageSize: cfg.PageSize,
		TTL:      cfg.CacheTTL,
	})
	events := websocket.NewManager()
	go events.Run(ctx)

	workflow := authoring.NewWorkflow(be.posts, be.groups, assembler,
		store.Rules{MaxTextLength: cfg.MaxPostTextLength},
		authoring.WithNotifier(events),
	)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go pruneLimiter(ctx, limiter)

	router := routes.SetupRouter(&handlers.Handler{
		Feed:      assembler,
		Authoring: workflow,
		Users:     be.users,
		Groups:    be.groups,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}, routes.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     limiter,
		Events:      events,
	})

	addr := serveAddr
	if addr == "" {
		addr = ":" + cfg.Port
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Forced shutdown")
	}
	log.Info("Server stopped")
	return nil
}

func pruneLimiter(ctx context.Context, limiter *middleware.IPRateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
