// Package httpserver exposes the interview engine over HTTP. Participants
// authenticate with their invite token in the path; the operator surface
// under /ops is JWT-protected.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"interview-lab/auth"
	"interview-lab/observability"
	"interview-lab/search"
	"interview-lab/services"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	log        *slog.Logger
	interviews services.IInterviewService
	auths      services.IAuthService
	invites    services.IInviteService
	index      *search.TranscriptIndex
	monitor    *observability.Monitoring
	tokens     auth.TokenManager
	addr       string
}

func NewServer(
	log *slog.Logger,
	interviews services.IInterviewService,
	auths services.IAuthService,
	invites services.IInviteService,
	index *search.TranscriptIndex,
	monitor *observability.Monitoring,
	tokens auth.TokenManager,
	addr string,
) *Server {
	return &Server{
		log:        log,
		interviews: interviews,
		auths:      auths,
		invites:    invites,
		index:      index,
		monitor:    monitor,
		tokens:     tokens,
		addr:       addr,
	}
}

// Routes builds the gin engine with all endpoints attached.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), CorrelationID())

	router.GET("/healthz", s.healthz)

	interviews := router.Group("/interviews")
	{
		interviews.POST("/:token/message", s.message)
		interviews.POST("/:token/complete", s.complete)
	}

	ops := router.Group("/ops")
	{
		ops.POST("/login", s.login)

		protected := ops.Group("")
		protected.Use(JwtAuth(s.tokens))
		protected.POST("/sessions/:id/participants", s.invite)
		protected.GET("/participants/:id/transcript", s.transcript)
		protected.GET("/search", s.searchTranscripts)
	}

	return router
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.log.Info("HTTP server listening", "addr", s.addr)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
