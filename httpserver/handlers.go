package httpserver

import (
	"errors"
	"io"
	"net/http"

	"interview-lab/auth"
	apperrors "interview-lab/errors"
	"interview-lab/llm"
	"interview-lab/search"

	"github.com/gin-gonic/gin"
)

type messageRequest struct {
	Messages []llm.Message `json:"messages" binding:"required,min=1"`
}

// message runs one conversational round-trip and streams the reply chunks
// as plain text. Persistence continues in the background even if the client
// goes away mid-stream.
func (s *Server) message(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	reply, err := s.interviews.Message(c.Request.Context(), c.Param("token"), req.Messages)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-reply.Chunks
		if !ok {
			return false
		}
		_, _ = io.WriteString(w, chunk)
		return true
	})
}

// complete ends the interview at the participant's request. Repeating the
// call acknowledges the existing terminal state.
func (s *Server) complete(c *gin.Context) {
	p, err := s.interviews.Complete(c.Param("token"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant_id": p.ID,
		"status":         string(p.Status),
		"reason":         string(p.CompletedReason),
		"completed_at":   p.CompletedAt,
	})
}

func (s *Server) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := auth.ValidateLogin(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	token, err := s.auths.Login(req.Email, req.Password)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": string(token)})
}

// invite mints a participant for the session and returns the one-time view
// of the invite token.
func (s *Server) invite(c *gin.Context) {
	p, err := s.invites.Invite(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"participant_id": p.ID,
		"session_id":     p.SessionID,
		"token":          p.Token,
		"invited_at":     p.InvitedAt,
	})
}

func (s *Server) transcript(c *gin.Context) {
	turns, err := s.interviews.Transcript(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	out := make([]gin.H, 0, len(turns))
	for _, t := range turns {
		out = append(out, gin.H{
			"index":      t.Index,
			"role":       string(t.Role),
			"content":    t.Content,
			"lang":       t.Lang,
			"created_at": t.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"participant_id": c.Param("id"), "turns": out})
}

// searchTranscripts runs a full-text query over indexed turns.
func (s *Server) searchTranscripts(c *gin.Context) {
	query := search.ParseQuery(c.Query("q"))
	hits, total, err := s.index.Search(c.Request.Context(), query)
	if err != nil {
		s.renderError(c, err)
		return
	}

	out := make([]gin.H, 0, len(hits))
	for _, h := range hits {
		out = append(out, gin.H{
			"participant_id": h.ParticipantID,
			"index":          h.Index,
			"role":           h.Role,
			"content":        h.Content,
			"lang":           h.Lang,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "hits": out})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "counters": s.monitor.Snapshot()})
}

// renderError maps domain errors to transport status codes. The correlation
// id rides along so operators can find the matching log lines.
func (s *Server) renderError(c *gin.Context, err error) {
	correlationID := c.GetString("correlation_id")

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidToken):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrSessionCompleted):
		status = http.StatusGone
	case errors.Is(err, apperrors.ErrScriptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrParticipantExists), errors.Is(err, apperrors.ErrOperatorExists):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrScriptInvalid), errors.Is(err, apperrors.ErrInvalidPassword):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "correlation_id", correlationID, "error", err)
	} else {
		s.log.Info("Request rejected", "correlation_id", correlationID, "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "correlation_id": correlationID})
}
