package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bolonyay/internal/filing"
	"bolonyay/internal/workflow"
)

// RegisterRoutes attaches all API endpoints to the router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/recording/start", s.startRecording)
	api.POST("/sessions/:id/recording/stop", s.stopRecording)
	api.POST("/sessions/:id/filing/start", s.startFiling)
	api.POST("/sessions/:id/filing/responses", s.submitResponse)
	api.POST("/sessions/:id/filing/finalize", s.finalize)
	api.POST("/sessions/:id/export", s.exportCase)
	api.POST("/sessions/:id/reset", s.reset)
	api.GET("/sessions/:id/cases", s.listCases)
}

type createSessionRequest struct {
	Language string `json:"language"`
	DeviceID string `json:"device_id" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle := uuid.NewString()
	w := s.factory(req.Language, req.DeviceID)

	s.mu.Lock()
	s.sessions[handle] = w
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"id": handle, "status": w.Snapshot()})
}

func (s *Server) lookup(c *gin.Context) *workflow.Workflow {
	s.mu.Lock()
	w, ok := s.sessions[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return nil
	}
	return w
}

func (s *Server) getSession(c *gin.Context) {
	if w := s.lookup(c); w != nil {
		c.JSON(http.StatusOK, w.Snapshot())
	}
}

func (s *Server) startRecording(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	if err := w.StartRecording(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, w.Snapshot())
}

func (s *Server) stopRecording(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	w.StopRecording(c.Request.Context())
	c.JSON(http.StatusAccepted, w.Snapshot())
}

func (s *Server) startFiling(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	if err := w.StartCaseFiling(c.Request.Context()); err != nil {
		c.JSON(conflictCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, w.Snapshot())
}

type submitResponseRequest struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (s *Server) submitResponse(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w.SubmitResponse(req.Index, req.Text)
	c.JSON(http.StatusOK, w.Snapshot())
}

func (s *Server) finalize(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	caseNumber, err := w.FinalizeCase(c.Request.Context())
	if err != nil {
		c.JSON(conflictCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_number": caseNumber, "status": w.Snapshot()})
}

func (s *Server) exportCase(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	artifact, err := w.ExportCase()
	if err != nil {
		c.JSON(conflictCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, artifact)
}

func (s *Server) reset(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	w.Reset()
	c.JSON(http.StatusOK, w.Snapshot())
}

func (s *Server) listCases(c *gin.Context) {
	w := s.lookup(c)
	if w == nil {
		return
	}
	cases, err := w.Cases()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// conflictCode maps state-machine violations to 409 and everything else
// to 502 (failed external collaborator).
func conflictCode(err error) int {
	switch {
	case errors.Is(err, filing.ErrAlreadyStarted),
		errors.Is(err, filing.ErrNotReady),
		errors.Is(err, filing.ErrAlreadyFiled),
		errors.Is(err, workflow.ErrEmptyConversation),
		errors.Is(err, workflow.ErrNotFiled),
		errors.Is(err, workflow.ErrNotPersisted):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
