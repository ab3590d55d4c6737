package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"bolonyay/internal/workflow"
)

// WorkflowFactory builds one workflow instance per conversation.
type WorkflowFactory func(language, deviceID string) *workflow.Workflow

// Options holds configuration for the API server.
type Options struct {
	Port    int
	Factory WorkflowFactory
	Out     io.Writer
}

// Server exposes workflow operations over HTTP. Each conversation gets
// its own workflow instance, addressed by an opaque handle.
type Server struct {
	mu       sync.Mutex
	sessions map[string]*workflow.Workflow
	factory  WorkflowFactory
}

func New(factory WorkflowFactory) *Server {
	return &Server{
		sessions: make(map[string]*workflow.Workflow),
		factory:  factory,
	}
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Options) error {
	if opts.Factory == nil {
		return fmt.Errorf("server: workflow factory is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := New(opts.Factory)
	s.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
