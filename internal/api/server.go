// Package api exposes the RAG backend over HTTP using gin.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"rag-backend/internal/api/docs"
	"rag-backend/internal/domain"
	"rag-backend/internal/storage"
	"rag-backend/internal/tasks"
)

// RAG is the part of the service the HTTP layer calls synchronously.
type RAG interface {
	Ask(ctx context.Context, query string) (domain.Answer, error)
	Search(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error)
}

// TaskQueue accepts background work and reports its state.
type TaskQueue interface {
	Submit(ctx context.Context, kind string, payload map[string]string) (string, error)
	Get(ctx context.Context, id string) (tasks.Task, error)
}

// Options configure request limits.
type Options struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Server struct {
	rag     RAG
	queue   TaskQueue
	uploads storage.Store
	opts    Options
	logger  *slog.Logger
}

func NewServer(rag RAG, queue TaskQueue, uploads storage.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Server{rag: rag, queue: queue, uploads: uploads, opts: opts, logger: opts.Logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(s.logger), gin.CustomRecovery(s.recovered))
	docs.SwaggerInfo.BasePath = "/"

	router.GET("/health", s.health)
	router.POST("/documents/upload", s.upload)
	chat := router.Group("/chat")
	{
		chat.POST("/ask", s.ask)
		chat.POST("/search", s.search)
	}
	router.POST("/tasks", s.submitTask)
	router.GET("/tasks/:id", s.getTask)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	return router
}

// requestContext bounds synchronous pipeline calls by the configured request timeout.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
}

func (s *Server) recovered(c *gin.Context, r any) {
	s.logger.Error("handler panicked", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", r)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
