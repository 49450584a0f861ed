// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/kcal/internal/cache"
	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/resolver"
)

const (
	defaultSuggestions = 10
	maxSuggestions     = 50
	shutdownTimeout    = 10 * time.Second
	requestIDHeader    = "X-Request-ID"
)

// Engine is the part of *resolver.Resolver the server needs
type Engine interface {
	Resolve(ctx context.Context, q resolver.Query) model.Resolution
	Suggest(query string, maxResults int) []string
	Stats() cache.Stats
}

// Server serves resolutions over HTTP
type Server struct {
	engine Engine
	logger *zap.Logger
	router *gin.Engine
}

// ResolutionResponse is the JSON shape of a resolution
type ResolutionResponse struct {
	Name              string       `json:"name"`
	Calories          float64      `json:"calories"`
	Protein           float64      `json:"protein"`
	Carbs             float64      `json:"carbs"`
	Fat               float64      `json:"fat"`
	Fiber             float64      `json:"fiber"`
	Grams             float64      `json:"grams"`
	Source            model.Source `json:"source"`
	Confidence        float64      `json:"confidence"`
	NeedsVerification bool         `json:"needs_verification"`
	Status            model.Status `json:"status"`
}

// NewResolutionResponse flattens a resolution for JSON output
func NewResolutionResponse(name string, res model.Resolution) ResolutionResponse {
	return ResolutionResponse{
		Name:              name,
		Calories:          res.Values.Calories,
		Protein:           res.Values.Protein,
		Carbs:             res.Values.Carbs,
		Fat:               res.Values.Fat,
		Fiber:             res.Values.Fiber,
		Grams:             res.Grams,
		Source:            res.Source,
		Confidence:        res.Confidence,
		NeedsVerification: res.NeedsVerification,
		Status:            res.Status,
	}
}

// New creates a server over engine
func New(engine Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{engine: engine, logger: logger}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	v1.GET("/resolve", s.resolve)
	v1.GET("/suggest", s.suggest)

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// GET /v1/resolve?name=&qty=&unit=&lang=
func (s *Server) resolve(c *gin.Context) {
	name := c.Query("name")
	if model.Normalize(name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	qty, err := strconv.ParseFloat(c.DefaultQuery("qty", "100"), 64)
	if err != nil || qty < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qty must be a non-negative number"})
		return
	}

	res := s.engine.Resolve(c.Request.Context(), resolver.Query{
		Name:     name,
		Quantity: qty,
		Unit:     c.DefaultQuery("unit", "g"),
		Language: c.Query("lang"),
	})
	c.JSON(http.StatusOK, NewResolutionResponse(name, res))
}

// GET /v1/suggest?q=&max=
func (s *Server) suggest(c *gin.Context) {
	maxResults := defaultSuggestions
	if v := c.Query("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max must be a positive integer"})
			return
		}
		maxResults = min(n, maxSuggestions)
	}

	names := s.engine.Suggest(c.Query("q"), maxResults)
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": names})
}

// GET /healthz
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache":  s.engine.Stats(),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
