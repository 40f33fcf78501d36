// Package health serves the liveness probe, Prometheus metrics and, when an
// operator opts in, a small JSON view of recent report outcomes.
package health

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/shiftlog/internal/models"
)

// OutcomeLister returns the newest journal entries.
type OutcomeLister interface {
	Recent(limit int) ([]models.ReportLog, error)
}

// StartOpts holds configuration for the health server.
type StartOpts struct {
	Port    int
	Metrics http.Handler  // defaults to promhttp.Handler()
	Journal OutcomeLister // optional; enables /api/outcomes (no driver data)
	Out     io.Writer
}

// Start launches the health HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully. The liveness routes answer 200 regardless of
// bot state.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 10000
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Health server listening on :%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered.
func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	router.GET("/", handleOK)
	router.HEAD("/", handleOK)
	router.GET("/health", handleOK)
	router.HEAD("/health", handleOK)
	router.GET("/metrics", gin.WrapH(metrics))
	if opts.Journal != nil {
		router.GET("/api/outcomes", handleOutcomes(opts.Journal))
	}
	return router
}

func handleOK(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func handleOutcomes(j OutcomeLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
				return
			}
			limit = n
		}
		logs, err := j.Recent(limit)
		if err != nil {
			log.Printf("health: list outcomes: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
			return
		}
		out := make([]gin.H, 0, len(logs))
		for _, l := range logs {
			out = append(out, gin.H{
				"report_id":  l.ReportID,
				"status":     l.Status,
				"platform":   l.Platform,
				"step":       l.Step,
				"created_at": l.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"outcomes": out})
	}
}
