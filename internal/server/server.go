// Package server exposes the sync and deadline flows over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dt-pm-tools/board-sync/internal/boardsync"
	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/dt-pm-tools/board-sync/internal/deadline"
	"github.com/dt-pm-tools/board-sync/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const logKey = "log"

// Syncer runs the board synchronization for a source item.
type Syncer interface {
	Monitors(columnID string) bool
	SyncItem(ctx context.Context, itemID string, dryRun bool) (boardsync.Result, error)
}

// DeadlineRunner computes and writes SLA deadlines.
type DeadlineRunner interface {
	Run(ctx context.Context, in deadline.Input, dryRun bool) (deadline.Result, error)
}

// Server is the HTTP front of the service.
type Server struct {
	engine    *gin.Engine
	syncer    Syncer
	deadlines DeadlineRunner
	metrics   *metrics.Metrics
	log       *logrus.Entry
	configErr error
}

// New wires the routes. The sync settings of cfg are validated once here;
// when invalid, the webhook answers 500 without doing any work. The SLA
// action needs no target board and is not guarded.
func New(cfg config.Config, syncer Syncer, deadlines DeadlineRunner, m *metrics.Metrics, log *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:    gin.New(),
		syncer:    syncer,
		deadlines: deadlines,
		metrics:   m,
		log:       log.WithField("cmp", "server"),
		configErr: cfg.ValidateSync(),
	}

	s.engine.Use(s.requestLogger(), gin.CustomRecovery(s.recover))

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if m != nil {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	s.engine.POST("/webhook", s.requireConfig, s.handleWebhook)
	s.engine.POST("/sla-deadline", s.handleDeadline)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Listening.")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	s.log.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func (s *Server) observe(endpoint, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveEvent(endpoint, outcome)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)

		log := s.log.WithFields(logrus.Fields{
			"request_id": id,
			"path":       c.Request.URL.Path,
		})
		c.Set(logKey, log)

		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Truncate(time.Millisecond),
		}).Debug("Request handled.")
	}
}

func (s *Server) recover(c *gin.Context, rec any) {
	requestLog(c).WithField("panic", rec).Error("Recovered from panic.")
	c.String(http.StatusInternalServerError, fmt.Sprint(rec))
}

func (s *Server) requireConfig(c *gin.Context) {
	if s.configErr != nil {
		requestLog(c).WithError(s.configErr).Error("Server configuration error.")
		c.String(http.StatusInternalServerError, "Server configuration error.")
		c.Abort()
		return
	}
	c.Next()
}

func requestLog(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(logKey); ok {
		if log, ok := v.(*logrus.Entry); ok {
			return log
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
