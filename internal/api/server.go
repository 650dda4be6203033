// Package api exposes crawl runs over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/observability"
	"github.com/IshaanNene/NewsGoat/internal/types"
	"github.com/IshaanNene/NewsGoat/pkg/newsgoat"
)

// RunRequest is the body of POST /api/run. Zero values fall back to config.
type RunRequest struct {
	WindowDays int      `json:"window_days"`
	Sources    []string `json:"sources"`
	Enrich     *bool    `json:"enrich"`
}

// RunFunc performs one crawl for a request.
type RunFunc func(ctx context.Context, req RunRequest) (*newsgoat.Report, error)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Job records one run started through the API.
type Job struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Window     string    `json:"window,omitempty"`
	Items      int       `json:"items"`
	Failed     []string  `json:"failed_sources,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Server provides a REST API for triggering crawls.
type Server struct {
	run     RunFunc
	metrics *observability.Metrics
	logger  *slog.Logger

	runMu sync.Mutex

	jobsMu sync.RWMutex
	jobs   map[string]*Job
}

// NewServer creates an API server that delegates runs to run.
func NewServer(run RunFunc, metrics *observability.Metrics, logger *slog.Logger) *Server {
	return &Server{
		run:     run,
		metrics: metrics,
		logger:  logger.With("component", "api_server"),
		jobs:    make(map[string]*Job),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/run", s.startRun)
		api.GET("/runs", s.listJobs)
		api.GET("/runs/:id", s.getJob)
		api.GET("/stats", s.stats)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": config.Version})
}

// startRun runs a crawl synchronously and answers with the item array in
// the same shape as the saved JSON file.
func (s *Server) startRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}
	}
	if req.WindowDays != 0 {
		req.WindowDays = types.ClampWindowDays(req.WindowDays)
	}

	if !s.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": ErrRunInProgress.Error()})
		return
	}
	defer s.runMu.Unlock()

	job := s.newJob()
	report, err := s.run(c.Request.Context(), req)
	s.finishJob(job, report, err)

	if report == nil {
		status := http.StatusInternalServerError
		var cfgErr *types.ConfigError
		if errors.As(err, &cfgErr) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "job": job.ID})
		return
	}

	items := report.Result.Items
	if items == nil {
		items = []*types.NewsItem{}
	}
	c.Header("X-Run-ID", job.ID)
	c.JSON(http.StatusOK, items)
}

func (s *Server) newJob() *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    "running",
		StartedAt: time.Now(),
	}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()
	return job
}

func (s *Server) finishJob(job *Job, report *newsgoat.Report, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job.FinishedAt = time.Now()
	job.Status = "done"
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
	}
	if report != nil {
		if report.Result.RunID != "" {
			delete(s.jobs, job.ID)
			job.ID = report.Result.RunID
			s.jobs[job.ID] = job
		}
		job.Window = report.Result.Window.String()
		job.Items = len(report.Result.Items)
		job.OutputPath = report.OutputPath
		for _, f := range report.Result.Failed() {
			job.Failed = append(job.Failed, f.Name)
		}
	}
	s.logger.Info("run finished", "job", job.ID, "status", job.Status, "items", job.Items)
}

func (s *Server) listJobs(c *gin.Context) {
	s.jobsMu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	s.jobsMu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) getJob(c *gin.Context) {
	s.jobsMu.RLock()
	job, ok := s.jobs[c.Param("id")]
	var out Job
	if ok {
		out = *job
	}
	s.jobsMu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) stats(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
