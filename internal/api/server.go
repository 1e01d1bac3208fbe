// Package api serves the upload, analysis and recommendation endpoints
// used by the web front end.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/metrics"
	"github.com/xaenox/gift-bot/internal/models"
	"github.com/xaenox/gift-bot/internal/storage"
)

// Analyzer runs the analysis pipeline over a chat export.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader) ([]models.GroupAnalysis, error)
	Recommend(ctx context.Context, r io.Reader) ([]models.GroupRecommendation, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// requests per minute and client IP on /api, 0 disables the limit
	RateLimit      int
	AllowedOrigins []string
}

type Server struct {
	pipeline Analyzer
	uploads  storage.UploadStorage
	health   HealthChecker
	opts     Options
	logger   *zap.Logger
}

func NewServer(pipeline Analyzer, uploads storage.UploadStorage, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		pipeline: pipeline,
		uploads:  uploads,
		health:   health,
		opts:     opts,
		logger:   logger,
	}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}
		if s.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
		}
		r.Post("/upload", s.handleUpload)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/recommendations", s.handleRecommendations)
	})
	return r
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.logger.Info("Upload without file", zap.Error(err))
		s.respondFailure(w, ErrMsgNoFile)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.logger.Warn("Failed to read upload", zap.Error(err))
		s.respondFailure(w, ErrMsgNoFile)
		return
	}

	upload := &models.Upload{Filename: header.Filename, Content: content}
	if err := s.uploads.SaveUpload(r.Context(), upload); err != nil {
		s.logger.Error("Failed to save upload", zap.Error(err))
		s.respondFailure(w, ErrMsgStorage)
		return
	}
	metrics.UploadsTotal.WithLabelValues("api").Inc()

	s.logger.Info("Upload stored",
		zap.String("file_id", upload.ID),
		zap.String("filename", upload.Filename),
		zap.Int("bytes", len(content)))
	s.respondOK(w, uploadData{FileID: upload.ID}, MsgUploadOK)
}

// loadUpload resolves the fileId of a JSON body. It writes the failure
// response itself and returns nil when the upload cannot be used.
func (s *Server) loadUpload(w http.ResponseWriter, r *http.Request) (fileRequest, *models.Upload) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" {
		s.respondFailure(w, ErrMsgFileNotFound)
		return req, nil
	}

	upload, err := s.uploads.GetUpload(r.Context(), req.FileID)
	if err != nil {
		if !errors.Is(err, storage.ErrUploadNotFound) {
			s.logger.Error("Failed to load upload", zap.String("file_id", req.FileID), zap.Error(err))
		}
		s.respondFailure(w, ErrMsgFileNotFound)
		return req, nil
	}
	return req, upload
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	_, upload := s.loadUpload(w, r)
	if upload == nil {
		return
	}

	analyses, err := s.pipeline.Analyze(r.Context(), bytes.NewReader(upload.Content))
	if err != nil {
		s.logger.Error("Analysis failed", zap.String("file_id", upload.ID), zap.Error(err))
		s.respondFailure(w, ErrMsgUnreadable)
		return
	}

	views := make([]analysisView, 0, len(analyses))
	for _, a := range analyses {
		views = append(views, newAnalysisView(a))
	}
	s.respondOK(w, views, MsgAnalyzeOK)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	req, upload := s.loadUpload(w, r)
	if upload == nil {
		return
	}

	recs, err := s.pipeline.Recommend(r.Context(), bytes.NewReader(upload.Content))
	if err != nil {
		s.logger.Error("Recommendation failed", zap.String("file_id", upload.ID), zap.Error(err))
		s.respondFailure(w, ErrMsgUnreadable)
		return
	}

	views := make([]recommendationView, 0, len(recs))
	for _, rec := range recs {
		if req.Budget != nil {
			rec.Items = withinBudget(rec.Items, *req.Budget)
		}
		views = append(views, newRecommendationView(rec))
	}
	s.respondOK(w, views, MsgRecommendOK)
}

type healthView struct {
	Status      string `json:"status"`
	ModelServer string `json:"model_server"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := healthView{Status: "ok", ModelServer: "ok"}
	status := http.StatusOK
	if s.health != nil {
		if err := s.health.Healthy(r.Context()); err != nil {
			view.Status = "degraded"
			view.ModelServer = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	s.respondJSON(w, status, view)
}
