// Package server exposes centerline metrics extraction over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"centerlinemetrics/internal/models"
	"centerlinemetrics/pkg/interpolation"
	"centerlinemetrics/pkg/logging"
	"centerlinemetrics/pkg/metrics"
	"centerlinemetrics/pkg/table"
	"centerlinemetrics/pkg/visualization"
)

// maxBodyBytes bounds request bodies; a few thousand points fit easily
const maxBodyBytes = 32 << 20

// AxisParam accepts an axis as a JSON number or string
type AxisParam string

func (a *AxisParam) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = AxisParam(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("axis must be a number or string")
	}
	*a = AxisParam(n.String())
	return nil
}

// ExtractRequest is the body of /api/extract and /api/chart
type ExtractRequest struct {
	Name   string         `json:"name"`
	Points []models.Point `json:"points"`
	Radii  []float64      `json:"radii"`
	Mode   string         `json:"mode"`
	Axis   AxisParam      `json:"axis"`

	// ResampleStep resamples a cumulative profile at this spacing when positive
	ResampleStep float64 `json:"resampleStep,omitempty"`
}

// ExtractResponse is returned by /api/extract
type ExtractResponse struct {
	RunID    string          `json:"runId,omitempty"`
	Name     string          `json:"name"`
	Mode     string          `json:"mode"`
	Distance []float64       `json:"distance"`
	Diameter []float64       `json:"diameter"`
	Summary  metrics.Summary `json:"summary"`
}

// RunInfo describes a stored run
type RunInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	Axis      int       `json:"axis"`
	CreatedAt time.Time `json:"createdAt"`
}

// Options configures a Server
type Options struct {
	// Store persists every successful extraction when non-nil
	Store *table.Store

	// Chart renders /api/chart; defaults to visualization.DefaultOptions
	Chart *visualization.Chart

	DistanceColumn string
	DiameterColumn string

	Logger *zap.Logger

	// Registry receives the server metrics; a private registry is used when nil
	Registry *prometheus.Registry
}

// Server handles extraction requests
type Server struct {
	opts      Options
	mux       *http.ServeMux
	log       *zap.Logger
	extractor metrics.Extractor

	extractions *prometheus.CounterVec
	points      prometheus.Histogram
}

// New creates a Server and registers its routes
func New(o Options) *Server {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Chart == nil {
		o.Chart = visualization.NewChart(visualization.DefaultOptions())
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	if o.DistanceColumn == "" {
		o.DistanceColumn = table.DistanceColumn
	}
	if o.DiameterColumn == "" {
		o.DiameterColumn = table.DiameterColumn
	}

	factory := promauto.With(o.Registry)
	s := &Server{
		opts: o,
		mux:  http.NewServeMux(),
		log:  o.Logger,
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centerline_extractions_total",
				Help: "Total number of metric extractions",
			},
			[]string{"mode", "status"},
		),
		points: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "centerline_points",
				Help:    "Number of points per extracted centerline",
				Buckets: prometheus.ExponentialBuckets(16, 2, 10),
			},
		),
	}

	s.mux.HandleFunc("POST /api/extract", s.handleExtract)
	s.mux.HandleFunc("POST /api/chart", s.handleChart)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// extract decodes the request and runs the extractor, recording metrics
func (s *Server) extract(w http.ResponseWriter, r *http.Request) (*ExtractRequest, models.DistanceMode, models.Axis, *models.MetricsResult, error) {
	var req ExtractRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, 0, 0, nil, fmt.Errorf("%w: decode request: %v", metrics.ErrInvalidInput, err)
	}

	mode, err := models.ParseDistanceMode(req.Mode)
	if err != nil {
		s.extractions.WithLabelValues("unknown", "invalid").Inc()
		return nil, 0, 0, nil, fmt.Errorf("%w: %v", metrics.ErrInvalidInput, err)
	}
	axis, err := models.ParseAxis(string(req.Axis))
	if err != nil {
		s.extractions.WithLabelValues(mode.String(), "invalid").Inc()
		return nil, 0, 0, nil, fmt.Errorf("%w: %v", metrics.ErrInvalidInput, err)
	}

	sample := &models.CenterlineSample{Name: req.Name, Points: req.Points, Radii: req.Radii}
	result, err := s.extractor.Extract(sample, mode, axis)
	if err != nil {
		s.extractions.WithLabelValues(mode.String(), "invalid").Inc()
		return nil, 0, 0, nil, err
	}

	if req.ResampleStep != 0 {
		if mode != models.Cumulative {
			s.extractions.WithLabelValues(mode.String(), "invalid").Inc()
			return nil, 0, 0, nil, fmt.Errorf("%w: resampling applies to cumulative mode only", metrics.ErrInvalidInput)
		}
		if result, err = interpolation.Resample(result, req.ResampleStep); err != nil {
			s.extractions.WithLabelValues(mode.String(), "invalid").Inc()
			return nil, 0, 0, nil, err
		}
	}

	s.extractions.WithLabelValues(mode.String(), "ok").Inc()
	s.points.Observe(float64(sample.Len()))
	s.log.Debug("extracted", append(logging.Sample(req.Name, sample.Len()),
		zap.Stringer("mode", mode), zap.Stringer("axis", axis))...)
	return &req, mode, axis, result, nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, mode, axis, result, err := s.extract(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ExtractResponse{
		Name:     req.Name,
		Mode:     mode.String(),
		Distance: result.Distance,
		Diameter: result.Diameter,
		Summary:  metrics.Summarize(result),
	}

	if s.opts.Store != nil {
		tbl, err := table.FromResult(req.Name, result, s.opts.DistanceColumn, s.opts.DiameterColumn)
		if err != nil {
			s.writeError(w, err)
			return
		}
		id, err := s.opts.Store.SaveRun(r.Context(), &table.Run{Name: req.Name, Mode: mode, Axis: axis, Table: tbl})
		if err != nil {
			s.log.Error("save run failed", zap.Error(err))
			s.writeError(w, err)
			return
		}
		resp.RunID = id
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	req, _, _, result, err := s.extract(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	tbl, err := table.FromResult(req.Name, result, s.opts.DistanceColumn, s.opts.DiameterColumn)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.opts.Chart.RenderHTML(&buf, tbl); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		s.writeJSONError(w, http.StatusNotFound, "no run store configured")
		return
	}
	runs, err := s.opts.Store.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	infos := make([]RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, RunInfo{
			ID:        run.ID,
			Name:      run.Name,
			Mode:      run.Mode.String(),
			Axis:      int(run.Axis),
			CreatedAt: run.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		s.writeJSONError(w, http.StatusNotFound, "no run store configured")
		return
	}
	run, err := s.opts.Store.LoadRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	// CSV on request, JSON columns otherwise
	if strings.Contains(r.Header.Get("Accept"), "text/csv") || r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := table.WriteCSV(w, run.Table); err != nil {
			s.log.Error("write csv failed", zap.Error(err))
		}
		return
	}

	columns := make(map[string][]float64, len(run.Table.Columns))
	for _, c := range run.Table.Columns {
		columns[c.Name] = c.Values
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":      run.ID,
		"name":    run.Name,
		"mode":    run.Mode.String(),
		"axis":    int(run.Axis),
		"rows":    run.Table.NumRows(),
		"columns": columns,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metrics.ErrInvalidInput):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, table.ErrRunNotFound):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeJSON encodes v before committing the status, so an encoding failure
// becomes a 500 instead of an empty 200
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.log.Error("encode response failed", zap.Error(err))
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
