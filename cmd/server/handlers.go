package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/lending-monitor/internal/metrics"
	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/monitor"
	"github.com/yourorg/lending-monitor/internal/types"
)

// Core is what the HTTP shell needs from the monitoring service.
type Core interface {
	Monitor(ctx context.Context, req monitor.MonitorRequest) (*monitor.MonitorResult, error)
	History(poolID string, limit int) (*monitor.HistoryResult, error)
	EchoStatus(text string) monitor.EchoResult
	UniversalMonitor(ctx context.Context, req monitor.UniversalRequest) (*monitor.UniversalResult, error)
}

// Request defaults applied when a field is absent. An explicitly empty list is passed
// through so the core can reject it.
var (
	defaultMonitorNetwork   = "base"
	defaultMonitorProtocols = []types.ProtocolID{types.ProtocolCompoundV3}
	defaultSweepProtocols   = []types.ProtocolID{types.ProtocolAaveV3, types.ProtocolCompoundV3, types.ProtocolMorpho}
	defaultSweepNetworks    = []string{"ethereum", "base", "polygon", "arbitrum", "optimism"}
)

const defaultHistoryLimit = 10

func defaultMonitorThresholds() model.ThresholdRules {
	return model.ThresholdRules{
		APYSpikePercent: model.Percent(10),
		TVLDrainPercent: model.Percent(20),
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/monitor", s.handleMonitor)
	r.Post("/universal", s.handleUniversal)
	r.Get("/history/{poolID}", s.handleHistory)
	return r
}

type monitorBody struct {
	Network    *string               `json:"network"`
	Protocols  []types.ProtocolID    `json:"protocol_ids"`
	Pools      []string              `json:"pools"`
	Thresholds *model.ThresholdRules `json:"threshold_rules"`
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	var body monitorBody
	if err := decodeBody(r, &body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Monitor failed", err)
		return
	}

	req := monitor.MonitorRequest{
		Network:    defaultMonitorNetwork,
		Protocols:  body.Protocols,
		Pools:      body.Pools,
		Thresholds: defaultMonitorThresholds(),
	}
	if body.Network != nil {
		req.Network = *body.Network
	}
	if body.Protocols == nil {
		req.Protocols = defaultMonitorProtocols
	}
	if body.Thresholds != nil {
		req.Thresholds = *body.Thresholds
	}

	res, err := s.core.Monitor(r.Context(), req)
	if err != nil {
		s.errorResponse(w, statusFor(err), "Monitor failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type universalBody struct {
	Protocols         []types.ProtocolID   `json:"protocols"`
	Networks          []string             `json:"networks"`
	Assets            []string             `json:"assets"`
	IncludeHistorical bool                 `json:"include_historical"`
	Thresholds        model.ThresholdRules `json:"threshold_rules"`
}

func (s *Server) handleUniversal(w http.ResponseWriter, r *http.Request) {
	var body universalBody
	if err := decodeBody(r, &body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Universal Monitor failed", err)
		return
	}
	if body.Protocols == nil {
		body.Protocols = defaultSweepProtocols
	}
	if body.Networks == nil {
		body.Networks = defaultSweepNetworks
	}

	res, err := s.core.UniversalMonitor(r.Context(), monitor.UniversalRequest{
		Protocols:         body.Protocols,
		Networks:          body.Networks,
		Assets:            body.Assets,
		IncludeHistorical: body.IncludeHistorical,
		Thresholds:        body.Thresholds,
	})
	if err != nil {
		s.errorResponse(w, statusFor(err), "Universal Monitor failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "History failed", errors.New("limit must be an integer"))
			return
		}
		limit = n
	}

	res, err := s.core.History(chi.URLParam(r, "poolID"), limit)
	if err != nil {
		s.errorResponse(w, statusFor(err), "History failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.EchoStatus(r.URL.Query().Get("text")))
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnsupportedNetwork),
		errors.Is(err, types.ErrUnsupportedProtocol),
		errors.Is(err, types.ErrInvalidAddress),
		errors.Is(err, monitor.ErrNoProtocols),
		errors.Is(err, monitor.ErrNoPoolID):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrConnection),
		errors.Is(err, types.ErrContractCall),
		errors.Is(err, types.ErrConfigurationMissing):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) errorResponse(w http.ResponseWriter, statusCode int, prefix string, err error) {
	msg := prefix + ": " + err.Error()
	logrus.WithField("status", statusCode).Warn(msg)
	writeJSON(w, statusCode, map[string]string{"error": msg})
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

// httpMetrics records request counts and latency by chi route pattern.
func httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
