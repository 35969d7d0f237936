package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coastle/coastle/internal/alerter"
	"github.com/coastle/coastle/internal/evaluator"
	"github.com/coastle/coastle/internal/logbuffer"
	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/thresholds"
	"github.com/coastle/coastle/internal/types"
	"github.com/coastle/coastle/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the components the HTTP API serves
type Deps struct {
	Evaluator      *evaluator.Evaluator
	Engine         *alerter.Engine
	Query          *alerter.QueryService
	Thresholds     *thresholds.Store
	Optimizer      thresholds.Optimizer
	RefreshTimeout time.Duration
	Stations       *storage.StationRegistry
	Store          storage.AlertStore
	Readings       storage.ReadingStore
	LogBuffer      *logbuffer.Buffer
	Version        version.Info
}

// Server provides the HTTP API
type Server struct {
	deps      Deps
	logger    zerolog.Logger
	startTime time.Time
	http      *http.Server
}

// NewServer creates a new API server listening on port
func NewServer(deps Deps, logger zerolog.Logger, port string) *Server {
	s := &Server{
		deps:      deps,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/alerts", s.handleRecentAlerts)
	mux.HandleFunc("GET /api/alerts/active", s.handleActiveAlerts)
	mux.HandleFunc("PUT /api/alerts/{id}/ack", s.handleAcknowledge)
	mux.HandleFunc("DELETE /api/alerts/{id}", s.handleDeleteAlert)

	mux.HandleFunc("GET /api/thresholds", s.handleGetThresholds)
	mux.HandleFunc("PUT /api/thresholds", s.handleReplaceThresholds)
	mux.HandleFunc("POST /api/thresholds/refresh", s.handleRefreshThresholds)

	mux.HandleFunc("GET /api/stations", s.handleListStations)
	mux.HandleFunc("POST /api/stations", s.handleCreateStation)
	mux.HandleFunc("GET /api/stations/{id}", s.handleGetStation)
	mux.HandleFunc("PUT /api/stations/{id}", s.handleUpdateStation)
	mux.HandleFunc("DELETE /api/stations/{id}", s.handleDeleteStation)

	mux.HandleFunc("POST /api/readings", s.handleCreateReading)
	mux.HandleFunc("GET /api/readings", s.handleRecentReadings)
	mux.HandleFunc("GET /api/readings/station/{id}", s.handleStationReadings)

	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /api/logs", s.handleLogs)

	return chain(mux, recovery(s.logger), logging(s.logger))
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.http.Addr).
		Msg("Starting API server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

// handleStatus returns current state summary
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"version":    s.deps.Version.Version,
		"commit":     s.deps.Version.Commit,
		"build_date": s.deps.Version.BuildDate,
		"stations":   len(s.deps.Stations.List()),
		"thresholds": s.deps.Thresholds.Get(),
	}
	if active, err := s.deps.Query.AllActiveAlerts(r.Context()); err == nil {
		status["active_alerts"] = len(active)
	} else {
		status["active_alerts_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRecentAlerts returns the newest alerts
func (s *Server) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	alerts, err := s.deps.Query.Recent(r.Context(), limit)
	if err != nil {
		s.storageError(w, err, "Failed to list alerts")
		return
	}
	writeAlerts(w, alerts)
}

// handleActiveAlerts returns active alerts, optionally for one area
func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	var (
		alerts []*types.Alert
		err    error
	)
	if area := r.URL.Query().Get("area"); area != "" {
		alerts, err = s.deps.Query.ActiveAlertsByArea(r.Context(), area)
	} else {
		alerts, err = s.deps.Query.AllActiveAlerts(r.Context())
	}
	if err != nil {
		s.storageError(w, err, "Failed to query active alerts")
		return
	}
	writeAlerts(w, alerts)
}

// handleAcknowledge marks an alert acknowledged
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	alert, err := s.deps.Engine.Acknowledge(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storageError(w, err, "Failed to acknowledge alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleDeleteAlert removes an alert
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.deps.Engine.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storageError(w, err, "Failed to delete alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleGetThresholds returns the current thresholds
func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Thresholds.Get())
}

// handleReplaceThresholds merges the posted keys into the thresholds
func (s *Server) handleReplaceThresholds(w http.ResponseWriter, r *http.Request) {
	var body map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	partial, err := types.ThresholdSetFromMap(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	merged := s.deps.Thresholds.Replace(partial)
	s.logger.Info().
		Int("updated_keys", len(partial)).
		Msg("Thresholds replaced via API")
	writeJSON(w, http.StatusOK, merged)
}

// handleRefreshThresholds runs the optimizer now
func (s *Server) handleRefreshThresholds(w http.ResponseWriter, r *http.Request) {
	if s.deps.Optimizer == nil {
		writeError(w, http.StatusNotImplemented, "threshold optimizer not configured")
		return
	}

	s.logger.Info().Msg("Threshold refresh requested via API")
	current, err := thresholds.Refresh(r.Context(), s.deps.Thresholds, s.deps.Optimizer, s.deps.RefreshTimeout, s.logger)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success":    false,
			"error":      err.Error(),
			"thresholds": current,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"thresholds": current,
	})
}

// handleListStations returns all stations
func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Stations.List())
}

// handleCreateStation registers a station
func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	var st types.Station
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateStation(st); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.deps.Stations.Put(st))
}

// handleUpdateStation merges the posted fields into an existing station
func (s *Server) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.deps.Stations.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateStation(st); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.deps.Stations.Update(id, st)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteStation removes a station. Its readings and alerts are kept.
func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stations.Delete(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func validateStation(st types.Station) error {
	if st.Name == "" {
		return errors.New("name is required")
	}
	if !st.Kind.Valid() {
		return errors.New("type must be 'tide', 'weather' or 'pollution'")
	}
	return nil
}

// handleCreateReading records a reading without evaluating it
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var reading types.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if reading.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	if err := s.deps.Readings.AddReading(r.Context(), &reading); err != nil {
		s.storageError(w, err, "Failed to store reading")
		return
	}
	writeJSON(w, http.StatusCreated, reading)
}

// handleRecentReadings returns the newest readings across stations
func (s *Server) handleRecentReadings(w http.ResponseWriter, r *http.Request) {
	limit := defaultReadingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	readings, err := s.deps.Readings.RecentReadings(r.Context(), limit)
	if err != nil {
		s.storageError(w, err, "Failed to list readings")
		return
	}
	writeReadings(w, readings)
}

// handleStationReadings returns the latest readings of one station
func (s *Server) handleStationReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.deps.Readings.StationReadings(r.Context(), r.PathValue("id"), stationReadingLimit)
	if err != nil {
		s.storageError(w, err, "Failed to list station readings")
		return
	}
	writeReadings(w, readings)
}

// handleGetStation returns one station
func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stations.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

const (
	defaultReadingLimit = 50
	stationReadingLimit = 100
)

type evaluateRequest struct {
	Readings []types.Reading `json:"readings"`
}

type evaluateResult struct {
	StationID string       `json:"station_id"`
	Alert     *types.Alert `json:"alert"`
	Error     string       `json:"error,omitempty"`
}

// handleEvaluate evaluates posted readings. It is the entry point for an
// external scheduler pushing fresh sensor data.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Readings) == 0 {
		writeError(w, http.StatusBadRequest, "readings must not be empty")
		return
	}

	results := make([]evaluateResult, len(req.Readings))
	items := make([]evaluator.Item, 0, len(req.Readings))
	index := make([]int, 0, len(req.Readings))
	for i := range req.Readings {
		reading := req.Readings[i]
		results[i].StationID = reading.StationID
		st, err := s.deps.Stations.Get(reading.StationID)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		if reading.Timestamp.IsZero() {
			reading.Timestamp = time.Now().UTC()
		}
		// A lost history entry does not block evaluation
		if err := s.deps.Readings.AddReading(r.Context(), &reading); err != nil {
			s.logger.Warn().
				Err(err).
				Str("station_id", reading.StationID).
				Msg("Failed to store reading")
		}
		items = append(items, evaluator.Item{Station: st, Reading: &reading})
		index = append(index, i)
	}

	created := 0
	storageFailures := 0
	for j, res := range s.deps.Evaluator.EvaluateBatch(r.Context(), items) {
		i := index[j]
		results[i].Alert = res.Alert
		if res.Err != nil {
			results[i].Error = res.Err.Error()
			if errors.Is(res.Err, storage.ErrStorage) {
				storageFailures++
			}
			continue
		}
		if res.Alert != nil {
			created++
		}
	}

	status := http.StatusOK
	if storageFailures > 0 && storageFailures == len(items) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"results":        results,
		"alerts_created": created,
	})
}

// handleLogs returns recent log entries
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var entries []logbuffer.Entry
	if s.deps.LogBuffer != nil {
		entries = s.deps.LogBuffer.Recent(200)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// storageError maps store errors onto HTTP statuses
func (s *Server) storageError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusServiceUnavailable, err.Error())
}

func writeAlerts(w http.ResponseWriter, alerts []*types.Alert) {
	if alerts == nil {
		alerts = []*types.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func writeReadings(w http.ResponseWriter, readings []*types.Reading) {
	if readings == nil {
		readings = []*types.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readings": readings,
		"count":    len(readings),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
