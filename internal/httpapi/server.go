package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/service"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// Ingest accepts raw telemetry. *service.Gateway implements it.
type Ingest interface {
	Enqueue(ctx context.Context, ev service.Event) error
}

type Dependencies struct {
	Logger     *slog.Logger
	Addr       string
	Dashboard  *service.Dashboard
	Categories *service.Categories
	Ingest     Ingest

	// Now is the clock used for device statuses. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	dashboard  *service.Dashboard
	categories *service.Categories
	ingest     Ingest
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	now := d.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		dashboard:  d.Dashboard,
		categories: d.Categories,
		ingest:     d.Ingest,
		now:        now,
	}

	mux.HandleFunc("GET /v1/devices", s.handleListDevices)
	mux.HandleFunc("PUT /v1/devices/{id}/category", s.handleSetCategory)
	mux.HandleFunc("GET /v1/route", s.handleRoute)
	mux.HandleFunc("GET /v1/access_points", s.handleAccessPoints)
	mux.HandleFunc("POST /v1/incidents", s.handleReportIncident)
	mux.HandleFunc("GET /v1/incidents", s.handleListIncidents)
	mux.HandleFunc("POST /v1/incidents/select", s.handleSelectIncident)
	mux.HandleFunc("PUT /v1/map/show_all", s.handleShowAll)
	mux.HandleFunc("GET /v1/map", s.handleMap)
	mux.HandleFunc("POST /v1/telemetry/{channel}", s.handleTelemetry)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Devices ──────────────────────────────────────────────────────────────────

type deviceListResponse struct {
	Devices    []types.DeviceView `json:"devices"`
	ServerTime time.Time          `json:"server_time"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	writeJSON(w, http.StatusOK, deviceListResponse{Devices: s.dashboard.Snapshot(now), ServerTime: now})
}

type setCategoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	var req setCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, ok := types.ParseCategory(req.Category)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_category", "category must be maintenance, security or undefined")
		return
	}

	id := r.PathValue("id")
	if err := s.categories.Set(r.Context(), id, cat); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDeviceID):
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
		default:
			s.logger.Error("set category failed", "device_id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"device_id": id, "category": string(cat)})
}

// ── Network ──────────────────────────────────────────────────────────────────

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stations": s.dashboard.Route()})
}

func (s *Server) handleAccessPoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"access_points": s.dashboard.AccessPoints()})
}

// ── Incidents ────────────────────────────────────────────────────────────────

type reportIncidentRequest struct {
	Location string `json:"location"`
	Category string `json:"category"`
}

func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	var req reportIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, ok := types.ParseCategory(req.Category)
	if !ok || !cat.Assignable() {
		writeError(w, http.StatusBadRequest, "invalid_category", "category must be maintenance or security")
		return
	}

	id, err := s.dashboard.ReportIncident(r.Context(), req.Location, cat)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownLocation):
			writeError(w, http.StatusBadRequest, "unknown_location", err.Error())
		case errors.Is(err, service.ErrInvalidCategory):
			writeError(w, http.StatusBadRequest, "invalid_category", err.Error())
		default:
			s.logger.Error("report incident failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"incident_id": id})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"incidents": s.dashboard.Incidents()})
}

type selectIncidentRequest struct {
	IncidentID string `json:"incident_id"`
}

func (s *Server) handleSelectIncident(w http.ResponseWriter, r *http.Request) {
	var req selectIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.dashboard.SelectIncident(req.IncidentID); err != nil {
		if errors.Is(err, service.ErrUnknownIncident) {
			writeError(w, http.StatusNotFound, "unknown_incident", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ── Map ──────────────────────────────────────────────────────────────────────

type showAllRequest struct {
	ShowAll bool `json:"show_all"`
}

func (s *Server) handleShowAll(w http.ResponseWriter, r *http.Request) {
	var req showAllRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.dashboard.SetShowAllDevices(req.ShowAll)
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	frame := s.dashboard.Latest()
	if wantsProtobuf(r) {
		msg, err := frameToStruct(frame)
		if err != nil {
			s.logger.Error("encode frame", "tick", frame.Tick, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// ── Telemetry ────────────────────────────────────────────────────────────────

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	ch, ok := service.ParseChannel(r.PathValue("channel"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_channel", "channel must be location or battery")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "could not read request body")
		return
	}

	// Payloads are validated by the gateway consumer, so a bad one is still
	// accepted here.
	err = s.ingest.Enqueue(r.Context(), service.Event{Channel: ch, Payload: body, ReceivedAt: s.now()})
	if err != nil {
		if errors.Is(err, service.ErrGatewayStopped) {
			writeError(w, http.StatusServiceUnavailable, "ingest_stopped", err.Error())
			return
		}
		s.logger.Warn("telemetry enqueue failed", "channel", ch, "err", err)
		writeError(w, http.StatusServiceUnavailable, "ingest_unavailable", "telemetry not accepted")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
