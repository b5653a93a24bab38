package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking core as a JSON API alongside the gRPC service.
type HTTPServer struct {
	cfg    config.APIConfig
	core   BookingCore
	fields FieldCatalog
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, core BookingCore, fields FieldCatalog, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, core: core, fields: fields, log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}
	srv.auth = NewHTTPAuth(cfg)

	srv.handle(mux, "GET /healthz", srv.handleHealth)
	srv.handle(mux, "POST /api/v1/bookings", srv.handleCreateBooking)
	srv.handle(mux, "GET /api/v1/bookings", srv.handleFindBooking)
	srv.handle(mux, "GET /api/v1/bookings/{id}", srv.handleGetBooking)
	srv.handle(mux, "PATCH /api/v1/bookings/{id}", srv.handleUpdateBooking)
	srv.handle(mux, "POST /api/v1/bookings/{id}/payment", srv.handleSetPayment)
	srv.handle(mux, "POST /api/v1/bookings/{id}/{action}", srv.handleTransition)
	srv.handle(mux, "GET /api/v1/bookings/{id}/amount", srv.handleAmount)
	srv.handle(mux, "GET /api/v1/fields", srv.handleFields)
	srv.handle(mux, "GET /api/v1/fields/{code}/bookings", srv.handleFieldBookings)
	srv.handle(mux, "GET /api/v1/availability/{code}", srv.handleAvailability)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createBookingRequest struct {
	FieldCode    string  `json:"field_code"`
	RequesterID  string  `json:"requester_id"`
	Date         string  `json:"date"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Participants int     `json:"participants"`
	Notes        string  `json:"notes"`
	Actor        string  `json:"actor"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.FieldCode) == "" {
		writeError(w, http.StatusBadRequest, "field_code is required")
		return
	}
	if strings.TrimSpace(body.RequesterID) == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}
	date, ok := s.parseDate(w, body.Date)
	if !ok {
		return
	}

	booking, err := s.core.RequestBooking(r.Context(), service.BookingRequest{
		FieldCode:    strings.TrimSpace(body.FieldCode),
		RequesterID:  strings.TrimSpace(body.RequesterID),
		Date:         date,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		Participants: body.Participants,
		Notes:        body.Notes,
		Actor:        body.Actor,
	})
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": newBookingView(booking)})
}

func (s *HTTPServer) handleFindBooking(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("reference"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}
	booking, err := s.core.GetBookingByReference(r.Context(), ref)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": newBookingView(booking)})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	booking, err := s.core.GetBooking(r.Context(), id)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": newBookingView(booking)})
}

type updateBookingRequest struct {
	FieldCode    *string  `json:"field_code"`
	Date         *string  `json:"date"`
	StartTime    *float64 `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	Participants *int     `json:"participants"`
	Notes        *string  `json:"notes"`
	Actor        string   `json:"actor"`
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body updateBookingRequest
	if !decodeBody(w, r, &body) {
		return
	}

	changes := service.BookingChanges{
		FieldCode:    body.FieldCode,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		Participants: body.Participants,
		Notes:        body.Notes,
	}
	if body.Date != nil {
		date, ok := s.parseDate(w, *body.Date)
		if !ok {
			return
		}
		changes.Date = &date
	}

	booking, err := s.core.UpdateBooking(r.Context(), id, changes, body.Actor)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": newBookingView(booking)})
}

type actorRequest struct {
	Actor  string `json:"actor"`
	Status string `json:"status"`
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body actorRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}

	booking, err := s.core.Transition(r.Context(), id, r.PathValue("action"), body.Actor)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": newBookingView(booking)})
}

func (s *HTTPServer) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body actorRequest
	if !decodeBody(w, r, &body) {
		return
	}

	booking, err := s.core.SetPaymentStatus(r.Context(), id, strings.TrimSpace(body.Status), body.Actor)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": newBookingView(booking)})
}

func (s *HTTPServer) handleAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	amount, err := s.core.TotalAmount(r.Context(), id)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "amount": amount.StringFixed(2)})
}

func (s *HTTPServer) handleFields(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	fields, err := s.fields.List(r.Context(), activeOnly)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

func (s *HTTPServer) handleFieldBookings(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	bookings, err := s.core.ListActive(r.Context(), r.PathValue("code"), date)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": newBookingViews(bookings)})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := s.parseDate(w, q.Get("date"))
	if !ok {
		return
	}
	start, err1 := strconv.ParseFloat(strings.TrimSpace(q.Get("start")), 64)
	end, err2 := strconv.ParseFloat(strings.TrimSpace(q.Get("end")), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "start and end must be fractional hours")
		return
	}

	blocking, err := s.core.CheckSlot(r.Context(), r.PathValue("code"), date, start, end, 0)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": len(blocking) == 0,
		"conflicts": newBookingViews(blocking),
	})
}

func (s *HTTPServer) parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return time.Time{}, false
	}
	date, err := models.ParseDate(raw, s.core.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *HTTPServer) writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, code, map[string]any{"error": errorBodyFor(err)})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *clientLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, keys: newKeyring(cfg.Auth), limiter: newClientLimiter(cfg.RateLimit)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			_, err := a.keys.verify(r.Header.Get(a.keys.apiKeyHeader), r.Header.Get(a.keys.extraHeader),
				requiredPermissionHTTP(r))
			if err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/fields"):
		return permReadFields
	case strings.HasPrefix(path, "/api/v1/availability"):
		return permReadBookings
	case strings.HasPrefix(path, "/api/v1/bookings"):
		if r.Method == http.MethodGet {
			return permReadBookings
		}
		return permWriteBookings
	}
	return ""
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{"error": errorBody{Message: message}})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
