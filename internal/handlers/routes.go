package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WebSocketHub is the renderer fan-out behind /ws
type WebSocketHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// WebSocketHandler attaches renderers to the hub
type WebSocketHandler struct {
	hub    WebSocketHub
	logger *zap.Logger
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(hub WebSocketHub, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{hub: hub, logger: logger}
}

// HandleWebSocket upgrades the connection
// GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

// HealthResponse represents the liveness probe body
type HealthResponse struct {
	Status    string `json:"status"`
	Renderers int    `json:"renderers"`
}

// Health reports liveness and the number of connected renderers
// GET /healthz
func (h *WebSocketHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{Status: "ok", Renderers: h.hub.ClientCount()})
}

// SetupRoutes builds the router for the deck API
func SetupRoutes(wsHandler *WebSocketHandler, sessionHandler *SessionHandler, slideHandler *SlideHandler, auditHandler *AuditHandler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(logger))

	router.HandleFunc("/healthz", wsHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/slides", slideHandler.ListSlides).Methods(http.MethodGet)
	api.HandleFunc("/slides/{id}", slideHandler.GetSlide).Methods(http.MethodGet)

	api.HandleFunc("/session", sessionHandler.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/session/login", sessionHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/session/advance", sessionHandler.Advance).Methods(http.MethodPost)
	api.HandleFunc("/session/retreat", sessionHandler.Retreat).Methods(http.MethodPost)
	api.HandleFunc("/session/goto", sessionHandler.GoTo).Methods(http.MethodPost)
	api.HandleFunc("/session/key", sessionHandler.Key).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", sessionHandler.Logout).Methods(http.MethodPost)
	api.HandleFunc("/session/pitch", sessionHandler.RequestPitch).Methods(http.MethodPost)
	api.HandleFunc("/session/pitch", sessionHandler.DismissPitch).Methods(http.MethodDelete)

	if auditHandler != nil {
		api.HandleFunc("/audit/attempts", auditHandler.ListAttempts).Methods(http.MethodGet)
	}

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger logs method, path, status and latency. Bodies are never logged.
func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// the upgrade needs the raw writer for hijacking
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)))
		})
	}
}
