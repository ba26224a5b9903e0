package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"tracking-server/internal/engine"
	"tracking-server/internal/network"
	"tracking-server/internal/version"
	"tracking-server/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Таймаут для обычных HTTP-запросов (websocket живет дольше и под него не попадает)
const requestTimeout = 15 * time.Second

type Server struct {
	service *engine.Service
	hub     *network.Hub
	http    *http.Server

	connectTimeout time.Duration
}

func New(service *engine.Service, hub *network.Hub, port string) *Server {
	s := &Server{
		service:        service,
		hub:            hub,
		connectTimeout: connectTimeout,
	}
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router собирает все маршруты. Вынесен отдельно для тестов (httptest).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	// Websocket без таймаута запроса
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/", s.handlePage)
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/api/users", s.handleRoster)

		NewDebugHandler(s.service, s.hub).RegisterRoutes(r)
	})

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		logger.Log.WithError(err).Fatal("embedded static files missing")
	}
	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))

	return r
}

// Run запускает HTTP сервер и блокируется до Shutdown
func (s *Server) Run() error {
	logger.Log.Infof("Tracking server running on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown перестает принимать соединения и ждет активные запросы
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger пишет запросы в общий logrus-логгер
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logger.Log.WithFields(logrus.Fields{
			"component":  "http",
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Info())
}

// handleRoster - /api/users: счетчики и косметика участников без координат
func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.service.Roster(r.Context())
	if err != nil {
		logger.Log.WithError(err).Warn("roster query failed")
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Debug("failed to encode response")
	}
}
