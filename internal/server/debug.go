package server

import (
	"net/http"

	"tracking-server/internal/engine"
	"tracking-server/internal/network"
	"tracking-server/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// DebugHandler предоставляет доступ к внутреннему состоянию сервиса
type DebugHandler struct {
	service *engine.Service
	hub     *network.Hub
}

func NewDebugHandler(s *engine.Service, hub *network.Hub) *DebugHandler {
	return &DebugHandler{service: s, hub: hub}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler) RegisterRoutes(r chi.Router) {
	r.Route("/debug", func(r chi.Router) {
		r.Get("/participants", h.handleParticipants)
		r.Get("/sessions", h.handleSessions)
		r.Get("/hub", h.handleHub)
	})
}

// /debug/participants - все записи, включая состояние живости и неактивность
func (h *DebugHandler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.DebugParticipants(r.Context())
	if err != nil {
		h.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// /debug/sessions - токены сессий, их соединения, размер кеша и число таймеров
func (h *DebugHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	dump, err := h.service.DebugSessions(r.Context())
	if err != nil {
		h.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

// /debug/hub - подписчики и потерянные из-за переполнения сообщения
func (h *DebugHandler) handleHub(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscribers": h.hub.SubscriberCount(),
		"dropped":     h.hub.Dropped(),
	})
}

func (h *DebugHandler) unavailable(w http.ResponseWriter, err error) {
	logger.Log.WithError(err).Warn("debug query failed")
	http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
}
