package server

import (
	"embed"
	"net/http"

	"tracking-server/internal/server/views"
	"tracking-server/internal/version"

	"github.com/a-h/templ"
)

//go:embed static/*
var embeddedStatic embed.FS

func render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		http.Error(w, "failed to render", http.StatusInternalServerError)
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	render(w, r, views.MapPage(version.Label()))
}
