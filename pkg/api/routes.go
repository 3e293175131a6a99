package api

import (
	"net/http"
)

// RegisterRoutes registers the JSON and redirect endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/autocomplete", s.HandleAutocomplete)
	mux.HandleFunc("POST /api/resolve", s.HandleResolve)
	mux.HandleFunc("GET /api/config", s.HandleConfig)
	mux.HandleFunc("GET /go", s.HandleGo)
	mux.HandleFunc("GET /health", s.HandleHealth)
}

// RegisterWebSocket registers the websocket session endpoint. It is kept
// apart from RegisterRoutes so it can be mounted outside compression
// middleware, which cannot hijack connections.
func (s *Server) RegisterWebSocket(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ws", s.HandleWebSocket)
}
