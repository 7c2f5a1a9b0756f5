package server

import (
	"net/http"

	"github.com/ternarybob/deepscan/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Active job
	mux.HandleFunc("/api/analyze", s.app.JobHandler.AnalyzeHandler)           // POST - submit a local video
	mux.HandleFunc("/api/job", s.app.JobHandler.GetJobHandler)                // GET - current job and stage
	mux.HandleFunc("/api/job/cancel", s.app.JobHandler.CancelHandler)         // POST
	mux.HandleFunc("/api/job/reset", s.app.JobHandler.ResetHandler)           // POST
	mux.HandleFunc("/api/job/statistics", s.app.JobHandler.StatisticsHandler) // GET - result and derived statistics

	// API routes - History (absent when the database is unavailable)
	if s.app.HistoryHandler != nil {
		mux.HandleFunc("/api/history", s.app.HistoryHandler.ListHandler) // GET ?limit=
		mux.HandleFunc("/api/history/", s.app.HistoryHandler.GetHandler) // GET /{id}
	}

	// API routes - System
	mux.HandleFunc("/api/health", s.app.HealthHandler.GetHealthHandler)
	mux.HandleFunc("/api/version", handlers.VersionHandler)

	// 404 handler for unmatched routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			RouteByMethod(w, r, MethodRouter{
				http.MethodGet: s.indexHandler,
			})
			return
		}
		handlers.NotFoundHandler(w, r)
	})

	return mux
}

// indexHandler lists the API surface
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "deepscan",
		"detector":   s.app.Client.BaseURL(),
		"history":    s.app.HistoryHandler != nil,
		"ws_clients": s.app.WSHandler.ClientCount(),
		"endpoints":  []string{"/ws", "/api/analyze", "/api/job", "/api/job/cancel", "/api/job/reset", "/api/job/statistics", "/api/history", "/api/health", "/api/version"},
	})
}
