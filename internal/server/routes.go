package server

import (
	"net/http"

	"github.com/ternarybob/mitto/internal/app"
)

// setupRoutes configures the route set for the process mode.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.app.ApiHandler.PingHandler)
	mux.HandleFunc("/health", s.app.ApiHandler.HealthHandler)

	switch s.app.Mode {
	case app.ModeOrchestrator:
		mux.HandleFunc("/upload", s.app.JobHandler.UploadHandler)
		mux.HandleFunc("/download/", s.app.JobHandler.DownloadHandler)
	case app.ModeClient:
		mux.HandleFunc("/submit", s.app.PayloadHandler.SubmitHandler)
		mux.HandleFunc("/retrieve/", s.app.PayloadHandler.RetrieveHandler)
	}

	return mux
}
