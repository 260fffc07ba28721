package api

import (
	"context"
	"net/http"
	"time"

	logx "github.com/bookpal-ai/server/pkg/logger"
)

// requestBudget caps total handler duration. An exceeded budget surfaces as
// a transport-level timeout, not an in-band message.
const requestBudget = 30 * time.Second

// Server hosts the gateway's HTTP surface.
type Server struct {
	httpServer *http.Server
}

// NewServer wires the chat handler and health endpoint onto a mux with the
// per-request time budget enforced at the serving boundary.
func NewServer(addr string, chat *ChatHandler) *Server {
	mux := http.NewServeMux()
	chat.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", handleHealth)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      requestBudget,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	logx.Info().Str("addr", s.httpServer.Addr).Msg("Gateway listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
