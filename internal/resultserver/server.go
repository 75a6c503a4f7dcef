// Package resultserver serves the subset of the Pavlovia v2 sessions API that trialsink uses:
// open a session, upload a result and close the session. Uploaded results are handed to a
// trialsink.Deliverer. It stands in for the hosting service in tests and local runs.
package resultserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
)

// APIPrefix is the path prefix of the API, so clients use "http://{addr}" + APIPrefix as base URL.
const APIPrefix = "/api/v2"

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default: ":18901".
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithDeliverer sets where uploaded results are stored. Without it uploads are accepted and
// only recorded in the session.
func WithDeliverer(d trialsink.Deliverer) Option {
	return func(s *Server) {
		s.deliverer = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Session is the server side state of one session.
type Session struct {
	Token       string
	ProjectID   string
	Participant string
	Results     []string
	Closed      bool
	Completed   bool
	CreatedAt   time.Time
}

// Server is an HTTP server implementing the sessions API.
type Server struct {
	addr      string
	deliverer trialsink.Deliverer
	logger    *slog.Logger
	mux       *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		addr:     ":18901",
		logger:   slog.New(slog.DiscardHandler),
		mux:      http.NewServeMux(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST "+APIPrefix+"/experiments/{project}/sessions", s.handleOpenSession)
	s.mux.HandleFunc("POST "+APIPrefix+"/experiments/{project}/sessions/{token}/results", s.handleUploadResult)
	s.mux.HandleFunc("DELETE "+APIPrefix+"/experiments/{project}/sessions/{token}", s.handleCloseSession)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Session returns a copy of the session identified by token.
func (s *Server) Session(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	out := *sess
	out.Results = append([]string(nil), sess.Results...)
	return out, true
}

// Start listens on the configured address and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return goerr.Wrap(err, "failed to listen", goerr.V("addr", s.addr))
	}

	addr := listener.Addr().String()
	s.logger.Info("starting result server",
		slog.String("addr", addr),
		slog.String("base_url", "http://"+addr+APIPrefix),
	)

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return goerr.Wrap(err, "server error")
	}

	return nil
}
