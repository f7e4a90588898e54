package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// Server wraps an http.Server.
type Server struct {
	httpServer *http.Server
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr              string
	Handler           http.Handler
	ReadHeaderTimeout time.Duration

	// TLSConfig enables TLS. It must supply certificates, usually through
	// GetCertificate.
	TLSConfig *tls.Config

	// Logger receives the errors net/http logs itself, such as failed TLS
	// handshakes.
	Logger logger.Logger
}

// New creates a new HTTP server.
func New(opts ServerOptions) *Server {
	hs := &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		TLSConfig:         opts.TLSConfig,
	}
	if opts.Logger != nil {
		hs.ErrorLog = slog.NewLogLogger(logger.Slog(opts.Logger).Handler(), slog.LevelWarn)
	}
	return &Server{httpServer: hs}
}

// TLS reports whether the server terminates TLS.
func (s *Server) TLS() bool {
	return s.httpServer.TLSConfig != nil
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.httpServer.Addr)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	var err error
	if s.TLS() {
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
