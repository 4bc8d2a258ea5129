package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Server runs the HTTP listener for the API.
type Server struct {
	addr         string
	handler      http.Handler
	httpServer   *http.Server
	listener     net.Listener
	errc         chan error
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewServer binds nothing until Start.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr:         addr,
		handler:      handler,
		errc:         make(chan error, 1),
		readTimeout:  10 * time.Second,
		writeTimeout: 65 * time.Second,
	}
}

// Start begins listening in a goroutine. It returns when the socket is bound.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server stopped")
			s.errc <- err
		}
		close(s.errc)
	}()
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Errors yields a serve failure, then closes once the server has stopped.
func (s *Server) Errors() <-chan error { return s.errc }

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
