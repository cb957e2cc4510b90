// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0
//
// Derived from the HTTP server in Bureau's lib/service package
// (github.com/bureau-foundation/bureau), modified for the DiaryX API.

// Package server runs the API's HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer serves HTTP on a TCP listener. Serve blocks until its context
// is cancelled, then stops accepting connections and drains in-flight
// requests.
type HTTPServer struct {
	address         string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// Config configures an HTTPServer.
type Config struct {
	// Address is the TCP listen address, e.g. ":8000". Required.
	Address string

	// Handler serves every request. Required.
	Handler http.Handler

	// ShutdownTimeout bounds the drain after cancellation. Defaults to
	// 10 seconds.
	ShutdownTimeout time.Duration

	// Logger is required.
	Logger *slog.Logger
}

// New creates a server. Call Serve to start accepting connections.
func New(config Config) *HTTPServer {
	if config.Address == "" {
		panic("server.HTTPServer: Address is required")
	}
	if config.Handler == nil {
		panic("server.HTTPServer: Handler is required")
	}
	if config.Logger == nil {
		panic("server.HTTPServer: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPServer{
		address:         config.Address,
		handler:         config.Handler,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the server is accepting connections.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed; with
// port 0 it carries the OS-assigned port.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
