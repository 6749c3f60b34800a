// Package mcp exposes PHP class reflection as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/static-reflection/internal/watcher"
)

const (
	serverName    = "static-reflection"
	serverVersion = "1.0.0"
)

// Server manages the MCP server lifecycle.
type Server struct {
	source   ClassSource
	watcher  watcher.FileWatcher
	onChange func(files []string)
	mcp      *server.MCPServer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWatcher keeps answers fresh while serving: onChange receives the PHP
// files that changed.
func WithWatcher(w watcher.FileWatcher, onChange func(files []string)) ServerOption {
	return func(s *Server) {
		s.watcher = w
		s.onChange = onChange
	}
}

// NewServer creates an MCP server with every reflection tool registered.
func NewServer(source ClassSource, opts ...ServerOption) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)

	AddClassFactsTool(mcpServer, source)
	AddIsSubclassOfTool(mcpServer, source)
	AddDocCommentTool(mcpServer, source)

	s := &Server{source: source, mcp: mcpServer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.watcher != nil {
		if err := s.watcher.Start(ctx, s.onChange); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer s.watcher.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
