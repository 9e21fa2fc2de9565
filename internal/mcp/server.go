// Package mcp exposes the knowledge service as Model Context Protocol
// tools over a stdio transport, using the official MCP Go SDK.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/teamrecall/recall/internal/knowledge"
)

// Server wraps the MCP SDK server and the knowledge service.
type Server struct {
	mcpServer *mcp.Server
	service   *knowledge.Service
	logger    *slog.Logger
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Service *knowledge.Service
	Logger  *slog.Logger
}

// NewServer creates an MCP server with all record tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("knowledge service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		service: cfg.Service,
		logger:  cfg.Logger,
		name:    cfg.Name,
		version: cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocking; returns
// when the transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}
