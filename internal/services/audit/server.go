// Package audit exposes commitment lookup and draw verification as MCP tools.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jimrubenstein/randomproof/internal/platform/timeouts"
)

const (
	serverName    = "randomproof-audit"
	serverVersion = "0.1.0"
)

// NewServer registers the audit tools. events may be nil.
func NewServer(records Records, events Events) (*mcp.Server, error) {
	if records == nil {
		return nil, errors.New("records are required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, LookupCommitmentTool(), LookupCommitmentHandler(records))
	mcp.AddTool(server, VerifyDrawTool(), VerifyDrawHandler(records))
	if events != nil {
		mcp.AddTool(server, EventListTool(), EventListHandler(events))
	}
	return server, nil
}

// Serve runs server over transport until ctx ends or the client disconnects.
func Serve(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	log.Printf("audit MCP server running")
	err := server.Run(ctx, transport)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeStdio runs server over stdin and stdout.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return Serve(ctx, server, &mcp.StdioTransport{})
}

// ServeHTTP serves server over streamable HTTP on listener until ctx ends.
func ServeHTTP(ctx context.Context, server *mcp.Server, listener net.Listener) error {
	if listener == nil {
		return errors.New("listener is required")
	}
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("audit MCP server listening at %s", listener.Addr())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown audit MCP server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve audit MCP: %w", err)
	}
}
