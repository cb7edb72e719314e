package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/troupe/internal/presentation/graph"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/sanitize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PipelineURI names the resource describing the orchestration state machine.
const PipelineURI = "troupe://pipeline"

// TurnResult is the structured output of the run_turn tool.
type TurnResult struct {
	SessionID        string   `json:"session_id,omitempty" jsonschema_description:"Session the turn was recorded in"`
	FinalOutput      string   `json:"final_output" jsonschema_description:"The composed reply of the characters"`
	ActiveCharacters []string `json:"active_characters,omitempty" jsonschema_description:"Characters selected to reply (stateless turns only)"`
	RetryCount       int      `json:"retry_count" jsonschema_description:"Format regenerations performed (stateless turns only)"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	Execute(ctx context.Context, messages []domain.RawMessage) (domain.GraphState, error)
	RunSession(ctx context.Context, sessionID string, messages []domain.RawMessage) (string, error)
	Transitions() []domain.Transition
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("troupe-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP server over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	// TOOL: run_turn
	runTool := mcp.NewTool("run_turn",
		mcp.WithDescription("Run one role-play turn. Pass either the full message list or a single user input."),
		mcp.WithString("messages", mcp.Description(`JSON array of {"role","content"} messages (optional if user_input is set)`)),
		mcp.WithString("user_input", mcp.Description("A single user message (optional if messages is set)")),
		mcp.WithString("session_id", mcp.Description("Keep the world state between turns under this session (optional)")),
		mcp.WithOutputSchema[TurnResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunTurn))

	// TOOL: describe_pipeline
	s.mcpServer.AddTool(mcp.NewTool("describe_pipeline",
		mcp.WithDescription("Describe the orchestration state machine as a Mermaid diagram."),
	), s.handleDescribePipeline)
}

func (s *Server) handleRunTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TurnResult, error) {
	msgs, err := messagesFrom(args)
	if err != nil {
		return TurnResult{}, err
	}
	msgs, err = sanitize.Messages(msgs)
	if err != nil {
		s.logger.Warn("MCP run_turn: Input rejected", "err", err)
		return TurnResult{}, fmt.Errorf("input rejected: %w", err)
	}

	sessionID, _ := args["session_id"].(string)
	if sessionID != "" {
		out, err := s.engine.RunSession(ctx, sessionID, msgs)
		if err != nil {
			return TurnResult{}, fmt.Errorf("turn failed: %w", err)
		}
		return TurnResult{SessionID: sessionID, FinalOutput: out}, nil
	}

	final, err := s.engine.Execute(ctx, msgs)
	if err != nil {
		return TurnResult{}, fmt.Errorf("turn failed: %w", err)
	}
	return TurnResult{
		FinalOutput:      final.FinalOutput,
		ActiveCharacters: final.ActiveCharacters,
		RetryCount:       final.RetryCount,
	}, nil
}

func (s *Server) handleDescribePipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(graph.GenerateMermaid(s.engine.Transitions(), nil, nil)), nil
}

func messagesFrom(args map[string]any) ([]domain.RawMessage, error) {
	var msgs []domain.RawMessage
	if raw, ok := args["messages"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			return nil, fmt.Errorf("messages must be a JSON array of messages: %w", err)
		}
	}
	if input, ok := args["user_input"].(string); ok && input != "" {
		msgs = append(msgs, domain.RawMessage{Role: domain.RoleUser, Content: input})
	}
	if len(msgs) == 0 {
		return nil, errors.New("either messages or user_input is required")
	}
	return msgs, nil
}

func (s *Server) registerResources() {
	// EXPOSE: troupe://pipeline
	s.mcpServer.AddResource(mcp.NewResource(PipelineURI, "Orchestration State Machine",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Transitions())
		if err != nil {
			return nil, fmt.Errorf("failed to encode transitions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      PipelineURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
