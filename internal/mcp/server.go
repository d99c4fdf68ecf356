// Package mcp exposes the estimation, suggestion and similarity operations as
// MCP tools over stdio or HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/fredcamaral/gomcp-sdk/server"
	"github.com/fredcamaral/gomcp-sdk/transport"

	"taskflow-ai/internal/agent"
	"taskflow-ai/internal/api/middleware"
	"taskflow-ai/internal/estimator"
	"taskflow-ai/internal/features"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/similarity"
	"taskflow-ai/internal/suggest"
)

const (
	serverName    = "taskflow-ai"
	serverVersion = "1.0.0"
)

// TimeEstimator predicts task duration
type TimeEstimator interface {
	Estimate(task features.TaskInput) (*estimator.TaskTimeEstimation, error)
	Explain(task features.TaskInput) (*estimator.TaskTimeEstimation, error)
}

// Suggester proposes attributes for a new task
type Suggester interface {
	Suggest(ctx context.Context, req suggest.SuggestionRequest) (*suggest.SuggestionResponse, error)
}

// SimilarFinder looks up an owner's nearest tasks
type SimilarFinder interface {
	Query(ctx context.Context, text string, ownerID int64, k int) ([]similarity.Match, error)
}

// AgentChatter answers a chat turn
type AgentChatter interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

// TaskServer registers the task tools on an MCP server
type TaskServer struct {
	mcpServer *server.Server
	estimator TimeEstimator
	suggester Suggester
	finder    SimilarFinder
	agent     AgentChatter
	logger    logging.Logger
}

// NewTaskServer creates the MCP server and registers its tools
func NewTaskServer(est TimeEstimator, sug Suggester, finder SimilarFinder, logger logging.Logger) (*TaskServer, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	mcpServer := mcp.NewServer(serverName, serverVersion)
	if mcpServer == nil {
		return nil, errors.New("failed to create MCP server instance")
	}

	ts := &TaskServer{
		mcpServer: mcpServer,
		estimator: est,
		suggester: sug,
		finder:    finder,
		logger:    logger.WithComponent("mcp"),
	}
	ts.registerTools()
	return ts, nil
}

// EnableAgent registers the chat tool backed by chatter
func (ts *TaskServer) EnableAgent(chatter AgentChatter) *TaskServer {
	ts.agent = chatter
	ts.registerAgentTool()
	return ts
}

// MCPServer returns the underlying MCP server
func (ts *TaskServer) MCPServer() *server.Server {
	return ts.mcpServer
}

// ServeStdio speaks MCP over stdin/stdout until ctx is done
func (ts *TaskServer) ServeStdio(ctx context.Context) error {
	ts.mcpServer.SetTransport(transport.NewStdioTransport())
	ts.logger.Info("Serving MCP over stdio")
	return ts.mcpServer.Start(ctx)
}

// HTTPHandler serves single JSON-RPC requests posted to it. Requests need the
// owner header, and every tool call is bound to that owner.
func (ts *TaskServer) HTTPHandler() http.Handler {
	return middleware.RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req protocol.JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeRPC(w, &protocol.JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   protocol.NewJSONRPCError(protocol.ParseError, "Invalid JSON", err.Error()),
			})
			return
		}

		ctx := WithOwner(r.Context(), middleware.OwnerID(r.Context()))
		resp := ts.mcpServer.HandleRequest(ctx, &req)
		writeRPC(w, resp)
	}))
}

func writeRPC(w http.ResponseWriter, resp *protocol.JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
