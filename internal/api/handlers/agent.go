package handlers

import (
	"context"
	"net/http"

	"taskflow-ai/internal/agent"
	"taskflow-ai/internal/api/middleware"
	"taskflow-ai/internal/api/response"
	"taskflow-ai/internal/logging"
)

// AgentChatter answers a chat turn
type AgentChatter interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

// AgentHandler serves the assistant chat endpoint
type AgentHandler struct {
	agent  AgentChatter
	logger logging.Logger
}

// NewAgentHandler creates the chat endpoint handler
func NewAgentHandler(chatter AgentChatter, logger logging.Logger) *AgentHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &AgentHandler{agent: chatter, logger: logger.WithComponent("api")}
}

// Chat handles POST /api/v1/agent/chat
func (h *AgentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req agent.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.WriteBadRequest(w, "invalid request body", err.Error())
		return
	}
	req.OwnerID = middleware.OwnerID(r.Context())

	result, err := h.agent.Chat(r.Context(), req)
	if err != nil {
		response.WriteFromError(w, "failed to process chat message", err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}
