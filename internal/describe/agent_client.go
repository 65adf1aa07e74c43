package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatRequest is the body of the agent service's /chat endpoint.
type ChatRequest struct {
	Message   string  `json:"message"`
	RepoID    *string `json:"repo_id,omitempty"`
	AgentType string  `json:"agent_type"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	ToolCalls []any  `json:"tool_calls"`
}

const DefaultAgentURL = "http://localhost:8000"

// AgentClient asks an agent service for descriptions over HTTP.
type AgentClient struct {
	baseURL    string
	agentType  string
	httpClient *http.Client
}

func NewAgentClient(baseURL string, timeout time.Duration) *AgentClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultAgentURL
	}
	return &AgentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		agentType:  "describer",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *AgentClient) Name() string { return "agent" }

func (c *AgentClient) Describe(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(ChatRequest{Message: prompt, AgentType: c.agentType})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("agent service returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return chatResp.Response, nil
}
