// Package llm talks to an OpenAI-compatible chat completions endpoint
// (OpenAI, vLLM, Ollama, LiteLLM) and builds the agent's system prompt.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ashutoshrp06/parcel-agent/internal/tools"
	"github.com/ashutoshrp06/parcel-agent/internal/validator"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
)

// Config holds client configuration.
type Config struct {
	Endpoint       string // e.g. "https://api.openai.com/v1"
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	Temperature    float32
	MaxTokens      int
}

type Client struct {
	endpoint       string
	apiKey         string
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	client         *http.Client
	output         *validator.OutputValidator
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		client:         &http.Client{Timeout: cfg.Timeout},
		output:         validator.NewOutputValidator(),
	}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Invoke sends the conversation and the advertised tools, returning the next
// assistant turn.
func (c *Client) Invoke(ctx context.Context, messages []models.Message, specs []tools.Spec) (models.Message, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(specs) > 0 {
		req.Tools = toChatTools(specs)
		req.ToolChoice = "auto"
	}

	var chatResp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &chatResp); err != nil {
		return models.Message{}, err
	}

	if len(chatResp.Choices) == 0 {
		return models.Message{}, fmt.Errorf("no response from LLM")
	}

	return c.output.Normalize(fromChatMessage(chatResp.Choices[0].Message)), nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.embeddingModel
	if model == "" {
		model = c.model
	}

	var embResp embeddingResponse
	if err := c.post(ctx, "/embeddings", embeddingRequest{Model: model, Input: texts}, &embResp); err != nil {
		return nil, err
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	sort.Slice(embResp.Data, func(i, j int) bool { return embResp.Data[i].Index < embResp.Data[j].Index })
	vectors := make([][]float32, len(embResp.Data))
	for i, d := range embResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Ping checks that the endpoint answers an authenticated model listing.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LLM returned status %d", resp.StatusCode)
	}
	return nil
}

// ModelInfo returns information about the configured model.
func (c *Client) ModelInfo() string {
	return fmt.Sprintf("%s @ %s", c.model, c.endpoint)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("LLM returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func toChatMessages(messages []models.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		msg := chatMessage{Role: string(m.Role), Content: &content}

		switch m.Role {
		case models.RoleToolResult:
			msg.Role = "tool"
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.Name
		case models.RoleAssistant:
			if m.HasToolCalls() {
				if content == "" {
					msg.Content = nil
				}
				for _, tc := range m.ToolCalls {
					args := string(tc.Arguments)
					if strings.TrimSpace(args) == "" {
						args = "{}"
					}
					msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
						ID:       tc.ID,
						Type:     "function",
						Function: chatFunctionCall{Name: tc.Name, Arguments: args},
					})
				}
			}
		}
		out = append(out, msg)
	}
	return out
}

func toChatTools(specs []tools.Spec) []chatTool {
	out := make([]chatTool, len(specs))
	for i, s := range specs {
		out[i] = chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		}
	}
	return out
}

func fromChatMessage(m chatMessage) models.Message {
	msg := models.Message{Role: models.RoleAssistant}
	if m.Content != nil {
		msg.Content = *m.Content
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return msg
}
