package classify

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

const systemPrompt = `Eres el clasificador de un bot de WhatsApp que divide gastos entre amigos.
Analiza el mensaje del usuario y responde ÚNICAMENTE con un objeto JSON, sin texto adicional:
{"action": "CREATE_SESSION" | "CLOSE_SESSION" | "JOIN_SESSION" | "ASSIGN_ITEM_TO_USER" | "UNKNOWN",
 "description": "descripción de la sesión (solo CREATE_SESSION)",
 "session_id": "UUID mencionado en el mensaje (solo CLOSE_SESSION y JOIN_SESSION)",
 "item": "artículo a asignar (solo ASSIGN_ITEM_TO_USER)",
 "assignee": "persona a la que se asigna (solo ASSIGN_ITEM_TO_USER)"}
Si el mensaje no encaja en ninguna acción usa "UNKNOWN" y omite el resto de los campos.`

// OpenAIClassifier implements Classifier against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIClassifier struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI classifier
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: https://api.openai.com
	Model   string // default: gpt-4o-mini
}

// NewOpenAIClassifier creates a new OpenAI-backed classifier
func NewOpenAIClassifier(cfg OpenAIConfig) *OpenAIClassifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	return &OpenAIClassifier{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *OpenAIClassifier) Name() string {
	return "openai"
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the message to the model and parses its JSON verdict.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (*Action, error) {
	body, err := json.Marshal(&chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}

	return parseVerdict(chatResp.Choices[0].Message.Content)
}

// parseVerdict extracts the Action JSON from the model's reply, tolerating
// markdown code fences some models wrap around it.
func parseVerdict(content string) (*Action, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var action Action
	if err := json.Unmarshal([]byte(content), &action); err != nil {
		return nil, fmt.Errorf("parse verdict %q: %w", content, err)
	}
	return normalize(&action), nil
}
