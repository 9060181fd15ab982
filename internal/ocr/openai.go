package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const extractPrompt = `Eres un experto en extracción de datos de documentos financieros.
Clasifica la imagen y extrae su contenido, respondiendo ÚNICAMENTE con un objeto JSON:

{"document_type": "receipt" | "transfer",
 "receipt": {"merchant": "...", "date": "YYYY-MM-DD", "total_amount": 0, "tip": 0,
             "items": [{"description": "...", "amount": 0, "count": 1}]},
 "transfer": {"recipient": "...", "amount": 0, "description": "..."}}

CRITERIOS PARA 'transfer': captura de app bancaria o comprobante digital
("Transferencia realizada", "Comprobante", "Destinatario", datos bancarios),
sin lista de productos consumidos.
CRITERIOS PARA 'receipt': foto de boleta o ticket de compra con lista de
productos, precios, "Total a pagar", "Propina", nombre de un comercio.

REGLAS DE EXTRACCIÓN (receipt):
1. total_amount: monto TOTAL pagado, incluyendo propina e impuestos. Si hay
   descuentos, el monto FINAL pagado.
2. tip: busca 'Propina', 'Tip', 'Servicio' o 'Service Charge'; 0 si no aparece.
3. items: count por defecto 1 si no se especifica.
Incluye solo el campo correspondiente al tipo detectado.`

// OpenAIExtractor implements Extractor against an OpenAI-compatible
// vision-capable chat-completions endpoint.
type OpenAIExtractor struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI extractor
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: https://api.openai.com
	Model   string // default: gpt-4o-mini
}

// NewOpenAIExtractor creates a new OpenAI-backed extractor
func NewOpenAIExtractor(cfg OpenAIConfig) *OpenAIExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	return &OpenAIExtractor{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type visionRequest struct {
	Model       string          `json:"model"`
	Messages    []visionMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type visionMessage struct {
	Role    string       `json:"role"`
	Content []visionPart `json:"content"`
}

type visionPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the image inline as a data URL and parses the model's JSON
// verdict.
func (e *OpenAIExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	body, err := json.Marshal(&visionRequest{
		Model: e.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionPart{
				{Type: "text", Text: extractPrompt},
				{Type: "image_url", ImageURL: &visionImageURL{URL: dataURL}},
			},
		}},
		MaxTokens:   2048,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var visionResp visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&visionResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(visionResp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}

	return parseExtraction(visionResp.Choices[0].Message.Content)
}

func parseExtraction(content string) (*Extraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var extraction Extraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		return nil, fmt.Errorf("parse extraction %q: %w", content, err)
	}

	switch extraction.DocumentType {
	case DocumentReceipt:
		if extraction.Receipt == nil {
			return nil, fmt.Errorf("receipt verdict without receipt data")
		}
	case DocumentTransfer:
		if extraction.Transfer == nil {
			return nil, fmt.Errorf("transfer verdict without transfer data")
		}
	default:
		return nil, fmt.Errorf("unknown document type %q", extraction.DocumentType)
	}
	return &extraction, nil
}
