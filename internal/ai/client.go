package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client клиент для decision-модели (Responses API совместимый провайдер)
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// Request запрос к модели: инструкции + входные данные + строгая JSON-схема ответа
type Request struct {
	Model        string
	Instructions string
	Input        string
	SchemaName   string
	Schema       map[string]interface{}
	Tools        []Tool
}

// Response ответ модели: сырое тело для аудита и извлеченный текстовый payload
type Response struct {
	Raw  string
	Text string
}

// Tool описание функции, которую модель может вызвать
type Tool struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type apiRequest struct {
	Model        string      `json:"model"`
	Instructions string      `json:"instructions,omitempty"`
	Input        string      `json:"input"`
	Text         *textFormat `json:"text,omitempty"`
	Tools        []Tool      `json:"tools,omitempty"`
}

type textFormat struct {
	Format formatSpec `json:"format"`
}

type formatSpec struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type apiResponse struct {
	Output []outputItem `json:"output"`
	Error  *apiError    `json:"error"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewClient создает новый клиент decision-модели
func NewClient(apiKey, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "ai").Logger(),
	}
}

// Respond отправляет запрос модели и извлекает текстовый payload из обертки ответа.
// Схема передается в strict-режиме: модель обязана вернуть ровно описанную структуру.
func (c *Client) Respond(ctx context.Context, req Request) (*Response, error) {
	body := apiRequest{
		Model:        req.Model,
		Instructions: req.Instructions,
		Input:        req.Input,
		Tools:        req.Tools,
	}
	if req.Schema != nil {
		body.Text = &textFormat{
			Format: formatSpec{
				Type:   "json_schema",
				Name:   req.SchemaName,
				Strict: true,
				Schema: req.Schema,
			},
		}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Не дублируем /v1, если baseURL его уже содержит
	endpoint := c.baseURL
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}
	endpoint += "/responses"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// После получения тела ответ всегда возвращается с Raw:
	// вызов дошел до провайдера и подлежит аудиту
	if resp.StatusCode != http.StatusOK {
		return &Response{Raw: string(raw)}, fmt.Errorf("model API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &Response{Raw: string(raw)}, fmt.Errorf("parse response envelope: %w", err)
	}
	if parsed.Error != nil {
		return &Response{Raw: string(raw)}, fmt.Errorf("model API error: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}

	text, err := extractOutputText(parsed)
	if err != nil {
		return &Response{Raw: string(raw)}, err
	}

	c.log.Debug().
		Str("model", req.Model).
		Str("schema", req.SchemaName).
		Dur("took", time.Since(start)).
		Msg("🤖 Ответ модели получен")

	return &Response{Raw: string(raw), Text: text}, nil
}

// extractOutputText достает текст из вложенной структуры output -> message -> output_text
func extractOutputText(resp apiResponse) (string, error) {
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" {
				return content.Text, nil
			}
		}
	}
	return "", fmt.Errorf("no message payload in model output")
}
