package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Headline одна новость по токену
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsClient клиент новостного API (CryptoPanic-совместимый)
type NewsClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewNewsClient создает новостной клиент
func NewNewsClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *NewsClient {
	return &NewsClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "news").Logger(),
	}
}

type newsResponse struct {
	Results []struct {
		Title  string `json:"title"`
		Source struct {
			Title string `json:"title"`
		} `json:"source"`
		PublishedAt time.Time `json:"published_at"`
	} `json:"results"`
}

// Latest получает свежие заголовки по токену
func (n *NewsClient) Latest(ctx context.Context, token string, limit int) ([]Headline, error) {
	query := url.Values{}
	query.Set("auth_token", n.token)
	query.Set("currencies", token)
	query.Set("public", "true")

	reqURL := fmt.Sprintf("%s/api/v1/posts/?%s", n.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed newsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	headlines := make([]Headline, 0, limit)
	for _, row := range parsed.Results {
		if len(headlines) >= limit {
			break
		}
		headlines = append(headlines, Headline{
			Title:       row.Title,
			Source:      row.Source.Title,
			PublishedAt: row.PublishedAt,
		})
	}

	return headlines, nil
}
