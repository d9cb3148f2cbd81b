// Package gemini is an HTTP client for the Gemini generative-language API.
// It covers the two calls the engine makes: embedding text and generating
// structured JSON. Requests are paced by a token bucket and guarded by a
// circuit breaker so a flapping upstream degrades fast instead of piling
// up timeouts.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TrialScopeAI/trialscope-mvp/pkg/resilience"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com"
	defaultModel      = "gemini-2.0-flash"
	defaultEmbedModel = "text-embedding-004"
)

// Config configures the client. APIKey is the only required field.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	// RequestsPerSecond paces outbound calls. Zero means no pacing.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the Gemini API over HTTP.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// New creates a Gemini client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 5)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Parts []contentPart `json:"parts"`
	Role  string        `json:"role,omitempty"`
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float32 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	path := fmt.Sprintf("/v1beta/models/%s:embedContent", c.cfg.EmbedModel)
	reqBody := embedRequest{
		Model:   "models/" + c.cfg.EmbedModel,
		Content: content{Parts: []contentPart{{Text: text}}},
	}
	var out embedResponse
	if err := c.post(ctx, path, reqBody, &out); err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: embed: empty vector")
	}
	return out.Embedding.Values, nil
}

// GenerateJSON prompts the model for a JSON-only reply and unmarshals it
// into out. Code fences around the reply are tolerated; anything else
// malformed is an error.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, out any) error {
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.cfg.Model)
	reqBody := generateRequest{
		Contents: []content{{Parts: []contentPart{{Text: prompt}}, Role: "user"}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      0.1,
		},
	}
	var resp generateResponse
	if err := c.post(ctx, path, reqBody, &resp); err != nil {
		return fmt.Errorf("gemini: generate: %w", err)
	}
	text := replyText(resp)
	if text == "" {
		return fmt.Errorf("gemini: generate: empty reply")
	}
	if err := json.Unmarshal([]byte(stripFences(text)), out); err != nil {
		return fmt.Errorf("gemini: generate: decode reply: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return c.breaker.Call(ctx, func(ctx context.Context) error {
		body, err := json.Marshal(in)
		if err != nil {
			return err
		}
		url := c.cfg.BaseURL + path + "?key=" + c.cfg.APIKey
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func replyText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// stripFences removes a markdown code fence wrapping, which some models
// emit even when asked for raw JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
