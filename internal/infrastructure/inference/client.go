// Package inference talks to a generative model REST endpoint
// (generateContent for structured text, predict for images).
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/99minutos/travel-portal/internal/core/ports"
)

const defaultTimeout = 60 * time.Second

var errEmptyResponse = errors.New("model returned no content")

// Config selects the endpoint and models. RequestsPerMinute <= 0 disables
// client-side throttling; MaxImageWidth <= 0 keeps images at native size.
type Config struct {
	BaseURL           string
	APIKey            string
	TextModel         string
	ImageModel        string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxImageWidth     int
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

var _ ports.InferenceClient = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateJSON asks the text model for a JSON answer shaped by schema and
// returns the raw JSON text.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	var resp generateResponse
	if err := c.call(ctx, c.cfg.TextModel, "generateContent", req, &resp); err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return []byte(text), nil
			}
		}
	}
	return nil, errEmptyResponse
}

type predictRequest struct {
	Instances  []map[string]string `json:"instances"`
	Parameters map[string]any      `json:"parameters"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// GenerateImage returns one generated image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	req := predictRequest{
		Instances:  []map[string]string{{"prompt": prompt}},
		Parameters: map[string]any{"sampleCount": 1},
	}
	var resp predictResponse
	if err := c.call(ctx, c.cfg.ImageModel, "predict", req, &resp); err != nil {
		return nil, "", err
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, "", errEmptyResponse
	}

	p := resp.Predictions[0]
	data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	data, mime := downscale(data, p.MimeType, c.cfg.MaxImageWidth)
	return data, mime, nil
}

func (c *Client) call(ctx context.Context, model, method string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: throttled: %w", model, method, err)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:%s", c.cfg.BaseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", model, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: status %d: %s", model, method, resp.StatusCode, truncate(raw, 256))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
