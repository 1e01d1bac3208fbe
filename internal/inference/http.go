package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/metrics"
)

// HTTPBackend talks to the model server over JSON.
type HTTPBackend struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPBackend creates a backend for baseURL. timeout bounds every call.
func NewHTTPBackend(baseURL string, timeout time.Duration, logger *zap.Logger) (*HTTPBackend, error) {
	if baseURL == "" {
		return nil, errors.New("model server base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid model server URL: %w", err)
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}, nil
}

func (b *HTTPBackend) Predict(ctx context.Context, model string, req *PredictRequest) (*PredictResponse, error) {
	start := time.Now()
	var resp PredictResponse
	endpoint := fmt.Sprintf("%s/v1/models/%s:predict", b.baseURL, url.PathEscape(model))
	err := b.post(ctx, endpoint, req, &resp)
	metrics.ObserveModelRequest(model, start, err)
	if err != nil {
		return nil, &ModelInferenceError{Model: model, Err: err}
	}

	b.logger.Debug("Model prediction",
		zap.String("model", model),
		zap.Int("inputs", len(req.Inputs)),
		zap.Duration("took", time.Since(start)))
	return &resp, nil
}

type nounsRequest struct {
	Text string `json:"text"`
}

type nounsResponse struct {
	Nouns []string `json:"nouns"`
}

func (b *HTTPBackend) Nouns(ctx context.Context, analyzer string, text string) ([]string, error) {
	start := time.Now()
	var resp nounsResponse
	endpoint := fmt.Sprintf("%s/v1/analyzers/%s:nouns", b.baseURL, url.PathEscape(analyzer))
	err := b.post(ctx, endpoint, nounsRequest{Text: text}, &resp)
	metrics.ObserveModelRequest(analyzer, start, err)
	if err != nil {
		return nil, &ModelInferenceError{Model: analyzer, Err: err}
	}
	return resp.Nouns, nil
}

func (b *HTTPBackend) Healthy(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server unhealthy: %s", resp.Status)
	}
	return nil
}

func (b *HTTPBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *HTTPBackend) post(ctx context.Context, endpoint string, body, out any) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
