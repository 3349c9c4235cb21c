package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nimproxy/internal/convert"
	"nimproxy/internal/core"
)

// ModelNotSupportedError is returned when the requested model has no mapping.
type ModelNotSupportedError struct {
	Model string
}

func (e *ModelNotSupportedError) Error() string {
	return fmt.Sprintf("Model '%s' is not supported by this proxy.", e.Model)
}

// UpstreamError describes a failed backend exchange. StatusCode is zero when
// no HTTP response was received.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PreparedRequest is an inbound request translated for the backend.
type PreparedRequest struct {
	ClientModel  string
	BackendModel string
	Payload      []byte
	Stream       bool
}

// ProcessorConfig configuration for RequestProcessor
type ProcessorConfig struct {
	BaseURL    string
	APIKey     string
	Models     *core.ModelMapping
	HTTPClient *http.Client
	Metrics    core.MetricsCollector
	Logger     core.Logger
}

// RequestProcessor translates chat requests and sends them to the NIM backend.
type RequestProcessor struct {
	endpoint   string
	apiKey     string
	models     *core.ModelMapping
	httpClient *http.Client
	metrics    core.MetricsCollector
	logger     core.Logger
}

// NewRequestProcessor creates a new request processor
func NewRequestProcessor(cfg ProcessorConfig) *RequestProcessor {
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &RequestProcessor{
		endpoint:   cfg.BaseURL + core.NIMChatCompletionsPath,
		apiKey:     cfg.APIKey,
		models:     cfg.Models,
		httpClient: cfg.HTTPClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Endpoint returns the backend chat completions URL.
func (p *RequestProcessor) Endpoint() string {
	return p.endpoint
}

// Prepare validates an inbound body, resolves its model and builds the backend payload.
func (p *RequestProcessor) Prepare(body []byte) (*PreparedRequest, error) {
	body = convert.NormalizeRequestBody(body)
	if err := convert.ValidateRequestBody(body); err != nil {
		return nil, err
	}

	clientModel := convert.RequestedModel(body)
	backendModel, ok := p.models.Lookup(clientModel)
	if !ok {
		return nil, &ModelNotSupportedError{Model: clientModel}
	}

	payload, stream, err := convert.BuildBackendRequest(body, backendModel)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Mapped model %s -> %s (stream=%v)", clientModel, backendModel, stream)

	return &PreparedRequest{
		ClientModel:  clientModel,
		BackendModel: backendModel,
		Payload:      payload,
		Stream:       stream,
	}, nil
}

// SendUpstreamRequest posts the payload to the backend. On success the caller
// owns resp.Body. Non-2xx answers are drained and returned as *UpstreamError.
func (p *RequestProcessor) SendUpstreamRequest(ctx context.Context, prepared *PreparedRequest) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(prepared.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(core.HeaderAuthorization, core.AuthBearerPrefix+p.apiKey)
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	if prepared.Stream {
		req.Header.Set(core.HeaderAccept, core.ContentTypeEventStream)
	} else {
		req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req) //nolint:gosec // endpoint comes from startup configuration
	if err != nil {
		p.metrics.RecordUpstream(0, time.Since(start))
		return nil, &UpstreamError{Message: "failed to make request", Err: err}
	}
	p.metrics.RecordUpstream(resp.StatusCode, time.Since(start))

	p.logger.Debug("NIM API Response Status: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, p.upstreamStatusError(resp)
	}

	return resp, nil
}

func (p *RequestProcessor) upstreamStatusError(resp *http.Response) *UpstreamError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, core.MaxErrorBodySize))
	if readErr != nil {
		p.logger.Warn("Failed to read NIM error body: %v", readErr)
	}
	p.logger.Error("NIM API Error: status=%d, body=%s", resp.StatusCode, string(body))

	message := convert.ExtractErrorMessage(body)
	if message == "" {
		message = fmt.Sprintf(core.NIMUpstreamStatusMessageFmt, resp.StatusCode)
	}
	return &UpstreamError{StatusCode: resp.StatusCode, Message: message}
}

// IsClientCanceled reports whether err stems from the inbound request going away.
func IsClientCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}
