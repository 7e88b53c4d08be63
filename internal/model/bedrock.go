// Package model invokes the hosted chat model through the Bedrock runtime.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ashureev/docchat/internal/domain"
	"github.com/ashureev/docchat/internal/metrics"
)

const (
	// AnthropicVersion is the message API version sent with every request.
	AnthropicVersion = "bedrock-2023-05-31"

	// DefaultModelID is the model used when none is configured.
	DefaultModelID = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"

	// DefaultMaxTokens bounds the length of a reply.
	DefaultMaxTokens = 8192

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7
)

var (
	// ErrRequestFailed covers transport, auth and throttling failures.
	ErrRequestFailed = errors.New("model request failed")
	// ErrUnexpectedFormat is returned when the reply has no text content.
	ErrUnexpectedFormat = errors.New("unexpected response format from the model")
)

// InvokeAPI is the subset of the Bedrock runtime client used by Client.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds the fixed request parameters.
type Config struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the default request parameters.
func DefaultConfig() Config {
	return Config{
		ModelID:     DefaultModelID,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

// Client sends transcripts to the model.
type Client struct {
	api     InvokeAPI
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a client over api. An empty model ID or non-positive token
// budget takes the default; temperature is used as given.
func New(api InvokeAPI, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.ModelID == "" {
		cfg.ModelID = def.ModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, cfg: cfg, metrics: m, logger: logger}
}

// NewFromAWSConfig builds the Bedrock runtime client. Retries are disabled:
// a failed attempt is reported to the caller immediately.
func NewFromAWSConfig(awsCfg aws.Config, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	api := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	return New(api, cfg, m, logger)
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string {
	return c.cfg.ModelID
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type response struct {
	Content []struct {
		Text *string `json:"text"`
	} `json:"content"`
}

// Invoke sends the full transcript and returns the text of the reply.
func (c *Client) Invoke(ctx context.Context, turns []domain.Turn) (string, error) {
	body, err := c.encode(turns)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		c.metrics.ObserveModelInvocation("request_failed", time.Since(start))
		c.logger.Error("model invocation failed", "model_id", c.cfg.ModelID, "turns", len(turns), "error", err)
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	text, err := decode(out.Body)
	if err != nil {
		c.metrics.ObserveModelInvocation("unexpected_format", time.Since(start))
		c.logger.Error("model returned unexpected format", "model_id", c.cfg.ModelID, "body", truncate(string(out.Body), 400))
		return "", err
	}

	c.metrics.ObserveModelInvocation("ok", time.Since(start))
	return text, nil
}

func (c *Client) encode(turns []domain.Turn) ([]byte, error) {
	messages := make([]message, 0, len(turns))
	for _, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("%w: invalid role %q", ErrRequestFailed, t.Role)
		}
		messages = append(messages, message{Role: string(t.Role), Content: t.Text})
	}

	body, err := json.Marshal(request{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        c.cfg.MaxTokens,
		Temperature:      c.cfg.Temperature,
		Messages:         messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrRequestFailed, err)
	}
	return body, nil
}

func decode(body []byte) (string, error) {
	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpectedFormat, err)
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == nil {
		return "", ErrUnexpectedFormat
	}
	return *parsed.Content[0].Text, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
