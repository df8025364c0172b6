// Package deepseek is the generation provider backed by the DeepSeek chat
// completions API.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/planix/internal/config"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/smallbiznis/planix/internal/observability/tracing"
	"go.uber.org/zap"
)

const (
	placeholderAPIKey = "your-deepseek-api-key-here"
	defaultBaseURL    = "https://api.deepseek.com/v1"
	defaultModel      = "deepseek-chat"

	planMaxTokens       = 2000
	planTemperature     = 0.7
	complianceMaxTokens = 1500
	complianceTemp      = 0.3

	maxErrorBody = 512
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) domain.Provider {
	return NewClient(cfg.Provider, log)
}

func NewClient(cfg config.ProviderConfig, log *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		model:   model,
		client:  tracing.WrapHTTPClient(&http.Client{Timeout: timeout}, "deepseek"),
		log:     log.Named("deepseek"),
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiKey != placeholderAPIKey
}

// GeneratePlan asks for a floor-plan description. Without credentials it
// returns a degraded result instead of an error.
func (c *Client) GeneratePlan(ctx context.Context, spec floorplandomain.PlanSpec) (domain.Result, error) {
	if !c.Configured() {
		c.log.Warn("deepseek api key not configured; returning degraded plan")
		return domain.Result{Text: degradedPlan(spec), Model: "unconfigured", Degraded: true}, nil
	}

	text, model, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: planPrompt(spec)},
	}, planMaxTokens, planTemperature)
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Text: text, Model: model}, nil
}

// AssessCompliance asks for a JSON checklist. Output that is not valid JSON
// degrades to an unparsed report.
func (c *Client) AssessCompliance(ctx context.Context, planText string, spec floorplandomain.PlanSpec) (floorplandomain.Compliance, error) {
	if !c.Configured() {
		return floorplandomain.Compliance{}, domain.ErrConfigurationMissing
	}

	text, _, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: complianceSystemPrompt},
		{Role: "user", Content: compliancePrompt(planText, spec)},
	}, complianceMaxTokens, complianceTemp)
	if err != nil {
		return floorplandomain.Compliance{}, err
	}
	return floorplandomain.ParseCompliance(text), nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage, maxTokens int, temperature float64) (string, string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", "", fmt.Errorf("%w: %v", domain.ErrProviderTimeout, err)
		}
		return "", "", fmt.Errorf("%w: %v", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: %s", domain.ErrProviderError, upstreamMessage(resp))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("%w: decode response: %v", domain.ErrProviderError, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", "", fmt.Errorf("%w: empty completion", domain.ErrProviderError)
	}
	model := out.Model
	if model == "" {
		model = c.model
	}
	return out.Choices[0].Message.Content, model, nil
}

func upstreamMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, parsed.Error.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
