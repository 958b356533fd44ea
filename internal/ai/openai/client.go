package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/logger"
	"github.com/spigell/stack-advisor/internal/utils"
)

const (
	apiURL         = "https://api.openai.com/v1"
	contentType    = "application/json"
	defaultTimeout = 60 * time.Second

	defaultMaxLogLength = 200
	temperature         = 0.7
	maxTokens           = 2000
)

type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	MaxLogLength int
}

// Client calls the OpenAI chat completions API.
type Client struct {
	apiKey     string
	model      string
	maxLogLen  int
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = ai.DefaultModel(ai.ProviderOpenAI)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = apiURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Client{
		apiKey:     apiKey,
		model:      model,
		maxLogLen:  maxLogLen,
		logger:     logger.WithCommonFields(log, string(ai.ProviderOpenAI), model),
		HTTPClient: &http.Client{Timeout: timeout},
		APIURL:     baseURL,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// Reply sends the system prompt followed by the whole history and returns the
// content of the first choice.
func (c *Client) Reply(ctx context.Context, history []ai.Message) (string, error) {
	messages := make([]chatMessage, 0, len(history)+1)
	messages = append(messages, chatMessage{Role: "system", Content: ai.SystemPrompt(time.Now())})
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if len(messages) == 1 {
		return "", errors.New("conversation history must not be empty")
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	last := messages[len(messages)-1].Content
	c.logger.Debug("openai chat completion request",
		zap.Int("history_length", len(messages)-1),
		zap.String("message_preview", utils.TruncateForLog(last, c.maxLogLen)),
	)

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyReply
	}

	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	if output == "" {
		return "", ai.ErrEmptyReply
	}

	c.logger.Debug("openai chat completion response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
	)

	return output, nil
}

// ListModels returns the GPT chat models available to the key, falling back to
// the built-in list on any failure.
func (c *Client) ListModels(ctx context.Context) ([]ai.Model, error) {
	defaults := ai.DefaultModels(ai.ProviderOpenAI)

	var resp modelsResponse
	if err := c.do(ctx, http.MethodGet, "/models", nil, &resp); err != nil {
		c.logger.Debug("listing openai models failed", zap.Error(err))
		return defaults, nil
	}

	var models []ai.Model
	for _, m := range resp.Data {
		if strings.Contains(m.ID, "gpt-4") || strings.Contains(m.ID, "gpt-3.5") {
			models = append(models, ai.Model{ID: m.ID, Name: m.ID})
		}
	}

	if len(models) == 0 {
		return defaults, nil
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("make request", zap.String("method", method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
			return fmt.Errorf("bad status: %s: %s", resp.Status, envelope.Error.Message)
		}
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
