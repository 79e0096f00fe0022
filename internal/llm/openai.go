package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"invoiceapi/internal/logger"
)

const ProviderOpenAI = "openai"

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey   string
	Model    string // gpt-3.5-turbo, gpt-4o-mini, ...
	BaseURL  string // optional, for compatible gateways
	JSONMode bool   // request a json_object response format
	Timeout  time.Duration
}

// OpenAI implements Completer on top of the chat completions API.
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
	log    zerolog.Logger
}

// NewOpenAI creates an adapter from config.
func NewOpenAI(config OpenAIConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		log:    logger.WithComponent("llm-openai"),
	}
}

// Complete sends the system and user messages and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
	}
	// temperature is omitempty; zero would fall back to the provider default.
	if chatReq.Temperature == 0 {
		chatReq.Temperature = math.SmallestNonzeroFloat32
	}
	if o.config.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	o.log.Debug().
		Str("model", o.config.Model).
		Int("prompt_chars", len(req.User)).
		Msg("Sending chat completion request")

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		classified := classifyOpenAIError(err)
		o.log.Error().
			Err(err).
			Str("kind", KindOf(classified).String()).
			Msg("Chat completion failed")
		return "", classified
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{
			Provider: ProviderOpenAI,
			Kind:     KindUnknown,
			Message:  ErrEmptyCompletion.Error(),
			Err:      ErrEmptyCompletion,
		}
	}

	o.log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("Chat completion received")

	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := KindProvider
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			kind = KindRateLimited
		}
		return &ProviderError{
			Provider:   ProviderOpenAI,
			Kind:       kind,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		kind := KindUnknown
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			kind = KindRateLimited
		}
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &ProviderError{
			Provider:   ProviderOpenAI,
			Kind:       kind,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	return &ProviderError{
		Provider: ProviderOpenAI,
		Kind:     KindUnknown,
		Message:  err.Error(),
		Err:      err,
	}
}
