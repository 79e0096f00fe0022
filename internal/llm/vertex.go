package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"invoiceapi/internal/logger"
)

const ProviderVertex = "vertex"

// VertexConfig configures the Gemini adapter.
type VertexConfig struct {
	Project         string
	Location        string
	Model           string
	CredentialsFile string
	CredentialsJSON string
}

// Vertex implements Completer with a Gemini model on Vertex AI.
type Vertex struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewVertex creates the Vertex AI client. Close releases it.
func NewVertex(ctx context.Context, config VertexConfig) (*Vertex, error) {
	const op = "NewVertex"

	var opts []option.ClientOption
	switch {
	case config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	case config.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	}

	client, err := genai.NewClient(ctx, config.Project, config.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create vertex client: %w", op, err)
	}

	return &Vertex{
		client: client,
		model:  config.Model,
		log:    logger.WithComponent("llm-vertex"),
	}, nil
}

// Complete runs a single-turn generation with the system prompt as the
// model's system instruction.
func (v *Vertex) Complete(ctx context.Context, req Request) (string, error) {
	model := v.client.GenerativeModel(v.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}

	v.log.Debug().
		Str("model", v.model).
		Int("prompt_chars", len(req.User)).
		Msg("Sending generate content request")

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		classified := classifyVertexError(err)
		v.log.Error().
			Err(err).
			Str("kind", KindOf(classified).String()).
			Msg("Generate content failed")
		return "", classified
	}

	text := responseText(resp)
	if text == "" {
		return "", &ProviderError{
			Provider: ProviderVertex,
			Kind:     KindUnknown,
			Message:  ErrEmptyCompletion.Error(),
			Err:      ErrEmptyCompletion,
		}
	}
	return text, nil
}

// Close releases the underlying client.
func (v *Vertex) Close() error {
	return v.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func classifyVertexError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := KindProvider
		if gerr.Code == http.StatusTooManyRequests {
			kind = KindRateLimited
		}
		return &ProviderError{
			Provider:   ProviderVertex,
			Kind:       kind,
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        err,
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		kind := KindProvider
		switch st.Code() {
		case codes.ResourceExhausted:
			kind = KindRateLimited
		case codes.Canceled, codes.DeadlineExceeded:
			kind = KindUnknown
		}
		return &ProviderError{
			Provider: ProviderVertex,
			Kind:     kind,
			Message:  st.Message(),
			Err:      err,
		}
	}

	return &ProviderError{
		Provider: ProviderVertex,
		Kind:     KindUnknown,
		Message:  err.Error(),
		Err:      err,
	}
}
