package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"invoiceapi/internal/config"
	"invoiceapi/internal/invoice"
	"invoiceapi/internal/llm"
	"invoiceapi/internal/logger"
	"invoiceapi/internal/pipeline"
	"invoiceapi/internal/storage"
	"invoiceapi/internal/textextract"
)

var errNoCredentials = errors.New("LLM credentials are not configured")

// dependencies holds the collaborators built from the configuration.
type dependencies struct {
	store        storage.Store
	orchestrator *pipeline.Orchestrator
	closers      []func() error
	log          zerolog.Logger
}

// buildDependencies wires the pipeline. The document store is only created
// when withStore is set; the CLI reads local files directly.
func buildDependencies(ctx context.Context, cfg *config.Config, withStore bool) (*dependencies, error) {
	d := &dependencies{log: logger.WithComponent("deps")}

	completer, err := d.newCompleter(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	if withStore {
		if err := d.newStore(ctx, cfg); err != nil {
			d.Close()
			return nil, err
		}
	}

	engine := textextract.NewDefaultEngine(textextract.Config{MinPrimaryChars: cfg.MinPrimaryTextChars})
	client := invoice.NewClient(completer, invoice.ClientConfig{
		Temperature:     cfg.Temperature,
		MergeDuplicates: cfg.MergeDuplicates,
	})

	d.orchestrator = pipeline.New(d.store, engine, client, cfg.HasLLMCredentials)

	d.log.Info().
		Str("provider", cfg.LLMProvider).
		Str("storage", cfg.StorageBackend).
		Bool("credentials", cfg.HasLLMCredentials()).
		Strs("strategies", engine.Strategies()).
		Msg("Pipeline ready")

	return d, nil
}

func (d *dependencies) newCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	if !cfg.HasLLMCredentials() {
		// Requests are rejected by the orchestrator before reaching this.
		d.log.Warn().Str("provider", cfg.LLMProvider).Msg("LLM credentials not configured")
		return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
			return "", errNoCredentials
		}), nil
	}

	var completer llm.Completer
	switch cfg.LLMProvider {
	case config.ProviderVertex:
		vertex, err := llm.NewVertex(ctx, llm.VertexConfig{
			Project:         cfg.VertexProject,
			Location:        cfg.VertexLocation,
			Model:           cfg.VertexModel,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		d.closers = append(d.closers, vertex.Close)
		completer = vertex
	default:
		completer = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.OpenAIModel,
			BaseURL:  cfg.OpenAIBaseURL,
			JSONMode: cfg.OpenAIJSONMode,
			Timeout:  cfg.LLMTimeout,
		})
	}

	return llm.WithRetry(completer, llm.RetryPolicy{
		Attempts: uint(cfg.LLMMaxAttempts),
		Delay:    cfg.LLMRetryDelay,
	}), nil
}

func (d *dependencies) newStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		local, err := storage.NewLocalStore(cfg.LocalStorageDir, cfg.MaxDocumentBytes)
		if err != nil {
			return fmt.Errorf("failed to open local document store: %w", err)
		}
		d.store = local
	default:
		gcs, err := storage.NewGCSStore(ctx, storage.GCSConfig{
			Bucket:          cfg.BucketName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			MaxBytes:        cfg.MaxDocumentBytes,
			PresignTTL:      cfg.PresignTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to create document store: %w", err)
		}
		d.closers = append(d.closers, gcs.Close)
		d.store = gcs
	}
	return nil
}

// presigner returns the store as a Presigner when it supports signed uploads.
func (d *dependencies) presigner() storage.Presigner {
	p, ok := d.store.(storage.Presigner)
	if !ok {
		return nil
	}
	return p
}

// Close releases clients in reverse order of creation.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn().Err(err).Msg("Failed to close client")
		}
	}
	d.closers = nil
}
