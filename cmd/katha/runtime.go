package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/ai"
	"github.com/hpungsan/katha/internal/config"
	"github.com/hpungsan/katha/internal/ops"
	"github.com/hpungsan/katha/internal/storage"
)

// runtime holds the collaborators shared by every surface.
type runtime struct {
	baseDir string
	db      *sql.DB
	cfg     *config.Config
	logger  *slog.Logger
	now     func() time.Time

	blob        storage.Blob
	transcriber ops.Transcriber
	polisher    ops.Polisher
	metadata    ops.MetadataExtractor
	prompts     ops.PromptSuggester
}

// newRuntime builds the blob store and AI collaborators from cfg.
// Collaborators without credentials stay nil so the pipeline uses its
// fallbacks instead of calling out.
func newRuntime(ctx context.Context, baseDir string, database *sql.DB, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{baseDir: baseDir, db: database, cfg: cfg, logger: logger, now: time.Now}

	blob, err := newBlob(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.blob = blob

	client := ai.NewClient(ai.Config{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Timeout: cfg.AITimeout(),
	})
	if client.Configured() {
		rt.polisher = &ai.Polisher{Client: client, Model: cfg.PolishModel}
		rt.metadata = &ai.MetadataExtractor{Client: client, Model: cfg.MetadataModel}
		rt.prompts = &ai.PromptSuggester{Client: client, Model: cfg.PromptModel}
	} else {
		logger.Debug("anthropic api key not set; polish, metadata and prompts use fallbacks")
	}

	transcriber := ai.NewTranscriber(ai.WhisperConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.WhisperModel,
		Timeout: cfg.AITimeout(),
	}, &storage.Fetcher{Blob: blob, AllowedHosts: cfg.AudioHosts})
	if transcriber.Configured() {
		rt.transcriber = transcriber
	} else {
		logger.Debug("openai api key not set; audio capsules are published without transcripts")
	}
	return rt, nil
}

func newBlob(ctx context.Context, cfg *config.Config) (storage.Blob, error) {
	switch cfg.Storage {
	case "", "fs":
		return storage.NewFS(cfg.MediaDir, mediaBaseURL(cfg))
	case "s3":
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicURL:       mediaBaseURL(cfg),
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want fs or s3)", cfg.Storage)
	}
}

// mediaBaseURL is where `katha serve` exposes media. Both backends hand out
// URLs under it so reads go through the authenticated route.
func mediaBaseURL(cfg *config.Config) string {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		addr := cfg.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		base = "http://" + addr
	}
	return base + "/media"
}

// publisher returns a pipeline over the runtime's collaborators.
func (rt *runtime) publisher() *ops.Publisher {
	return &ops.Publisher{
		DB:           rt.db,
		Blob:         rt.blob,
		Transcriber:  rt.transcriber,
		Polisher:     rt.polisher,
		Metadata:     rt.metadata,
		Logger:       rt.logger,
		Now:          rt.now,
		StageTimeout: rt.cfg.AITimeout(),
		MaxChars:     rt.cfg.CapsuleMaxChars,
	}
}
