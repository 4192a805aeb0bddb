package ops

import (
	"context"

	"github.com/hpungsan/katha/internal/ai"
	"github.com/hpungsan/katha/internal/capsule"
)

// Transcriber converts a stored recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string, languages []string) (string, error)
}

// Polisher improves grammar and flow of a text.
type Polisher interface {
	Polish(ctx context.Context, text string, languages []string) (ai.PolishResult, error)
}

// MetadataExtractor derives display metadata from a text.
type MetadataExtractor interface {
	Extract(ctx context.Context, text string) (capsule.Metadata, error)
}

// PromptSuggester proposes writing prompts for a writer.
type PromptSuggester interface {
	Suggest(ctx context.Context, pc ai.PromptContext) ([]capsule.Prompt, error)
}

var (
	_ Transcriber       = (*ai.Transcriber)(nil)
	_ Polisher          = (*ai.Polisher)(nil)
	_ MetadataExtractor = (*ai.MetadataExtractor)(nil)
	_ PromptSuggester   = (*ai.PromptSuggester)(nil)
)
