package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hpungsan/katha/internal/ai"
	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/logging"
)

// SuggestPromptsInput contains parameters for the SuggestPrompts operation.
type SuggestPromptsInput struct {
	WriterID string
	Timeout  time.Duration
	Now      time.Time
}

// SuggestPromptsOutput contains the result of the SuggestPrompts operation.
type SuggestPromptsOutput struct {
	Prompts  []capsule.Prompt `json:"prompts"`
	Fallback bool             `json:"fallback"`
}

// BuildPromptContext gathers what the suggester should know about a writer:
// languages, the ages of the family's children and categories already used.
func BuildPromptContext(ctx context.Context, q db.Querier, writer *capsule.Profile, now time.Time) (ai.PromptContext, error) {
	pc := ai.PromptContext{
		WriterID:  writer.ID,
		Languages: writer.LanguagePreferences,
	}
	if writer.FamilyID != nil {
		children, err := db.ListChildren(ctx, q, *writer.FamilyID)
		if err != nil {
			return pc, err
		}
		for _, c := range children {
			pc.ChildrenAges = append(pc.ChildrenAges, capsule.AgeInYears(c.DateOfBirth, now))
		}
	}
	cats, err := db.ListWriterCategories(ctx, q, writer.ID)
	if err != nil {
		return pc, err
	}
	pc.PreviousCategories = cats
	return pc, nil
}

// SuggestPrompts returns writing prompts for the writer. Any suggester
// failure yields the fixed fallback prompts instead of an error.
func SuggestPrompts(ctx context.Context, database *sql.DB, suggester PromptSuggester, logger *slog.Logger, input SuggestPromptsInput) (*SuggestPromptsOutput, error) {
	writer, err := loadViewer(ctx, database, input.WriterID)
	if err != nil {
		return nil, err
	}
	pc, err := BuildPromptContext(ctx, database, writer, nowOr(input.Now))
	if err != nil {
		return nil, err
	}

	if suggester != nil {
		timeout := input.Timeout
		if timeout <= 0 {
			timeout = DefaultStageTimeout
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		prompts, err := suggester.Suggest(callCtx, pc)
		if err == nil && len(prompts) > 0 {
			return &SuggestPromptsOutput{Prompts: prompts}, nil
		}
		logging.WithContext(ctx, logger).Warn("prompt suggestion failed; using fallback",
			slog.String(logging.FieldComponent, "prompts"), slog.Any("error", err))
	}
	return &SuggestPromptsOutput{Prompts: capsule.FallbackPrompts(), Fallback: true}, nil
}
