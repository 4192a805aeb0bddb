package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/hpungsan/katha/internal/capsule"
)

// MetadataExtractor derives title, excerpt, category, mood and read time.
type MetadataExtractor struct {
	Client    *Client
	Model     string
	MaxTokens int
}

type metadataPayload struct {
	Title           string  `json:"title"`
	Excerpt         string  `json:"excerpt"`
	Category        string  `json:"category"`
	Mood            string  `json:"mood"`
	ReadTimeMinutes float64 `json:"read_time_minutes"`
}

func metadataSystemPrompt() string {
	categories := make([]string, 0, len(capsule.Categories))
	for _, c := range capsule.Categories {
		categories = append(categories, string(c))
	}
	moods := make([]string, 0, len(capsule.Moods))
	for _, m := range capsule.Moods {
		moods = append(moods, string(m))
	}
	return fmt.Sprintf(`You generate metadata for stories in a family legacy journal.

Given a story, return:
- title: a short evocative title (max 60 characters)
- excerpt: a compelling one or two sentence preview (max %d characters)
- category: exactly one of: %s
- mood: exactly one of: %s
- read_time_minutes: estimated reading time in whole minutes at %d words per minute

Return ONLY valid JSON with these keys and no other text.`,
		capsule.MaxExcerptChars,
		strings.Join(categories, ", "),
		strings.Join(moods, ", "),
		capsule.WordsPerMinute,
	)
}

// Extract returns normalized metadata for text.
func (m *MetadataExtractor) Extract(ctx context.Context, text string) (capsule.Metadata, error) {
	maxTokens := m.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	out, err := m.Client.Complete(ctx, Request{
		Model:     m.Model,
		MaxTokens: maxTokens,
		System:    metadataSystemPrompt(),
		User:      "Generate metadata for this story:\n\n" + text,
	})
	if err != nil {
		return capsule.Metadata{}, err
	}

	var payload metadataPayload
	if err := DecodeLLMJSON(out, &payload); err != nil {
		return capsule.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	md := capsule.Metadata{
		Title:           payload.Title,
		Excerpt:         capsule.Excerpt(payload.Excerpt, capsule.MaxExcerptChars),
		Category:        capsule.Category(strings.ToLower(strings.TrimSpace(payload.Category))),
		Mood:            capsule.Mood(strings.ToLower(strings.TrimSpace(payload.Mood))),
		ReadTimeMinutes: int(math.Round(payload.ReadTimeMinutes)),
	}
	return md.Normalize(text), nil
}
