package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/katha/internal/capsule"
)

const promptsSystemPrompt = `You suggest writing prompts for elders recording stories and memories for their grandchildren in a family legacy journal.

Prompts should be warm, specific and easy to start writing about. Draw on childhood, family, traditions, food, places, lessons learned and everyday life. When languages are listed, some prompts may invite words or sayings from those languages. When children's ages are listed, some prompts may suit what a child of that age would enjoy hearing.

Return ONLY valid JSON of the form:
{"prompts":[{"text":"...","category":"...","why":"..."}]}
Return exactly 3 prompts. "why" is one short sentence on why this prompt suits this writer.`

// PromptContext is what the suggester knows about the writer.
type PromptContext struct {
	WriterID           string
	Languages          []string
	ChildrenAges       []int
	PreviousCategories []string
}

func (pc PromptContext) lines() []string {
	var lines []string
	if langs := nonEmpty(pc.Languages); len(langs) > 0 {
		lines = append(lines, "Writer's languages: "+strings.Join(langs, ", "))
	}
	if len(pc.ChildrenAges) > 0 {
		ages := make([]string, len(pc.ChildrenAges))
		for i, a := range pc.ChildrenAges {
			ages[i] = strconv.Itoa(a)
		}
		lines = append(lines, "Children's ages: "+strings.Join(ages, ", "))
	}
	if cats := nonEmpty(pc.PreviousCategories); len(cats) > 0 {
		lines = append(lines, "Categories already covered (avoid repeating): "+strings.Join(cats, ", "))
	}
	return lines
}

// PromptSuggester proposes writing prompts tailored to a writer.
type PromptSuggester struct {
	Client    *Client
	Model     string
	MaxTokens int
}

// Suggest returns up to capsule.PromptCount prompts.
func (s *PromptSuggester) Suggest(ctx context.Context, pc PromptContext) ([]capsule.Prompt, error) {
	user := "Generate 3 writing prompts for a family story writer."
	if lines := pc.lines(); len(lines) > 0 {
		user = "Generate 3 writing prompts for this writer.\n\nContext:\n" + strings.Join(lines, "\n")
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	out, err := s.Client.Complete(ctx, Request{
		Model:     s.Model,
		MaxTokens: maxTokens,
		System:    promptsSystemPrompt,
		User:      user,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Prompts []capsule.Prompt `json:"prompts"`
	}
	if err := DecodeLLMJSON(out, &payload); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}

	prompts := make([]capsule.Prompt, 0, capsule.PromptCount)
	for _, p := range payload.Prompts {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text == "" {
			continue
		}
		p.Category = strings.ToLower(strings.TrimSpace(p.Category))
		p.Why = strings.TrimSpace(p.Why)
		prompts = append(prompts, p)
		if len(prompts) == capsule.PromptCount {
			break
		}
	}
	if len(prompts) == 0 {
		return nil, errors.New("decode prompts: no prompts in response")
	}
	return prompts, nil
}
