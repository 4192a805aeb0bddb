package ai

import (
	"context"
	"strings"
)

const polishSystemPrompt = `You are a gentle editor for a family legacy journal called Katha. Elders write stories and memories for their grandchildren.

RULES:
1. Fix grammar, spelling and punctuation.
2. Improve sentence flow where it is awkward, but keep the writer's voice.
3. Preserve every non-English word and phrase exactly as written. Do not translate.
4. Preserve code-switching between languages; it is part of how the writer speaks.
5. Do not add new facts, names, dates or events.
6. Do not remove memories, details or emotions.
7. Keep the writer's terms of endearment and family names unchanged.
8. Keep the original paragraph structure.
9. Do not add headings, titles, commentary or quotation marks around the text.
10. Return ONLY the polished text.`

// PolishResult is the outcome of polishing a text.
type PolishResult struct {
	PolishedText   string `json:"polished_text"`
	ChangesSummary string `json:"changes_summary"`
}

// Change summaries reported by Polish.
const (
	ChangesNone     = "No changes needed"
	ChangesImproved = "Grammar and flow improved"
)

// Polisher improves grammar and flow while preserving mixed-language text.
type Polisher struct {
	Client    *Client
	Model     string
	MaxTokens int
}

// Polish returns the edited text. languages are the writer's preferred
// languages and steer the model toward preserving them.
func (p *Polisher) Polish(ctx context.Context, text string, languages []string) (PolishResult, error) {
	system := polishSystemPrompt
	if langs := nonEmpty(languages); len(langs) > 0 {
		system += "\n\nThe writer's preferred languages include: " + strings.Join(langs, ", ") +
			". Pay special attention to preserving words and phrases from these languages."
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	out, err := p.Client.Complete(ctx, Request{
		Model:     p.Model,
		MaxTokens: maxTokens,
		System:    system,
		User:      "Please polish this writing:\n\n" + text,
	})
	if err != nil {
		return PolishResult{}, err
	}

	summary := ChangesImproved
	if strings.TrimSpace(out) == strings.TrimSpace(text) {
		summary = ChangesNone
	}
	return PolishResult{PolishedText: out, ChangesSummary: summary}, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
