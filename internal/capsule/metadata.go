package capsule

import (
	"math"
	"strings"
	"unicode/utf8"
)

// WordsPerMinute is the reading speed used for the local read-time estimate.
const WordsPerMinute = 200

// Fallback metadata values used when the metadata collaborator fails.
const (
	FallbackTitle    = "Untitled"
	FallbackCategory = CategoryOther
	FallbackMood     = MoodReflective
)

// MaxExcerptChars bounds excerpts produced locally.
const MaxExcerptChars = 150

// Metadata is the derived summary of a capsule's text.
type Metadata struct {
	Title           string   `json:"title"`
	Excerpt         string   `json:"excerpt"`
	Category        Category `json:"category"`
	Mood            Mood     `json:"mood"`
	ReadTimeMinutes int      `json:"read_time_minutes"`
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadTimeMinutes returns max(1, ceil(words/200)).
func ReadTimeMinutes(text string) int {
	minutes := int(math.Ceil(float64(WordCount(text)) / WordsPerMinute))
	return max(1, minutes)
}

// FallbackMetadata is the metadata used when extraction fails or is skipped.
func FallbackMetadata(text string) Metadata {
	return Metadata{
		Title:           FallbackTitle,
		Excerpt:         "",
		Category:        FallbackCategory,
		Mood:            FallbackMood,
		ReadTimeMinutes: ReadTimeMinutes(text),
	}
}

// Normalize coerces collaborator output into the closed enums: unknown
// category and mood fall back, an empty title becomes "Untitled", and a
// non-positive read time is computed locally from text.
func (m Metadata) Normalize(text string) Metadata {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = FallbackTitle
	}
	m.Excerpt = strings.TrimSpace(m.Excerpt)
	if c, ok := ParseCategory(string(m.Category)); ok {
		m.Category = c
	} else {
		m.Category = FallbackCategory
	}
	if mood, ok := ParseMood(string(m.Mood)); ok {
		m.Mood = mood
	} else {
		m.Mood = FallbackMood
	}
	if m.ReadTimeMinutes < 1 {
		m.ReadTimeMinutes = ReadTimeMinutes(text)
	}
	return m
}

// Excerpt returns the first n runes of text.
func Excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// Prompt is a writing suggestion for "today's prompt".
type Prompt struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Why      string `json:"why"`
}

// PromptCount is the number of prompts a suggestion returns.
const PromptCount = 3

// FallbackPrompts returns the fixed prompts used when suggestion fails.
func FallbackPrompts() []Prompt {
	return []Prompt{
		{
			Text:     "What is your earliest childhood memory? Describe the sights, sounds, and smells you remember.",
			Category: string(CategoryChildhood),
			Why:      "Fallback prompt",
		},
		{
			Text:     "What is the best piece of advice someone ever gave you?",
			Category: string(CategoryWisdom),
			Why:      "Fallback prompt",
		},
		{
			Text:     "Describe a family tradition you hope will continue for generations.",
			Category: string(CategoryTradition),
			Why:      "Fallback prompt",
		},
	}
}
