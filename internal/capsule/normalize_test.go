package capsule

import (
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already clean",
			input: "Asha",
			want:  "Asha",
		},
		{
			name:  "trim whitespace",
			input: "  Asha  ",
			want:  "Asha",
		},
		{
			name:  "collapse internal whitespace",
			input: "Asha    Rao",
			want:  "Asha Rao",
		},
		{
			name:  "case preserved",
			input: "  The RAO   Family ",
			want:  "The RAO Family",
		},
		{
			name:  "tabs and newlines",
			input: "Asha\t\n  Rao",
			want:  "Asha Rao",
		},
		{
			name:  "only whitespace",
			input: "   \t\n   ",
			want:  "",
		},
		{
			name:  "unicode characters",
			input: "  आशा   राव  ",
			want:  "आशा राव",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "ascii only", input: "hello", want: 5},
		{name: "empty string", input: "", want: 0},
		{name: "devanagari", input: "नमस्ते", want: 6},
		{name: "chinese characters", input: "你好世界", want: 4},
		{name: "accented", input: "café", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountChars(tt.input)
			if got != tt.want {
				t.Errorf("CountChars(%q) = %d, want %d (len=%d bytes)", tt.input, got, tt.want, len(tt.input))
			}
		})
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"A", true},
		{strings.Repeat("a", MaxNameChars), true},
		{strings.Repeat("a", MaxNameChars+1), false},
		{strings.Repeat("界", MaxNameChars), true},
	}
	for _, tt := range tests {
		if got := ValidName(tt.input); got != tt.want {
			t.Errorf("ValidName(len=%d) = %v, want %v", CountChars(tt.input), got, tt.want)
		}
	}
}
