package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultOpenAIBaseURL is used when WhisperConfig.BaseURL is empty.
const DefaultOpenAIBaseURL = "https://api.openai.com"

// DefaultWhisperModel is the transcription model name.
const DefaultWhisperModel = "whisper-1"

const transcriptionPrompt = "This is a family story or memory being recorded by an elder for their grandchildren. It may contain multiple languages mixed together."

// maxAudioBytes bounds how much audio is read into memory for upload.
const maxAudioBytes = 25 << 20

// AudioFetcher reads a stored recording by URL.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, url string) (io.ReadCloser, error)
}

// WhisperConfig describes how to reach an OpenAI-compatible transcription API.
type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Transcriber converts recorded speech to text.
type Transcriber struct {
	cfg     WhisperConfig
	fetcher AudioFetcher
	opts    options
}

// NewTranscriber constructs a Transcriber that reads audio through fetcher.
func NewTranscriber(cfg WhisperConfig, fetcher AudioFetcher, opts ...Option) *Transcriber {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultWhisperModel
	}
	return &Transcriber{cfg: cfg, fetcher: fetcher, opts: newOptions(cfg.Timeout, opts)}
}

// Configured reports whether an API key is set.
func (t *Transcriber) Configured() bool {
	return t != nil && strings.TrimSpace(t.cfg.APIKey) != ""
}

// Transcribe fetches the recording at audioURL and returns its trimmed
// transcript. languages are the writer's preferences; the first one that maps
// to a two-letter code is sent as a hint.
func (t *Transcriber) Transcribe(ctx context.Context, audioURL string, languages []string) (string, error) {
	if !t.Configured() {
		return "", ErrNotConfigured
	}
	if t.fetcher == nil {
		return "", errors.New("transcribe: no audio fetcher")
	}

	rc, err := t.fetcher.FetchAudio(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	audio, err := io.ReadAll(io.LimitReader(rc, maxAudioBytes+1))
	_ = rc.Close()
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(audio) > maxAudioBytes {
		return "", fmt.Errorf("audio exceeds %d bytes", maxAudioBytes)
	}

	hint := LanguageHint(languages)
	var transcript string
	err = t.opts.retry.do(ctx, "whisper transcription", func() error {
		var err error
		transcript, err = t.transcribeOnce(ctx, audio, hint)
		return err
	})
	if err != nil {
		return "", err
	}
	return transcript, nil
}

func (t *Transcriber) transcribeOnce(ctx context.Context, audio []byte, hint string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "recording.m4a")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	fields := [][2]string{
		{"model", t.cfg.Model},
		{"response_format", "text"},
		{"prompt", transcriptionPrompt},
	}
	if hint != "" {
		fields = append(fields, [2]string{"language", hint})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.opts.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError(resp, out)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", errEmptyContent
	}
	return text, nil
}

// hintLanguages are the languages whose English or native names are
// recognized in writer preferences.
var hintLanguages = []string{
	"hi", "en", "te", "ta", "bn", "pa", "ur", "mr", "gu", "kn", "ml",
	"ne", "or", "as", "sa", "si", "fr", "es", "de", "pt", "it", "ar",
	"fa", "zh", "ja", "ko", "ru", "sw",
}

// nameAliases covers exonyms that differ from the CLDR display names.
var nameAliases = map[string]string{
	"bengali": "bn",
	"oriya":   "or",
	"farsi":   "fa",
	"persian": "fa",
}

var languageNames = buildLanguageNames()

func buildLanguageNames() map[string]string {
	names := make(map[string]string, len(hintLanguages)*2+len(nameAliases))
	english := display.Languages(language.English)
	for _, code := range hintLanguages {
		tag := language.MustParse(code)
		if n := english.Name(tag); n != "" {
			names[strings.ToLower(n)] = code
		}
		if n := display.Self.Name(tag); n != "" {
			names[strings.ToLower(n)] = code
		}
	}
	for alias, code := range nameAliases {
		names[alias] = code
	}
	return names
}

// LanguageHint maps the first usable preference to an ISO-639-1 code.
// Preferences may be English names ("Hindi"), native names ("తెలుగు") or
// BCP 47 tags ("pa-IN"). Returns "" when the first preference is unusable.
func LanguageHint(prefs []string) string {
	for _, p := range prefs {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		return hintFor(p)
	}
	return ""
}

func hintFor(pref string) string {
	if code, ok := languageNames[pref]; ok {
		return code
	}
	tag, err := language.Parse(pref)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	if code := base.String(); len(code) == 2 {
		return code
	}
	return ""
}
