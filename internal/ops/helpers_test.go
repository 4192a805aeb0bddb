package ops

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/katha/internal/ai"
	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/logging"
)

// t0 is the reference clock for ops tests.
var t0 = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db         *sql.DB
	family     *capsule.Family
	guardianID string
	writerID   string
	readerID   string
	childID    string // Asha, born 2015-06-20
}

// newFixture builds one family: a guardian (Nani), a writer (Dada), a
// reader (Ravi) and one child (Asha).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{db: database, guardianID: "nani", writerID: "dada", readerID: "ravi"}

	_, err = UpsertProfile(ctx, database, UpsertProfileInput{ID: f.guardianID, DisplayName: "Nani", Role: capsule.RoleGuardian, LanguagePreferences: []string{"Hindi", "English"}, Now: t0})
	require.NoError(t, err)
	f.family, err = CreateFamily(ctx, database, CreateFamilyInput{ProfileID: f.guardianID, Name: "The Raos", RelationshipLabel: strPtr("Nani"), Now: t0})
	require.NoError(t, err)

	_, err = UpsertProfile(ctx, database, UpsertProfileInput{ID: f.writerID, DisplayName: "Dada", Role: capsule.RoleWriter, LanguagePreferences: []string{"Telugu"}, Now: t0})
	require.NoError(t, err)
	_, err = JoinFamily(ctx, database, JoinFamilyInput{ProfileID: f.writerID, InviteCode: f.family.InviteCode, RelationshipLabel: strPtr("Dada")})
	require.NoError(t, err)

	_, err = UpsertProfile(ctx, database, UpsertProfileInput{ID: f.readerID, DisplayName: "Ravi", Role: capsule.RoleReader, Now: t0})
	require.NoError(t, err)
	_, err = JoinFamily(ctx, database, JoinFamilyInput{ProfileID: f.readerID, InviteCode: strings.ToLower(f.family.InviteCode)})
	require.NoError(t, err)

	child, err := AddChild(ctx, database, AddChildInput{ProfileID: f.guardianID, Name: "Asha", DateOfBirth: "2015-06-20", Now: t0})
	require.NoError(t, err)
	f.childID = child.ID
	return f
}

// publisher returns a Publisher over f with a clock advancing one minute per
// read, starting at start.
func (f *fixture) publisher(start time.Time) *Publisher {
	clock := start
	var mu sync.Mutex
	return &Publisher{
		DB:          f.db,
		Blob:        newFakeBlob(),
		Transcriber: &fakeTranscriber{text: "transcribed words"},
		Polisher:    &fakePolisher{},
		Metadata:    &fakeMetadata{md: capsule.Metadata{Title: "A Title", Excerpt: "An excerpt", Category: capsule.CategoryFamily, Mood: capsule.MoodTender, ReadTimeMinutes: 2}},
		Logger:      logging.NewNop(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		},
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	ke, ok := errors.As(err)
	require.True(t, ok, "expected KathaError, got %T: %v", err, err)
	require.Equal(t, code, ke.Code, "message: %s", ke.Message)
}

func cardIDs(cards []capsule.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

type fakePolisher struct {
	out   string // empty echoes the input with a trailing "!"
	err   error
	calls int
	langs []string
}

func (p *fakePolisher) Polish(_ context.Context, text string, langs []string) (ai.PolishResult, error) {
	p.calls++
	p.langs = langs
	if p.err != nil {
		return ai.PolishResult{}, p.err
	}
	out := p.out
	if out == "" {
		out = text + "!"
	}
	return ai.PolishResult{PolishedText: out, ChangesSummary: ai.ChangesImproved}, nil
}

type fakeMetadata struct {
	md    capsule.Metadata
	err   error
	calls int
	text  string
}

func (m *fakeMetadata) Extract(_ context.Context, text string) (capsule.Metadata, error) {
	m.calls++
	m.text = text
	if m.err != nil {
		return capsule.Metadata{}, m.err
	}
	return m.md, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	url   string
	langs []string
}

func (tr *fakeTranscriber) Transcribe(_ context.Context, url string, langs []string) (string, error) {
	tr.calls++
	tr.url = url
	tr.langs = langs
	if tr.err != nil {
		return "", tr.err
	}
	return tr.text, nil
}

type fakeBlob struct {
	mu      sync.Mutex
	err     error
	objects map[string][]byte
}

func newFakeBlob() *fakeBlob { return &fakeBlob{objects: map[string][]byte{}} }

func (b *fakeBlob) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.objects[key] = data
	b.mu.Unlock()
	return "https://media.test/" + key, nil
}

func (b *fakeBlob) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.NewNotFound("media", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlob) KeyForURL(url string) (string, bool) {
	return strings.CutPrefix(url, "https://media.test/")
}

type fakeSuggester struct {
	prompts []capsule.Prompt
	err     error
	got     ai.PromptContext
}

func (s *fakeSuggester) Suggest(_ context.Context, pc ai.PromptContext) ([]capsule.Prompt, error) {
	s.got = pc
	return s.prompts, s.err
}
