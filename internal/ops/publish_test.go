package ops

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/katha/internal/ai"
	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/storage"
)

func TestPublish_TextImmediate(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	ctx := context.Background()

	c, err := p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "  Amma made pesarattu on Sundays.  "})
	require.NoError(t, err)
	require.Len(t, c.ID, 26)
	require.False(t, c.IsDraft)
	require.True(t, c.IsUnlocked)
	require.NotNil(t, c.PublishedAt)
	require.Equal(t, "Amma made pesarattu on Sundays.", c.RawText)
	require.Equal(t, "Amma made pesarattu on Sundays.!", *c.PolishedText)
	require.Equal(t, "A Title", *c.Title)
	require.Equal(t, capsule.CategoryFamily, *c.Category)
	require.Equal(t, capsule.UnlockImmediate, c.UnlockType)

	// Writer's languages reach the polisher; metadata runs on polished text.
	require.Equal(t, []string{"Telugu"}, p.Polisher.(*fakePolisher).langs)
	require.Equal(t, "Amma made pesarattu on Sundays.!", p.Metadata.(*fakeMetadata).text)

	stored, err := db.GetCapsule(ctx, f.db, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.PolishedText, stored.PolishedText)
	require.False(t, stored.IsDraft)

	feed, err := Feed(ctx, f.db, FeedInput{ViewerID: f.readerID, Now: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	card := feed.Items[0]
	require.Equal(t, capsule.StateOpen, card.State)
	require.Equal(t, "A Title", *card.Title)
	require.Equal(t, "Dada", card.WriterName)
	require.Equal(t, "Dada", *card.WriterRelationship)
}

func TestPublish_PolishFailureUsesOriginalText(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	p.Polisher = &fakePolisher{err: stderrors.New("upstream 503")}

	c, err := p.Publish(context.Background(), PublishInput{WriterID: f.writerID, RawText: "Original words"})
	require.NoError(t, err)
	require.False(t, c.IsDraft)
	require.Equal(t, "Original words", *c.PolishedText)
}

func TestPublish_MetadataFailureUsesFallback(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	p.Metadata = &fakeMetadata{err: stderrors.New("bad json")}
	p.Polisher = &fakePolisher{out: strings.Repeat("word ", 450)}

	c, err := p.Publish(context.Background(), PublishInput{WriterID: f.writerID, RawText: "short"})
	require.NoError(t, err)
	require.Equal(t, capsule.FallbackTitle, *c.Title)
	require.Equal(t, "", *c.Excerpt)
	require.Equal(t, capsule.CategoryOther, *c.Category)
	require.Equal(t, capsule.MoodReflective, *c.Mood)
	require.Equal(t, 3, *c.ReadTimeMinutes)
}

func TestPublish_MetadataIsNormalized(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	p.Metadata = &fakeMetadata{md: capsule.Metadata{Title: "  ", Category: "space", Mood: "angry"}}

	c, err := p.Publish(context.Background(), PublishInput{WriterID: f.writerID, RawText: "one two"})
	require.NoError(t, err)
	require.Equal(t, capsule.FallbackTitle, *c.Title)
	require.Equal(t, capsule.CategoryOther, *c.Category)
	require.Equal(t, capsule.MoodReflective, *c.Mood)
	require.Equal(t, 1, *c.ReadTimeMinutes)
}

func TestPublish_AudioOnlyIsTranscribed(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	blob := p.Blob.(*fakeBlob)
	tr := p.Transcriber.(*fakeTranscriber)

	c, err := p.Publish(context.Background(), PublishInput{
		WriterID: f.writerID,
		Audio:    &AudioInput{Body: strings.NewReader("m4a-bytes"), DurationSeconds: intPtr(42)},
	})
	require.NoError(t, err)

	key := storage.AudioKey(f.writerID, c.ID)
	require.Equal(t, f.writerID+"/"+c.ID+".m4a", key)
	require.Equal(t, []byte("m4a-bytes"), blob.objects[key])
	require.Equal(t, "https://media.test/"+key, *c.AudioURL)
	require.Equal(t, 42, *c.AudioDurationSeconds)

	require.Equal(t, 1, tr.calls)
	require.Equal(t, *c.AudioURL, tr.url)
	require.Equal(t, []string{"Telugu"}, tr.langs)
	require.Equal(t, "transcribed words", c.RawText)
	require.Equal(t, "transcribed words!", *c.PolishedText)
}

func TestPublish_TranscriptionFailureStillPublishes(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	p.Transcriber = &fakeTranscriber{err: stderrors.New("timeout")}
	pol := p.Polisher.(*fakePolisher)
	md := p.Metadata.(*fakeMetadata)

	c, err := p.Publish(context.Background(), PublishInput{
		WriterID: f.writerID,
		Audio:    &AudioInput{Body: strings.NewReader("audio")},
	})
	require.NoError(t, err)
	require.False(t, c.IsDraft)
	require.Equal(t, "", c.RawText)
	require.Nil(t, c.PolishedText)
	require.NotNil(t, c.AudioURL)
	require.Equal(t, 0, pol.calls)
	require.Equal(t, 0, md.calls)
	require.Equal(t, capsule.FallbackTitle, *c.Title)
	require.Equal(t, 1, *c.ReadTimeMinutes)
}

func TestPublish_TextWithAudioSkipsTranscription(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	tr := p.Transcriber.(*fakeTranscriber)

	c, err := p.Publish(context.Background(), PublishInput{
		WriterID: f.writerID,
		RawText:  "typed text",
		Audio:    &AudioInput{Body: strings.NewReader("audio")},
	})
	require.NoError(t, err)
	require.Equal(t, 0, tr.calls)
	require.Equal(t, "typed text", c.RawText)
}

func TestPublish_UploadFailureLeavesDraftAndResumes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.publisher(t0)
	p.Blob = &fakeBlob{err: stderrors.New("connection reset"), objects: map[string][]byte{}}

	_, err := p.Publish(ctx, PublishInput{
		WriterID: f.writerID,
		RawText:  "with audio",
		Audio:    &AudioInput{Body: strings.NewReader("audio")},
	})
	requireCode(t, err, errors.ErrUpstreamUnavailable)

	drafts, err := db.ListByWriter(ctx, f.db, f.writerID, true)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.True(t, drafts[0].IsDraft)
	require.Nil(t, drafts[0].AudioURL)
	draftID := drafts[0].ID

	p.Blob = newFakeBlob()
	c, err := p.Publish(ctx, PublishInput{
		WriterID:  f.writerID,
		CapsuleID: draftID,
		Audio:     &AudioInput{Body: strings.NewReader("audio")},
	})
	require.NoError(t, err)
	require.Equal(t, draftID, c.ID)
	require.Equal(t, "with audio", c.RawText)
	require.False(t, c.IsDraft)

	all, err := db.ListByWriter(ctx, f.db, f.writerID, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPublish_RepublishRejected(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	ctx := context.Background()

	c, err := p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "once"})
	require.NoError(t, err)

	_, err = p.Publish(ctx, PublishInput{WriterID: f.writerID, CapsuleID: c.ID, RawText: "twice"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestPublish_CallerCancellationAfterDraft(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	ctx, cancel := context.WithCancel(context.Background())
	p.Polisher = cancelingPolisher{cancel: cancel}

	c, err := p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "keep going"})
	require.NoError(t, err)
	require.False(t, c.IsDraft)
	require.Equal(t, "keep going polished", *c.PolishedText)
}

// cancelingPolisher cancels the caller's context and then checks that its
// own call context is still live.
type cancelingPolisher struct{ cancel context.CancelFunc }

func (p cancelingPolisher) Polish(ctx context.Context, text string, _ []string) (ai.PolishResult, error) {
	p.cancel()
	if err := ctx.Err(); err != nil {
		return ai.PolishResult{}, err
	}
	return ai.PolishResult{PolishedText: text + " polished"}, nil
}

func TestPublish_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	ctx := context.Background()

	_, err := p.Publish(ctx, PublishInput{WriterID: f.readerID, RawText: "hi"})
	requireCode(t, err, errors.ErrForbidden)

	_, err = p.Publish(ctx, PublishInput{WriterID: "ghost", RawText: "hi"})
	requireCode(t, err, errors.ErrUnauthorized)

	_, err = p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "   "})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "hi", Policy: capsule.UnlockPolicy{Type: capsule.UnlockDate}})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "hi", Policy: capsule.UnlockPolicy{Type: capsule.UnlockAge, Age: intPtr(0)}})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "hi", ChildID: strPtr("nobody")})
	requireCode(t, err, errors.ErrInvalidRequest)

	p.MaxChars = 5
	_, err = p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "too long text"})
	requireCode(t, err, errors.ErrInvalidRequest)

	// Nothing was written by any rejected call.
	all, err := db.ListByWriter(ctx, f.db, f.writerID, true)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestPublish_ChildFromAnotherFamily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := UpsertProfile(ctx, f.db, UpsertProfileInput{ID: "other", DisplayName: "Other", Role: capsule.RoleGuardian})
	require.NoError(t, err)
	_, err = CreateFamily(ctx, f.db, CreateFamilyInput{ProfileID: "other", Name: "Others"})
	require.NoError(t, err)
	child, err := AddChild(ctx, f.db, AddChildInput{ProfileID: "other", Name: "Kid", DateOfBirth: "2020-01-01", Now: t0})
	require.NoError(t, err)

	_, err = f.publisher(t0).Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "hi", ChildID: &child.ID})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestPublish_DraftOwnedByAnotherWriter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.guardianID, RawText: "mine", Now: t0})
	require.NoError(t, err)

	_, err = f.publisher(t0).Publish(ctx, PublishInput{WriterID: f.writerID, CapsuleID: d.ID, RawText: "stolen"})
	requireCode(t, err, errors.ErrForbidden)
}

func TestPublish_NoBlobStorage(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t0)
	p.Blob = nil

	_, err := p.Publish(context.Background(), PublishInput{
		WriterID: f.writerID,
		Audio:    &AudioInput{Body: io.NopCloser(strings.NewReader("a"))},
	})
	requireCode(t, err, errors.ErrUpstreamUnavailable)
}
