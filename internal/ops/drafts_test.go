package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
)

func TestSaveDraft_CreateUpdatePublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, RawText: "Once", Now: t0})
	require.NoError(t, err)
	require.True(t, d.IsDraft)
	require.Equal(t, capsule.UnlockImmediate, d.UnlockType)

	age := capsule.UnlockPolicy{Type: capsule.UnlockAge, Age: intPtr(18)}
	d2, err := SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, CapsuleID: d.ID, RawText: "Once upon a time", ChildID: &f.childID, Policy: &age})
	require.NoError(t, err)
	require.Equal(t, d.ID, d2.ID)
	require.Equal(t, capsule.UnlockAge, d2.UnlockType)

	// Publishing the draft with no new text uses the saved text.
	c, err := f.publisher(t0).Publish(ctx, PublishInput{WriterID: f.writerID, CapsuleID: d.ID, ChildID: &f.childID, Policy: age})
	require.NoError(t, err)
	require.Equal(t, d.ID, c.ID)
	require.Equal(t, "Once upon a time", c.RawText)
	require.False(t, c.IsUnlocked)

	_, err = SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, CapsuleID: d.ID, RawText: "edit after publish"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestSaveDraft_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.readerID, RawText: "x"})
	requireCode(t, err, errors.ErrForbidden)

	bad := capsule.UnlockPolicy{Type: capsule.UnlockMilestone, Milestone: strPtr("  ")}
	_, err = SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, RawText: "x", Policy: &bad})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, RawText: "too long", MaxChars: 3})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, CapsuleID: "missing", RawText: "x"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestWriterCapsules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.publisher(t0)
	later := t0.AddDate(1, 0, 0)

	open, err := p.Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "open"})
	require.NoError(t, err)
	surprise, err := p.Publish(ctx, PublishInput{
		WriterID: f.writerID,
		RawText:  "surprise",
		Policy:   capsule.UnlockPolicy{Type: capsule.UnlockDate, Date: &later, IsSurprise: true},
	})
	require.NoError(t, err)
	draft, err := SaveDraft(ctx, f.db, SaveDraftInput{WriterID: f.writerID, RawText: "wip", Now: t0.AddDate(0, 0, 1)})
	require.NoError(t, err)

	own, err := WriterCapsules(ctx, f.db, WriterCapsulesInput{ViewerID: f.writerID, IncludeDrafts: true, Now: t0})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{open.ID, surprise.ID, draft.ID}, cardIDs(own.Items))

	own, err = WriterCapsules(ctx, f.db, WriterCapsulesInput{ViewerID: f.writerID, Now: t0})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{open.ID, surprise.ID}, cardIDs(own.Items))

	// Others never see drafts or sealed surprises.
	theirs, err := WriterCapsules(ctx, f.db, WriterCapsulesInput{ViewerID: f.readerID, WriterID: f.writerID, IncludeDrafts: true, Now: t0})
	require.NoError(t, err)
	require.Equal(t, []string{open.ID}, cardIDs(theirs.Items))
}

func TestSuggestPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.publisher(t0).Publish(ctx, PublishInput{WriterID: f.writerID, RawText: "a family story"})
	require.NoError(t, err)

	s := &fakeSuggester{prompts: []capsule.Prompt{{Text: "Tell us about the well", Category: "places", Why: "because"}}}
	out, err := SuggestPrompts(ctx, f.db, s, nil, SuggestPromptsInput{WriterID: f.writerID, Now: t0})
	require.NoError(t, err)
	require.False(t, out.Fallback)
	require.Len(t, out.Prompts, 1)

	require.Equal(t, f.writerID, s.got.WriterID)
	require.Equal(t, []string{"Telugu"}, s.got.Languages)
	require.Equal(t, []int{9}, s.got.ChildrenAges)
	require.Equal(t, []string{"family"}, s.got.PreviousCategories)
}

func TestSuggestPrompts_FallbackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, s := range []PromptSuggester{&fakeSuggester{err: errors.NewInternal(nil)}, &fakeSuggester{}, nil} {
		out, err := SuggestPrompts(ctx, f.db, s, nil, SuggestPromptsInput{WriterID: f.writerID, Now: t0})
		require.NoError(t, err)
		require.True(t, out.Fallback)
		require.Equal(t, capsule.FallbackPrompts(), out.Prompts)
	}
}
