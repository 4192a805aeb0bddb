package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
)

func TestCreateFamily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Len(t, f.family.InviteCode, capsule.InviteCodeLength)
	require.Equal(t, "The Raos", f.family.Name)
	require.Equal(t, f.guardianID, f.family.CreatedBy)

	guardian, err := GetProfile(ctx, f.db, f.guardianID)
	require.NoError(t, err)
	require.Equal(t, capsule.RoleGuardian, guardian.Role)
	require.True(t, guardian.InFamily(f.family.ID))
	require.Equal(t, "Nani", *guardian.RelationshipLabel)

	got, err := GetFamily(ctx, f.db, f.readerID)
	require.NoError(t, err)
	require.Equal(t, f.family.ID, got.ID)

	_, err = CreateFamily(ctx, f.db, CreateFamilyInput{ProfileID: f.guardianID, Name: "Second"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestCreateFamily_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := UpsertProfile(ctx, f.db, UpsertProfileInput{ID: "new", DisplayName: "New"})
	require.NoError(t, err)

	_, err = CreateFamily(ctx, f.db, CreateFamilyInput{ProfileID: "new", Name: "   "})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = CreateFamily(ctx, f.db, CreateFamilyInput{ProfileID: "ghost", Name: "Ghosts"})
	requireCode(t, err, errors.ErrUnauthorized)
}

func TestJoinFamily_CodeLengthCheckedBeforeStore(t *testing.T) {
	// A nil database proves the store is never reached.
	for _, code := range []string{"", "ABC", "ABCDEFGHI", "  abc  "} {
		_, err := JoinFamily(context.Background(), nil, JoinFamilyInput{ProfileID: "p", InviteCode: code})
		requireCode(t, err, errors.ErrInvalidRequest)
	}
}

func TestJoinFamily_UnknownCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := UpsertProfile(ctx, f.db, UpsertProfileInput{ID: "new", DisplayName: "New"})
	require.NoError(t, err)

	_, err = JoinFamily(ctx, f.db, JoinFamilyInput{ProfileID: "new", InviteCode: "ZZZZZZZZ"})
	requireCode(t, err, errors.ErrInvalidInviteCode)
}

func TestJoinFamily_KeepsRoleAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := JoinFamily(ctx, f.db, JoinFamilyInput{ProfileID: f.readerID, InviteCode: " " + f.family.InviteCode + " ", RelationshipLabel: strPtr("Grandson")})
	require.NoError(t, err)

	reader, err := GetProfile(ctx, f.db, f.readerID)
	require.NoError(t, err)
	require.Equal(t, capsule.RoleReader, reader.Role)
	require.Equal(t, "Grandson", *reader.RelationshipLabel)
}

func TestJoinFamily_AlreadyInAnotherFamily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := UpsertProfile(ctx, f.db, UpsertProfileInput{ID: "other", DisplayName: "Other", Role: capsule.RoleGuardian})
	require.NoError(t, err)
	other, err := CreateFamily(ctx, f.db, CreateFamilyInput{ProfileID: "other", Name: "Others"})
	require.NoError(t, err)

	_, err = JoinFamily(ctx, f.db, JoinFamilyInput{ProfileID: f.readerID, InviteCode: other.InviteCode})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestFamilyMembers(t *testing.T) {
	f := newFixture(t)
	members, err := FamilyMembers(context.Background(), f.db, f.writerID)
	require.NoError(t, err)

	var ids []string
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	require.ElementsMatch(t, []string{f.guardianID, f.writerID, f.readerID}, ids)
}

func TestAddChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := AddChild(ctx, f.db, AddChildInput{ProfileID: f.writerID, Name: "Kid", DateOfBirth: "2020-01-01", Now: t0})
	requireCode(t, err, errors.ErrForbidden)

	_, err = AddChild(ctx, f.db, AddChildInput{ProfileID: f.guardianID, Name: "Kid", DateOfBirth: "01/02/2020", Now: t0})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = AddChild(ctx, f.db, AddChildInput{ProfileID: f.guardianID, Name: "Kid", DateOfBirth: "2030-01-01", Now: t0})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = AddChild(ctx, f.db, AddChildInput{ProfileID: f.guardianID, Name: "", DateOfBirth: "2020-01-01", Now: t0})
	requireCode(t, err, errors.ErrInvalidRequest)

	kid, err := AddChild(ctx, f.db, AddChildInput{ProfileID: f.guardianID, Name: "  Baby   Meera ", DateOfBirth: "2024-12-31", Now: t0})
	require.NoError(t, err)
	require.Equal(t, "Baby Meera", kid.Name)
	require.Equal(t, "2024-12-31", kid.DateOfBirth.String())

	children, err := ListChildren(ctx, f.db, f.readerID)
	require.NoError(t, err)
	require.Len(t, children, 2)
}

func TestUpsertProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := UpsertProfile(ctx, f.db, UpsertProfileInput{
		ID:                  f.writerID,
		DisplayName:         "Dada ji",
		Role:                capsule.RoleWriter,
		LanguagePreferences: []string{"Telugu", "telugu", " ", "English"},
		Bio:                 strPtr("  "),
	})
	require.NoError(t, err)
	require.Equal(t, "Dada ji", p.DisplayName)
	require.Equal(t, []string{"Telugu", "English"}, p.LanguagePreferences)
	require.Nil(t, p.Bio)
	// Membership survives a profile edit.
	require.True(t, p.InFamily(f.family.ID))

	_, err = UpsertProfile(ctx, f.db, UpsertProfileInput{ID: "x", DisplayName: "X", Role: "admin"})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = UpsertProfile(ctx, f.db, UpsertProfileInput{ID: "", DisplayName: "X"})
	requireCode(t, err, errors.ErrUnauthorized)

	_, err = GetProfile(ctx, f.db, "nobody")
	requireCode(t, err, errors.ErrUnauthorized)
}
