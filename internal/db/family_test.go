package db

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
)

func TestFamilyInviteCode(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamily(t, db, "F1", "W1")

	f, err := GetFamilyByInviteCode(ctx, db, "INVF1")
	if err != nil {
		t.Fatalf("GetFamilyByInviteCode: %v", err)
	}
	if f.ID != "F1" || f.Name != "Rao" || f.CreatedBy != "W1" {
		t.Errorf("family = %+v", f)
	}

	if _, err := GetFamilyByInviteCode(ctx, db, "NOPE1234"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown code error = %v", err)
	}

	dup := &capsule.Family{ID: "F2", Name: "Other", InviteCode: "INVF1", CreatedBy: "W1", CreatedAt: t0}
	if err := InsertFamily(ctx, db, dup); err != ErrUniqueConstraint {
		t.Errorf("duplicate invite code error = %v, want ErrUniqueConstraint", err)
	}
}

func TestUpsertProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := &capsule.Profile{
		ID:                  "P1",
		DisplayName:         "Dadi",
		Role:                capsule.RoleWriter,
		LanguagePreferences: []string{"Hindi", "English"},
		CreatedAt:           t0,
	}
	if err := UpsertProfile(ctx, db, p); err != nil {
		t.Fatalf("UpsertProfile insert: %v", err)
	}

	p.DisplayName = "Dadi Ji"
	p.Bio = stringPtr("Storyteller")
	p.CreatedAt = t0.Add(time.Hour)
	if err := UpsertProfile(ctx, db, p); err != nil {
		t.Fatalf("UpsertProfile update: %v", err)
	}

	got, err := GetProfile(ctx, db, "P1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.DisplayName != "Dadi Ji" || got.Bio == nil || *got.Bio != "Storyteller" {
		t.Errorf("profile = %+v", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt changed by upsert: %v", got.CreatedAt)
	}
	if !equalStrings(got.LanguagePreferences, []string{"Hindi", "English"}) {
		t.Errorf("LanguagePreferences = %v", got.LanguagePreferences)
	}
	if got.FamilyID != nil {
		t.Errorf("FamilyID = %v, want nil", *got.FamilyID)
	}

	if _, err := GetProfile(ctx, db, "P404"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing profile error = %v", err)
	}
}

func TestSetProfileFamily(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamily(t, db, "F1", "W1")

	if err := UpsertProfile(ctx, db, &capsule.Profile{ID: "P2", DisplayName: "Chacha", Role: capsule.RoleReader, CreatedAt: t0.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	role := capsule.RoleWriter
	if err := SetProfileFamily(ctx, db, "P2", "F1", &role, stringPtr("Uncle")); err != nil {
		t.Fatalf("SetProfileFamily: %v", err)
	}

	got, _ := GetProfile(ctx, db, "P2")
	if !got.InFamily("F1") || got.Role != capsule.RoleWriter || *got.RelationshipLabel != "Uncle" {
		t.Errorf("profile = %+v", got)
	}

	members, err := ListFamilyProfiles(ctx, db, "F1")
	if err != nil {
		t.Fatalf("ListFamilyProfiles: %v", err)
	}
	if len(members) != 2 || members[0].ID != "W1" || members[1].ID != "P2" {
		t.Errorf("members = %+v", members)
	}

	if err := SetProfileFamily(ctx, db, "P404", "F1", nil, nil); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing profile error = %v", err)
	}
}

func TestChildren(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamily(t, db, "F1", "W1")

	dob, _ := capsule.ParseDate("2018-11-05")
	for i, name := range []string{"Meera", "Arjun"} {
		c := &capsule.Child{ID: "C" + name, FamilyID: "F1", Name: name, DateOfBirth: dob, CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := InsertChild(ctx, db, c); err != nil {
			t.Fatalf("InsertChild: %v", err)
		}
	}

	got, err := GetChild(ctx, db, "CMeera")
	if err != nil {
		t.Fatalf("GetChild: %v", err)
	}
	if got.DateOfBirth.String() != "2018-11-05" || got.FamilyID != "F1" {
		t.Errorf("child = %+v", got)
	}

	list, err := ListChildren(ctx, db, "F1")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Meera" || list[1].Name != "Arjun" {
		t.Errorf("children = %+v", list)
	}

	if _, err := GetChild(ctx, db, "nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing child error = %v", err)
	}
}
