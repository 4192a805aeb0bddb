package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
)

// maxInviteAttempts bounds retries on invite code collisions.
const maxInviteAttempts = 5

// CreateFamilyInput contains parameters for the CreateFamily operation.
type CreateFamilyInput struct {
	ProfileID         string
	Name              string
	RelationshipLabel *string
	Now               time.Time
}

// CreateFamily creates a family with a fresh invite code and makes the
// creator its guardian.
func CreateFamily(ctx context.Context, database *sql.DB, input CreateFamilyInput) (*capsule.Family, error) {
	profile, err := loadViewer(ctx, database, input.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile.FamilyID != nil {
		return nil, errors.NewInvalidRequest("profile already belongs to a family")
	}
	name := capsule.NormalizeName(input.Name)
	if !capsule.ValidName(name) {
		return nil, errors.NewInvalidField("name", "must be 1 to 100 characters")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	f := &capsule.Family{
		ID:        id,
		Name:      name,
		CreatedBy: profile.ID,
		CreatedAt: nowOr(input.Now),
	}
	guardian := capsule.RoleGuardian
	label := cleanOptionalString(input.RelationshipLabel)

	for attempt := 1; ; attempt++ {
		code, err := capsule.GenerateInviteCode()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		f.InviteCode = code
		err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
			if err := db.InsertFamily(ctx, tx, f); err != nil {
				return err
			}
			return db.SetProfileFamily(ctx, tx, profile.ID, f.ID, &guardian, label)
		})
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, errors.ErrConflict) {
			return nil, err
		}
		if attempt == maxInviteAttempts {
			return nil, errors.NewInternal(err)
		}
	}
}

// JoinFamilyInput contains parameters for the JoinFamily operation.
type JoinFamilyInput struct {
	ProfileID         string
	InviteCode        string
	RelationshipLabel *string
}

// JoinFamily links a profile to the family owning the invite code. The code
// length is checked before the store is touched.
func JoinFamily(ctx context.Context, database *sql.DB, input JoinFamilyInput) (*capsule.Family, error) {
	code := capsule.NormalizeInviteCode(input.InviteCode)
	if len(code) != capsule.InviteCodeLength {
		return nil, errors.NewInvalidField("invite_code", "must be 8 characters")
	}

	profile, err := loadViewer(ctx, database, input.ProfileID)
	if err != nil {
		return nil, err
	}
	f, err := db.GetFamilyByInviteCode(ctx, database, code)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewInvalidInviteCode()
		}
		return nil, err
	}
	if profile.FamilyID != nil && *profile.FamilyID != f.ID {
		return nil, errors.NewInvalidRequest("profile already belongs to another family")
	}
	if err := db.SetProfileFamily(ctx, database, profile.ID, f.ID, nil, cleanOptionalString(input.RelationshipLabel)); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFamily returns the viewer's family.
func GetFamily(ctx context.Context, database *sql.DB, viewerID string) (*capsule.Family, error) {
	viewer, err := loadMember(ctx, database, viewerID)
	if err != nil {
		return nil, err
	}
	return db.GetFamily(ctx, database, *viewer.FamilyID)
}

// FamilyMembers returns the profiles in the viewer's family.
func FamilyMembers(ctx context.Context, database *sql.DB, viewerID string) ([]capsule.Profile, error) {
	viewer, err := loadMember(ctx, database, viewerID)
	if err != nil {
		return nil, err
	}
	members, err := db.ListFamilyProfiles(ctx, database, *viewer.FamilyID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []capsule.Profile{}
	}
	return members, nil
}
