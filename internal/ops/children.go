package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
)

// AddChildInput contains parameters for the AddChild operation.
type AddChildInput struct {
	ProfileID   string
	Name        string
	DateOfBirth string // YYYY-MM-DD
	Now         time.Time
}

// AddChild registers a recipient in the guardian's family.
func AddChild(ctx context.Context, database *sql.DB, input AddChildInput) (*capsule.Child, error) {
	guardian, err := loadMember(ctx, database, input.ProfileID)
	if err != nil {
		return nil, err
	}
	if guardian.Role != capsule.RoleGuardian {
		return nil, errors.NewForbidden("only guardians can add children")
	}
	name := capsule.NormalizeName(input.Name)
	if !capsule.ValidName(name) {
		return nil, errors.NewInvalidField("name", "must be 1 to 100 characters")
	}
	dob, err := capsule.ParseDate(strings.TrimSpace(input.DateOfBirth))
	if err != nil {
		return nil, errors.NewInvalidField("date_of_birth", "must be a date in YYYY-MM-DD format")
	}
	now := nowOr(input.Now)
	if dob.After(now) {
		return nil, errors.NewInvalidField("date_of_birth", "must not be in the future")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	child := &capsule.Child{
		ID:          id,
		FamilyID:    *guardian.FamilyID,
		Name:        name,
		DateOfBirth: dob,
		CreatedAt:   now,
	}
	if err := db.InsertChild(ctx, database, child); err != nil {
		return nil, err
	}
	return child, nil
}

// ListChildren returns the children of the viewer's family.
func ListChildren(ctx context.Context, database *sql.DB, viewerID string) ([]capsule.Child, error) {
	viewer, err := loadMember(ctx, database, viewerID)
	if err != nil {
		return nil, err
	}
	children, err := db.ListChildren(ctx, database, *viewer.FamilyID)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []capsule.Child{}
	}
	return children, nil
}
