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

// UnlockMilestoneInput contains parameters for the UnlockMilestone operation.
type UnlockMilestoneInput struct {
	ProfileID string
	CapsuleID string
}

// UnlockMilestone opens a milestone capsule. Only a guardian of the
// capsule's family or its writer may do this.
func UnlockMilestone(ctx context.Context, database *sql.DB, input UnlockMilestoneInput) (*capsule.Capsule, error) {
	actor, err := loadMember(ctx, database, input.ProfileID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.CapsuleID)
	if id == "" {
		return nil, errors.NewInvalidField("capsule_id", "is required")
	}
	c, err := db.GetCapsule(ctx, database, id)
	if err != nil {
		return nil, err
	}
	if !actor.InFamily(c.FamilyID) {
		return nil, errors.NewForbidden("profile does not belong to this family")
	}
	if c.IsDraft {
		return nil, errors.NewInvalidRequest("drafts cannot be unlocked")
	}
	if c.UnlockType != capsule.UnlockMilestone {
		return nil, errors.NewInvalidRequest("only milestone capsules are unlocked manually")
	}
	if actor.Role != capsule.RoleGuardian && actor.ID != c.WriterID {
		return nil, errors.NewForbidden("only a guardian or the writer can unlock a milestone")
	}
	if !c.IsUnlocked {
		if err := db.MarkUnlocked(ctx, database, c.ID); err != nil {
			return nil, err
		}
		c.IsUnlocked = true
	}
	return c, nil
}

// SweepUnlocks refreshes the cached is_unlocked flag for date capsules whose
// date has passed and age capsules whose recipient has reached the age.
// The flag only narrows list queries; reads still evaluate live.
func SweepUnlocks(ctx context.Context, database *sql.DB, now time.Time) (int, error) {
	now = nowOr(now)
	n, err := db.SweepDateUnlocks(ctx, database, now)
	if err != nil {
		return 0, err
	}

	sealed, err := db.ListSealedAgeCapsules(ctx, database)
	if err != nil {
		return n, err
	}
	children := map[string]*capsule.Child{}
	for i := range sealed {
		c := &sealed[i]
		child, ok := children[*c.ChildID]
		if !ok {
			child, err = db.GetChild(ctx, database, *c.ChildID)
			if err != nil && !errors.Is(err, errors.ErrNotFound) {
				return n, err
			}
			children[*c.ChildID] = child
		}
		if child == nil || c.UnlockAge == nil {
			continue
		}
		if capsule.AgeInYears(child.DateOfBirth, now) >= *c.UnlockAge {
			if err := db.MarkUnlocked(ctx, database, c.ID); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
