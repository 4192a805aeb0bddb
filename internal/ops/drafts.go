package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
)

// SaveDraftInput contains parameters for the SaveDraft operation.
type SaveDraftInput struct {
	WriterID  string
	CapsuleID string // empty creates a new draft
	RawText   string
	ChildID   *string
	Policy    *capsule.UnlockPolicy // nil keeps the stored policy
	IsPrivate *bool
	MaxChars  int
	Now       time.Time
}

// SaveDraft creates or updates a draft's text and addressing. It is the
// autosave target and never publishes.
func SaveDraft(ctx context.Context, database *sql.DB, input SaveDraftInput) (*capsule.Capsule, error) {
	writer, err := loadWriter(ctx, database, input.WriterID)
	if err != nil {
		return nil, err
	}
	if input.MaxChars > 0 && capsule.CountChars(input.RawText) > input.MaxChars {
		return nil, errors.NewInvalidField("raw_text", "exceeds the maximum length")
	}

	var c *capsule.Capsule
	if id := strings.TrimSpace(input.CapsuleID); id != "" {
		c, err = db.GetCapsule(ctx, database, id)
		if err != nil {
			return nil, err
		}
		if c.WriterID != writer.ID {
			return nil, errors.NewForbidden("capsule belongs to another writer")
		}
		if !c.IsDraft {
			return nil, db.ErrNotDraft
		}
	}

	childID := cleanOptionalString(input.ChildID)
	if childID != nil {
		if err := checkChildInFamily(ctx, database, *childID, *writer.FamilyID); err != nil {
			return nil, err
		}
	}

	create := c == nil
	if create {
		id, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		c = &capsule.Capsule{
			ID:         id,
			WriterID:   writer.ID,
			FamilyID:   *writer.FamilyID,
			UnlockType: capsule.UnlockImmediate,
			IsDraft:    true,
			CreatedAt:  nowOr(input.Now),
		}
	}

	c.RawText = input.RawText
	c.ChildID = childID
	if input.IsPrivate != nil {
		c.IsPrivate = *input.IsPrivate
	}
	if input.Policy != nil {
		policy := input.Policy.Normalize()
		if err := policy.Validate(); err != nil {
			var pe *capsule.PolicyError
			if stderrors.As(err, &pe) {
				return nil, errors.NewInvalidField(pe.Field, pe.Message)
			}
			return nil, errors.NewInvalidRequest(err.Error())
		}
		c.SetPolicy(policy)
	}

	if create {
		err = db.InsertCapsule(ctx, database, c)
	} else {
		err = db.UpdateDraft(ctx, database, c)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
