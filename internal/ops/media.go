package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/storage"
)

// MediaAccessInput contains parameters for the AuthorizeMedia operation.
type MediaAccessInput struct {
	ViewerID    string
	Key         string // blob key, as built by storage.AudioKey
	RecipientID string // for age capsules addressed to all children
	Now         time.Time
}

// AuthorizeMedia resolves a media key to its capsule and allows the read
// only when the capsule is open for the viewer. The writer is always allowed.
// Keys the viewer may not learn about report NOT_FOUND; sealed capsules
// report FORBIDDEN.
func AuthorizeMedia(ctx context.Context, database *sql.DB, input MediaAccessInput) (*capsule.Capsule, error) {
	writerID, capsuleID, ok := storage.ParseAudioKey(input.Key)
	if !ok {
		return nil, errors.NewNotFound("media", input.Key)
	}
	viewer, err := loadMember(ctx, database, input.ViewerID)
	if err != nil {
		return nil, err
	}
	c, err := db.GetCapsule(ctx, database, capsuleID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound("media", input.Key)
		}
		return nil, err
	}
	if c.WriterID != writerID || !viewer.InFamily(c.FamilyID) {
		return nil, errors.NewNotFound("media", input.Key)
	}
	if c.WriterID == viewer.ID {
		return c, nil
	}
	if c.IsDraft || c.IsPrivate {
		return nil, errors.NewNotFound("media", input.Key)
	}

	idx, err := loadFamilyIndex(ctx, database, c.FamilyID)
	if err != nil {
		return nil, err
	}
	d := capsule.Evaluate(c, viewer.ID, idx.recipientFor(c, strings.TrimSpace(input.RecipientID)), nowOr(input.Now))
	if !d.Open() {
		return nil, errors.NewForbidden("capsule is sealed")
	}
	return c, nil
}
