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

// WriterCapsulesInput contains parameters for the WriterCapsules operation.
type WriterCapsulesInput struct {
	ViewerID      string
	WriterID      string // default: the viewer
	IncludeDrafts bool   // honored only for the writer's own list
	Limit         int
	Offset        int
	Now           time.Time
}

// WriterCapsulesOutput contains the result of the WriterCapsules operation.
type WriterCapsulesOutput struct {
	Items      []capsule.Card `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// WriterCapsules lists one writer's capsules. The writer sees everything of
// their own; other family members see what the feed would show them.
func WriterCapsules(ctx context.Context, database *sql.DB, input WriterCapsulesInput) (*WriterCapsulesOutput, error) {
	viewer, err := loadMember(ctx, database, input.ViewerID)
	if err != nil {
		return nil, err
	}
	writerID := strings.TrimSpace(input.WriterID)
	if writerID == "" {
		writerID = viewer.ID
	}
	self := writerID == viewer.ID
	if !self {
		writer, err := db.GetProfile(ctx, database, writerID)
		if err != nil {
			return nil, err
		}
		if writer.FamilyID == nil || !viewer.InFamily(*writer.FamilyID) {
			return nil, errors.NewForbidden("writer is not in the viewer's family")
		}
	}

	capsules, err := db.ListByWriter(ctx, database, writerID, self && input.IncludeDrafts)
	if err != nil {
		return nil, err
	}
	idx, err := loadFamilyIndex(ctx, database, *viewer.FamilyID)
	if err != nil {
		return nil, err
	}

	now := nowOr(input.Now)
	cards := make([]capsule.Card, 0, len(capsules))
	for i := range capsules {
		c := &capsules[i]
		card, d := idx.card(c, viewer.ID, "", now)
		if !self && !capsule.VisibleInFeed(c, d, viewer.ID) {
			continue
		}
		cards = append(cards, card)
	}

	page, pagination := paginate(cards, input.Limit, input.Offset)
	return &WriterCapsulesOutput{
		Items:      page,
		Pagination: pagination,
		Sort:       "published_at_desc",
	}, nil
}
