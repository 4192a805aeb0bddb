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

// FeedInput contains parameters for the Feed operation.
type FeedInput struct {
	ViewerID string
	FamilyID string // default: the viewer's family
	// RecipientID narrows the feed to one child's capsules and capsules for
	// all children, and drives age decisions for the latter.
	RecipientID string
	Limit       int // default: 20, max: 100
	Offset      int
	Now         time.Time
}

// FeedOutput contains the result of the Feed operation.
type FeedOutput struct {
	Items      []capsule.Card `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// Feed lists a family's published capsules for the viewer, newest first.
// Sealed surprises are omitted and sealed capsules carry only placeholders.
func Feed(ctx context.Context, database *sql.DB, input FeedInput) (*FeedOutput, error) {
	viewer, err := loadMember(ctx, database, input.ViewerID)
	if err != nil {
		return nil, err
	}
	familyID := strings.TrimSpace(input.FamilyID)
	if familyID == "" {
		familyID = *viewer.FamilyID
	}
	if !viewer.InFamily(familyID) {
		return nil, errors.NewForbidden("viewer does not belong to this family")
	}
	now := nowOr(input.Now)

	idx, err := loadFamilyIndex(ctx, database, familyID)
	if err != nil {
		return nil, err
	}
	recipientID := strings.TrimSpace(input.RecipientID)
	if recipientID != "" {
		if _, ok := idx.children[recipientID]; !ok {
			return nil, errors.NewInvalidField("recipient_id", "unknown child")
		}
	}

	capsules, err := db.ListFamilyPublished(ctx, database, familyID, viewer.ID)
	if err != nil {
		return nil, err
	}

	cards := make([]capsule.Card, 0, len(capsules))
	for i := range capsules {
		c := &capsules[i]
		if recipientID != "" && c.ChildID != nil && *c.ChildID != recipientID {
			continue
		}
		card, d := idx.card(c, viewer.ID, recipientID, now)
		if !capsule.VisibleInFeed(c, d, viewer.ID) {
			continue
		}
		cards = append(cards, card)
	}

	page, pagination := paginate(cards, input.Limit, input.Offset)
	return &FeedOutput{
		Items:      page,
		Pagination: pagination,
		Sort:       "published_at_desc",
	}, nil
}
