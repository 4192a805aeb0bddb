package ops

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// clampPage applies limit defaults and bounds and a non-negative offset.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// paginate slices items after visibility filtering. Filtering happens in Go
// because the unlock decision depends on the clock and the viewer.
func paginate[T any](items []T, limit, offset int) ([]T, Pagination) {
	limit, offset = clampPage(limit, offset)
	total := len(items)
	page := []T{}
	if offset < total {
		end := min(offset+limit, total)
		page = items[offset:end]
	}
	return page, Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(page) < total,
		Total:   total,
	}
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// cleanOptionalString trims s and returns nil when nothing is left.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// loadViewer resolves the authenticated profile. An unknown profile is an
// authentication failure, not a missing resource.
func loadViewer(ctx context.Context, q db.Querier, profileID string) (*capsule.Profile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, errors.NewUnauthorized("a profile is required")
	}
	p, err := db.GetProfile(ctx, q, profileID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUnauthorized("unknown profile")
		}
		return nil, err
	}
	return p, nil
}

// loadMember resolves the viewer and requires family membership.
func loadMember(ctx context.Context, q db.Querier, profileID string) (*capsule.Profile, error) {
	p, err := loadViewer(ctx, q, profileID)
	if err != nil {
		return nil, err
	}
	if p.FamilyID == nil {
		return nil, errors.NewForbidden("profile does not belong to a family")
	}
	return p, nil
}

// loadWriter resolves a member who may write capsules.
func loadWriter(ctx context.Context, q db.Querier, profileID string) (*capsule.Profile, error) {
	p, err := loadMember(ctx, q, profileID)
	if err != nil {
		return nil, err
	}
	if !p.Role.CanWrite() {
		return nil, errors.NewForbidden("readers cannot write capsules")
	}
	return p, nil
}

// familyIndex holds the members and children of one family for card
// decoration and recipient resolution.
type familyIndex struct {
	members  map[string]capsule.Profile
	children map[string]capsule.Child
}

func loadFamilyIndex(ctx context.Context, q db.Querier, familyID string) (*familyIndex, error) {
	profiles, err := db.ListFamilyProfiles(ctx, q, familyID)
	if err != nil {
		return nil, err
	}
	children, err := db.ListChildren(ctx, q, familyID)
	if err != nil {
		return nil, err
	}
	idx := &familyIndex{
		members:  make(map[string]capsule.Profile, len(profiles)),
		children: make(map[string]capsule.Child, len(children)),
	}
	for _, p := range profiles {
		idx.members[p.ID] = p
	}
	for _, c := range children {
		idx.children[c.ID] = c
	}
	return idx, nil
}

// recipientFor picks the child whose age drives c: the addressed child, or
// the requested recipient for capsules addressed to all children.
func (idx *familyIndex) recipientFor(c *capsule.Capsule, recipientID string) *capsule.Child {
	id := recipientID
	if c.ChildID != nil {
		id = *c.ChildID
	}
	if id == "" {
		return nil
	}
	if child, ok := idx.children[id]; ok {
		return &child
	}
	return nil
}

// card evaluates c for the viewer and decorates it with display names.
func (idx *familyIndex) card(c *capsule.Capsule, viewerID, recipientID string, now time.Time) (capsule.Card, capsule.Decision) {
	d := capsule.Evaluate(c, viewerID, idx.recipientFor(c, recipientID), now)
	card := c.ToCard(d)
	if w, ok := idx.members[c.WriterID]; ok {
		card.WriterName = w.DisplayName
		card.WriterRelationship = w.RelationshipLabel
	}
	if c.ChildID != nil {
		if child, ok := idx.children[*c.ChildID]; ok {
			card.RecipientName = child.Name
		}
	}
	return card, d
}
