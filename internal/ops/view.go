package ops

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
)

// ViewInput contains parameters for the View operation.
type ViewInput struct {
	ViewerID    string
	CapsuleID   string
	RecipientID string // for age capsules addressed to all children
	Now         time.Time
}

// ViewOutput is a single capsule as the viewer may see it.
// Body, BodyHTML and AudioURL are set only when the capsule is open.
type ViewOutput struct {
	capsule.Card
	Body     string  `json:"body,omitempty"`
	BodyHTML string  `json:"body_html,omitempty"`
	AudioURL *string `json:"audio_url,omitempty"`
}

// View opens one capsule for the viewer.
func View(ctx context.Context, database *sql.DB, input ViewInput) (*ViewOutput, error) {
	viewer, err := loadMember(ctx, database, input.ViewerID)
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
	if !viewer.InFamily(c.FamilyID) {
		return nil, errors.NewForbidden("viewer does not belong to this family")
	}
	// Other members cannot tell a foreign draft or private capsule exists.
	if c.WriterID != viewer.ID && (c.IsDraft || c.IsPrivate) {
		return nil, errors.NewNotFound("capsule", id)
	}

	idx, err := loadFamilyIndex(ctx, database, c.FamilyID)
	if err != nil {
		return nil, err
	}
	card, d := idx.card(c, viewer.ID, strings.TrimSpace(input.RecipientID), nowOr(input.Now))
	out := &ViewOutput{Card: card}
	if !d.Open() {
		return out, nil
	}

	out.Body = c.Body()
	out.AudioURL = c.AudioURL
	html, err := RenderBody(out.Body)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	out.BodyHTML = html
	return out, nil
}

// RenderBody converts capsule text to HTML. Raw HTML in the text is not
// passed through.
func RenderBody(body string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
