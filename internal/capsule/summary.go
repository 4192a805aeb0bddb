package capsule

import "time"

// Card is a capsule as shown in a feed or list. Sealed cards carry only the
// placeholder and addressing fields; derived metadata is withheld so nothing
// about the content leaks before it opens.
type Card struct {
	// ID is a ULID that uniquely identifies this capsule
	ID string `json:"id"`

	WriterID string  `json:"writer_id"`
	FamilyID string  `json:"family_id"`
	ChildID  *string `json:"child_id,omitempty"`

	// Writer and recipient display fields, filled by the caller when joined
	WriterName         string  `json:"writer_name,omitempty"`
	WriterRelationship *string `json:"writer_relationship,omitempty"`
	RecipientName      string  `json:"recipient_name,omitempty"`

	// Derived metadata; nil on sealed cards
	Title           *string   `json:"title,omitempty"`
	Excerpt         *string   `json:"excerpt,omitempty"`
	Category        *Category `json:"category,omitempty"`
	Mood            *Mood     `json:"mood,omitempty"`
	ReadTimeMinutes *int      `json:"read_time_minutes,omitempty"`
	HasAudio        bool      `json:"has_audio"`

	UnlockType  UnlockType   `json:"unlock_type"`
	IsSurprise  bool         `json:"is_surprise"`
	IsDraft     bool         `json:"is_draft"`
	State       State        `json:"state"`
	Placeholder *Placeholder `json:"placeholder,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ToCard converts a Capsule to a Card under the given decision.
func (c *Capsule) ToCard(d Decision) Card {
	card := Card{
		ID:          c.ID,
		WriterID:    c.WriterID,
		FamilyID:    c.FamilyID,
		ChildID:     c.ChildID,
		UnlockType:  c.UnlockType,
		IsSurprise:  c.IsSurprise,
		IsDraft:     c.IsDraft,
		State:       d.State,
		Placeholder: d.Placeholder,
		CreatedAt:   c.CreatedAt,
		PublishedAt: c.PublishedAt,
	}
	if d.Open() {
		card.Title = c.Title
		card.Excerpt = c.Excerpt
		card.Category = c.Category
		card.Mood = c.Mood
		card.ReadTimeMinutes = c.ReadTimeMinutes
		card.HasAudio = c.AudioURL != nil
	}
	if d.Placeholder != nil && d.Placeholder.Recipient != "" {
		card.RecipientName = d.Placeholder.Recipient
	}
	return card
}
