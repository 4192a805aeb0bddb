package capsule

import "time"

// UnlockType selects the policy that decides when a capsule becomes visible.
type UnlockType string

const (
	UnlockImmediate UnlockType = "immediate"
	UnlockDate      UnlockType = "date"
	UnlockAge       UnlockType = "age"
	UnlockMilestone UnlockType = "milestone"
)

// Valid reports whether t is one of the known unlock types.
func (t UnlockType) Valid() bool {
	switch t {
	case UnlockImmediate, UnlockDate, UnlockAge, UnlockMilestone:
		return true
	}
	return false
}

// Role is a family member's role.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleWriter   Role = "writer"
	RoleReader   Role = "reader"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleGuardian || r == RoleWriter || r == RoleReader
}

// CanWrite reports whether the role may author capsules.
func (r Role) CanWrite() bool {
	return r == RoleGuardian || r == RoleWriter
}

// Capsule is one story or memory, text and/or audio, with an unlock policy.
type Capsule struct {
	// ID is a ULID that uniquely identifies this capsule
	ID string `json:"id"`

	// WriterID is the profile that authored the capsule
	WriterID string `json:"writer_id"`

	// FamilyID is the family the capsule belongs to
	FamilyID string `json:"family_id"`

	// ChildID designates a single recipient; nil means all children
	ChildID *string `json:"child_id"`

	// RawText is the text as entered or transcribed
	RawText string `json:"raw_text"`

	// PolishedText is the AI-rewritten text (nil until generated)
	PolishedText *string `json:"polished_text"`

	AudioURL             *string `json:"audio_url"`
	AudioDurationSeconds *int    `json:"audio_duration_seconds"`

	// Derived metadata, nil until the metadata stage completes
	Title           *string   `json:"title"`
	Excerpt         *string   `json:"excerpt"`
	Category        *Category `json:"category"`
	Mood            *Mood     `json:"mood"`
	ReadTimeMinutes *int      `json:"read_time_minutes"`

	// Unlock policy
	UnlockType      UnlockType `json:"unlock_type"`
	UnlockDate      *time.Time `json:"unlock_date"`
	UnlockAge       *int       `json:"unlock_age"`
	UnlockMilestone *string    `json:"unlock_milestone"`
	IsSurprise      bool       `json:"is_surprise"`

	// IsUnlocked is a cached hint for list queries; display decisions use Evaluate
	IsUnlocked bool `json:"is_unlocked"`

	IsPrivate bool    `json:"is_private"`
	IsDraft   bool    `json:"is_draft"`
	Language  *string `json:"language"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// Policy returns the capsule's unlock policy.
func (c *Capsule) Policy() UnlockPolicy {
	return UnlockPolicy{
		Type:       c.UnlockType,
		Date:       c.UnlockDate,
		Age:        c.UnlockAge,
		Milestone:  c.UnlockMilestone,
		IsSurprise: c.IsSurprise,
	}
}

// SetPolicy copies p onto the capsule's unlock fields.
func (c *Capsule) SetPolicy(p UnlockPolicy) {
	c.UnlockType = p.Type
	c.UnlockDate = p.Date
	c.UnlockAge = p.Age
	c.UnlockMilestone = p.Milestone
	c.IsSurprise = p.IsSurprise
}

// Body returns the text to render: polished when available, raw otherwise.
func (c *Capsule) Body() string {
	if c.PolishedText != nil && *c.PolishedText != "" {
		return *c.PolishedText
	}
	return c.RawText
}

// Family is a group sharing capsules.
type Family struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile is a person in a family.
type Profile struct {
	ID                  string    `json:"id"`
	FamilyID            *string   `json:"family_id"`
	DisplayName         string    `json:"display_name"`
	Role                Role      `json:"role"`
	RelationshipLabel   *string   `json:"relationship_label"`
	LanguagePreferences []string  `json:"language_preferences"`
	Bio                 *string   `json:"bio"`
	CreatedAt           time.Time `json:"created_at"`
}

// InFamily reports whether the profile belongs to familyID.
func (p *Profile) InFamily(familyID string) bool {
	return p != nil && p.FamilyID != nil && *p.FamilyID == familyID
}

// Child is a capsule recipient.
type Child struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	Name        string    `json:"name"`
	DateOfBirth Date      `json:"date_of_birth"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateLayout is the calendar-date wire format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day, stored as UTC midnight.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &time.ParseError{Layout: DateLayout, Value: s, Message: ": expected quoted date"}
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
