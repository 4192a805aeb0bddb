package capsule

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// State is the visibility of a capsule's body and audio for one viewer.
type State string

const (
	StateOpen   State = "open"
	StateSealed State = "sealed"
)

// UnlockDateFormat is the human-readable format used in placeholders.
const UnlockDateFormat = "January 2, 2006"

// Placeholder describes the locked card shown instead of sealed content.
type Placeholder struct {
	Label     string `json:"label"`
	Condition string `json:"condition"`
	Relative  string `json:"relative,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// Decision is the outcome of evaluating a capsule for a viewer.
type Decision struct {
	State       State        `json:"state"`
	Placeholder *Placeholder `json:"placeholder,omitempty"`
}

// Open reports whether the content is visible.
func (d Decision) Open() bool { return d.State == StateOpen }

// Evaluate decides whether viewerID may see c's content at now.
// recipient is the child whose age drives age-based capsules; nil when it
// cannot be resolved, in which case age capsules stay sealed.
func Evaluate(c *Capsule, viewerID string, recipient *Child, now time.Time) Decision {
	if IsOpen(c, viewerID, recipient, now) {
		return Decision{State: StateOpen}
	}
	return Decision{State: StateSealed, Placeholder: placeholderFor(c, recipient, now)}
}

// IsOpen is the live unlock predicate. It must be recomputed on every read:
// date and age conditions change with time while the stored flag does not.
func IsOpen(c *Capsule, viewerID string, recipient *Child, now time.Time) bool {
	if viewerID != "" && viewerID == c.WriterID {
		return true
	}
	switch c.UnlockType {
	case UnlockImmediate:
		return true
	case UnlockDate:
		return c.UnlockDate != nil && !now.Before(*c.UnlockDate)
	case UnlockAge:
		if recipient == nil || c.UnlockAge == nil {
			return false
		}
		return AgeInYears(recipient.DateOfBirth, now) >= *c.UnlockAge
	case UnlockMilestone:
		// Only a manual unlock opens a milestone capsule.
		return c.IsUnlocked
	}
	return false
}

// AgeInYears returns the whole calendar years elapsed from dob to now.
// A birthday not yet reached in now's year does not count. Both sides are
// compared as UTC calendar dates; a 29 February birthday is reached on
// 1 March in non-leap years.
func AgeInYears(dob Date, now time.Time) int {
	b := dob.UTC()
	n := now.UTC()
	years := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// VisibleInFeed reports whether a capsule appears in list views for the viewer.
// Sealed surprises are omitted entirely; private capsules are the writer's own.
func VisibleInFeed(c *Capsule, d Decision, viewerID string) bool {
	if c.IsPrivate && viewerID != c.WriterID {
		return false
	}
	if c.IsSurprise && !d.Open() {
		return false
	}
	return true
}

func placeholderFor(c *Capsule, recipient *Child, now time.Time) *Placeholder {
	p := &Placeholder{Label: "Sealed Story", Condition: "Time capsule"}
	switch c.UnlockType {
	case UnlockDate:
		if c.UnlockDate != nil {
			p.Condition = "Opens on " + c.UnlockDate.UTC().Format(UnlockDateFormat)
			p.Relative = humanize.RelTime(*c.UnlockDate, now, "ago", "from now")
		}
	case UnlockAge:
		if c.UnlockAge != nil {
			p.Condition = fmt.Sprintf("Opens at age %d", *c.UnlockAge)
		}
	case UnlockMilestone:
		if c.UnlockMilestone != nil {
			p.Condition = "Opens at: " + MilestoneLabel(*c.UnlockMilestone)
		}
	}
	if recipient != nil && c.ChildID != nil {
		p.Recipient = recipient.Name
	}
	return p
}
