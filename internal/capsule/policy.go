package capsule

import (
	"fmt"
	"strings"
	"time"
)

// Unlock age bounds.
const (
	MinUnlockAge = 1
	MaxUnlockAge = 100
)

// UnlockPolicy is the part of a capsule that governs when it opens.
type UnlockPolicy struct {
	Type       UnlockType `json:"unlock_type"`
	Date       *time.Time `json:"unlock_date,omitempty"`
	Age        *int       `json:"unlock_age,omitempty"`
	Milestone  *string    `json:"unlock_milestone,omitempty"`
	IsSurprise bool       `json:"is_surprise"`
}

// PolicyError reports an invalid unlock policy field.
type PolicyError struct {
	Field   string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize defaults an empty type to immediate and clears the fields that do
// not belong to the selected type. A blank milestone is treated as unset.
func (p UnlockPolicy) Normalize() UnlockPolicy {
	if p.Type == "" {
		p.Type = UnlockImmediate
	}
	if p.Milestone != nil {
		m := strings.TrimSpace(*p.Milestone)
		if m == "" {
			p.Milestone = nil
		} else {
			p.Milestone = &m
		}
	}
	if p.Date != nil {
		d := p.Date.UTC()
		p.Date = &d
	}
	switch p.Type {
	case UnlockImmediate:
		p.Date, p.Age, p.Milestone = nil, nil, nil
	case UnlockDate:
		p.Age, p.Milestone = nil, nil
	case UnlockAge:
		p.Date, p.Milestone = nil, nil
	case UnlockMilestone:
		p.Date, p.Age = nil, nil
	}
	return p
}

// Validate checks that exactly the field matching Type is set.
// Call Normalize first to drop stray fields.
func (p UnlockPolicy) Validate() error {
	if !p.Type.Valid() {
		return &PolicyError{Field: "unlock_type", Message: "must be one of: immediate, date, age, milestone"}
	}
	set := 0
	for _, isSet := range []bool{p.Date != nil, p.Age != nil, p.Milestone != nil} {
		if isSet {
			set++
		}
	}
	switch p.Type {
	case UnlockImmediate:
		if set != 0 {
			return &PolicyError{Field: "unlock_type", Message: "immediate capsules take no unlock condition"}
		}
	case UnlockDate:
		if p.Date == nil || set != 1 {
			return &PolicyError{Field: "unlock_date", Message: "required when unlock_type is date"}
		}
	case UnlockAge:
		if p.Age == nil || set != 1 {
			return &PolicyError{Field: "unlock_age", Message: "required when unlock_type is age"}
		}
		if *p.Age < MinUnlockAge || *p.Age > MaxUnlockAge {
			return &PolicyError{Field: "unlock_age", Message: fmt.Sprintf("must be between %d and %d", MinUnlockAge, MaxUnlockAge)}
		}
	case UnlockMilestone:
		if p.Milestone == nil || set != 1 {
			return &PolicyError{Field: "unlock_milestone", Message: "required when unlock_type is milestone"}
		}
	}
	return nil
}

// UnlockedAtPublish is the cached is_unlocked value written at publication.
func (p UnlockPolicy) UnlockedAtPublish() bool {
	return p.Type == UnlockImmediate
}

// ParseUnlockDate accepts a calendar date (midnight UTC) or an RFC 3339
// timestamp.
func ParseUnlockDate(s string) (time.Time, error) {
	if d, err := ParseDate(s); err == nil {
		return d.Time, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
