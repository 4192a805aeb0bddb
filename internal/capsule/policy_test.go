package capsule

import (
	"errors"
	"testing"
	"time"
)

func TestUnlockPolicy_NormalizeDefaultsImmediate(t *testing.T) {
	p := UnlockPolicy{}.Normalize()
	if p.Type != UnlockImmediate {
		t.Errorf("Type = %q, want immediate", p.Type)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if !p.UnlockedAtPublish() {
		t.Error("immediate policy should be unlocked at publish")
	}
}

func TestUnlockPolicy_NormalizeClearsStrayFields(t *testing.T) {
	d := time.Date(2030, 1, 1, 0, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	p := UnlockPolicy{
		Type:      UnlockDate,
		Date:      &d,
		Age:       ptr(18),
		Milestone: ptr("graduation"),
	}.Normalize()

	if p.Age != nil || p.Milestone != nil {
		t.Errorf("stray fields kept: %+v", p)
	}
	if p.Date.Location() != time.UTC {
		t.Errorf("Date not converted to UTC: %v", p.Date)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if p.UnlockedAtPublish() {
		t.Error("date policy should not be unlocked at publish")
	}
}

func TestUnlockPolicy_Validate(t *testing.T) {
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		policy    UnlockPolicy
		wantField string
	}{
		{name: "immediate ok", policy: UnlockPolicy{Type: UnlockImmediate}},
		{name: "date ok", policy: UnlockPolicy{Type: UnlockDate, Date: &future}},
		{name: "age ok", policy: UnlockPolicy{Type: UnlockAge, Age: ptr(18)}},
		{name: "age lower bound", policy: UnlockPolicy{Type: UnlockAge, Age: ptr(1)}},
		{name: "age upper bound", policy: UnlockPolicy{Type: UnlockAge, Age: ptr(100)}},
		{name: "milestone ok", policy: UnlockPolicy{Type: UnlockMilestone, Milestone: ptr("first_job")}},
		{name: "unknown type", policy: UnlockPolicy{Type: "someday"}, wantField: "unlock_type"},
		{name: "immediate with date", policy: UnlockPolicy{Type: UnlockImmediate, Date: &future}, wantField: "unlock_type"},
		{name: "date missing", policy: UnlockPolicy{Type: UnlockDate}, wantField: "unlock_date"},
		{name: "date plus age", policy: UnlockPolicy{Type: UnlockDate, Date: &future, Age: ptr(3)}, wantField: "unlock_date"},
		{name: "age missing", policy: UnlockPolicy{Type: UnlockAge}, wantField: "unlock_age"},
		{name: "age zero", policy: UnlockPolicy{Type: UnlockAge, Age: ptr(0)}, wantField: "unlock_age"},
		{name: "age too large", policy: UnlockPolicy{Type: UnlockAge, Age: ptr(101)}, wantField: "unlock_age"},
		{name: "milestone missing", policy: UnlockPolicy{Type: UnlockMilestone}, wantField: "unlock_milestone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var pe *PolicyError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PolicyError, got %v", err)
			}
			if pe.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", pe.Field, tt.wantField)
			}
		})
	}
}

func TestUnlockPolicy_BlankMilestoneIsUnset(t *testing.T) {
	p := UnlockPolicy{Type: UnlockMilestone, Milestone: ptr("   ")}.Normalize()
	if p.Milestone != nil {
		t.Fatalf("blank milestone kept: %q", *p.Milestone)
	}
	if err := p.Validate(); err == nil {
		t.Error("expected validation error for blank milestone")
	}
}

func TestCapsule_PolicyRoundTrip(t *testing.T) {
	c := &Capsule{}
	want := UnlockPolicy{Type: UnlockAge, Age: ptr(21), IsSurprise: true}
	c.SetPolicy(want)
	got := c.Policy()
	if got.Type != want.Type || *got.Age != 21 || !got.IsSurprise {
		t.Errorf("Policy() = %+v", got)
	}
}

func TestParseUnlockDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2030-05-01", time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2030-05-01T10:00:00+05:30", time.Date(2030, 5, 1, 4, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseUnlockDate(tt.in)
		if err != nil {
			t.Fatalf("ParseUnlockDate(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) || got.Location() != time.UTC {
			t.Errorf("ParseUnlockDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseUnlockDate("next spring"); err == nil {
		t.Error("expected error for free-form date")
	}
}
