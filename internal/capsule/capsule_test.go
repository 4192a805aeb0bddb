package capsule

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseEnums(t *testing.T) {
	for _, c := range Categories {
		if got, ok := ParseCategory(strings.ToUpper(string(c))); !ok || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, ok)
		}
	}
	for _, m := range Moods {
		if got, ok := ParseMood(" " + string(m) + " "); !ok || got != m {
			t.Errorf("ParseMood(%q) = %q, %v", m, got, ok)
		}
	}
	if _, ok := ParseCategory("poetry"); ok {
		t.Error("ParseCategory accepted unknown value")
	}
	if _, ok := ParseMood(""); ok {
		t.Error("ParseMood accepted empty value")
	}
}

func TestRole(t *testing.T) {
	if !RoleGuardian.CanWrite() || !RoleWriter.CanWrite() || RoleReader.CanWrite() {
		t.Error("unexpected CanWrite results")
	}
	if Role("admin").Valid() {
		t.Error("unknown role reported valid")
	}
}

func TestMilestoneLabel(t *testing.T) {
	if got := MilestoneLabel("turning_18"); got != "Turning 18" {
		t.Errorf("MilestoneLabel = %q", got)
	}
	if got := MilestoneLabel("Learns to swim"); got != "Learns to swim" {
		t.Errorf("custom MilestoneLabel = %q", got)
	}
}

func TestBody(t *testing.T) {
	c := &Capsule{RawText: "raw"}
	if c.Body() != "raw" {
		t.Errorf("Body = %q", c.Body())
	}
	empty := ""
	c.PolishedText = &empty
	if c.Body() != "raw" {
		t.Errorf("empty polished text should fall back to raw")
	}
	polished := "polished"
	c.PolishedText = &polished
	if c.Body() != "polished" {
		t.Errorf("Body = %q", c.Body())
	}
}

func TestDateJSON(t *testing.T) {
	var child Child
	if err := json.Unmarshal([]byte(`{"name":"Meera","date_of_birth":"2019-04-02"}`), &child); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if child.DateOfBirth.String() != "2019-04-02" {
		t.Errorf("DateOfBirth = %s", child.DateOfBirth)
	}
	out, err := json.Marshal(child.DateOfBirth)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `"2019-04-02"` {
		t.Errorf("Marshal = %s", out)
	}
	if err := json.Unmarshal([]byte(`{"date_of_birth":"02/04/2019"}`), &child); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if err := json.Unmarshal([]byte(`{"date_of_birth":20190402}`), &child); err == nil {
		t.Error("expected error for unquoted date")
	}
}

func TestInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatalf("GenerateInviteCode: %v", err)
		}
		if len(code) != InviteCodeLength {
			t.Fatalf("len(%q) = %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(inviteAlphabet, r) {
				t.Fatalf("code %q contains %q", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes in 50", len(seen))
	}
	if got := NormalizeInviteCode("  abcd2345 "); got != "ABCD2345" {
		t.Errorf("NormalizeInviteCode = %q", got)
	}
}
