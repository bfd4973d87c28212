package identity_test

import (
	"testing"

	"casefile/internal/identity"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name      string
		claimType string
		raw       string
		want      string
	}{
		{"email lowercased", identity.ClaimEmail, "Jane.Doe@Corp.Example", "jane.doe@corp.example"},
		{"email display name stripped", identity.ClaimEmail, `Jane Doe <Jane@Corp.Example>`, "jane@corp.example"},
		{"email whitespace trimmed", identity.ClaimEmail, "  jane@corp.example  ", "jane@corp.example"},
		{"handle at sign stripped", identity.ClaimChatHandle, "@JaneD", "janed"},
		{"handle without at sign", identity.ClaimChatHandle, "JaneD", "janed"},
		{"calendar id case preserved", identity.ClaimCalendarID, " Room-A1_Upper ", "Room-A1_Upper"},
		{"domain trailing dot stripped", identity.ClaimDomain, "Corp.Example.", "corp.example"},
		{"unknown type folds", "badge_id", " B-123 ", "b-123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := identity.Normalize(tc.claimType, tc.raw); got != tc.want {
				t.Fatalf("Normalize(%q, %q) = %q, want %q", tc.claimType, tc.raw, got, tc.want)
			}
		})
	}
}

func TestDomainOf(t *testing.T) {
	if got := identity.DomainOf("jane@corp.example"); got != "corp.example" {
		t.Fatalf("expected corp.example, got %q", got)
	}
	if got := identity.DomainOf("not-an-email"); got != "" {
		t.Fatalf("expected empty domain, got %q", got)
	}
	if got := identity.DomainOf("trailing@"); got != "" {
		t.Fatalf("expected empty domain for trailing at, got %q", got)
	}
}
