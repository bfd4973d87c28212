package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Claim types understood by the resolver. Unknown types fall back to the
// default trim-and-fold rule.
const (
	ClaimEmail      = "email"
	ClaimChatHandle = "chat_handle"
	ClaimCalendarID = "calendar_id"
	ClaimDomain     = "domain"
)

var foldCaser = cases.Fold()

// Normalize applies the per-claim-type case and whitespace rules that make
// raw identifiers comparable. The normalized form is what claim uniqueness
// is enforced over.
func Normalize(claimType, rawValue string) string {
	value := norm.NFC.String(strings.TrimSpace(rawValue))
	switch claimType {
	case ClaimEmail:
		value = stripDisplayName(value)
		return foldCaser.String(value)
	case ClaimChatHandle:
		value = strings.TrimPrefix(value, "@")
		return foldCaser.String(strings.TrimSpace(value))
	case ClaimCalendarID:
		// Calendar ids are opaque and case-sensitive upstream.
		return value
	case ClaimDomain:
		value = strings.TrimSuffix(value, ".")
		return foldCaser.String(value)
	default:
		return foldCaser.String(value)
	}
}

// DomainOf extracts the domain portion of a normalized email address.
func DomainOf(normalizedEmail string) string {
	at := strings.LastIndex(normalizedEmail, "@")
	if at < 0 || at == len(normalizedEmail)-1 {
		return ""
	}
	return normalizedEmail[at+1:]
}

// stripDisplayName reduces forms like `Jane Doe <jane@corp.example>` to the
// bare address.
func stripDisplayName(value string) string {
	open := strings.LastIndex(value, "<")
	end := strings.LastIndex(value, ">")
	if open >= 0 && end > open {
		return strings.TrimSpace(value[open+1 : end])
	}
	return value
}
