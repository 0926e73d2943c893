// Package privacy provides redaction and pseudonymization for user erasure.
package privacy

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// RedactedText replaces free-text content during soft erasure. Row counts and
// aggregate statistics survive; the content does not.
const RedactedText = "[redacted]"

var (
	// privateTagRegex matches <private>...</private> tags in user queries.
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// Clean performs privacy cleaning on text before it is stored: private tags
// removed, obvious PII masked, whitespace trimmed.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = emailRegex.ReplaceAllString(text, "[email]")
	text = phoneRegex.ReplaceAllString(text, "[phone]")
	return strings.TrimSpace(text)
}

// Redact replaces stored free text wholesale. Used by soft erasure.
func Redact(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return RedactedText
}

// Pseudonym derives a stable anonymous identifier for a user.
// The same (userID, salt) always yields the same pseudonym, so soft-erased
// rows for one user remain correlated for aggregate analytics without
// exposing the original identity.
func Pseudonym(userID, salt string) string {
	sum := sha3.Sum256([]byte(salt + ":" + userID))
	return "anon-" + hex.EncodeToString(sum[:6])
}
