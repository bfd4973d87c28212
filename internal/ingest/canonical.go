package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalPayload re-serializes a JSON payload into its canonical compact
// form (object keys sorted) and returns it with its content hash. Two
// payloads that differ only in key order or whitespace hash identically.
func CanonicalPayload(payload []byte) ([]byte, string, error) {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, "", fmt.Errorf("payload is not valid JSON: %w", err)
	}
	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}
