package linking

import (
	"encoding/json"
	"sort"
	"strings"

	"casefile/internal/config"
	"casefile/internal/store"
)

// Candidate is one proposed link produced by a matching strategy.
type Candidate struct {
	EntityType string
	EntityID   string
	Method     store.MatchMethod
	Confidence float64
	Reasons    []string
}

// matchContext carries everything a strategy may inspect for one artifact.
type matchContext struct {
	artifact *store.Artifact
	payload  map[string]any
	// text is the concatenation of every string value in the payload,
	// case-folded for keyword matching.
	text     string
	rawText  string
	actor    *store.Profile
	entities []config.Entity
	rules    []config.Rule
	// ambiguities records participant matches that hit several entities
	// and therefore must go to the fix queue instead of guessing.
	ambiguities []string
}

func newMatchContext(artifact *store.Artifact, payload []byte, actor *store.Profile, linking config.Linking) *matchContext {
	mc := &matchContext{
		artifact: artifact,
		actor:    actor,
		entities: linking.Entities,
		rules:    linking.Rules,
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		mc.payload = decoded
	}
	mc.rawText = flattenStrings(mc.payload)
	mc.text = strings.ToLower(mc.rawText)
	return mc
}

// flattenStrings walks a decoded JSON document and joins every string value
// in deterministic key order.
func flattenStrings(value any) string {
	var parts []string
	collectStrings(value, &parts)
	return strings.Join(parts, "\n")
}

func collectStrings(value any, parts *[]string) {
	switch v := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
	case []any:
		for _, item := range v {
			collectStrings(item, parts)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			collectStrings(v[key], parts)
		}
	}
}

// stringField returns a top-level payload field as a trimmed string.
func (mc *matchContext) stringField(key string) string {
	if mc.payload == nil {
		return ""
	}
	if raw, ok := mc.payload[key]; ok {
		if s, ok := raw.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
