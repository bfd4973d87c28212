package linking

import (
	"fmt"
	"strings"

	"casefile/internal/config"
	"casefile/internal/store"
)

// Strategy confidence constants. Headers carry near-certain structural
// identifiers; participants and naming degrade from there; rules carry
// whatever confidence the allow-list row declares.
const (
	headerConfidence      = 0.95
	participantConfidence = 0.85
	bracketNameConfidence = 0.80
	keywordNameConfidence = 0.60
)

// headerFields are payload keys that carry structural entity identifiers
// when producers embed them.
var headerFields = map[string]string{
	"project_id": "project",
	"client_id":  "client",
	"thread_id":  "thread",
	"task_id":    "project",
	"invoice_id": "client",
}

type strategy struct {
	method store.MatchMethod
	match  func(mc *matchContext) []Candidate
}

// strategyTable is the fixed, ordered set of independent matchers. Order is
// stable so decision logs and dedup behavior are reproducible.
func strategyTable() []strategy {
	return []strategy{
		{method: store.MethodHeaders, match: matchHeaders},
		{method: store.MethodParticipants, match: matchParticipants},
		{method: store.MethodNaming, match: matchNaming},
		{method: store.MethodRules, match: matchRules},
	}
}

// matchHeaders links payload fields carrying structural identifiers to the
// catalog entity with that id.
func matchHeaders(mc *matchContext) []Candidate {
	var candidates []Candidate
	for field, entityType := range headerFields {
		value := mc.stringField(field)
		if value == "" {
			continue
		}
		for _, entity := range mc.entities {
			if entity.Type != entityType || !strings.EqualFold(entity.ID, value) {
				continue
			}
			candidates = append(candidates, Candidate{
				EntityType: entity.Type,
				EntityID:   entity.ID,
				Method:     store.MethodHeaders,
				Confidence: headerConfidence,
				Reasons:    []string{fmt.Sprintf("payload field %s carries identifier %q", field, value)},
			})
		}
	}
	return candidates
}

// matchParticipants links the resolved actor to a catalog entity through
// its domain. A domain shared by several entities is ambiguous and goes to
// the fix queue instead of producing a guess.
func matchParticipants(mc *matchContext) []Candidate {
	if mc.actor == nil || mc.actor.Domain == "" {
		return nil
	}
	var matched []config.Entity
	for _, entity := range mc.entities {
		for _, domain := range entity.Domains {
			if strings.EqualFold(domain, mc.actor.Domain) {
				matched = append(matched, entity)
				break
			}
		}
	}
	switch len(matched) {
	case 0:
		return nil
	case 1:
		entity := matched[0]
		return []Candidate{{
			EntityType: entity.Type,
			EntityID:   entity.ID,
			Method:     store.MethodParticipants,
			Confidence: participantConfidence,
			Reasons:    []string{fmt.Sprintf("actor domain %s belongs to %s", mc.actor.Domain, entity.Name)},
		}}
	default:
		names := make([]string, 0, len(matched))
		for _, entity := range matched {
			names = append(names, entity.Type+"/"+entity.ID)
		}
		mc.ambiguities = append(mc.ambiguities,
			fmt.Sprintf("actor domain %s matches multiple entities: %s", mc.actor.Domain, strings.Join(names, ", ")))
		return nil
	}
}

// matchNaming links bracketed and keyword occurrences of known entity names
// in the payload text. A bracketed full-name mention outranks a bare
// keyword hit.
func matchNaming(mc *matchContext) []Candidate {
	if mc.text == "" {
		return nil
	}
	var candidates []Candidate
	for _, entity := range mc.entities {
		names := append([]string{entity.Name}, entity.Aliases...)
		best := 0.0
		var reason string
		for _, name := range names {
			trimmed := strings.TrimSpace(name)
			if trimmed == "" {
				continue
			}
			folded := strings.ToLower(trimmed)
			if strings.Contains(mc.text, "["+folded+"]") {
				if bracketNameConfidence > best {
					best = bracketNameConfidence
					reason = fmt.Sprintf("bracketed mention of %q", trimmed)
				}
				continue
			}
			if strings.Contains(mc.text, folded) && keywordNameConfidence > best {
				best = keywordNameConfidence
				reason = fmt.Sprintf("keyword mention of %q", trimmed)
			}
		}
		if best > 0 {
			candidates = append(candidates, Candidate{
				EntityType: entity.Type,
				EntityID:   entity.ID,
				Method:     store.MethodNaming,
				Confidence: best,
				Reasons:    []string{reason},
			})
		}
	}
	return candidates
}

// matchRules applies the deterministic allow-list: any payload containing
// the rule token links to the rule's entity at its fixed confidence.
func matchRules(mc *matchContext) []Candidate {
	if mc.rawText == "" {
		return nil
	}
	var candidates []Candidate
	for _, rule := range mc.rules {
		if !strings.Contains(mc.rawText, rule.Match) {
			continue
		}
		candidates = append(candidates, Candidate{
			EntityType: rule.EntityType,
			EntityID:   rule.EntityID,
			Method:     store.MethodRules,
			Confidence: rule.Confidence,
			Reasons:    []string{fmt.Sprintf("allow-list rule %q", rule.Match)},
		})
	}
	return candidates
}
