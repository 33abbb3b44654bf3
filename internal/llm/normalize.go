package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

var errNoJSONObject = errors.New("expected a JSON object")

type rawBeliefState struct {
	Entities      json.RawMessage `json:"entities"`
	Relationships json.RawMessage `json:"relationships"`
}

type rawEntity struct {
	Name             json.RawMessage `json:"name"`
	PresenceInPrompt json.RawMessage `json:"presence_in_prompt"`
	Description      json.RawMessage `json:"description"`
	Alternatives     json.RawMessage `json:"alternatives"`
	Attributes       json.RawMessage `json:"attributes"`
}

type rawAttribute struct {
	Name             json.RawMessage `json:"name"`
	PresenceInPrompt json.RawMessage `json:"presence_in_prompt"`
	Value            json.RawMessage `json:"value"`
}

type rawRelationship struct {
	Source       json.RawMessage `json:"source"`
	Target       json.RawMessage `json:"target"`
	Label        json.RawMessage `json:"label"`
	Alternatives json.RawMessage `json:"alternatives"`
}

type rawClarification struct {
	Question json.RawMessage `json:"question"`
	Options  json.RawMessage `json:"options"`
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[\"") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the first balanced {...} or [...] span in text that is
// valid JSON, so a bracketed phrase ahead of the payload is skipped. When no
// span parses the first balanced one is returned, and when none exists the
// whole (fence-stripped) text is.
func ExtractJSON(text string) string {
	s := stripFences(text)

	first := ""
	for offset := 0; offset < len(s); {
		i := strings.IndexAny(s[offset:], "{[")
		if i < 0 {
			break
		}
		start := offset + i
		span, ok := balancedSpan(s, start)
		if !ok {
			break
		}
		if json.Valid([]byte(span)) {
			return span
		}
		if first == "" {
			first = span
		}
		offset = start + 1
	}
	if first != "" {
		return first
	}
	return s
}

// balancedSpan returns the bracketed span opening at s[start], skipping
// brackets inside string literals.
func balancedSpan(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func parseRaw(text string, extract bool) (json.RawMessage, error) {
	payload := strings.TrimSpace(text)
	if extract {
		payload = ExtractJSON(text)
	}
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ParseError{Text: text, Err: err}
	}
	return raw, nil
}

// NormalizeBeliefGraph extracts JSON from free-form provider text and coerces
// it into a canonical BeliefState.
func NormalizeBeliefGraph(text string) (domain.BeliefState, error) {
	return decodeBeliefGraph(text, true)
}

// CoerceBeliefGraph skips extraction for schema-constrained output but still
// applies the same coercion rules.
func CoerceBeliefGraph(text string) (domain.BeliefState, error) {
	return decodeBeliefGraph(text, false)
}

func decodeBeliefGraph(text string, extract bool) (domain.BeliefState, error) {
	raw, err := parseRaw(text, extract)
	if err != nil {
		return domain.BeliefState{}, err
	}
	if !isObject(raw) {
		return domain.BeliefState{}, &ParseError{Text: text, Err: errNoJSONObject}
	}

	var rs rawBeliefState
	if err := json.Unmarshal(raw, &rs); err != nil {
		return domain.BeliefState{}, &ParseError{Text: text, Err: err}
	}

	state := domain.EmptyBeliefState()
	for _, item := range asList(rs.Entities) {
		var re rawEntity
		if !isObject(item) || json.Unmarshal(item, &re) != nil {
			continue
		}
		state.Entities = append(state.Entities, coerceEntity(re))
	}
	for _, item := range asList(rs.Relationships) {
		var rr rawRelationship
		if !isObject(item) || json.Unmarshal(item, &rr) != nil {
			continue
		}
		state.Relationships = append(state.Relationships, coerceRelationship(rr))
	}
	return state, nil
}

func coerceEntity(re rawEntity) domain.Entity {
	e := domain.Entity{
		Name:             asString(re.Name),
		PresenceInPrompt: asBool(re.PresenceInPrompt),
		Description:      asString(re.Description),
		Alternatives:     asCandidates(re.Alternatives),
		Attributes:       []domain.Attribute{},
	}
	for _, item := range asList(re.Attributes) {
		var ra rawAttribute
		if !isObject(item) || json.Unmarshal(item, &ra) != nil {
			continue
		}
		e.Attributes = append(e.Attributes, domain.Attribute{
			Name:             asString(ra.Name),
			PresenceInPrompt: asBool(ra.PresenceInPrompt),
			Value:            asCandidates(ra.Value),
		})
	}
	return e
}

func coerceRelationship(rr rawRelationship) domain.Relationship {
	r := domain.Relationship{
		Source: asString(rr.Source),
		Target: asString(rr.Target),
		Label:  asString(rr.Label),
	}
	// Alternatives is optional on relationships; an empty list is left nil so
	// a second pass over the marshaled output sees the same shape.
	if alts := asCandidates(rr.Alternatives); len(alts) > 0 {
		r.Alternatives = alts
	}
	return r
}

// NormalizeClarifications accepts either a bare array or an object wrapping
// one under "questions" or "clarifications".
func NormalizeClarifications(text string) ([]domain.Clarification, error) {
	return decodeClarifications(text, true)
}

func CoerceClarifications(text string) ([]domain.Clarification, error) {
	return decodeClarifications(text, false)
}

func decodeClarifications(text string, extract bool) ([]domain.Clarification, error) {
	raw, err := parseRaw(text, extract)
	if err != nil {
		return nil, err
	}

	list := raw
	if isObject(raw) {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, &ParseError{Text: text, Err: err}
		}
		list = wrapper["questions"]
		if list == nil {
			list = wrapper["clarifications"]
		}
	}

	out := []domain.Clarification{}
	for _, item := range asList(list) {
		var c domain.Clarification
		if s, ok := stringValue(item); ok {
			c.Question = s
		} else {
			var rc rawClarification
			if !isObject(item) || json.Unmarshal(item, &rc) != nil {
				continue
			}
			c.Question = asString(rc.Question)
			for _, opt := range asList(rc.Options) {
				if s := asString(opt); s != "" {
					c.Options = append(c.Options, s)
				}
			}
		}
		c.Question = strings.TrimSpace(c.Question)
		if c.Question == "" {
			continue
		}
		if c.Options == nil {
			c.Options = []string{}
		}
		out = append(out, c)
	}
	return out, nil
}

// CleanRefinedPrompt unwraps a rewritten prompt from code fences, a
// {"prompt": ...} object or surrounding quotes.
func CleanRefinedPrompt(text string) (string, error) {
	s := stripFences(text)

	if strings.HasPrefix(s, "{") {
		var wrapper map[string]json.RawMessage
		if json.Unmarshal([]byte(s), &wrapper) == nil {
			for _, key := range []string{"prompt", "refined_prompt", "refinedPrompt"} {
				if v, ok := stringValue(wrapper[key]); ok {
					s = v
					break
				}
			}
		}
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			s = unq
		} else {
			s = s[1 : len(s)-1]
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: "prompt", Reason: "provider returned an empty prompt"}
	}
	return s, nil
}

func isObject(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}

// asList returns the elements of a JSON array, or nil for anything else.
func asList(raw json.RawMessage) []json.RawMessage {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || b[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	return items
}

func stringValue(raw json.RawMessage) (string, bool) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || b[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", false
	}
	return s, true
}

// asString accepts strings and scalars; numbers and bools keep their JSON text.
func asString(raw json.RawMessage) string {
	if s, ok := stringValue(raw); ok {
		return s
	}
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || b[0] == '{' || b[0] == '[' {
		return ""
	}
	return string(b)
}

func asBool(raw json.RawMessage) bool {
	var v bool
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	if s, ok := stringValue(raw); ok {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}

// asCandidates maps strings to Candidates and passes {name} objects through.
// A non-array yields an empty, non-nil list.
func asCandidates(raw json.RawMessage) []domain.Candidate {
	out := []domain.Candidate{}
	for _, item := range asList(raw) {
		if s, ok := stringValue(item); ok {
			out = append(out, domain.Candidate{Name: s})
			continue
		}
		if !isObject(item) {
			continue
		}
		var c struct {
			Name json.RawMessage `json:"name"`
		}
		if json.Unmarshal(item, &c) != nil {
			continue
		}
		if _, ok := stringValue(c.Name); !ok {
			continue
		}
		out = append(out, domain.Candidate{Name: asString(c.Name)})
	}
	return out
}
