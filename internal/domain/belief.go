package domain

import (
	"slices"
	"strings"
)

// ExistenceAttribute is the attribute whose first candidate ("true"/"false")
// says whether an entity should remain in the scene.
const ExistenceAttribute = "existence"

type Candidate struct {
	Name string `json:"name"`
}

type Attribute struct {
	Name             string      `json:"name"`
	PresenceInPrompt bool        `json:"presence_in_prompt"`
	Value            []Candidate `json:"value"`
}

type Entity struct {
	Name             string      `json:"name"`
	PresenceInPrompt bool        `json:"presence_in_prompt"`
	Description      string      `json:"description"`
	Alternatives     []Candidate `json:"alternatives"`
	Attributes       []Attribute `json:"attributes"`
}

type Relationship struct {
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	Label        string      `json:"label"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
}

// BeliefState is the full graph extracted for one (prompt, mode) pair.
// It is replaced wholesale on every analysis cycle.
type BeliefState struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Prompt        string         `json:"prompt,omitempty"`
}

// EmptyBeliefState returns a graph with non-nil empty lists.
func EmptyBeliefState() BeliefState {
	return BeliefState{
		Entities:      []Entity{},
		Relationships: []Relationship{},
	}
}

// Clone returns a copy of the graph that shares no slices with b.
func (b BeliefState) Clone() BeliefState {
	out := b
	out.Entities = slices.Clone(b.Entities)
	for i := range out.Entities {
		e := &out.Entities[i]
		e.Alternatives = slices.Clone(e.Alternatives)
		e.Attributes = slices.Clone(e.Attributes)
		for j := range e.Attributes {
			e.Attributes[j].Value = slices.Clone(e.Attributes[j].Value)
		}
	}
	out.Relationships = slices.Clone(b.Relationships)
	for i := range out.Relationships {
		out.Relationships[i].Alternatives = slices.Clone(out.Relationships[i].Alternatives)
	}
	return out
}

// Entity looks an entity up by case-insensitive name.
func (b BeliefState) Entity(name string) (Entity, bool) {
	for _, e := range b.Entities {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entity{}, false
}

// DanglingRelationships returns relationships whose source or target does not
// name an entity in the graph.
func (b BeliefState) DanglingRelationships() []Relationship {
	var out []Relationship
	for _, r := range b.Relationships {
		_, okSrc := b.Entity(r.Source)
		_, okDst := b.Entity(r.Target)
		if !okSrc || !okDst {
			out = append(out, r)
		}
	}
	return out
}

// Top returns the most likely candidate, or "" when there is none.
func (a Attribute) Top() string {
	if len(a.Value) == 0 {
		return ""
	}
	return a.Value[0].Name
}
