package domain

import (
	"fmt"
	"strings"
)

type UpdateType string

const (
	UpdateAttribute    UpdateType = "attribute"
	UpdateRelationship UpdateType = "relationship"
)

// GraphUpdate is one pending user edit not yet folded into the prompt.
// Attribute edits use Entity/Attribute/Value; relationship edits use
// Source/Target/OldLabel/NewLabel.
type GraphUpdate struct {
	Type      UpdateType `json:"type"`
	Entity    string     `json:"entity,omitempty"`
	Attribute string     `json:"attribute,omitempty"`
	Value     string     `json:"value,omitempty"`
	Source    string     `json:"source,omitempty"`
	Target    string     `json:"target,omitempty"`
	OldLabel  string     `json:"oldLabel,omitempty"`
	NewLabel  string     `json:"newLabel,omitempty"`
}

func AttributeUpdate(entity, attribute, value string) GraphUpdate {
	return GraphUpdate{Type: UpdateAttribute, Entity: entity, Attribute: attribute, Value: value}
}

func RelationshipUpdate(source, target, oldLabel, newLabel string) GraphUpdate {
	return GraphUpdate{Type: UpdateRelationship, Source: source, Target: target, OldLabel: oldLabel, NewLabel: newLabel}
}

// Key identifies the graph slot the update targets. Two updates with the same
// key overwrite each other. Relationship keys include the old label so edits to
// different relationships between one pair stay distinct.
func (u GraphUpdate) Key() string {
	switch u.Type {
	case UpdateAttribute:
		return "attr:" + strings.ToLower(u.Entity) + "/" + strings.ToLower(u.Attribute)
	case UpdateRelationship:
		return "rel:" + strings.ToLower(u.Source) + "->" + strings.ToLower(u.Target) +
			"#" + strings.ToLower(strings.TrimSpace(u.OldLabel))
	default:
		return "unknown"
	}
}

// IsRemoval reports whether the update deletes its entity from the scene.
func (u GraphUpdate) IsRemoval() bool {
	return u.Type == UpdateAttribute &&
		strings.EqualFold(u.Attribute, ExistenceAttribute) &&
		strings.EqualFold(strings.TrimSpace(u.Value), "false")
}

// MissingField returns the name of the first required field that is empty.
func (u GraphUpdate) MissingField() string {
	switch u.Type {
	case UpdateAttribute:
		switch {
		case strings.TrimSpace(u.Entity) == "":
			return "entity"
		case strings.TrimSpace(u.Attribute) == "":
			return "attribute"
		case strings.TrimSpace(u.Value) == "":
			return "value"
		}
	case UpdateRelationship:
		switch {
		case strings.TrimSpace(u.Source) == "":
			return "source"
		case strings.TrimSpace(u.Target) == "":
			return "target"
		case strings.TrimSpace(u.NewLabel) == "":
			return "newLabel"
		}
	default:
		return "type"
	}
	return ""
}

// Instruction renders the edit as one line of a refine request.
func (u GraphUpdate) Instruction() string {
	switch {
	case u.IsRemoval():
		return fmt.Sprintf("Remove %q from the scene entirely, along with any relationships that involve it.", u.Entity)
	case u.Type == UpdateAttribute:
		return fmt.Sprintf("Set the %q of %q to %q.", u.Attribute, u.Entity, u.Value)
	case u.Type == UpdateRelationship && u.OldLabel != "":
		return fmt.Sprintf("Change the relationship between %q and %q from %q to %q.", u.Source, u.Target, u.OldLabel, u.NewLabel)
	default:
		return fmt.Sprintf("Make the relationship between %q and %q be %q.", u.Source, u.Target, u.NewLabel)
	}
}
