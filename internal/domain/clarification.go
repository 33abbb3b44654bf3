package domain

import "strings"

type Clarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Answer is a clarification the user responded to.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionKey normalizes a question for dedupe.
func QuestionKey(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
