package llm

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

const graphPrompt = `You analyze creative prompts for %s generation and extract a belief graph: every entity in the scene, its attributes, and the relationships between entities.

For each entity give:
- name: a short noun phrase
- presence_in_prompt: true only if the user's text literally mentions it
- description: one sentence
- alternatives: up to 3 alternative names as [{"name": "..."}]
- attributes: a list of {"name", "presence_in_prompt", "value"} where value is 1 to 3 candidates [{"name": "..."}] ordered most likely first

Always include an attribute named "existence" with value [{"name": "true"}] for entities that belong in the scene.
Infer plausible attributes the user did not state and mark them presence_in_prompt false.

For each relationship give source, target (entity names from the list above), label, and optional alternatives.`

const graphFormat = `

Respond ONLY with JSON, no markdown, no explanation:
{"entities":[{"name":"","presence_in_prompt":true,"description":"","alternatives":[{"name":""}],"attributes":[{"name":"","presence_in_prompt":true,"value":[{"name":""}]}]}],"relationships":[{"source":"","target":"","label":""}]}`

const clarificationPrompt = `You help users sharpen creative prompts for %s generation. Find the most important details the prompt leaves ambiguous and ask about them.

Ask at most 4 questions. Each question must offer 2 to 4 short answer options.
Never ask a question that appears in the "already asked" list.`

const clarificationFormat = `

Respond ONLY with a JSON array, no markdown, no explanation:
[{"question":"","options":["",""]}]

If nothing is ambiguous, respond with an empty array: []`

const refinePrompt = `You rewrite creative prompts. Apply every answer and edit below to the original prompt and return the full rewritten prompt.

Rules:
- Keep everything the user did not ask to change.
- Apply edits literally. When an entity is removed, remove every mention of it and every relationship involving it.
- Write the result as natural prose, not a list.

Respond with ONLY the rewritten prompt text. No explanation, no quotes, no formatting.`

const storyPrompt = `You are a fiction writer. Write a complete short story (400 to 800 words) that follows the prompt faithfully, including its characters, setting, tone and any stated details.

Respond with ONLY the story text.`

const nativeToolHint = `

You may call get_mode_guidelines to review what a good %s prompt covers, and describe_style to look up descriptors for any named style in the prompt.`

func modeLabel(mode domain.Mode) string {
	if mode == "" {
		return string(domain.ModeImage)
	}
	return string(mode)
}

func graphMessages(prompt string, mode domain.Mode, native bool) []Message {
	system := fmt.Sprintf(graphPrompt, modeLabel(mode))
	if !native {
		system += graphFormat
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: "Prompt:\n" + prompt},
	}
}

func clarificationMessages(prompt string, asked []string, mode domain.Mode, native bool) []Message {
	system := fmt.Sprintf(clarificationPrompt, modeLabel(mode))
	if !native {
		system += clarificationFormat
	}

	var b strings.Builder
	b.WriteString("Prompt:\n")
	b.WriteString(prompt)
	if len(asked) > 0 {
		b.WriteString("\n\nAlready asked:\n")
		for _, q := range asked {
			b.WriteString("- ")
			b.WriteString(q)
			b.WriteString("\n")
		}
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: strings.TrimRight(b.String(), "\n")},
	}
}

func refineMessages(original string, answers []domain.Answer, edits []domain.GraphUpdate, native bool) []Message {
	system := refinePrompt
	if native {
		system += fmt.Sprintf(nativeToolHint, "creative")
	}

	var b strings.Builder
	b.WriteString("Original prompt:\n")
	b.WriteString(original)
	if len(answers) > 0 {
		b.WriteString("\n\nClarification answers:\n")
		for _, a := range answers {
			fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", a.Question, a.Answer)
		}
	}
	if len(edits) > 0 {
		b.WriteString("\n\nEdits:\n")
		for _, e := range edits {
			b.WriteString("- ")
			b.WriteString(e.Instruction())
			b.WriteString("\n")
		}
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: strings.TrimRight(b.String(), "\n")},
	}
}

func storyMessages(prompt string, native bool) []Message {
	system := storyPrompt
	if native {
		system += fmt.Sprintf(nativeToolHint, domain.ModeStory)
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: prompt},
	}
}
