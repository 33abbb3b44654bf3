package main

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/spf13/cobra"
)

var (
	askedQuestions []string
	answerFlags    []string
	editFlags      []string
	relationFlags  []string
)

var graphCmd = &cobra.Command{
	Use:   "graph [prompt]",
	Short: "Extract the belief graph for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGraph,
}

var clarifyCmd = &cobra.Command{
	Use:   "clarify [prompt]",
	Short: "Generate clarifying questions for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClarify,
}

var refineCmd = &cobra.Command{
	Use:   "refine [prompt]",
	Short: "Rewrite a prompt with answers and graph edits folded in",
	Long: `Rewrite a prompt with clarification answers and graph edits folded in.

Answers are given as "question=answer". Attribute edits are given as
"entity.attribute=value"; use "entity.existence=false" to remove an entity.
Relationship edits are given as "source->target=label" or
"source->target=old:new".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefine,
}

var contentCmd = &cobra.Command{
	Use:   "content [prompt]",
	Short: "Generate image, story or video content for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runContent,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers and their capabilities",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func init() {
	clarifyCmd.Flags().StringArrayVar(&askedQuestions, "asked", nil, "Question already asked (repeatable)")
	refineCmd.Flags().StringArrayVar(&answerFlags, "answer", nil, `Clarification answer as "question=answer" (repeatable)`)
	refineCmd.Flags().StringArrayVar(&editFlags, "edit", nil, `Attribute edit as "entity.attribute=value" (repeatable)`)
	refineCmd.Flags().StringArrayVar(&relationFlags, "relation", nil, `Relationship edit as "source->target=label" (repeatable)`)
}

func runGraph(cmd *cobra.Command, args []string) error {
	m, err := targetMode()
	if err != nil {
		return err
	}
	d, err := newDispatcher()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	state, err := d.GenerateBeliefGraph(ctx, strings.Join(args, " "), m, providerConfig(), stderrProgress(cmd))
	if err != nil {
		return err
	}
	return printJSON(cmd, state)
}

func runClarify(cmd *cobra.Command, args []string) error {
	m, err := targetMode()
	if err != nil {
		return err
	}
	d, err := newDispatcher()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	questions, err := d.GenerateClarifications(ctx, strings.Join(args, " "), askedQuestions, m, providerConfig(), stderrProgress(cmd))
	if err != nil {
		return err
	}
	return printJSON(cmd, questions)
}

func runRefine(cmd *cobra.Command, args []string) error {
	answers, err := parseAnswers(answerFlags)
	if err != nil {
		return err
	}
	edits, err := parseEdits(editFlags, relationFlags)
	if err != nil {
		return err
	}
	if len(answers) == 0 && len(edits) == 0 {
		return fmt.Errorf("refine needs at least one --answer, --edit or --relation")
	}

	d, err := newDispatcher()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	refined, err := d.RefinePrompt(ctx, strings.Join(args, " "), answers, edits, providerConfig(), stderrProgress(cmd))
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"prompt": refined})
}

func runContent(cmd *cobra.Command, args []string) error {
	m, err := targetMode()
	if err != nil {
		return err
	}
	d, err := newDispatcher()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	content, err := d.GenerateContent(ctx, strings.Join(args, " "), m, providerConfig(), stderrProgress(cmd))
	if err != nil {
		return err
	}
	return printJSON(cmd, content)
}

func runProviders(cmd *cobra.Command, args []string) error {
	d, err := newDispatcher()
	if err != nil {
		return err
	}
	return printJSON(cmd, d.Providers())
}

func parseAnswers(raw []string) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(raw))
	for _, r := range raw {
		q, a, ok := strings.Cut(r, "=")
		q, a = strings.TrimSpace(q), strings.TrimSpace(a)
		if !ok || q == "" || a == "" {
			return nil, fmt.Errorf("invalid --answer %q: want question=answer", r)
		}
		out = append(out, domain.Answer{Question: q, Answer: a})
	}
	return out, nil
}

func parseEdits(attrs, relations []string) ([]domain.GraphUpdate, error) {
	out := make([]domain.GraphUpdate, 0, len(attrs)+len(relations))
	for _, r := range attrs {
		lhs, value, ok := strings.Cut(r, "=")
		entity, attribute, dot := strings.Cut(lhs, ".")
		if !ok || !dot {
			return nil, fmt.Errorf("invalid --edit %q: want entity.attribute=value", r)
		}
		u := domain.AttributeUpdate(strings.TrimSpace(entity), strings.TrimSpace(attribute), strings.TrimSpace(value))
		if field := u.MissingField(); field != "" {
			return nil, fmt.Errorf("invalid --edit %q: %s is empty", r, field)
		}
		out = append(out, u)
	}
	for _, r := range relations {
		lhs, label, ok := strings.Cut(r, "=")
		source, target, arrow := strings.Cut(lhs, "->")
		if !ok || !arrow {
			return nil, fmt.Errorf("invalid --relation %q: want source->target=label", r)
		}
		oldLabel, newLabel, renamed := strings.Cut(label, ":")
		if !renamed {
			oldLabel, newLabel = "", label
		}
		u := domain.RelationshipUpdate(strings.TrimSpace(source), strings.TrimSpace(target),
			strings.TrimSpace(oldLabel), strings.TrimSpace(newLabel))
		if field := u.MissingField(); field != "" {
			return nil, fmt.Errorf("invalid --relation %q: %s is empty", r, field)
		}
		out = append(out, u)
	}
	return out, nil
}
