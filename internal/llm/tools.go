package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"google.golang.org/genai"
)

type toolFunc func(args map[string]any) (map[string]any, error)

type tool struct {
	decl *genai.FunctionDeclaration
	run  toolFunc
}

// ToolTable is the fixed set of functions the native provider may call.
type ToolTable struct {
	tools map[string]tool
}

var modeGuidelines = map[domain.Mode]string{
	domain.ModeImage: "Describe a single frozen moment: subject, setting, lighting, camera angle, composition and art style. Avoid temporal sequences.",
	domain.ModeStory: "Establish characters, setting, tone, point of view and the central conflict. Attributes may change over the narrative.",
	domain.ModeVideo: "Describe a short continuous shot: subject, action over time, camera movement, pacing, lighting and style.",
}

var styleCatalog = map[string][]string{
	"watercolor":  {"soft edges", "bleeding pigments", "paper texture", "muted palette"},
	"noir":        {"high contrast", "deep shadows", "rain-slick streets", "monochrome"},
	"cyberpunk":   {"neon lighting", "dense urban sprawl", "rain", "holographic signage"},
	"photoreal":   {"natural lighting", "shallow depth of field", "35mm lens", "fine detail"},
	"pixel art":   {"limited palette", "hard pixel edges", "sprite-like figures"},
	"fairy tale":  {"whimsical tone", "archetypal characters", "moral arc", "once-upon-a-time framing"},
	"documentary": {"handheld camera", "natural sound", "observational framing"},
}

func DefaultToolTable() ToolTable {
	return ToolTable{tools: map[string]tool{
		"get_mode_guidelines": {
			decl: &genai.FunctionDeclaration{
				Name:        "get_mode_guidelines",
				Description: "Returns composition guidance for a generation mode.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"mode": {Type: genai.TypeString, Enum: []string{"image", "story", "video"}},
					},
					Required: []string{"mode"},
				},
			},
			run: getModeGuidelines,
		},
		"describe_style": {
			decl: &genai.FunctionDeclaration{
				Name:        "describe_style",
				Description: "Returns descriptors that characterize a named visual or narrative style.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"style": {Type: genai.TypeString},
					},
					Required: []string{"style"},
				},
			},
			run: describeStyle,
		},
	}}
}

// Declarations returns the tool declarations sorted by name.
func (t ToolTable) Declarations() []*genai.FunctionDeclaration {
	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]*genai.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		decls = append(decls, t.tools[name].decl)
	}
	return decls
}

// Execute runs a tool by name. Failures are reported to the model as an
// "error" field rather than aborting the conversation.
func (t ToolTable) Execute(name string, args map[string]any) map[string]any {
	tl, ok := t.tools[name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", name)}
	}
	out, err := tl.run(args)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

func getModeGuidelines(args map[string]any) (map[string]any, error) {
	mode, _ := args["mode"].(string)
	g, ok := modeGuidelines[domain.Mode(strings.ToLower(mode))]
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	return map[string]any{"mode": mode, "guidelines": g}, nil
}

func describeStyle(args map[string]any) (map[string]any, error) {
	style, _ := args["style"].(string)
	descriptors, ok := styleCatalog[strings.ToLower(strings.TrimSpace(style))]
	if !ok {
		return map[string]any{"style": style, "found": false}, nil
	}
	return map[string]any{"style": style, "found": true, "descriptors": descriptors}, nil
}
